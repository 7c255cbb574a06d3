package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	apperrors "yomiage-bot/backend/pkg/errors"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreSQLite = "sqlite"
	StoreNeo4j  = "neo4j"
	StoreMemory = "memory"
)

// TTS engines
const (
	EngineOpenAI = "openai"
	EngineHTTP   = "http"
)

// Config holds all application configuration
type Config struct {
	// App
	Env      string
	LogLevel string

	// Discord
	DiscordBotToken string
	CommandPrefix   string

	// Storage
	StoreBackend  string
	SQLitePath    string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Speech synthesis
	TTSEngine           string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	TTSModel            string
	TTSServiceURL       string // Self-hosted engine, POST {text, voice} to /synthesize
	DefaultVoice        string
	TTSVoices           []string // Voices offered by the HTTP engine; empty uses the engine list
	TTSTempDir          string
	SynthesisRetryDelay time.Duration
	SynthesisRatePerSec float64
	FFmpegPath          string

	// Announcements
	MaxSpokenLength  int
	AnnouncePresence bool

	// Reconnection protocol
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// Admin API (empty port disables it)
	AdminPort     string
	AdminBindAddr string
	AdminToken    string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Env:                 getEnv("ENV", "development"),
		LogLevel:            getEnv("LOG_LEVEL", ""),
		DiscordBotToken:     getEnv("DISCORD_BOT_TOKEN", ""),
		CommandPrefix:       getEnv("COMMAND_PREFIX", "!"),
		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
		SQLitePath:          getEnv("SQLITE_PATH", "yomiage.sqlite3"),
		Neo4jURI:            getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:           getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:       getEnv("NEO4J_PASSWORD", "password"),
		TTSEngine:           strings.ToLower(getEnv("TTS_ENGINE", EngineOpenAI)),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		TTSModel:            getEnv("TTS_MODEL", "tts-1"),
		TTSServiceURL:       getEnv("TTS_SERVICE_URL", "http://localhost:8002"),
		DefaultVoice:        getEnv("DEFAULT_VOICE", "alloy"),
		TTSVoices:           getEnvList("TTS_VOICES"),
		TTSTempDir:          getEnv("TTS_TEMP_DIR", os.TempDir()),
		SynthesisRetryDelay: getEnvMillis("SYNTHESIS_RETRY_DELAY_MS", 500*time.Millisecond),
		SynthesisRatePerSec: getEnvFloat("SYNTHESIS_RATE_PER_SEC", 5),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
		MaxSpokenLength:     getEnvInt("MAX_SPOKEN_LENGTH", 100),
		AnnouncePresence:    getEnvBool("ANNOUNCE_PRESENCE", true),
		ReconnectAttempts:   getEnvInt("RECONNECT_ATTEMPTS", 3),
		ReconnectDelay:      getEnvMillis("RECONNECT_DELAY_MS", 2*time.Second),
		AdminPort:           getEnv("ADMIN_PORT", ""),
		AdminBindAddr:       getEnv("ADMIN_BIND_ADDR", "127.0.0.1"),
		AdminToken:          getEnv("ADMIN_TOKEN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return apperrors.NewConfigMissingRequired("SQLITE_PATH")
		}
	case StoreNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
	case StoreMemory:
	default:
		return apperrors.NewConfigValidationFailed("STORE_BACKEND", fmt.Sprintf("unsupported backend %q", c.StoreBackend))
	}

	switch c.TTSEngine {
	case EngineOpenAI:
		// A base URL means an OpenAI-compatible proxy, which may not need a key
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return apperrors.NewConfigMissingRequired("OPENAI_API_KEY")
		}
	case EngineHTTP:
		if c.TTSServiceURL == "" {
			return apperrors.NewConfigMissingRequired("TTS_SERVICE_URL")
		}
	default:
		return apperrors.NewConfigValidationFailed("TTS_ENGINE", fmt.Sprintf("unsupported engine %q", c.TTSEngine))
	}

	if c.MaxSpokenLength <= 0 {
		return apperrors.NewConfigValidationFailed("MAX_SPOKEN_LENGTH", "must be positive")
	}
	if c.ReconnectAttempts <= 0 {
		return apperrors.NewConfigValidationFailed("RECONNECT_ATTEMPTS", "must be positive")
	}
	if c.SynthesisRatePerSec <= 0 {
		return apperrors.NewConfigValidationFailed("SYNTHESIS_RATE_PER_SEC", "must be positive")
	}
	if c.CommandPrefix == "" {
		return apperrors.NewConfigMissingRequired("COMMAND_PREFIX")
	}
	// Anything beyond loopback can end sessions and rewrite the dictionary
	if c.AdminPort != "" && !isLoopback(c.AdminBindAddr) && c.AdminToken == "" {
		return apperrors.NewConfigValidationFailed("ADMIN_TOKEN", "required when ADMIN_BIND_ADDR is not loopback")
	}
	// Discord token is checked by cmd/bot so the config can be loaded in tests
	return nil
}

// AdminAddr returns the admin API listen address
func (c *Config) AdminAddr() string {
	return net.JoinHostPort(c.AdminBindAddr, c.AdminPort)
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		var ms int
		if _, err := fmt.Sscanf(value, "%d", &ms); err == nil && ms >= 0 {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
