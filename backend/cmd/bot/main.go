package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yomiage-bot/backend/internal/api"
	"yomiage-bot/backend/internal/audio"
	"yomiage-bot/backend/internal/dictionary"
	"yomiage-bot/backend/internal/discord"
	"yomiage-bot/backend/internal/preferences"
	"yomiage-bot/backend/internal/sanitize"
	"yomiage-bot/backend/internal/storage"
	"yomiage-bot/backend/internal/tts"
	"yomiage-bot/backend/internal/voice"
	"yomiage-bot/backend/pkg/config"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"github.com/bwmarrin/discordgo"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load configuration first; it decides the log format
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting yomiage bot...", zap.String("env", cfg.Env))

	if cfg.DiscordBotToken == "" {
		log.Fatal("Failed to load configuration", zap.Error(apperrors.NewConfigMissingRequired("DISCORD_BOT_TOKEN")))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	// Storage
	backend, err := storage.Open(ctx, cfg, logger.Component("storage"))
	if err != nil {
		log.Fatal("Failed to open storage", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}

	dict := dictionary.New(backend.Bucket(storage.BucketDictionary), logger.Component("dictionary"))
	if err := dict.Load(ctx); err != nil {
		log.Fatal("Failed to load pronunciation dictionary", zap.Error(err))
	}
	log.Info("Pronunciation dictionary loaded", zap.Int("entries", dict.Len()))

	// Speech synthesis
	engine, err := tts.NewEngine(cfg, logger.Component("tts"))
	if err != nil {
		log.Fatal("Failed to create speech engine", zap.Error(err))
	}
	synth := tts.NewSynthesizer(engine, synthesizerOptions(cfg), logger.Component("tts"))
	if !synth.HasVoice(cfg.DefaultVoice) {
		log.Fatal("Failed to load configuration", zap.Error(apperrors.NewConfigValidationFailed(
			"DEFAULT_VOICE", fmt.Sprintf("%q is not offered by the %s engine", cfg.DefaultVoice, cfg.TTSEngine))))
	}
	prefs := preferences.New(backend.Bucket(storage.BucketVoicePreferences), synth, cfg.DefaultVoice, logger.Component("preferences"))

	// Create Discord session
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	connector := discord.NewConnector(dg, audio.NewConverter(cfg.FFmpegPath), logger.Component("discord"))
	registry := voice.NewRegistry(connector, synth, prefs, registryOptions(cfg), logger.Component("voice"))
	svc := voice.NewService(voice.ServiceConfig{
		Registry:         registry,
		Sanitizer:        sanitize.New(cfg.MaxSpokenLength, dict),
		Dictionary:       dict,
		Preferences:      prefs,
		Directory:        discord.NewDirectory(dg),
		Voices:           synth,
		AnnouncePresence: cfg.AnnouncePresence,
		Logger:           logger.Component("voice"),
	})

	handler := discord.NewHandler(svc, cfg.CommandPrefix, logger.Component("discord"))
	dg.AddHandler(handler.HandleMessage)
	dg.AddHandler(handler.HandleVoiceStateUpdate)

	dg.Identify.Intents = botIntents()
	log.Info("Discord bot intents configured",
		zap.Bool("guilds", (dg.Identify.Intents&discordgo.IntentsGuilds) != 0),
		zap.Bool("guild_messages", (dg.Identify.Intents&discordgo.IntentsGuildMessages) != 0),
		zap.Bool("guild_voice_states", (dg.Identify.Intents&discordgo.IntentsGuildVoiceStates) != 0),
		zap.Bool("message_content", (dg.Identify.Intents&discordgo.IntentsMessageContent) != 0),
	)

	// Open connection
	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)

	if warm, ok := engine.(*tts.HTTPEngine); ok {
		g.Go(func() error {
			if err := warm.Warmup(gctx); err != nil {
				log.Warn("TTS warmup failed, first announcement may be slow", zap.Error(err))
			}
			return nil
		})
	}

	var srv *http.Server
	if cfg.AdminPort != "" {
		if cfg.IsProduction() {
			gin.SetMode(gin.ReleaseMode)
		}
		srv = &http.Server{
			Addr:    cfg.AdminAddr(),
			Handler: api.NewRouter(svc, cfg.AdminToken, logger.Component("api")),
		}
		g.Go(func() error {
			log.Info("Admin API started", zap.String("addr", srv.Addr), zap.Bool("token", cfg.AdminToken != ""))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin API: %w", err)
			}
			return nil
		})
	}

	log.Info("Discord bot is running. Press CTRL-C to exit.")
	<-gctx.Done()

	log.Info("Shutting down Discord bot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Admin API forced to shutdown", zap.Error(err))
		}
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Warn("Voice sessions did not stop cleanly", zap.Error(err))
	}
	synth.Shutdown()
	if err := dg.Close(); err != nil {
		log.Warn("Failed to close Discord connection", zap.Error(err))
	}
	if err := backend.Close(shutdownCtx); err != nil {
		log.Warn("Failed to close storage", zap.Error(err))
	}
	if err := g.Wait(); err != nil {
		log.Error("Bot stopped with error", zap.Error(err))
	}

	log.Info("Bot exited")
}

func botIntents() discordgo.Intent {
	// Message content is privileged; it must also be enabled in the developer portal
	return discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent
}

func synthesizerOptions(cfg *config.Config) tts.Options {
	return tts.Options{
		TempDir:      cfg.TTSTempDir,
		RetryDelay:   cfg.SynthesisRetryDelay,
		RatePerSec:   cfg.SynthesisRatePerSec,
		DefaultVoice: cfg.DefaultVoice,
	}
}

func registryOptions(cfg *config.Config) voice.Options {
	return voice.Options{
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
	}
}
