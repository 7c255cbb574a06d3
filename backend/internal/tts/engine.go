// Package tts wraps the external speech engine and owns the temporary audio files it produces.
package tts

import (
	"context"
	"fmt"

	"yomiage-bot/backend/pkg/config"

	"go.uber.org/zap"
)

// Engine is a text-to-speech backend: text + voice in, encoded audio out
type Engine interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	// Voices lists the voice identifiers the engine accepts
	Voices() []string
	// Format is the file extension of the audio Synthesize returns
	Format() string
}

// NewEngine builds the engine selected by cfg.TTSEngine
func NewEngine(cfg *config.Config, logger *zap.Logger) (Engine, error) {
	switch cfg.TTSEngine {
	case config.EngineOpenAI:
		return NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TTSModel), nil
	case config.EngineHTTP:
		return NewHTTPEngine(cfg.TTSServiceURL, cfg.TTSVoices, logger), nil
	default:
		return nil, fmt.Errorf("unsupported tts engine %q", cfg.TTSEngine)
	}
}

func containsVoice(voices []string, voice string) bool {
	for _, v := range voices {
		if v == voice {
			return true
		}
	}
	return false
}
