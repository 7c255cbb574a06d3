package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

var defaultHTTPVoices = []string{"default"}

// HTTPEngine calls a self-hosted synthesis service.
// POST {base}/synthesize {"text", "voice"} returns WAV bytes.
type HTTPEngine struct {
	baseURL    string
	voices     []string
	httpClient *http.Client
	logger     *zap.Logger
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// NewHTTPEngine creates the engine. An empty voices list offers a single "default" voice.
func NewHTTPEngine(baseURL string, voices []string, log *zap.Logger) *HTTPEngine {
	if len(voices) == 0 {
		voices = defaultHTTPVoices
	}
	return &HTTPEngine{
		baseURL: strings.TrimRight(baseURL, "/"),
		voices:  voices,
		logger:  logger.OrNop(log),
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // Longer timeout for TTS generation
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (h *HTTPEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	jsonData, err := json.Marshal(synthesizeRequest{Text: text, Voice: voice})
	if err != nil {
		return nil, apperrors.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/synthesize", bytes.NewReader(jsonData))
	if err != nil {
		return nil, apperrors.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("tts service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, apperrors.Permanent(err)
		}
		return nil, err
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	return audioData, nil
}

func (h *HTTPEngine) Voices() []string {
	return h.voices
}

func (h *HTTPEngine) Format() string {
	return "wav"
}

// Warmup asks the service to load its model so the first announcement is not delayed.
// It retries a few times while the service starts.
func (h *HTTPEngine) Warmup(ctx context.Context) error {
	const maxRetries = 5
	retryDelay := 2 * time.Second

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			h.logger.Debug("Retrying TTS warmup", zap.Int("attempt", attempt+1), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/warmup", nil)
		if err != nil {
			return err
		}
		resp, err := h.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			h.logger.Info("TTS service warmed up", zap.String("url", h.baseURL))
			return nil
		}
		lastErr = fmt.Errorf("warmup returned status %d", resp.StatusCode)
	}
	return lastErr
}
