package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "yomiage-bot/backend/pkg/errors"

	"github.com/sashabaranov/go-openai"
)

var openAIVoices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// OpenAIEngine speaks through the OpenAI (or a compatible) speech endpoint
type OpenAIEngine struct {
	client *openai.Client
	model  openai.SpeechModel
}

// NewOpenAIEngine creates the engine. baseURL may be empty for api.openai.com.
func NewOpenAIEngine(apiKey, baseURL, model string) *OpenAIEngine {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = strings.TrimRight(baseURL, "/") + "/v1"
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}

	return &OpenAIEngine{
		client: openai.NewClientWithConfig(config),
		model:  openai.SpeechModel(model),
	}
}

// Synthesize converts text to Ogg/Opus audio
func (o *OpenAIEngine) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	request := openai.CreateSpeechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatOpus,
	}

	response, err := o.client.CreateSpeech(ctx, request)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	defer response.Close()

	audioData, err := io.ReadAll(response)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}
	return audioData, nil
}

func (o *OpenAIEngine) Voices() []string {
	return openAIVoices
}

func (o *OpenAIEngine) Format() string {
	return "opus"
}

// classifyOpenAIError marks client errors as permanent; rate limits and 5xx stay retryable
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return apperrors.Permanent(fmt.Errorf("openai speech: %w", err))
	}
	return fmt.Errorf("openai speech: %w", err)
}
