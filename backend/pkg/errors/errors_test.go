package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	closed := NewTransportClosed("1", fmt.Errorf("opus send timeout"))
	wrapped := fmt.Errorf("play: %w", closed)

	assert.ErrorIs(t, wrapped, ErrTransportClosed)
	assert.NotErrorIs(t, wrapped, ErrReconnectionExhausted)

	var typed *TransportClosedError
	if assert.ErrorAs(t, wrapped, &typed) {
		assert.Equal(t, "1", typed.GuildID)
	}

	assert.ErrorIs(t, NewSynthesisError("alloy", 2, fmt.Errorf("boom")), ErrSynthesisFailed)
	assert.ErrorIs(t, NewReconnectionExhausted("1", 3, nil), ErrReconnectionExhausted)
	assert.ErrorIs(t, NewSessionNotFound("1"), ErrSessionNotFound)
	assert.ErrorIs(t, NewUnknownVoice("robot"), ErrUnknownVoice)
}

func TestIsErrorType(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewStorageQueryFailed("sqlite", "upsert", fmt.Errorf("locked")))
	assert.True(t, IsErrorType(err, ErrorTypeStorage))
	assert.False(t, IsErrorType(err, ErrorTypeVoice))
	assert.False(t, IsErrorType(stderrors.New("plain"), ErrorTypeStorage))
	assert.True(t, IsErrorType(ErrEmptyInput, ErrorTypeSynthesis))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", stderrors.New("connection reset"), true},
		{"canceled", fmt.Errorf("tts: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"permanent", Permanent(stderrors.New("400 bad request")), false},
		{"empty input", ErrEmptyInput, false},
		{"context type", NewContextCancelled("synthesize", nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
