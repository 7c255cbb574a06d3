// Package preferences stores which voice each user wants to be read with.
package preferences

import (
	"context"
	"errors"

	"yomiage-bot/backend/internal/storage"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

// VoiceCatalog reports which voices the speech engine accepts
type VoiceCatalog interface {
	HasVoice(voice string) bool
}

// Store persists per-user voice choices
type Store struct {
	bucket       storage.Bucket
	voices       VoiceCatalog
	defaultVoice string
	logger       *zap.Logger
}

// New creates a store. defaultVoice is returned for users without a stored choice.
func New(bucket storage.Bucket, voices VoiceCatalog, defaultVoice string, log *zap.Logger) *Store {
	return &Store{
		bucket:       bucket,
		voices:       voices,
		defaultVoice: defaultVoice,
		logger:       logger.OrNop(log),
	}
}

// Set stores voice for userID. Unknown voices are rejected with apperrors.ErrUnknownVoice.
func (s *Store) Set(ctx context.Context, userID, voice string) error {
	if !s.voices.HasVoice(voice) {
		return apperrors.NewUnknownVoice(voice)
	}
	if err := s.bucket.Upsert(ctx, userID, voice); err != nil {
		return err
	}
	s.logger.Debug("Voice preference saved", zap.String("user_id", userID), zap.String("voice", voice))
	return nil
}

// Resolve returns the user's voice, or the default when none is stored (or the stored one is gone)
func (s *Store) Resolve(ctx context.Context, userID string) string {
	if userID == "" {
		return s.defaultVoice
	}
	voice, err := s.bucket.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrEntryNotFound) {
			s.logger.Warn("Failed to load voice preference", zap.String("user_id", userID), zap.Error(err))
		}
		return s.defaultVoice
	}
	if !s.voices.HasVoice(voice) {
		return s.defaultVoice
	}
	return voice
}

// Clear removes the stored voice for userID. Clearing an unset preference is not an error.
func (s *Store) Clear(ctx context.Context, userID string) error {
	err := s.bucket.Delete(ctx, userID)
	if errors.Is(err, apperrors.ErrEntryNotFound) {
		return nil
	}
	return err
}

// Default returns the fallback voice
func (s *Store) Default() string {
	return s.defaultVoice
}
