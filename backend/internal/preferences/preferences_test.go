package preferences

import (
	"context"
	"testing"

	"yomiage-bot/backend/internal/storage"
	apperrors "yomiage-bot/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type voiceList []string

func (v voiceList) HasVoice(voice string) bool {
	for _, x := range v {
		if x == voice {
			return true
		}
	}
	return false
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemory().Bucket(storage.BucketVoicePreferences), voiceList{"alloy", "nova"}, "alloy", nil)

	assert.Equal(t, "alloy", store.Resolve(ctx, "9"))
	assert.Equal(t, "alloy", store.Resolve(ctx, ""))

	require.NoError(t, store.Set(ctx, "9", "nova"))
	assert.Equal(t, "nova", store.Resolve(ctx, "9"))
	assert.Equal(t, "alloy", store.Resolve(ctx, "10"))

	err := store.Set(ctx, "9", "robot")
	assert.ErrorIs(t, err, apperrors.ErrUnknownVoice)
	assert.Equal(t, "nova", store.Resolve(ctx, "9"))

	require.NoError(t, store.Clear(ctx, "9"))
	require.NoError(t, store.Clear(ctx, "9"))
	assert.Equal(t, "alloy", store.Resolve(ctx, "9"))
}

func TestStore_StaleVoiceFallsBack(t *testing.T) {
	ctx := context.Background()
	bucket := storage.NewMemory().Bucket(storage.BucketVoicePreferences)
	require.NoError(t, bucket.Upsert(ctx, "9", "retired-voice"))

	store := New(bucket, voiceList{"alloy"}, "alloy", nil)
	assert.Equal(t, "alloy", store.Resolve(ctx, "9"))
}
