package main

import (
	"context"
	"strings"
	"testing"

	"yomiage-bot/backend/internal/dictionary"
	"yomiage-bot/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	dict := dictionary.New(storage.NewMemory().Bucket(storage.BucketDictionary), nil)
	_, err := dict.Add(ctx, "草", "そう")
	require.NoError(t, err)

	input := strings.Join([]string{
		"# comment",
		"草\tくさ",
		"w\tだぶりゅー",
		"only-one-field",
		"bad word\tよみ",
	}, "\n")

	added, skipped, err := seed(ctx, dict, strings.NewReader(input), false, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, skipped)

	reading, _ := dict.Get("草")
	assert.Equal(t, "そう", reading)

	added, _, err = seed(ctx, dict, strings.NewReader("草\tくさ\n"), true, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	reading, _ = dict.Get("草")
	assert.Equal(t, "くさ", reading)
}
