package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src := NewMemory().Bucket(BucketDictionary)
	dst := NewMemory().Bucket(BucketDictionary)

	// More than one page
	total := CopyPageSize + 13
	for i := 0; i < total; i++ {
		require.NoError(t, src.Upsert(ctx, fmt.Sprintf("w%04d", i), "r"))
	}
	require.NoError(t, dst.Upsert(ctx, "w0000", "kept"))

	written, err := Copy(ctx, src, dst, false)
	require.NoError(t, err)
	assert.Equal(t, total-1, written)

	got, err := dst.Get(ctx, "w0000")
	require.NoError(t, err)
	assert.Equal(t, "kept", got)

	written, err = Copy(ctx, src, dst, true)
	require.NoError(t, err)
	assert.Equal(t, total, written)

	got, err = dst.Get(ctx, "w0000")
	require.NoError(t, err)
	assert.Equal(t, "r", got)
}
