// Package storage provides the durable keyed store behind the pronunciation
// dictionary and per-user voice preferences.
package storage

import (
	"context"
	"fmt"
	"time"

	"yomiage-bot/backend/pkg/config"

	"go.uber.org/zap"
)

// Bucket names used by the bot
const (
	BucketDictionary       = "dictionary"
	BucketVoicePreferences = "voice_preferences"
)

// Entry is one key/value pair of a bucket
type Entry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Bucket is a namespace of string keys.
// Get returns apperrors.ErrEntryNotFound for a missing key; Scan orders by key.
type Bucket interface {
	Get(ctx context.Context, key string) (string, error)
	Upsert(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context, limit, offset int) ([]Entry, error)
}

// Backend hands out buckets over a single connection
type Backend interface {
	Bucket(name string) Bucket
	Close(ctx context.Context) error
}

// Open connects the backend selected by cfg.StoreBackend
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Backend, error) {
	switch cfg.StoreBackend {
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	case config.StoreNeo4j:
		return OpenNeo4j(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
	case config.StoreMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
