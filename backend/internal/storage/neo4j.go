package storage

import (
	"context"
	"time"

	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const backendNeo4j = "neo4j"

// Neo4j stores entries as (:Entry {bucket, key, value, updated_at}) nodes
type Neo4j struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// OpenNeo4j creates the driver, verifies connectivity and ensures the uniqueness constraint
func OpenNeo4j(ctx context.Context, uri, user, password string, log *zap.Logger) (*Neo4j, error) {
	log = logger.OrNop(log)

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendNeo4j, "connect", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewStorageQueryFailed(backendNeo4j, "connect", err)
	}

	store := &Neo4j{driver: driver, logger: log}
	if err := store.ensureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	log.Info("Connected to Neo4j", zap.String("uri", uri))
	return store, nil
}

// NewNeo4j wraps an existing driver without touching the schema
func NewNeo4j(driver neo4j.DriverWithContext) *Neo4j {
	return &Neo4j{driver: driver, logger: logger.Get()}
}

func (n *Neo4j) ensureSchema(ctx context.Context) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `CREATE CONSTRAINT entry_bucket_key IF NOT EXISTS
		FOR (e:Entry) REQUIRE (e.bucket, e.key) IS UNIQUE`
	if _, err := session.Run(ctx, query, nil); err != nil {
		return apperrors.NewStorageQueryFailed(backendNeo4j, "constraint", err)
	}
	return nil
}

// Bucket returns the named bucket
func (n *Neo4j) Bucket(name string) Bucket {
	return &neo4jBucket{store: n, name: name}
}

// Close closes the Neo4j driver connection
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

type neo4jBucket struct {
	store *Neo4j
	name  string
}

func (b *neo4jBucket) Get(ctx context.Context, key string) (string, error) {
	session := b.store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entry {bucket: $bucket, key: $key})
		RETURN e.value as value
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"bucket": b.name,
		"key":    key,
	})
	if err != nil {
		return "", apperrors.NewStorageQueryFailed(backendNeo4j, "get", err)
	}

	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return "", apperrors.NewStorageQueryFailed(backendNeo4j, "get", err)
		}
		return "", apperrors.ErrEntryNotFound
	}

	return getString(result.Record(), "value", ""), nil
}

func (b *neo4jBucket) Upsert(ctx context.Context, key, value string) error {
	session := b.store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MERGE (e:Entry {bucket: $bucket, key: $key})
		SET e.value = $value,
		    e.updated_at = datetime()
	`
	_, err := session.Run(ctx, query, map[string]interface{}{
		"bucket": b.name,
		"key":    key,
		"value":  value,
	})
	if err != nil {
		return apperrors.NewStorageQueryFailed(backendNeo4j, "upsert", err)
	}
	return nil
}

func (b *neo4jBucket) Delete(ctx context.Context, key string) error {
	session := b.store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entry {bucket: $bucket, key: $key})
		WITH e, e.key as key
		DELETE e
		RETURN count(key) as deleted
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"bucket": b.name,
		"key":    key,
	})
	if err != nil {
		return apperrors.NewStorageQueryFailed(backendNeo4j, "delete", err)
	}

	deleted := int64(0)
	if result.Next(ctx) {
		if v, ok := result.Record().Get("deleted"); ok {
			deleted, _ = v.(int64)
		}
	}
	if err := result.Err(); err != nil {
		return apperrors.NewStorageQueryFailed(backendNeo4j, "delete", err)
	}
	if deleted == 0 {
		return apperrors.ErrEntryNotFound
	}
	return nil
}

func (b *neo4jBucket) Scan(ctx context.Context, limit, offset int) ([]Entry, error) {
	limit, offset = normalizePage(limit, offset)

	session := b.store.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := `
		MATCH (e:Entry {bucket: $bucket})
		RETURN e.key as key, e.value as value, e.updated_at as updated_at
		ORDER BY e.key ASC
		SKIP $offset
		LIMIT $limit
	`
	result, err := session.Run(ctx, query, map[string]interface{}{
		"bucket": b.name,
		"offset": offset,
		"limit":  limit,
	})
	if err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendNeo4j, "scan", err)
	}

	entries := []Entry{}
	for result.Next(ctx) {
		record := result.Record()
		entries = append(entries, Entry{
			Key:       getString(record, "key", ""),
			Value:     getString(record, "value", ""),
			UpdatedAt: getTime(record, "updated_at", time.Time{}),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendNeo4j, "scan", err)
	}
	return entries, nil
}

func getString(record *neo4j.Record, key, defaultValue string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return defaultValue
	}
	if str, ok := val.(string); ok {
		return str
	}
	return defaultValue
}

func getTime(record *neo4j.Record, key string, defaultValue time.Time) time.Time {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return defaultValue
	}
	if t, ok := val.(time.Time); ok {
		return t
	}
	return defaultValue
}
