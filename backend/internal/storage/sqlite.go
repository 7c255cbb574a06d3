package storage

import (
	"context"
	"errors"
	"time"

	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

const backendSQLite = "sqlite"

var (
	sqliteMaxOpenConns    = 1
	sqliteMaxIdleConns    = 1
	sqliteMaxConnLifetime = 5 * time.Minute
	sqliteExecPragma      = []string{
		"pragma journal_mode=WAL;",
		"pragma synchronous = normal;",
		"pragma temp_store = memory;",
	}
	dbOperationTimeout = 10 * time.Second
)

// KeyValue is the single table backing every bucket
type KeyValue struct {
	Bucket    string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;column:entry_key;size:255"`
	Value     string `gorm:"column:entry_value;not null"`
	CreatedAt int64  `gorm:"autoCreateTime:milli"`
	UpdatedAt int64  `gorm:"autoUpdateTime:milli"`
}

// SQLite is a gorm-backed Backend
type SQLite struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenSQLite opens (creating if needed) the database file and migrates it
func OpenSQLite(ctx context.Context, path string, log *zap.Logger) (*SQLite, error) {
	log = logger.OrNop(log)
	log.Info("Initializing database", zap.String("database_type", backendSQLite), zap.String("database", path))

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendSQLite, "open", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendSQLite, "open", err)
	}
	sqlDB.SetMaxOpenConns(sqliteMaxOpenConns)
	sqlDB.SetMaxIdleConns(sqliteMaxIdleConns)
	sqlDB.SetConnMaxLifetime(sqliteMaxConnLifetime)

	for _, pragma := range sqliteExecPragma {
		if err := db.WithContext(ctx).Exec(pragma).Error; err != nil {
			return nil, apperrors.NewStorageQueryFailed(backendSQLite, "pragma", err)
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&KeyValue{}); err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendSQLite, "migrate", err)
	}

	return &SQLite{db: db, logger: log}, nil
}

// Bucket returns the named bucket
func (s *SQLite) Bucket(name string) Bucket {
	return &sqliteBucket{db: s.db, name: name}
}

// Close closes the underlying connection pool
func (s *SQLite) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type sqliteBucket struct {
	db   *gorm.DB
	name string
}

func (b *sqliteBucket) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	var kv KeyValue
	err := b.db.WithContext(ctx).
		Where("bucket = ? AND entry_key = ?", b.name, key).
		Take(&kv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrEntryNotFound
	}
	if err != nil {
		return "", apperrors.NewStorageQueryFailed(backendSQLite, "get", err)
	}
	return kv.Value, nil
}

func (b *sqliteBucket) Upsert(ctx context.Context, key, value string) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	kv := KeyValue{Bucket: b.name, Key: key, Value: value}
	err := b.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bucket"}, {Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return apperrors.NewStorageQueryFailed(backendSQLite, "upsert", err)
	}
	return nil
}

func (b *sqliteBucket) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	res := b.db.WithContext(ctx).
		Where("bucket = ? AND entry_key = ?", b.name, key).
		Delete(&KeyValue{})
	if res.Error != nil {
		return apperrors.NewStorageQueryFailed(backendSQLite, "delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrEntryNotFound
	}
	return nil
}

func (b *sqliteBucket) Scan(ctx context.Context, limit, offset int) ([]Entry, error) {
	limit, offset = normalizePage(limit, offset)
	ctx, cancel := context.WithTimeout(ctx, dbOperationTimeout)
	defer cancel()

	var rows []KeyValue
	err := b.db.WithContext(ctx).
		Where("bucket = ?", b.name).
		Order("entry_key ASC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.NewStorageQueryFailed(backendSQLite, "scan", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			Key:       row.Key,
			Value:     row.Value,
			UpdatedAt: time.UnixMilli(row.UpdatedAt),
		})
	}
	return entries, nil
}
