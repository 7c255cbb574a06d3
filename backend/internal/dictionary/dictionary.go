// Package dictionary keeps the word -> reading overrides used when speaking messages.
package dictionary

import (
	"context"
	"errors"
	"strings"
	"sync"

	"yomiage-bot/backend/internal/state"
	"yomiage-bot/backend/internal/storage"
	apperrors "yomiage-bot/backend/pkg/errors"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

// Dictionary is the pronunciation dictionary.
// Writes go to storage first; reads served to the sanitizer come from an in-memory copy.
type Dictionary struct {
	bucket storage.Bucket
	logger *zap.Logger

	mu       sync.RWMutex
	readings map[string]string
}

// New creates a dictionary over bucket. Call Load to fill it from storage.
func New(bucket storage.Bucket, log *zap.Logger) *Dictionary {
	return &Dictionary{
		bucket:   bucket,
		logger:   logger.OrNop(log),
		readings: make(map[string]string),
	}
}

// Load replaces the in-memory copy with every entry in storage
func (d *Dictionary) Load(ctx context.Context) error {
	const pageSize = 500

	readings := make(map[string]string)
	for offset := 0; ; offset += pageSize {
		page, err := d.bucket.Scan(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		for _, e := range page {
			readings[e.Key] = e.Value
		}
		if len(page) < pageSize {
			break
		}
	}

	d.mu.Lock()
	d.readings = readings
	d.mu.Unlock()

	d.logger.Info("Loaded pronunciation dictionary", zap.Int("entries", len(readings)))
	return nil
}

// Add inserts or replaces the reading for word
func (d *Dictionary) Add(ctx context.Context, word, reading string) (state.PronunciationEntry, error) {
	entry := state.PronunciationEntry{Word: strings.TrimSpace(word), Reading: strings.TrimSpace(reading)}
	if err := entry.Validate(); err != nil {
		return entry, err
	}

	if err := d.bucket.Upsert(ctx, entry.Word, entry.Reading); err != nil {
		return entry, err
	}

	d.mu.Lock()
	d.readings[entry.Word] = entry.Reading
	d.mu.Unlock()

	d.logger.Debug("Dictionary entry saved", zap.String("word", entry.Word), zap.String("reading", entry.Reading))
	return entry, nil
}

// Remove deletes word. It returns apperrors.ErrEntryNotFound if word was not registered.
func (d *Dictionary) Remove(ctx context.Context, word string) error {
	word = strings.TrimSpace(word)
	err := d.bucket.Delete(ctx, word)
	if err != nil && !errors.Is(err, apperrors.ErrEntryNotFound) {
		return err
	}

	d.mu.Lock()
	delete(d.readings, word)
	d.mu.Unlock()
	return err
}

// Get returns the reading for word
func (d *Dictionary) Get(word string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	reading, ok := d.readings[word]
	return reading, ok
}

// Reading implements sanitize.Lookup
func (d *Dictionary) Reading(word string) (string, bool) {
	return d.Get(word)
}

// List returns one page of entries ordered by word
func (d *Dictionary) List(ctx context.Context, limit, offset int) ([]state.PronunciationEntry, error) {
	page, err := d.bucket.Scan(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	entries := make([]state.PronunciationEntry, 0, len(page))
	for _, e := range page {
		entries = append(entries, state.PronunciationEntry{Word: e.Key, Reading: e.Value, UpdatedAt: e.UpdatedAt})
	}
	return entries, nil
}

// Len returns the number of loaded entries
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.readings)
}
