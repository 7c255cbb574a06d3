package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "yomiage-bot/backend/pkg/errors"
)

// Memory is a process-local Backend, used by tests and STORE_BACKEND=memory
type Memory struct {
	mu      sync.RWMutex
	buckets map[string]map[string]Entry
}

// NewMemory creates an empty in-memory backend
func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]map[string]Entry)}
}

// Bucket returns the named bucket
func (m *Memory) Bucket(name string) Bucket {
	return &memoryBucket{store: m, name: name}
}

// Close is a no-op
func (m *Memory) Close(ctx context.Context) error {
	return nil
}

type memoryBucket struct {
	store *Memory
	name  string
}

func (b *memoryBucket) Get(ctx context.Context, key string) (string, error) {
	b.store.mu.RLock()
	defer b.store.mu.RUnlock()

	entry, ok := b.store.buckets[b.name][key]
	if !ok {
		return "", apperrors.ErrEntryNotFound
	}
	return entry.Value, nil
}

func (b *memoryBucket) Upsert(ctx context.Context, key, value string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	entries, ok := b.store.buckets[b.name]
	if !ok {
		entries = make(map[string]Entry)
		b.store.buckets[b.name] = entries
	}
	entries[key] = Entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return nil
}

func (b *memoryBucket) Delete(ctx context.Context, key string) error {
	b.store.mu.Lock()
	defer b.store.mu.Unlock()

	if _, ok := b.store.buckets[b.name][key]; !ok {
		return apperrors.ErrEntryNotFound
	}
	delete(b.store.buckets[b.name], key)
	return nil
}

func (b *memoryBucket) Scan(ctx context.Context, limit, offset int) ([]Entry, error) {
	limit, offset = normalizePage(limit, offset)

	b.store.mu.RLock()
	entries := make([]Entry, 0, len(b.store.buckets[b.name]))
	for _, e := range b.store.buckets[b.name] {
		entries = append(entries, e)
	}
	b.store.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	if offset >= len(entries) {
		return []Entry{}, nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end], nil
}
