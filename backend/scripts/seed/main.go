// Command seed loads pronunciation entries from a tab-separated file (word<TAB>reading)
// into the configured store.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"yomiage-bot/backend/internal/dictionary"
	"yomiage-bot/backend/internal/state"
	"yomiage-bot/backend/internal/storage"
	"yomiage-bot/backend/pkg/config"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	file := flag.String("file", "dictionary.tsv", "Tab-separated word/reading file")
	force := flag.Bool("force", false, "Replace readings that already exist")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development", ""); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting dictionary seeding...", zap.String("file", *file))

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal("Failed to open seed file", zap.Error(err))
	}
	defer f.Close()

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage", zap.Error(err))
	}
	defer backend.Close(ctx)

	dict := dictionary.New(backend.Bucket(storage.BucketDictionary), log)
	if err := dict.Load(ctx); err != nil {
		log.Fatal("Failed to load dictionary", zap.Error(err))
	}

	added, skipped, err := seed(ctx, dict, f, *force, log)
	if err != nil {
		log.Fatal("Seeding failed", zap.Int("added", added), zap.Error(err))
	}

	log.Info("Dictionary seeding completed successfully!",
		zap.Int("added", added),
		zap.Int("skipped", skipped),
		zap.Int("total", dict.Len()),
	)
}

// seed adds every valid row of r. Invalid rows are logged and skipped.
func seed(ctx context.Context, dict *dictionary.Dictionary, r io.Reader, force bool, log *zap.Logger) (added, skipped int, err error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.Comment = '#'
	reader.FieldsPerRecord = 2
	reader.LazyQuotes = true

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return added, skipped, nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) && errors.Is(parseErr.Err, csv.ErrFieldCount) {
				log.Warn("Skipping malformed row", zap.Int("line", parseErr.Line))
				skipped++
				continue
			}
			return added, skipped, err
		}

		if _, exists := dict.Get(record[0]); exists && !force {
			skipped++
			continue
		}

		if _, err := dict.Add(ctx, record[0], record[1]); err != nil {
			var invalid state.ErrInvalidPronunciation
			if errors.As(err, &invalid) {
				log.Warn("Skipping invalid entry", zap.String("word", record[0]), zap.Error(err))
				skipped++
				continue
			}
			return added, skipped, err
		}
		added++
	}
}
