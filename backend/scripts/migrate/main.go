// Command migrate copies the dictionary and voice preferences between store backends,
// e.g. from the default sqlite file into neo4j.
package main

import (
	"context"
	"flag"
	"fmt"

	"yomiage-bot/backend/internal/storage"
	"yomiage-bot/backend/pkg/config"
	"yomiage-bot/backend/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	from := flag.String("from", config.StoreSQLite, "Source backend (sqlite, neo4j)")
	to := flag.String("to", config.StoreNeo4j, "Destination backend (sqlite, neo4j)")
	force := flag.Bool("force", false, "Overwrite entries that already exist in the destination")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development", ""); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting store migration...", zap.String("from", *from), zap.String("to", *to))

	if *from == *to {
		log.Fatal("Source and destination must differ")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	src := open(ctx, cfg, *from, log)
	defer src.Close(ctx)
	dst := open(ctx, cfg, *to, log)
	defer dst.Close(ctx)

	for _, bucket := range []string{storage.BucketDictionary, storage.BucketVoicePreferences} {
		written, err := storage.Copy(ctx, src.Bucket(bucket), dst.Bucket(bucket), *force)
		if err != nil {
			log.Fatal("Migration failed", zap.String("bucket", bucket), zap.Int("written", written), zap.Error(err))
		}
		log.Info("Bucket migrated", zap.String("bucket", bucket), zap.Int("written", written))
	}

	log.Info("Migration completed successfully!")
}

func open(ctx context.Context, cfg *config.Config, backend string, log *zap.Logger) storage.Backend {
	c := *cfg
	c.StoreBackend = backend
	if err := c.Validate(); err != nil {
		log.Fatal("Invalid backend configuration", zap.String("backend", backend), zap.Error(err))
	}
	b, err := storage.Open(ctx, &c, log)
	if err != nil {
		log.Fatal("Failed to open backend", zap.String("backend", backend), zap.Error(err))
	}
	return b
}
