// Batch-Tool: archiviert alle unarchivierten Quellen, höchste Priorität zuerst.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"words-record/config"
	"words-record/providers"
	"words-record/providers/archivetoday"
	"words-record/providers/wayback"
	"words-record/services"
	"words-record/storage"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	limit := flag.Int("limit", 0, "maximale Anzahl Quellen (0 = alle)")
	dryRun := flag.Bool("dry-run", false, "nur anzeigen, nichts archivieren")
	flag.Parse()

	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}

	var archivers []providers.Archiver
	for _, name := range strings.Split(cfg.EnabledArchivers, ",") {
		switch strings.TrimSpace(name) {
		case "wayback":
			archivers = append(archivers, wayback.NewFetcher(cfg, logging))
		case "archivetoday":
			archivers = append(archivers, archivetoday.NewFetcher(cfg, logging))
		}
	}
	if len(archivers) == 0 {
		logging.Fatal("No valid archivers enabled. Check ENABLED_ARCHIVERS in .env")
	}

	var snapshots services.SnapshotStore
	if cfg.SnapshotStorageEnabled() {
		s3Client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		snapshots = storage.NewSnapshotStorage(s3Client, cfg)
	}

	archiveService := services.NewArchiveService(cfg, db, logging, archivers, snapshots)
	batch := services.NewBatchService(cfg, db, logging, archiveService, nil, nil)

	// Ctrl-C bricht den Batch sauber ab; bereits archivierte Quellen bleiben
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := batch.RunArchiveBatch(ctx, *limit, *dryRun)
	if err != nil {
		logging.Fatal("Archive batch failed", zap.Error(err))
	}

	fmt.Printf("Processed: %d\nSucceeded: %d\nFailed:    %d\n",
		summary.Processed, summary.Succeeded, summary.Failed)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}
