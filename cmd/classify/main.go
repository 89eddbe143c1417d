// Batch-Tool: klassifiziert alle unklassifizierten Aussagen sequentiell.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"words-record/config"
	"words-record/providers/anthropic"
	"words-record/services"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	limit := flag.Int("limit", 0, "maximale Anzahl Aussagen (0 = alle)")
	dryRun := flag.Bool("dry-run", false, "nur anzeigen, nichts klassifizieren")
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

	llm := anthropic.NewClient(cfg, logging)
	if !llm.Enabled() && !*dryRun {
		logging.Warn("No ANTHROPIC_API_KEY configured; every statement will get the fallback classification.")
	}

	topics := services.NewTopicService(db, logging)
	classifier := services.NewClassifier(cfg, logging, llm, topics)
	batch := services.NewBatchService(cfg, db, logging, nil, classifier, topics)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := batch.RunClassifyBatch(ctx, *limit, *dryRun)
	if err != nil {
		logging.Fatal("Classify batch failed", zap.Error(err))
	}

	fmt.Printf("Processed: %d\nSucceeded: %d\nFailed:    %d\nFallbacks: %d\n",
		summary.Processed, summary.Succeeded, summary.Failed, summary.Fallbacks)
	if summary.Failed > 0 {
		os.Exit(1)
	}
}
