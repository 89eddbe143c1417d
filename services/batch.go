package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"words-record/config"
	"words-record/models"
)

// BatchSummary fasst einen Batch-Lauf zusammen.
type BatchSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Fallbacks int `json:"fallbacks,omitempty"` // nur Klassifikation
}

// BatchService führt die sequentiellen Batch-Läufe für Archivierung und
// Klassifikation aus. Wird vom HTTP-Server (Cron und Async-Trigger) und den
// CLI-Tools geteilt.
type BatchService struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *zap.Logger
	Archive    *ArchiveService
	Classifier *Classifier
	Topics     *TopicService
}

// NewBatchService erstellt einen neuen BatchService.
func NewBatchService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, archive *ArchiveService, classifier *Classifier, topics *TopicService) *BatchService {
	return &BatchService{
		Config:     cfg,
		DB:         db,
		Logger:     logger,
		Archive:    archive,
		Classifier: classifier,
		Topics:     topics,
	}
}

// RunArchiveBatch archiviert unarchivierte Quellen strikt sequentiell,
// höchste Priorität zuerst. Jede Quelle ist ein eigener Commit; ein Abbruch
// lässt bereits archivierte Quellen intakt. limit <= 0 bedeutet kein Limit,
// dryRun loggt nur, ohne Archiv-Dienste anzufragen.
func (s *BatchService) RunArchiveBatch(ctx context.Context, limit int, dryRun bool) (BatchSummary, error) {
	var summary BatchSummary

	query := s.DB.WithContext(ctx).
		Where("is_archived = ?", false).
		Order("archival_priority desc, created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sources []models.Source
	if err := query.Find(&sources).Error; err != nil {
		return summary, fmt.Errorf("load unarchived sources: %w", err)
	}

	s.Logger.Info("Archiv-Batch gestartet",
		zap.Int("sources", len(sources)),
		zap.Bool("dry_run", dryRun))

	for i := range sources {
		if ctx.Err() != nil {
			s.Logger.Warn("Archiv-Batch abgebrochen", zap.Int("processed", summary.Processed))
			break
		}
		source := &sources[i]
		summary.Processed++

		if dryRun {
			s.Logger.Info("Dry-Run: würde archivieren",
				zap.Uint("source_id", source.ID),
				zap.String("url", source.URL),
				zap.Int("priority", source.ArchivalPriority))
			continue
		}

		result := s.Archive.ArchiveSource(ctx, source)
		if result.Succeeded() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	s.Logger.Info("Archiv-Batch beendet",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// RunClassifyBatch klassifiziert unklassifizierte Aussagen sequentiell in
// Anlage-Reihenfolge, mit fester Pause zwischen den LLM-Aufrufen. Fehler
// degradieren pro Aussage auf den Fallback; der Batch läuft weiter.
func (s *BatchService) RunClassifyBatch(ctx context.Context, limit int, dryRun bool) (BatchSummary, error) {
	var summary BatchSummary

	query := s.DB.WithContext(ctx).
		Where("is_classified = ?", false).
		Order("created_at asc")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var statements []models.Statement
	if err := query.Find(&statements).Error; err != nil {
		return summary, fmt.Errorf("load unclassified statements: %w", err)
	}

	s.Logger.Info("Klassifikations-Batch gestartet",
		zap.Int("statements", len(statements)),
		zap.Bool("dry_run", dryRun))

	delay := time.Duration(s.Config.ClassifyDelayMs) * time.Millisecond

	for i := range statements {
		if ctx.Err() != nil {
			s.Logger.Warn("Klassifikations-Batch abgebrochen", zap.Int("processed", summary.Processed))
			break
		}
		stmt := &statements[i]
		summary.Processed++

		if dryRun {
			s.Logger.Info("Dry-Run: würde klassifizieren",
				zap.Uint("statement_id", stmt.ID),
				zap.String("speaker", stmt.SpeakerName))
			continue
		}

		classification, fellBack, err := s.Topics.ClassifyAndPersist(ctx, s.Classifier, stmt)
		if err != nil {
			s.Logger.Error("Aussage konnte nicht klassifiziert werden",
				zap.Uint("statement_id", stmt.ID),
				zap.Error(err))
			summary.Failed++
		} else {
			summary.Succeeded++
			if fellBack {
				summary.Fallbacks++
			}
			s.Logger.Info("Aussage klassifiziert",
				zap.Uint("statement_id", stmt.ID),
				zap.String("primary_topic", classification.PrimaryTopic),
				zap.Float64("confidence", classification.Confidence),
				zap.Bool("fallback", fellBack))
		}

		// Pause zwischen den LLM-Aufrufen
		if i < len(statements)-1 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
	}

	s.Logger.Info("Klassifikations-Batch beendet",
		zap.Int("processed", summary.Processed),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int("fallbacks", summary.Fallbacks))
	return summary, nil
}
