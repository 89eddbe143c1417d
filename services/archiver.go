package services

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"words-record/config"
	"words-record/models"
	"words-record/providers"
)

// verifyClient für HEAD-Checks gegen Archiv-URLs.
var verifyClient = &http.Client{Timeout: 30 * time.Second}

// SnapshotStore persistiert rohe HTML-Snapshots (LOCAL_STORAGE-Fallback).
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, url string, body []byte) (string, error)
}

// ArchiveService orchestriert die Archivierung über alle konfigurierten
// Dienste, inklusive Rate-Limiting, Retries und S3-Fallback.
type ArchiveService struct {
	Config    *config.Config
	DB        *gorm.DB
	Logger    *zap.Logger
	Archivers []providers.Archiver
	Snapshots SnapshotStore // optional

	limiters map[string]*rate.Limiter
	backoff  time.Duration
}

// NewArchiveService erstellt eine neue Instanz des ArchiveService.
func NewArchiveService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, archivers []providers.Archiver, snapshots SnapshotStore) *ArchiveService {
	delay := time.Duration(cfg.ArchiveDelayMs) * time.Millisecond
	if delay <= 0 {
		delay = 2 * time.Second
	}

	// Ein Limiter pro Archiv-Dienst, nicht ein globaler Sleep
	limiters := make(map[string]*rate.Limiter, len(archivers))
	for _, a := range archivers {
		limiters[a.Name()] = rate.NewLimiter(rate.Every(delay), 1)
	}

	return &ArchiveService{
		Config:    cfg,
		DB:        db,
		Logger:    logger,
		Archivers: archivers,
		Snapshots: snapshots,
		limiters:  limiters,
		backoff:   delay,
	}
}

// methodFor übersetzt den Archiver-Namen in die persistierte Methode.
func methodFor(name string) string {
	switch name {
	case "wayback":
		return models.ArchiveMethodWayback
	case "archivetoday":
		return models.ArchiveMethodArchiveToday
	default:
		return name
	}
}

// ArchiveURL ist der primäre Einstiegspunkt: Wayback zuerst, bei jedem
// Nicht-Erfolg archive.today, zuletzt der S3-Snapshot. Gibt das Ergebnis und
// die verwendete Methode zurück; scheitern alle Wege, ist der Status "failed".
func (s *ArchiveService) ArchiveURL(ctx context.Context, target string) (*providers.ArchiveResult, string) {
	log := s.Logger.With(zap.String("url", target))

	var last *providers.ArchiveResult
	for _, archiver := range s.Archivers {
		result := s.saveWithRetry(ctx, archiver, target)
		if result.Succeeded() {
			return result, methodFor(archiver.Name())
		}
		log.Warn("Archiv-Dienst fehlgeschlagen, versuche nächsten",
			zap.String("archiver", archiver.Name()),
			zap.String("error", result.Error))
		last = result
	}

	if snapshot := s.snapshotFallback(ctx, target); snapshot != nil {
		return snapshot, models.ArchiveMethodLocalStorage
	}

	if last == nil {
		last = &providers.ArchiveResult{
			OriginalURL: target,
			Timestamp:   time.Now().UTC(),
			Status:      providers.StatusFailed,
			Error:       "no archivers configured",
		}
	}
	return last, ""
}

// saveWithRetry wartet auf den Limiter des Dienstes und wiederholt den
// Versuch mit exponentiellem Backoff plus Jitter.
func (s *ArchiveService) saveWithRetry(ctx context.Context, archiver providers.Archiver, target string) *providers.ArchiveResult {
	attempts := s.Config.ArchiveMaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var result *providers.ArchiveResult
	backoff := s.backoff

	for attempt := 1; attempt <= attempts; attempt++ {
		if limiter, ok := s.limiters[archiver.Name()]; ok {
			if err := limiter.Wait(ctx); err != nil {
				return &providers.ArchiveResult{
					OriginalURL: target,
					Timestamp:   time.Now().UTC(),
					Status:      providers.StatusFailed,
					Error:       err.Error(),
				}
			}
		}

		result = archiver.Save(ctx, target)
		if result.Succeeded() {
			return result
		}

		if attempt < attempts {
			jitter := time.Duration(rand.Int63n(int64(backoff)/2 + 1))
			s.Logger.Debug("Archivierung fehlgeschlagen, Retry folgt",
				zap.String("archiver", archiver.Name()),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff+jitter))
			select {
			case <-ctx.Done():
				return result
			case <-time.After(backoff + jitter):
			}
			backoff *= 2
		}
	}
	return result
}

// snapshotFallback lädt die Seite selbst herunter und legt sie als
// LOCAL_STORAGE-Snapshot in S3 ab.
func (s *ArchiveService) snapshotFallback(ctx context.Context, target string) *providers.ArchiveResult {
	if s.Snapshots == nil {
		return nil
	}
	log := s.Logger.With(zap.String("url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil
	}
	resp, err := metadataClient.Do(req)
	if err != nil {
		log.Warn("Snapshot-Download fehlgeschlagen", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Warn("Snapshot-Download mit nicht-200-Status", zap.Int("status", resp.StatusCode))
		return nil
	}

	body, err := readBody(resp)
	if err != nil {
		return nil
	}

	link, err := s.Snapshots.SaveSnapshot(ctx, target, body)
	if err != nil {
		log.Error("Snapshot-Upload nach S3 fehlgeschlagen", zap.Error(err))
		return nil
	}

	log.Info("Lokaler Snapshot als Fallback gespeichert", zap.String("snapshot_url", link))
	return &providers.ArchiveResult{
		OriginalURL: target,
		ArchiveURL:  link,
		Timestamp:   time.Now().UTC(),
		Status:      providers.StatusSuccess,
	}
}

// VerifyArchiveURL prüft per HEAD-Request, ob ein Archiv-Link erreichbar ist.
// Jeder Fehler ergibt false.
func (s *ArchiveService) VerifyArchiveURL(ctx context.Context, archiveURL string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, archiveURL, nil)
	if err != nil {
		return false
	}
	resp, err := verifyClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// CalculateArchivalPriority berechnet die Archivierungs-Priorität einer
// Quelle additiv: Basis 5, +5 PRIMARY, +3 hohe Glaubwürdigkeit, +4 jünger
// als 7 Tage bzw. +2 jünger als 30 Tage (exklusiv), +3 Paywall; Deckel 10.
// Reine, totale Funktion; die Arithmetik ist testrelevant.
func CalculateArchivalPriority(source *models.Source) int {
	priority := 5

	if source.SourceType == models.SourceTypePrimary {
		priority += 5
	}
	if source.CredibilityLevel == models.CredibilityVeryHigh || source.CredibilityLevel == models.CredibilityHigh {
		priority += 3
	}
	if source.PublishDate != nil {
		age := time.Since(*source.PublishDate)
		if age < 7*24*time.Hour {
			priority += 4
		} else if age < 30*24*time.Hour {
			priority += 2
		}
	}
	if source.IsPaywalled {
		priority += 3
	}

	if priority > 10 {
		priority = 10
	}
	return priority
}

// ArchiveSource archiviert eine persistierte Quelle und schreibt das Ergebnis
// auf deren Archivierungsfelder zurück. Jede Quelle ist eine eigene atomare
// Schreiboperation; ein Abbruch mitten im Batch lässt frühere Writes intakt.
func (s *ArchiveService) ArchiveSource(ctx context.Context, source *models.Source) *providers.ArchiveResult {
	log := s.Logger.With(zap.Uint("source_id", source.ID), zap.String("url", source.URL))

	result, method := s.ArchiveURL(ctx, source.URL)
	if !result.Succeeded() {
		log.Warn("Quelle konnte nicht archiviert werden", zap.String("error", result.Error))
		return result
	}

	now := result.Timestamp
	source.IsArchived = true
	source.ArchiveURL = result.ArchiveURL
	source.ArchiveDate = &now
	source.ArchiveMethod = method

	if s.VerifyArchiveURL(ctx, result.ArchiveURL) {
		verifiedAt := time.Now().UTC()
		source.ArchiveVerified = true
		source.LastVerifiedAt = &verifiedAt
	}

	if s.DB != nil {
		if err := s.DB.Save(source).Error; err != nil {
			log.Error("Archivierungsfelder konnten nicht gespeichert werden", zap.Error(err))
		}
	}

	log.Info("Quelle archiviert",
		zap.String("archive_url", source.ArchiveURL),
		zap.String("method", method),
		zap.Bool("verified", source.ArchiveVerified))
	return result
}

// BatchArchiveURLs verarbeitet URLs strikt sequentiell in Eingabe-Reihenfolge;
// das Pacing übernimmt der Limiter pro Dienst. Reihenfolge der Ergebnisse
// entspricht der Eingabe.
func (s *ArchiveService) BatchArchiveURLs(ctx context.Context, urls []string) []*providers.ArchiveResult {
	results := make([]*providers.ArchiveResult, 0, len(urls))
	for _, target := range urls {
		if ctx.Err() != nil {
			break
		}
		result, _ := s.ArchiveURL(ctx, target)
		results = append(results, result)
	}
	return results
}

func readBody(resp *http.Response) ([]byte, error) {
	const maxSnapshotSize = 8 << 20
	return io.ReadAll(io.LimitReader(resp.Body, maxSnapshotSize))
}
