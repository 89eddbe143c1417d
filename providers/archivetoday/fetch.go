// Package archivetoday enthält die Logik für die Interaktion mit archive.today.
package archivetoday

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"words-record/config"
	"words-record/providers"

	"go.uber.org/zap"
)

// Redirects werden nicht verfolgt: die archivierte URL steht im Location-Header.
var httpClient = &http.Client{
	Timeout: 60 * time.Second,
	CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	},
}

// Fetcher kapselt die Logik für archive.today.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen archive.today-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Archivers zurück.
func (f *Fetcher) Name() string {
	return "archivetoday"
}

// Save reicht eine URL beim Submission-Endpoint ein. Anders als beim
// Wayback-Pfad gibt es keine vorgelagerte Existenz-Prüfung; archive.today
// liefert bei erneuter Einreichung den bestehenden Snapshot im Location-Header.
func (f *Fetcher) Save(ctx context.Context, target string) *providers.ArchiveResult {
	log := f.Logger.With(zap.String("url", target))

	submitURL := f.Config.ArchiveTodayBaseURL + "/submit/"
	form := url.Values{}
	form.Set("url", target)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(form.Encode()))
	if err != nil {
		return failed(target, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	log.Info("Reiche URL bei archive.today ein", zap.String("submit_url", submitURL))
	resp, err := httpClient.Do(req)
	if err != nil {
		log.Warn("archive.today-Submission fehlgeschlagen", zap.Error(err))
		return failed(target, err.Error())
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		log.Warn("archive.today hat keinen Location-Header geliefert", zap.Int("status", resp.StatusCode))
		return failed(target, fmt.Sprintf("no location header in response (status %d)", resp.StatusCode))
	}

	log.Info("archive.today-Archivierung erfolgreich", zap.String("archive_url", location))
	return &providers.ArchiveResult{
		OriginalURL: target,
		ArchiveURL:  location,
		Timestamp:   time.Now().UTC(),
		Status:      providers.StatusSuccess,
	}
}

func failed(target, msg string) *providers.ArchiveResult {
	return &providers.ArchiveResult{
		OriginalURL: target,
		Timestamp:   time.Now().UTC(),
		Status:      providers.StatusFailed,
		Error:       msg,
	}
}
