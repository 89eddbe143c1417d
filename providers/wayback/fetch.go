package wayback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"words-record/config"
	"words-record/providers"

	"go.uber.org/zap"
)

var (
	httpClient = &http.Client{Timeout: 90 * time.Second} // /save/ kann lange dauern

	// Kompakter Wayback-Timestamp: YYYYMMDDhhmmss
	timestampRegex = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})(\d{2})(\d{2})(\d{2})`)
)

// Fetcher kapselt die Logik für die Wayback Machine.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher erstellt einen neuen Wayback-Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name gibt den Namen des Archivers zurück.
func (f *Fetcher) Name() string {
	return "wayback"
}

// Save archiviert eine URL in der Wayback Machine. Existiert bereits ein
// Snapshot, wird kein neuer Save-Request ausgelöst (already_archived).
func (f *Fetcher) Save(ctx context.Context, target string) *providers.ArchiveResult {
	log := f.Logger.With(zap.String("url", target))

	if snap := f.Check(ctx, target); snap != nil {
		log.Debug("URL bereits in der Wayback Machine archiviert.", zap.String("archive_url", snap.ArchiveURL))
		return &providers.ArchiveResult{
			OriginalURL: target,
			ArchiveURL:  snap.ArchiveURL,
			Timestamp:   snap.ArchiveDate,
			Status:      providers.StatusAlreadyArchived,
		}
	}

	saveURL := fmt.Sprintf("%s/save/%s", f.Config.WaybackBaseURL, target)
	log.Info("Starte Wayback-Archivierung", zap.String("save_url", saveURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, saveURL, nil)
	if err != nil {
		return failed(target, err.Error())
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Warn("Wayback-Save-Request fehlgeschlagen", zap.Error(err))
		return failed(target, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("Wayback-Save hat nicht-2xx-Status zurückgegeben", zap.Int("status", resp.StatusCode))
		return failed(target, fmt.Sprintf("wayback save returned status %d", resp.StatusCode))
	}

	// Nach Redirects zeigt die finale URL auf den Snapshot; das /save/-Segment
	// entfällt im zitierfähigen Permalink.
	finalURL := resp.Request.URL.String()
	archiveURL := strings.Replace(finalURL, "/save/", "/", 1)

	log.Info("Wayback-Archivierung erfolgreich", zap.String("archive_url", archiveURL))
	return &providers.ArchiveResult{
		OriginalURL: target,
		ArchiveURL:  archiveURL,
		Timestamp:   time.Now().UTC(),
		Status:      providers.StatusSuccess,
	}
}

// Check fragt die "available"-API nach einem existierenden Snapshot ab.
// Gibt nil zurück, wenn keiner existiert ODER die Abfrage scheitert; Aufrufer
// können die beiden Fälle nicht unterscheiden.
func (f *Fetcher) Check(ctx context.Context, target string) *Snapshot {
	checkURL := fmt.Sprintf("%s?url=%s", f.Config.WaybackAvailableURL, url.QueryEscape(target))
	log := f.Logger.With(zap.String("url", target))
	log.Debug("Rufe Wayback-Available-API auf", zap.String("check_url", checkURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return nil
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Debug("Wayback-Available-Abfrage fehlgeschlagen", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Debug("Wayback-Available-API hat nicht-200-Status zurückgegeben", zap.Int("status", resp.StatusCode))
		return nil
	}

	var ar AvailableResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		log.Debug("Fehler beim Parsen der Available-Antwort", zap.Error(err))
		return nil
	}

	closest := ar.ArchivedSnapshots.Closest
	if closest.URL == "" {
		return nil
	}

	return &Snapshot{
		ArchiveURL:  closest.URL,
		ArchiveDate: parseTimestamp(closest.Timestamp),
	}
}

// parseTimestamp wandelt den kompakten Wayback-Timestamp (YYYYMMDDhhmmss)
// in eine time.Time um. Bei unbrauchbarem Input wird die aktuelle Zeit genommen.
func parseTimestamp(ts string) time.Time {
	m := timestampRegex.FindStringSubmatch(ts)
	if m == nil {
		return time.Now().UTC()
	}
	iso := fmt.Sprintf("%s-%s-%sT%s:%s:%sZ", m[1], m[2], m[3], m[4], m[5], m[6])
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Now().UTC()
	}
	return t
}

func failed(target, msg string) *providers.ArchiveResult {
	return &providers.ArchiveResult{
		OriginalURL: target,
		Timestamp:   time.Now().UTC(),
		Status:      providers.StatusFailed,
		Error:       msg,
	}
}
