package providers

import (
	"context"
	"time"
)

// Status-Werte einer Archivierungsanfrage.
const (
	StatusSuccess         = "success"
	StatusAlreadyArchived = "already_archived"
	StatusFailed          = "failed"
)

// ArchiveResult ist das Ergebnis eines einzelnen Archivierungsversuchs.
// Fehler werden nicht propagiert, sondern in Status/Error abgelegt.
type ArchiveResult struct {
	OriginalURL string    `json:"original_url"`
	ArchiveURL  string    `json:"archive_url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
}

// Succeeded meldet, ob die URL archiviert vorliegt (neu oder bereits vorhanden).
func (r *ArchiveResult) Succeeded() bool {
	return r.Status == StatusSuccess || r.Status == StatusAlreadyArchived
}

// Archiver ist das Interface, das jeder Archiv-Dienst (z.B. Wayback Machine,
// archive.today) implementieren muss.
type Archiver interface {
	// Save archiviert eine URL. Scheitert der Dienst, enthält das Ergebnis
	// Status "failed" statt eines Fehlers.
	Save(ctx context.Context, url string) *ArchiveResult

	// Name gibt den eindeutigen Namen des Archivers zurück (z.B. "wayback").
	Name() string
}
