// Package wayback enthält die Logik für die Interaktion mit der Wayback Machine.
package wayback

import "time"

// AvailableResponse repräsentiert die JSON-Antwort der "available"-API.
type AvailableResponse struct {
	ArchivedSnapshots struct {
		Closest struct {
			Available bool   `json:"available"`
			URL       string `json:"url"`
			Timestamp string `json:"timestamp"`
			Status    string `json:"status"`
		} `json:"closest"`
	} `json:"archived_snapshots"`
}

// Snapshot ist ein bereits existierender Archiv-Eintrag.
type Snapshot struct {
	ArchiveURL  string
	ArchiveDate time.Time
}
