package models

import "time"

// Credibility-Stufen für Quellen (fließt in die Archivierungs-Priorität ein).
const (
	CredibilityVeryHigh = "VERY_HIGH"
	CredibilityHigh     = "HIGH"
	CredibilityMixed    = "MIXED"
	CredibilityLow      = "LOW"
)

// Archivierungsmethoden.
const (
	ArchiveMethodWayback      = "WAYBACK_MACHINE"
	ArchiveMethodArchiveToday = "ARCHIVE_TODAY"
	ArchiveMethodLocalStorage = "LOCAL_STORAGE"
)

// Source-Typen.
const (
	SourceTypePrimary   = "PRIMARY"
	SourceTypeSecondary = "SECONDARY"
)

// Source repräsentiert eine zitierfähige Quelle (Artikel, Post, Dokument)
// samt Archivierungszustand.
type Source struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Zugehörige Aussage
	StatementID uint `json:"statement_id" gorm:"index"`

	URL         string     `json:"url" gorm:"size:2000;not null"`
	Title       string     `json:"title,omitempty" gorm:"size:500"`
	Author      string     `json:"author,omitempty"`
	Publication string     `json:"publication,omitempty"`
	PublishDate *time.Time `json:"publish_date,omitempty"`

	// Gerenderte Harvard-Zitierung (nur als String persistiert)
	Citation string `json:"citation,omitempty" gorm:"type:text"`

	SourceType       string `json:"source_type,omitempty" gorm:"index"` // PRIMARY, SECONDARY
	CredibilityLevel string `json:"credibility_level,omitempty" gorm:"index"`
	IsPaywalled      bool   `json:"is_paywalled" gorm:"default:false"`

	// Archivierungsfelder
	IsArchived       bool       `json:"is_archived" gorm:"index;default:false"`
	ArchiveURL       string     `json:"archive_url,omitempty" gorm:"size:2000"`
	ArchiveDate      *time.Time `json:"archive_date,omitempty"`
	ArchiveMethod    string     `json:"archive_method,omitempty"` // WAYBACK_MACHINE, ARCHIVE_TODAY, LOCAL_STORAGE
	ArchivalPriority int        `json:"archival_priority" gorm:"index;default:5"`

	// Verifikation des Archiv-Links
	ArchiveVerified bool       `json:"archive_verified" gorm:"default:false"`
	LastVerifiedAt  *time.Time `json:"last_verified_at,omitempty"`

	VerificationStatus string `json:"verification_status,omitempty" gorm:"index"`
}

// TableName gibt explizit den Tabellennamen an.
func (Source) TableName() string {
	return "sources"
}
