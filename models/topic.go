package models

import (
	"time"

	"gorm.io/datatypes"
)

// Topic-Typen (geschlossene Taxonomie).
var TopicTypes = []string{
	"SCANDAL", "POLICY", "ELECTION", "LEGISLATION", "INVESTIGATION",
	"PROTEST", "CONFLICT", "DIPLOMACY", "ECONOMY", "BUSINESS",
	"TECHNOLOGY", "MEDIA", "CULTURE", "RELIGION", "SPORTS",
	"HEALTH", "ENVIRONMENT", "EDUCATION", "JUSTICE", "OTHER",
}

// Geographische Reichweite eines Topics.
var TopicScales = []string{"LOCAL", "REGIONAL", "NATIONAL", "INTERNATIONAL", "GLOBAL"}

// Lebenszyklus-Status eines Topics.
var TopicStatuses = []string{
	"EMERGING", "ACTIVE", "ESCALATING", "PEAK", "DECLINING",
	"RESOLVED", "HISTORICAL", "RECURRING", "DORMANT",
}

// Topic repräsentiert ein Thema, dem Aussagen zugeordnet werden.
// Der Slug ist der natürliche Schlüssel (lowercase, Bindestriche).
type Topic struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Slug        string `json:"slug" gorm:"uniqueIndex;size:255;not null"`
	Name        string `json:"name" gorm:"not null"`
	Label       string `json:"label,omitempty"`
	Description string `json:"description,omitempty" gorm:"type:text"`

	TopicType string `json:"topic_type,omitempty" gorm:"index"`
	Scale     string `json:"scale,omitempty" gorm:"index"`
	Status    string `json:"status,omitempty" gorm:"index;default:'ACTIVE'"`

	// Such-Keywords als JSON-Array
	Keywords datatypes.JSON `json:"keywords,omitempty" gorm:"type:jsonb"`

	IsActive bool `json:"is_active" gorm:"index;default:true"`
	Priority int  `json:"priority" gorm:"index;default:5"` // floor(confidence*10) beim Anlegen

	// Zähler werden bei jedem Link-Event inkrementiert
	StatementCount int        `json:"statement_count" gorm:"default:0"`
	IncidentCount  int        `json:"incident_count" gorm:"default:0"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Topic) TableName() string {
	return "topics"
}
