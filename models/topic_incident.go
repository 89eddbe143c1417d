package models

import "time"

// Relation einer Zuordnung zum Topic.
const (
	IncidentRelationPrimary = "PRIMARY"
	IncidentRelationRelated = "RELATED"
)

// TopicIncident verknüpft eine klassifizierte Aussage (Incident) mit einem
// Topic. Pro (topic_id, incident_id) existiert genau eine Zeile.
type TopicIncident struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TopicID    uint `json:"topic_id" gorm:"index:idx_topic_incidents_unique,unique;not null"`
	IncidentID uint `json:"incident_id" gorm:"index:idx_topic_incidents_unique,unique;not null"`

	RelevanceScore int    `json:"relevance_score" gorm:"default:5"` // 0-10, gefloort
	IsPrimary      bool   `json:"is_primary" gorm:"default:false"`
	RelationType   string `json:"relation_type,omitempty"` // PRIMARY, RELATED
	IsVerified     bool   `json:"is_verified" gorm:"default:false"`
}

// TableName gibt explizit den Tabellennamen an.
func (TopicIncident) TableName() string {
	return "topic_incidents"
}
