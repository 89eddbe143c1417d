package models

import "time"

// Relations-Typen zwischen zwei Topics (geschlossene Menge).
var TopicRelationTypes = []string{
	"SUBSET_OF", "CAUSED_BY", "LED_TO", "RELATED_TO",
	"CONTRADICTS", "SUPPORTS", "PART_OF_SERIES",
}

// TopicRelation modelliert eine gerichtete Kante zwischen zwei Topics.
// Mehrere Relations-Typen pro Topic-Paar sind erlaubt; jede Kombination
// (from, to, type) ist eindeutig.
type TopicRelation struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	FromTopicID  uint   `json:"from_topic_id" gorm:"index:idx_topic_relations_unique,unique;not null"`
	ToTopicID    uint   `json:"to_topic_id" gorm:"index:idx_topic_relations_unique,unique;not null"`
	RelationType string `json:"relation_type" gorm:"index:idx_topic_relations_unique,unique;size:64;not null"`

	Strength    int    `json:"strength" gorm:"default:5"` // 1-10
	Description string `json:"description,omitempty" gorm:"type:text"`
	IsVerified  bool   `json:"is_verified" gorm:"default:false"` // strength >= 8
}

// TableName gibt explizit den Tabellennamen an.
func (TopicRelation) TableName() string {
	return "topic_relations"
}
