package models

import "time"

// Statement repräsentiert eine dokumentierte Aussage einer Person oder
// Organisation, die klassifiziert und mit Quellen belegt wird.
type Statement struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SpeakerName string `json:"speaker_name" gorm:"index"`
	SpeakerType string `json:"speaker_type,omitempty" gorm:"index"` // person, organization
	Content     string `json:"content" gorm:"type:text;not null"`
	Context     string `json:"context,omitempty" gorm:"type:text"`

	StatementDate *time.Time `json:"statement_date,omitempty"`

	// Verifikations-Workflow
	IsVerified        bool       `json:"is_verified" gorm:"index;default:false"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerifiedBy        string     `json:"verified_by,omitempty"`
	VerificationLevel string     `json:"verification_level,omitempty" gorm:"index"`

	// Klassifikations-Zustand
	IsClassified bool       `json:"is_classified" gorm:"index;default:false"`
	ClassifiedAt *time.Time `json:"classified_at,omitempty"`

	Sources []Source `json:"sources,omitempty" gorm:"foreignKey:StatementID"`
}

// TableName gibt explizit den Tabellennamen an.
func (Statement) TableName() string {
	return "statements"
}
