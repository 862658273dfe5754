package models

import (
	"time"

	"gorm.io/datatypes"
)

// Severity is the urgency tier of a crisis alert.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the four alert tiers.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// CrisisAlert records a detected crisis signal. Only the notified flags change after creation.
type CrisisAlert struct {
	ID                uint                        `gorm:"primaryKey" json:"id"`
	AccountID         uint                        `gorm:"index;not null" json:"account_id"`
	MatchedTerms      datatypes.JSONSlice[string] `gorm:"type:json" json:"matched_terms"`
	Severity          Severity                    `gorm:"size:16;not null;index" json:"severity"`
	Context           string                      `gorm:"size:64;not null" json:"context"`
	RawText           string                      `gorm:"type:text" json:"raw_text"`
	ClinicianNotified bool                        `gorm:"not null;default:false" json:"clinician_notified"`
	InstituteNotified bool                        `gorm:"not null;default:false" json:"institute_notified"`
	CreatedAt         time.Time                   `gorm:"index" json:"created_at"`
}

// InstantRecommendation is a coping activity offered right after a crisis alert.
type InstantRecommendation struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AccountID     uint       `gorm:"index;not null" json:"account_id"`
	AlertID       uint       `gorm:"index;not null" json:"alert_id"`
	ActivityType  string     `gorm:"size:20;not null" json:"activity_type"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	ReferenceLink string     `gorm:"size:512" json:"reference_link"`
	BonusPoints   int        `gorm:"not null;default:10" json:"bonus_points"`
	Completed     bool       `gorm:"not null;default:false" json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
