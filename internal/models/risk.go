package models

import (
	"time"

	"gorm.io/datatypes"
)

// RiskAssessment is the audit copy of a registration risk score. Rows are never updated.
type RiskAssessment struct {
	ID                    uint                        `gorm:"primaryKey" json:"id"`
	AccountID             uint                        `gorm:"index;not null" json:"account_id"`
	GenericUsername       bool                        `json:"generic_username"`
	SuspiciousEmailDomain bool                        `json:"suspicious_email_domain"`
	NameLength            int                         `json:"name_length"`
	ImplausibleAge        bool                        `json:"implausible_age"`
	Score                 float64                     `json:"score"`
	Suspect               bool                        `json:"suspect"`
	Reasons               datatypes.JSONSlice[string] `gorm:"type:json" json:"reasons"`
	Source                string                      `gorm:"size:16" json:"source"`
	CreatedAt             time.Time                   `json:"created_at"`
}
