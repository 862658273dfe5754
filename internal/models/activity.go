package models

import (
	"time"

	"gorm.io/datatypes"
)

// ActivityLog is the audit trail of approval decisions and other staff actions.
// Entries are append-only and tagged with the request correlation id.
type ActivityLog struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	ActorID       uint              `gorm:"not null;index:idx_activity_actor" json:"actor_id"`
	ActorRole     string            `gorm:"size:32;not null" json:"actor_role"`
	Action        string            `gorm:"size:64;not null;index" json:"action"`
	EntityType    string            `gorm:"size:64;not null;index:idx_activity_entity" json:"entity_type"`
	EntityID      *uint             `gorm:"index:idx_activity_entity" json:"entity_id"`
	CorrelationID string            `gorm:"size:128" json:"correlation_id,omitempty"`
	Metadata      datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt     time.Time         `gorm:"index" json:"created_at"`
}

// Login outcomes stored on LoginActivity.
const (
	LoginAllowed    = "allowed"
	LoginDenied     = "denied"
	LoginInvalid    = "invalid_credentials"
	LoginBlockedBot = "blocked_bot"
)

// LoginActivity is one login attempt.
type LoginActivity struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;index" json:"username"`
	AccountID *uint     `gorm:"index" json:"account_id,omitempty"`
	IPAddress string    `gorm:"size:64" json:"ip_address"`
	UserAgent string    `gorm:"type:text" json:"user_agent"`
	Outcome   string    `gorm:"size:32;not null" json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}
