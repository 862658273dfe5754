package models

import (
	"fmt"
	"time"
)

// EntityType names the kind of entity an approval record gates.
type EntityType string

const (
	EntityLearner   EntityType = "learner"
	EntityClinician EntityType = "clinician"
	EntityInstitute EntityType = "institute"
)

// ApprovalStatus is the lifecycle state of an approval record.
type ApprovalStatus string

const (
	ApprovalPending    ApprovalStatus = "pending"
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalRejected   ApprovalStatus = "rejected"
	ApprovalSuspicious ApprovalStatus = "suspicious"
)

// Undecided reports whether a moderator or manager may still decide the record.
func (s ApprovalStatus) Undecided() bool {
	return s == ApprovalPending || s == ApprovalSuspicious
}

// ApprovalRecord gates a learner, clinician or institute.
//
// ActiveKey is set while the record is pending, suspicious or approved and cleared
// once it is rejected; its unique index keeps a single active record per entity.
type ApprovalRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	EntityType  EntityType     `gorm:"size:32;not null;index:idx_approval_entity" json:"entity_type"`
	EntityID    uint           `gorm:"not null;index:idx_approval_entity" json:"entity_id"`
	Status      ApprovalStatus `gorm:"size:32;not null;index" json:"status"`
	InstituteID *uint          `gorm:"index" json:"institute_id,omitempty"`
	RequestedAt time.Time      `gorm:"not null" json:"requested_at"`
	DecidedAt   *time.Time     `json:"decided_at,omitempty"`
	DecidedBy   *uint          `json:"decided_by,omitempty"`
	Notes       string         `gorm:"type:text" json:"notes"`
	ActiveKey   *string        `gorm:"size:64;uniqueIndex" json:"-"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ApprovalKey renders the active key for an entity.
func ApprovalKey(entityType EntityType, entityID uint) string {
	return fmt.Sprintf("%s:%d", entityType, entityID)
}

// RemovalStatus is the lifecycle state of a removal request.
type RemovalStatus string

const (
	RemovalPending  RemovalStatus = "pending"
	RemovalApproved RemovalStatus = "approved"
	RemovalRejected RemovalStatus = "rejected"
)

// RemovalRequest asks a moderator to take a learner, clinician or institute off the platform.
// ActiveKey holds the entity key while the request is pending, one pending request per entity.
type RemovalRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	RequestedBy uint          `gorm:"index;not null" json:"requested_by"`
	EntityType  EntityType    `gorm:"size:32;not null;index:idx_removal_entity" json:"entity_type"`
	EntityID    uint          `gorm:"not null;index:idx_removal_entity" json:"entity_id"`
	InstituteID *uint         `gorm:"index" json:"institute_id,omitempty"`
	Reason      string        `gorm:"type:text;not null" json:"reason"`
	Status      RemovalStatus `gorm:"size:16;not null;index" json:"status"`
	RequestedAt time.Time     `gorm:"not null" json:"requested_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
	ProcessedBy *uint         `json:"processed_by,omitempty"`
	Notes       string        `gorm:"type:text" json:"notes"`
	ActiveKey   *string       `gorm:"size:64;uniqueIndex" json:"-"`
}
