package dto

import (
	"time"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ApprovalSubmitRequest opens a review for an entity.
type ApprovalSubmitRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=learner clinician institute"`
	EntityID   uint   `json:"entity_id" validate:"required"`
}

// ApprovalDecisionRequest decides a pending or suspicious record.
type ApprovalDecisionRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=approved rejected"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
}

// ApprovalListRequest filters the review queue.
type ApprovalListRequest struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
	EntityType string `query:"entity_type" validate:"omitempty,oneof=learner clinician institute"`
}

// ApprovalResponse is the public view of an approval record.
type ApprovalResponse struct {
	ID          uint                  `json:"id"`
	EntityType  models.EntityType     `json:"entity_type"`
	EntityID    uint                  `json:"entity_id"`
	Status      models.ApprovalStatus `json:"status"`
	InstituteID *uint                 `json:"institute_id,omitempty"`
	RequestedAt time.Time             `json:"requested_at"`
	DecidedAt   *time.Time            `json:"decided_at,omitempty"`
	DecidedBy   *uint                 `json:"decided_by,omitempty"`
	Notes       string                `json:"notes,omitempty"`
}

// NewApprovalResponse converts an approval record.
func NewApprovalResponse(record models.ApprovalRecord) ApprovalResponse {
	return ApprovalResponse{
		ID:          record.ID,
		EntityType:  record.EntityType,
		EntityID:    record.EntityID,
		Status:      record.Status,
		InstituteID: record.InstituteID,
		RequestedAt: record.RequestedAt,
		DecidedAt:   record.DecidedAt,
		DecidedBy:   record.DecidedBy,
		Notes:       record.Notes,
	}
}

// ApprovalListResponse is a page of the review queue.
type ApprovalListResponse struct {
	Items      []ApprovalResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}

// ActivityListRequest filters the audit trail.
type ActivityListRequest struct {
	Page       int    `query:"page"`
	PageSize   int    `query:"page_size"`
	ActorID    uint   `query:"actor_id"`
	Action     string `query:"action"`
	EntityType string `query:"entity_type"`
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID         uint                   `json:"id"`
	ActorID    uint                   `json:"actor_id"`
	ActorRole  string                 `json:"actor_role"`
	Action     string                 `json:"action"`
	EntityType string                 `json:"entity_type"`
	EntityID   *uint                  `json:"entity_id,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	// CorrelationID links the entry to the request log lines.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// NewActivityResponse converts an audit entry.
func NewActivityResponse(model models.ActivityLog) ActivityResponse {
	return ActivityResponse{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorRole:  model.ActorRole,
		Action:     model.Action,
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Metadata:   map[string]interface{}(model.Metadata),
		CreatedAt:  model.CreatedAt,

		CorrelationID: model.CorrelationID,
	}
}

// ActivityListResponse is a page of the audit trail.
type ActivityListResponse struct {
	Items      []ActivityResponse `json:"items"`
	Pagination PaginationMeta     `json:"pagination"`
}
