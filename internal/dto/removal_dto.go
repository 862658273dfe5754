package dto

import (
	"time"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// RemovalCreateRequest asks for an entity to be taken off the platform.
type RemovalCreateRequest struct {
	EntityType string `json:"entity_type" validate:"required,oneof=learner clinician institute"`
	EntityID   uint   `json:"entity_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=2000"`
}

// RemovalDecisionRequest processes a pending removal request.
type RemovalDecisionRequest struct {
	Outcome string `json:"outcome" validate:"required,oneof=approved rejected"`
	Notes   string `json:"notes" validate:"omitempty,max=2000"`
}

// RemovalListRequest filters the removal queue.
type RemovalListRequest struct {
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
	Status   string `query:"status" validate:"omitempty,oneof=pending approved rejected"`
}

// RemovalResponse is the public view of a removal request.
type RemovalResponse struct {
	ID          uint                 `json:"id"`
	RequestedBy uint                 `json:"requested_by"`
	EntityType  models.EntityType    `json:"entity_type"`
	EntityID    uint                 `json:"entity_id"`
	InstituteID *uint                `json:"institute_id,omitempty"`
	Reason      string               `json:"reason"`
	Status      models.RemovalStatus `json:"status"`
	RequestedAt time.Time            `json:"requested_at"`
	ProcessedAt *time.Time           `json:"processed_at,omitempty"`
	ProcessedBy *uint                `json:"processed_by,omitempty"`
	Notes       string               `json:"notes,omitempty"`
}

// NewRemovalResponse converts a removal request.
func NewRemovalResponse(request models.RemovalRequest) RemovalResponse {
	return RemovalResponse{
		ID:          request.ID,
		RequestedBy: request.RequestedBy,
		EntityType:  request.EntityType,
		EntityID:    request.EntityID,
		InstituteID: request.InstituteID,
		Reason:      request.Reason,
		Status:      request.Status,
		RequestedAt: request.RequestedAt,
		ProcessedAt: request.ProcessedAt,
		ProcessedBy: request.ProcessedBy,
		Notes:       request.Notes,
	}
}

// RemovalListResponse is a page of the removal queue.
type RemovalListResponse struct {
	Items      []RemovalResponse `json:"items"`
	Pagination PaginationMeta    `json:"pagination"`
}
