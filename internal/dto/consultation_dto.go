package dto

import (
	"time"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ConsultationRequest asks for time with a clinician.
type ConsultationRequest struct {
	Issue   string `json:"issue" validate:"required,min=3,max=4000"`
	Urgency string `json:"urgency" validate:"omitempty,oneof=low medium high"`
}

// ConsultationResponse is the public view of a consultation.
type ConsultationResponse struct {
	ID                 uint                      `json:"id"`
	PatientAccountID   uint                      `json:"patient_account_id"`
	ClinicianAccountID *uint                     `json:"clinician_account_id,omitempty"`
	InstituteID        uint                      `json:"institute_id"`
	Issue              string                    `json:"issue"`
	Urgency            string                    `json:"urgency"`
	Status             models.ConsultationStatus `json:"status"`
	RequestedAt        time.Time                 `json:"requested_at"`
	AcceptedAt         *time.Time                `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time                `json:"completed_at,omitempty"`
}

// NewConsultationResponse converts a consultation.
func NewConsultationResponse(model models.Consultation) ConsultationResponse {
	return ConsultationResponse{
		ID:                 model.ID,
		PatientAccountID:   model.PatientAccountID,
		ClinicianAccountID: model.ClinicianAccountID,
		InstituteID:        model.InstituteID,
		Issue:              model.Issue,
		Urgency:            model.Urgency,
		Status:             model.Status,
		RequestedAt:        model.RequestedAt,
		AcceptedAt:         model.AcceptedAt,
		CompletedAt:        model.CompletedAt,
	}
}

// NewConsultationResponses converts a slice of consultations.
func NewConsultationResponses(items []models.Consultation) []ConsultationResponse {
	out := make([]ConsultationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewConsultationResponse(item))
	}
	return out
}

// ConsultationMessageRequest is one chat turn sent inside a consultation.
type ConsultationMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=4000"`
}

// ConsultationMessageResponse is a consultation chat turn as rendered to a participant.
type ConsultationMessageResponse struct {
	ID              uint      `json:"id"`
	ConsultationID  uint      `json:"consultation_id"`
	SenderAccountID uint      `json:"sender_account_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}

// NewConsultationMessageResponse renders an opened message. Markup in the text is escaped here.
func NewConsultationMessageResponse(model models.ConsultationMessage, plaintext string) ConsultationMessageResponse {
	return ConsultationMessageResponse{
		ID:              model.ID,
		ConsultationID:  model.ConsultationID,
		SenderAccountID: model.SenderAccountID,
		Content:         renderPolicy.Sanitize(plaintext),
		CreatedAt:       model.CreatedAt,
	}
}
