package models

import "time"

// ConsultationStatus tracks a consultation request.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationAccepted  ConsultationStatus = "accepted"
	ConsultationDeclined  ConsultationStatus = "declined"
	ConsultationCompleted ConsultationStatus = "completed"
)

// Consultation is a learner's request for time with a clinician of their institute.
type Consultation struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	PatientAccountID   uint               `gorm:"index;not null" json:"patient_account_id"`
	ClinicianAccountID *uint              `gorm:"index" json:"clinician_account_id,omitempty"`
	InstituteID        uint               `gorm:"index;not null" json:"institute_id"`
	Issue              string             `gorm:"type:text;not null" json:"issue"`
	Urgency            string             `gorm:"size:10;not null;default:medium" json:"urgency"`
	Status             ConsultationStatus `gorm:"size:20;not null;index" json:"status"`
	RequestedAt        time.Time          `gorm:"not null" json:"requested_at"`
	AcceptedAt         *time.Time         `json:"accepted_at,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
}

// ConsultationMessage is one chat turn between a patient and their clinician.
// Body holds the sealed text; it is never stored in the clear.
type ConsultationMessage struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ConsultationID  uint      `gorm:"index;not null" json:"consultation_id"`
	SenderAccountID uint      `gorm:"not null" json:"sender_account_id"`
	Body            []byte    `gorm:"not null" json:"-"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
}
