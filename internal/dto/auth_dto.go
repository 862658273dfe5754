package dto

import (
	"time"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// AccountFields are shared by every registration form.
type AccountFields struct {
	Username  string `json:"username" form:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" form:"email" validate:"required,email,max=255"`
	Password  string `json:"password" form:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name" form:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" form:"last_name" validate:"omitempty,max=150"`
	Phone     string `json:"phone" form:"phone" validate:"omitempty,max=20"`
}

// LearnerRegistrationRequest registers a learner into an approved institute.
type LearnerRegistrationRequest struct {
	AccountFields
	Age           *int     `json:"age" validate:"omitempty,min=0,max=150"`
	WeightKg      *float64 `json:"weight_kg" validate:"omitempty,gt=0,max=500"`
	HeightCm      *float64 `json:"height_cm" validate:"omitempty,gt=0,max=300"`
	InstituteCode string   `json:"institute_code" validate:"required,max=100"`
}

// InstituteRegistrationRequest registers an institute together with its manager account.
type InstituteRegistrationRequest struct {
	AccountFields
	InstituteName    string `form:"institute_name" validate:"required,max=200"`
	Address          string `form:"address" validate:"required,max=1000"`
	RegistrationCode string `form:"registration_code" validate:"required,min=4,max=100"`
	ContactEmail     string `form:"contact_email" validate:"required,email,max=255"`
	ContactPhone     string `form:"contact_phone" validate:"omitempty,max=20"`
}

// ClinicianRegistrationRequest is a clinician application to an approved institute.
type ClinicianRegistrationRequest struct {
	AccountFields
	InstituteCode   string `form:"institute_code" validate:"required,max=100"`
	LicenseNumber   string `form:"license_number" validate:"required,max=100"`
	Specialization  string `form:"specialization" validate:"omitempty,max=100"`
	ExperienceYears int    `form:"experience_years" validate:"min=0,max=80"`
	Qualification   string `form:"qualification" validate:"omitempty,max=200"`
}

// LoginRequest carries credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required,max=128"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID          uint        `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	FirstName   string      `json:"first_name"`
	LastName    string      `json:"last_name"`
	Role        models.Role `json:"role"`
	InstituteID *uint       `json:"institute_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// NewAccountResponse converts an account model.
func NewAccountResponse(account models.Account) AccountResponse {
	return AccountResponse{
		ID:          account.ID,
		Username:    account.Username,
		Email:       account.Email,
		FirstName:   account.FirstName,
		LastName:    account.LastName,
		Role:        account.Role,
		InstituteID: account.InstituteID,
		CreatedAt:   account.CreatedAt,
	}
}

// RegistrationResponse reports the created account and its approval state.
type RegistrationResponse struct {
	Account        AccountResponse                  `json:"account"`
	ApprovalStatus models.ApprovalStatus            `json:"approval_status"`
	ApprovalID     uint                             `json:"approval_id"`
	Risk           *RiskAssessmentResponse          `json:"risk,omitempty"`
	Activities     []ActivityRecommendationResponse `json:"activities,omitempty"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   AccountResponse `json:"account"`
}
