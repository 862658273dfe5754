package dto

// SeedModeratorRequest bootstraps a moderator account.
type SeedModeratorRequest struct {
	AccountFields
}

// SeedInstituteRequest bootstraps an already approved institute with its manager.
type SeedInstituteRequest struct {
	Manager          AccountFields `json:"manager" validate:"required"`
	Name             string        `json:"name" validate:"required,max=200"`
	Address          string        `json:"address" validate:"omitempty,max=1000"`
	RegistrationCode string        `json:"registration_code" validate:"required,min=4,max=100"`
	ContactEmail     string        `json:"contact_email" validate:"omitempty,email,max=255"`
}

// SeedResponse reports what a seed call created.
type SeedResponse struct {
	AccountID   uint  `json:"account_id"`
	InstituteID *uint `json:"institute_id,omitempty"`
	ApprovalID  *uint `json:"approval_id,omitempty"`
}
