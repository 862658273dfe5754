package dto

import "github.com/noah-isme/mindcare-api/internal/models"

// RiskScoreRequest scores registration fields without creating an account.
type RiskScoreRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,max=255"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
	Age       *int   `json:"age" validate:"omitempty,min=0,max=150"`
}

// RiskAssessmentResponse exposes a risk score and its reasons.
type RiskAssessmentResponse struct {
	GenericUsername       bool     `json:"generic_username"`
	SuspiciousEmailDomain bool     `json:"suspicious_email_domain"`
	NameLength            int      `json:"name_length"`
	ImplausibleAge        bool     `json:"implausible_age"`
	Score                 float64  `json:"score"`
	Suspect               bool     `json:"suspect"`
	Reasons               []string `json:"reasons"`
	Source                string   `json:"source"`
}

// NewRiskAssessmentResponse converts a stored risk assessment.
func NewRiskAssessmentResponse(model models.RiskAssessment) RiskAssessmentResponse {
	reasons := []string(model.Reasons)
	if reasons == nil {
		reasons = []string{}
	}
	return RiskAssessmentResponse{
		GenericUsername:       model.GenericUsername,
		SuspiciousEmailDomain: model.SuspiciousEmailDomain,
		NameLength:            model.NameLength,
		ImplausibleAge:        model.ImplausibleAge,
		Score:                 model.Score,
		Suspect:               model.Suspect,
		Reasons:               reasons,
		Source:                model.Source,
	}
}

// RiskModelReloadResponse reports the classifier state after a reload.
type RiskModelReloadResponse struct {
	ClassifierLoaded bool `json:"classifier_loaded"`
}
