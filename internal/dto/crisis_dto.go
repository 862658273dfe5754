package dto

import (
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// renderPolicy escapes stored free text on its way out.
var renderPolicy = bluemonday.StrictPolicy()

// CrisisEvaluateRequest scans free text on behalf of the caller.
type CrisisEvaluateRequest struct {
	Text    string `json:"text" validate:"required,max=5000"`
	Context string `json:"context" validate:"omitempty,max=64"`
}

// CrisisAlertListRequest filters staff alert listings.
type CrisisAlertListRequest struct {
	Page     int    `query:"page"`
	PageSize int    `query:"page_size"`
	Severity string `query:"severity" validate:"omitempty,oneof=low medium high critical"`
}

// CrisisAlertResponse is the staff view of an alert.
type CrisisAlertResponse struct {
	ID                uint            `json:"id"`
	AccountID         uint            `json:"account_id"`
	MatchedTerms      []string        `json:"matched_terms"`
	Severity          models.Severity `json:"severity"`
	Context           string          `json:"context"`
	ClinicianNotified bool            `json:"clinician_notified"`
	InstituteNotified bool            `json:"institute_notified"`
	CreatedAt         time.Time       `json:"created_at"`
}

// NewCrisisAlertResponse converts an alert. Raw text stays server side.
func NewCrisisAlertResponse(alert models.CrisisAlert) CrisisAlertResponse {
	terms := []string(alert.MatchedTerms)
	if terms == nil {
		terms = []string{}
	}
	return CrisisAlertResponse{
		ID:                alert.ID,
		AccountID:         alert.AccountID,
		MatchedTerms:      terms,
		Severity:          alert.Severity,
		Context:           alert.Context,
		ClinicianNotified: alert.ClinicianNotified,
		InstituteNotified: alert.InstituteNotified,
		CreatedAt:         alert.CreatedAt,
	}
}

// CrisisAlertListResponse is a page of alerts.
type CrisisAlertListResponse struct {
	Items      []CrisisAlertResponse `json:"items"`
	Pagination PaginationMeta        `json:"pagination"`
}

// RecommendationResponse is an instant recommendation offered after an alert.
type RecommendationResponse struct {
	ID            uint       `json:"id"`
	AlertID       uint       `json:"alert_id"`
	ActivityType  string     `json:"activity_type"`
	Title         string     `json:"title"`
	ReferenceLink string     `json:"reference_link"`
	BonusPoints   int        `json:"bonus_points"`
	Completed     bool       `json:"completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewRecommendationResponses converts recommendations.
func NewRecommendationResponses(items []models.InstantRecommendation) []RecommendationResponse {
	out := make([]RecommendationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, RecommendationResponse{
			ID:            item.ID,
			AlertID:       item.AlertID,
			ActivityType:  item.ActivityType,
			Title:         item.Title,
			ReferenceLink: item.ReferenceLink,
			BonusPoints:   item.BonusPoints,
			Completed:     item.Completed,
			CompletedAt:   item.CompletedAt,
		})
	}
	return out
}

// CrisisEvaluationResponse reports detection and, when an alert was raised, the cascade outcome.
type CrisisEvaluationResponse struct {
	Detected        bool                     `json:"detected"`
	Severity        models.Severity          `json:"severity,omitempty"`
	MatchedTerms    []string                 `json:"matched_terms"`
	Alert           *CrisisAlertResponse     `json:"alert,omitempty"`
	Recommendations []RecommendationResponse `json:"recommendations"`
}

// ChatbotMessageRequest is a learner message to the support chatbot.
type ChatbotMessageRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// ChatbotReplyResponse carries the assistant reply and any crisis follow-up.
type ChatbotReplyResponse struct {
	Reply           string                   `json:"reply"`
	Fallback        bool                     `json:"fallback"`
	Severity        models.Severity          `json:"severity,omitempty"`
	AlertID         *uint                    `json:"alert_id,omitempty"`
	Recommendations []RecommendationResponse `json:"recommendations"`
}

// ChatMessageResponse is one stored chatbot turn.
type ChatMessageResponse struct {
	ID        uint      `json:"id"`
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	AlertID   *uint     `json:"alert_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewChatMessageResponses converts chat history, escaping message content.
func NewChatMessageResponses(items []models.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ChatMessageResponse{ID: item.ID, Sender: item.Sender, Content: renderPolicy.Sanitize(item.Content), AlertID: item.AlertID, CreatedAt: item.CreatedAt})
	}
	return out
}
