package models

import "time"

// ChatMessage is one turn of a chatbot conversation.
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	Sender    string    `gorm:"size:16;not null" json:"sender"`
	Content   string    `gorm:"type:text" json:"content"`
	AlertID   *uint     `json:"alert_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Chat senders.
const (
	ChatSenderUser      = "user"
	ChatSenderAssistant = "assistant"
)

// Notification kinds.
const (
	NotificationCrisisAlert     = "crisis_alert"
	NotificationApprovalRequest = "approval_request"
	NotificationConsultation    = "consultation"
	NotificationRemovalRequest  = "removal_request"
)

// Notification is a dashboard message for a staff account.
type Notification struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	RecipientID uint      `gorm:"index;not null" json:"recipient_id"`
	Kind        string    `gorm:"size:64;not null" json:"kind"`
	Message     string    `gorm:"type:text" json:"message"`
	AlertID     *uint     `gorm:"index" json:"alert_id,omitempty"`
	Read        bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// All lists every model the service migrates.
func All() []interface{} {
	return []interface{}{
		&Account{}, &Institute{}, &Clinician{}, &RiskAssessment{}, &ApprovalRecord{},
		&CrisisAlert{}, &InstantRecommendation{}, &GamificationState{}, &CheckIn{},
		&Badge{}, &PointEvent{}, &LeaderboardEntry{}, &Assessment{}, &Consultation{},
		&ActivityLog{}, &LoginActivity{}, &ChatMessage{}, &Notification{},
		&ActivityRecommendation{}, &RemovalRequest{}, &ConsultationMessage{},
	}
}
