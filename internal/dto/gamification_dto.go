package dto

import (
	"time"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// CheckinRequest is the daily mood check-in form.
type CheckinRequest struct {
	Mood         int    `json:"mood" validate:"required,min=1,max=5"`
	Energy       int    `json:"energy" validate:"required,min=1,max=3"`
	SleepQuality int    `json:"sleep_quality" validate:"required,min=1,max=4"`
	Notes        string `json:"notes" validate:"omitempty,max=2000"`
}

// ActivityRecommendationResponse is one entry of the personal activity plan.
type ActivityRecommendationResponse struct {
	ID              uint       `json:"id"`
	ActivityType    string     `json:"activity_type"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	Difficulty      string     `json:"difficulty"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// NewActivityRecommendationResponses converts planned activities.
func NewActivityRecommendationResponses(items []models.ActivityRecommendation) []ActivityRecommendationResponse {
	out := make([]ActivityRecommendationResponse, 0, len(items))
	for _, item := range items {
		out = append(out, ActivityRecommendationResponse{
			ID:              item.ID,
			ActivityType:    item.ActivityType,
			Title:           item.Title,
			Description:     item.Description,
			DurationMinutes: item.DurationMinutes,
			Difficulty:      item.Difficulty,
			Completed:       item.Completed,
			CompletedAt:     item.CompletedAt,
		})
	}
	return out
}

// AssessmentRequest carries questionnaire answers, one 0-3 rating for each of the 15 questions.
type AssessmentRequest struct {
	Answers []int `json:"answers" validate:"required,len=15,dive,min=0,max=3"`
}

// GamificationStateResponse is the ledger view of an account.
type GamificationStateResponse struct {
	AccountID       uint       `json:"account_id"`
	Points          int        `json:"points"`
	Level           int        `json:"level"`
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
	LastCheckinDate *time.Time `json:"last_checkin_date,omitempty"`
	Badges          []int      `json:"badges"`
}

// NewGamificationStateResponse converts ledger state and held badge tiers.
func NewGamificationStateResponse(state models.GamificationState, badges []models.Badge) GamificationStateResponse {
	tiers := make([]int, 0, len(badges))
	for _, badge := range badges {
		tiers = append(tiers, badge.Tier)
	}
	level := state.Level
	if level == 0 {
		level = models.LevelForPoints(state.Points)
	}
	return GamificationStateResponse{
		AccountID:       state.AccountID,
		Points:          state.Points,
		Level:           level,
		CurrentStreak:   state.CurrentStreak,
		LongestStreak:   state.LongestStreak,
		LastCheckinDate: state.LastCheckinDate,
		Badges:          tiers,
	}
}

// PointsAwardResponse reports a points credit.
type PointsAwardResponse struct {
	Awarded int                       `json:"awarded"`
	Reason  string                    `json:"reason"`
	State   GamificationStateResponse `json:"state"`
}

// CheckinResponse reports the check-in and its ledger effects.
type CheckinResponse struct {
	ID            uint                      `json:"id"`
	Day           string                    `json:"day"`
	PointsAwarded int                       `json:"points_awarded"`
	NewBadges     []int                     `json:"new_badges"`
	State         GamificationStateResponse `json:"state"`
	Crisis        *CrisisEvaluationResponse `json:"crisis,omitempty"`
}

// AssessmentResponse reports a scored questionnaire.
type AssessmentResponse struct {
	ID            uint                      `json:"id"`
	TotalScore    int                       `json:"total_score"`
	Severity      string                    `json:"severity"`
	Advice        string                    `json:"advice"`
	PointsAwarded int                       `json:"points_awarded"`
	State         GamificationStateResponse `json:"state"`
	CreatedAt     time.Time                 `json:"created_at"`
}

// LeaderboardResponse ranks learners of one institute.
type LeaderboardResponse struct {
	InstituteID uint               `json:"institute_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	Cached      bool               `json:"cached"`
}

// LeaderboardEntry is one ranked line.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	AccountID   uint   `json:"account_id"`
	Username    string `json:"username"`
	TotalPoints int    `json:"total_points"`
}
