package models

import "time"

// BadgeTiers lists the streak lengths that earn a badge, ascending.
var BadgeTiers = []int{3, 7, 14, 30}

// GamificationState holds the points and streak counters of one account.
type GamificationState struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AccountID       uint       `gorm:"uniqueIndex;not null" json:"account_id"`
	Points          int        `gorm:"not null;default:0" json:"points"`
	Level           int        `gorm:"not null;default:1" json:"level"`
	CurrentStreak   int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak   int        `gorm:"not null;default:0" json:"longest_streak"`
	LastCheckinDate *time.Time `json:"last_checkin_date,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// LevelForPoints derives the level shown for a points balance.
func LevelForPoints(points int) int {
	if points < 0 {
		points = 0
	}
	return points/100 + 1
}

// RecomputeLevel refreshes Level from Points.
func (s *GamificationState) RecomputeLevel() {
	s.Level = LevelForPoints(s.Points)
}

// CheckIn is a daily mood entry; one per account per calendar day.
type CheckIn struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AccountID    uint      `gorm:"not null;uniqueIndex:idx_checkin_account_day" json:"account_id"`
	Day          string    `gorm:"size:10;not null;uniqueIndex:idx_checkin_account_day" json:"day"`
	Mood         int       `gorm:"not null" json:"mood"`
	Energy       int       `gorm:"not null" json:"energy"`
	SleepQuality int       `gorm:"not null" json:"sleep_quality"`
	Notes        string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Badge is a streak award; one per account per tier.
type Badge struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"not null;uniqueIndex:idx_badge_account_tier" json:"account_id"`
	Tier      int       `gorm:"not null;uniqueIndex:idx_badge_account_tier" json:"tier"`
	AwardedAt time.Time `gorm:"not null" json:"awarded_at"`
}

// PointEvent is one line of the points ledger.
type PointEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AccountID uint      `gorm:"index;not null" json:"account_id"`
	Delta     int       `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"size:64;not null" json:"reason"`
	Balance   int       `gorm:"not null" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry ranks an approved learner inside their institute.
type LeaderboardEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	InstituteID uint      `gorm:"index;not null" json:"institute_id"`
	AccountID   uint      `gorm:"uniqueIndex;not null" json:"account_id"`
	TotalPoints int       `gorm:"not null;default:0;index" json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Assessment stores a completed wellbeing questionnaire.
type Assessment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	AccountID  uint      `gorm:"index;not null" json:"account_id"`
	TotalScore int       `gorm:"not null" json:"total_score"`
	Severity   string    `gorm:"size:20;not null" json:"severity"`
	Advice     string    `gorm:"type:text" json:"advice"`
	CreatedAt  time.Time `json:"created_at"`
}

// ActivityRecommendation is a planned wellbeing session generated from the learner profile.
// Completed only moves from false to true.
type ActivityRecommendation struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	AccountID       uint       `gorm:"index;not null" json:"account_id"`
	ActivityType    string     `gorm:"size:20;not null" json:"activity_type"`
	Title           string     `gorm:"size:200;not null" json:"title"`
	Description     string     `gorm:"type:text" json:"description"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	Difficulty      string     `gorm:"size:20;not null" json:"difficulty"`
	Completed       bool       `gorm:"not null;default:false;index" json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
