package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories so services can run several of them in one transaction.
type Store interface {
	Accounts() AccountRepository
	Institutes() InstituteRepository
	Clinicians() ClinicianRepository
	Approvals() ApprovalRepository
	RiskAssessments() RiskAssessmentRepository
	Alerts() CrisisAlertRepository
	Recommendations() RecommendationRepository
	Gamification() GamificationRepository
	Leaderboard() LeaderboardRepository
	Assessments() AssessmentRepository
	Consultations() ConsultationRepository
	Logins() LoginActivityRepository
	ActivityLogs() ActivityLogRepository
	Notifications() NotificationRepository
	Chat() ChatRepository
	ActivityPlans() ActivityPlanRepository
	Removals() RemovalRepository
	ConsultationMessages() ConsultationMessageRepository

	// Transaction runs fn against a Store bound to a single database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type gormStore struct {
	db *gorm.DB
}

// NewStore wraps a GORM handle.
func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Accounts() AccountRepository     { return NewAccountRepository(s.db) }
func (s *gormStore) Institutes() InstituteRepository { return NewInstituteRepository(s.db) }
func (s *gormStore) Clinicians() ClinicianRepository { return NewClinicianRepository(s.db) }
func (s *gormStore) Approvals() ApprovalRepository   { return NewApprovalRepository(s.db) }
func (s *gormStore) RiskAssessments() RiskAssessmentRepository {
	return NewRiskAssessmentRepository(s.db)
}
func (s *gormStore) Alerts() CrisisAlertRepository { return NewCrisisAlertRepository(s.db) }
func (s *gormStore) Recommendations() RecommendationRepository {
	return NewRecommendationRepository(s.db)
}
func (s *gormStore) Gamification() GamificationRepository  { return NewGamificationRepository(s.db) }
func (s *gormStore) Leaderboard() LeaderboardRepository    { return NewLeaderboardRepository(s.db) }
func (s *gormStore) Assessments() AssessmentRepository     { return NewAssessmentRepository(s.db) }
func (s *gormStore) Consultations() ConsultationRepository { return NewConsultationRepository(s.db) }
func (s *gormStore) Logins() LoginActivityRepository       { return NewLoginActivityRepository(s.db) }
func (s *gormStore) ActivityLogs() ActivityLogRepository   { return NewActivityLogRepository(s.db) }
func (s *gormStore) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }
func (s *gormStore) Chat() ChatRepository                  { return NewChatRepository(s.db) }
func (s *gormStore) ActivityPlans() ActivityPlanRepository {
	return NewActivityPlanRepository(s.db)
}
func (s *gormStore) Removals() RemovalRepository { return NewRemovalRepository(s.db) }
func (s *gormStore) ConsultationMessages() ConsultationMessageRepository {
	return NewConsultationMessageRepository(s.db)
}

func (s *gormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func normalizePage(page, pageSize, defaultSize int) (int, int) {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = defaultSize
	}
	if page <= 0 {
		page = 1
	}
	return (page - 1) * pageSize, pageSize
}
