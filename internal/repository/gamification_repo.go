package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// GamificationRepository persists ledger state, check-ins, badges and point events.
type GamificationRepository interface {
	FindState(ctx context.Context, accountID uint) (models.GamificationState, bool, error)
	SaveState(ctx context.Context, state *models.GamificationState) error
	CreateCheckIn(ctx context.Context, checkIn *models.CheckIn) error
	CheckInExists(ctx context.Context, accountID uint, day string) (bool, error)
	AwardBadge(ctx context.Context, badge *models.Badge) (bool, error)
	ListBadges(ctx context.Context, accountID uint) ([]models.Badge, error)
	AppendPointEvent(ctx context.Context, event *models.PointEvent) error
	ListPointEvents(ctx context.Context, accountID uint, limit int) ([]models.PointEvent, error)
}

type gamificationRepository struct {
	db *gorm.DB
}

// NewGamificationRepository constructs a gamification repository backed by GORM.
func NewGamificationRepository(db *gorm.DB) GamificationRepository {
	return &gamificationRepository{db: db}
}

func (r *gamificationRepository) FindState(ctx context.Context, accountID uint) (models.GamificationState, bool, error) {
	var state models.GamificationState
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GamificationState{}, false, nil
	}
	if err != nil {
		return models.GamificationState{}, false, err
	}
	return state, true, nil
}

func (r *gamificationRepository) SaveState(ctx context.Context, state *models.GamificationState) error {
	return r.db.WithContext(ctx).Save(state).Error
}

func (r *gamificationRepository) CreateCheckIn(ctx context.Context, checkIn *models.CheckIn) error {
	return r.db.WithContext(ctx).Create(checkIn).Error
}

func (r *gamificationRepository) CheckInExists(ctx context.Context, accountID uint, day string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CheckIn{}).Where("account_id = ? AND day = ?", accountID, day).Count(&count).Error
	return count > 0, err
}

// AwardBadge inserts the badge unless the tier is already held, reporting whether it was new.
func (r *gamificationRepository) AwardBadge(ctx context.Context, badge *models.Badge) (bool, error) {
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(badge)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *gamificationRepository) ListBadges(ctx context.Context, accountID uint) ([]models.Badge, error) {
	var badges []models.Badge
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("tier ASC").Find(&badges).Error; err != nil {
		return nil, err
	}
	return badges, nil
}

func (r *gamificationRepository) AppendPointEvent(ctx context.Context, event *models.PointEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *gamificationRepository) ListPointEvents(ctx context.Context, accountID uint, limit int) ([]models.PointEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var events []models.PointEvent
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("id DESC").Limit(limit).Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

// AssessmentRepository stores questionnaire results.
type AssessmentRepository interface {
	Create(ctx context.Context, assessment *models.Assessment) error
	ListByAccount(ctx context.Context, accountID uint, limit int) ([]models.Assessment, error)
}

type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository constructs an assessment repository backed by GORM.
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

func (r *assessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *assessmentRepository) ListByAccount(ctx context.Context, accountID uint, limit int) ([]models.Assessment, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var assessments []models.Assessment
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at DESC, id DESC").Limit(limit).Find(&assessments).Error
	if err != nil {
		return nil, err
	}
	return assessments, nil
}
