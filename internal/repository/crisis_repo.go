package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// CrisisAlertFilter narrows staff alert listings.
type CrisisAlertFilter struct {
	Page        int
	PageSize    int
	AccountID   *uint
	InstituteID *uint
	Severity    models.Severity
}

// CrisisAlertRepository persists crisis alerts.
type CrisisAlertRepository interface {
	Create(ctx context.Context, alert *models.CrisisAlert) error
	FindByID(ctx context.Context, id uint) (models.CrisisAlert, error)
	MarkNotified(ctx context.Context, id uint, clinician, institute bool) error
	List(ctx context.Context, filter CrisisAlertFilter) ([]models.CrisisAlert, int64, error)
}

type crisisAlertRepository struct {
	db *gorm.DB
}

// NewCrisisAlertRepository constructs a crisis alert repository backed by GORM.
func NewCrisisAlertRepository(db *gorm.DB) CrisisAlertRepository {
	return &crisisAlertRepository{db: db}
}

func (r *crisisAlertRepository) Create(ctx context.Context, alert *models.CrisisAlert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *crisisAlertRepository) FindByID(ctx context.Context, id uint) (models.CrisisAlert, error) {
	var alert models.CrisisAlert
	if err := r.db.WithContext(ctx).First(&alert, id).Error; err != nil {
		return models.CrisisAlert{}, err
	}
	return alert, nil
}

// MarkNotified writes only the two notification flags; the rest of the alert is immutable.
func (r *crisisAlertRepository) MarkNotified(ctx context.Context, id uint, clinician, institute bool) error {
	result := r.db.WithContext(ctx).Model(&models.CrisisAlert{}).Where("id = ?", id).
		Updates(map[string]interface{}{"clinician_notified": clinician, "institute_notified": institute})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *crisisAlertRepository) List(ctx context.Context, filter CrisisAlertFilter) ([]models.CrisisAlert, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.CrisisAlert{})

	if filter.AccountID != nil {
		query = query.Where("crisis_alerts.account_id = ?", *filter.AccountID)
	}
	if filter.InstituteID != nil {
		query = query.Joins("JOIN accounts ON accounts.id = crisis_alerts.account_id").
			Where("accounts.institute_id = ?", *filter.InstituteID)
	}
	if filter.Severity != "" {
		query = query.Where("crisis_alerts.severity = ?", filter.Severity)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := normalizePage(filter.Page, filter.PageSize, 20)
	var alerts []models.CrisisAlert
	if err := query.Order("crisis_alerts.created_at DESC, crisis_alerts.id DESC").Offset(offset).Limit(limit).Find(&alerts).Error; err != nil {
		return nil, 0, err
	}
	return alerts, total, nil
}

// RecommendationRepository persists instant recommendations.
type RecommendationRepository interface {
	CreateBatch(ctx context.Context, recommendations []models.InstantRecommendation) error
	CountByAlert(ctx context.Context, alertID uint) (int64, error)
	ListByAlert(ctx context.Context, alertID uint) ([]models.InstantRecommendation, error)
	FindByID(ctx context.Context, id uint) (models.InstantRecommendation, error)
	MarkCompleted(ctx context.Context, id uint, at time.Time) (bool, error)
	ListPending(ctx context.Context, accountID uint, limit int) ([]models.InstantRecommendation, error)
}

type recommendationRepository struct {
	db *gorm.DB
}

// NewRecommendationRepository constructs a recommendation repository backed by GORM.
func NewRecommendationRepository(db *gorm.DB) RecommendationRepository {
	return &recommendationRepository{db: db}
}

func (r *recommendationRepository) CreateBatch(ctx context.Context, recommendations []models.InstantRecommendation) error {
	if len(recommendations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&recommendations).Error
}

func (r *recommendationRepository) CountByAlert(ctx context.Context, alertID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InstantRecommendation{}).Where("alert_id = ?", alertID).Count(&count).Error
	return count, err
}

func (r *recommendationRepository) ListByAlert(ctx context.Context, alertID uint) ([]models.InstantRecommendation, error) {
	var recommendations []models.InstantRecommendation
	if err := r.db.WithContext(ctx).Where("alert_id = ?", alertID).Order("id ASC").Find(&recommendations).Error; err != nil {
		return nil, err
	}
	return recommendations, nil
}

func (r *recommendationRepository) FindByID(ctx context.Context, id uint) (models.InstantRecommendation, error) {
	var recommendation models.InstantRecommendation
	if err := r.db.WithContext(ctx).First(&recommendation, id).Error; err != nil {
		return models.InstantRecommendation{}, err
	}
	return recommendation, nil
}

// MarkCompleted flips an open recommendation to completed and reports whether it did.
func (r *recommendationRepository) MarkCompleted(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.InstantRecommendation{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{"completed": true, "completed_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *recommendationRepository) ListPending(ctx context.Context, accountID uint, limit int) ([]models.InstantRecommendation, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	var recommendations []models.InstantRecommendation
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND completed = ?", accountID, false).
		Order("created_at DESC, id ASC").
		Limit(limit).
		Find(&recommendations).Error
	if err != nil {
		return nil, err
	}
	return recommendations, nil
}
