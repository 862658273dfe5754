package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ActivityPlanRepository persists the personal activity plans of learners.
type ActivityPlanRepository interface {
	CreateBatch(ctx context.Context, activities []models.ActivityRecommendation) error
	FindByID(ctx context.Context, id uint) (models.ActivityRecommendation, error)
	ListByAccount(ctx context.Context, accountID uint) ([]models.ActivityRecommendation, error)
	MarkCompleted(ctx context.Context, id uint, at time.Time) (bool, error)
}

type activityPlanRepository struct {
	db *gorm.DB
}

// NewActivityPlanRepository constructs an activity plan repository backed by GORM.
func NewActivityPlanRepository(db *gorm.DB) ActivityPlanRepository {
	return &activityPlanRepository{db: db}
}

func (r *activityPlanRepository) CreateBatch(ctx context.Context, activities []models.ActivityRecommendation) error {
	if len(activities) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&activities).Error
}

func (r *activityPlanRepository) FindByID(ctx context.Context, id uint) (models.ActivityRecommendation, error) {
	var activity models.ActivityRecommendation
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return models.ActivityRecommendation{}, err
	}
	return activity, nil
}

func (r *activityPlanRepository) ListByAccount(ctx context.Context, accountID uint) ([]models.ActivityRecommendation, error) {
	var activities []models.ActivityRecommendation
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("completed ASC, id ASC").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}
	return activities, nil
}

// MarkCompleted flips an open activity to completed and reports whether it did.
func (r *activityPlanRepository) MarkCompleted(ctx context.Context, id uint, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.ActivityRecommendation{}).
		Where("id = ? AND completed = ?", id, false).
		Updates(map[string]interface{}{"completed": true, "completed_at": at})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
