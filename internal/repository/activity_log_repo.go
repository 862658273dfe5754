package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ActivityLogFilter narrows audit trail queries.
type ActivityLogFilter struct {
	Page       int
	PageSize   int
	ActorID    *uint
	Action     string
	EntityType string
	EntityID   *uint
}

// ActivityLogRepository persists the audit trail of approval decisions.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) List(ctx context.Context, filter ActivityLogFilter) ([]models.ActivityLog, int64, error) {
	conditions := map[string]interface{}{}
	if filter.ActorID != nil {
		conditions["actor_id"] = *filter.ActorID
	}
	if filter.Action != "" {
		conditions["action"] = filter.Action
	}
	if filter.EntityType != "" {
		conditions["entity_type"] = filter.EntityType
	}
	if filter.EntityID != nil {
		conditions["entity_id"] = *filter.EntityID
	}

	query := r.db.WithContext(ctx).Model(&models.ActivityLog{}).Where(conditions)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := normalizePage(filter.Page, filter.PageSize, 50)
	var entries []models.ActivityLog
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}
