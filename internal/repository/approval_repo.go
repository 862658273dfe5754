package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ApprovalFilter narrows the review queue.
type ApprovalFilter struct {
	Page        int
	PageSize    int
	EntityType  models.EntityType
	InstituteID *uint
}

// ApprovalRepository persists approval records.
type ApprovalRepository interface {
	Create(ctx context.Context, record *models.ApprovalRecord) error
	Save(ctx context.Context, record *models.ApprovalRecord) error
	FindByID(ctx context.Context, id uint) (models.ApprovalRecord, error)
	FindActive(ctx context.Context, entityType models.EntityType, entityID uint) (models.ApprovalRecord, bool, error)
	FindLatest(ctx context.Context, entityType models.EntityType, entityID uint) (models.ApprovalRecord, bool, error)
	ListUndecided(ctx context.Context, filter ApprovalFilter) ([]models.ApprovalRecord, int64, error)
}

type approvalRepository struct {
	db *gorm.DB
}

// NewApprovalRepository constructs an approval repository backed by GORM.
func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) Create(ctx context.Context, record *models.ApprovalRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *approvalRepository) Save(ctx context.Context, record *models.ApprovalRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *approvalRepository) FindByID(ctx context.Context, id uint) (models.ApprovalRecord, error) {
	var record models.ApprovalRecord
	if err := r.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return models.ApprovalRecord{}, err
	}
	return record, nil
}

// FindActive returns the non-rejected record of an entity, if any.
func (r *approvalRepository) FindActive(ctx context.Context, entityType models.EntityType, entityID uint) (models.ApprovalRecord, bool, error) {
	var record models.ApprovalRecord
	err := r.db.WithContext(ctx).
		Where("active_key = ?", models.ApprovalKey(entityType, entityID)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ApprovalRecord{}, false, nil
	}
	if err != nil {
		return models.ApprovalRecord{}, false, err
	}
	return record, true, nil
}

// FindLatest returns the most recent record of an entity, rejected ones included.
func (r *approvalRepository) FindLatest(ctx context.Context, entityType models.EntityType, entityID uint) (models.ApprovalRecord, bool, error) {
	var record models.ApprovalRecord
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("id DESC").
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ApprovalRecord{}, false, nil
	}
	if err != nil {
		return models.ApprovalRecord{}, false, err
	}
	return record, true, nil
}

func (r *approvalRepository) ListUndecided(ctx context.Context, filter ApprovalFilter) ([]models.ApprovalRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ApprovalRecord{}).
		Where("status IN ?", []models.ApprovalStatus{models.ApprovalPending, models.ApprovalSuspicious})

	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.InstituteID != nil {
		query = query.Where("institute_id = ?", *filter.InstituteID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := normalizePage(filter.Page, filter.PageSize, 20)
	var records []models.ApprovalRecord
	if err := query.Order("requested_at ASC").Offset(offset).Limit(limit).Find(&records).Error; err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
