package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// RemovalFilter narrows the removal queue.
type RemovalFilter struct {
	Page     int
	PageSize int
	Status   models.RemovalStatus
}

// RemovalRepository persists removal requests.
type RemovalRepository interface {
	Create(ctx context.Context, request *models.RemovalRequest) error
	Save(ctx context.Context, request *models.RemovalRequest) error
	FindByID(ctx context.Context, id uint) (models.RemovalRequest, error)
	List(ctx context.Context, filter RemovalFilter) ([]models.RemovalRequest, int64, error)
}

type removalRepository struct {
	db *gorm.DB
}

// NewRemovalRepository constructs a removal repository backed by GORM.
func NewRemovalRepository(db *gorm.DB) RemovalRepository {
	return &removalRepository{db: db}
}

func (r *removalRepository) Create(ctx context.Context, request *models.RemovalRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *removalRepository) Save(ctx context.Context, request *models.RemovalRequest) error {
	return r.db.WithContext(ctx).Save(request).Error
}

func (r *removalRepository) FindByID(ctx context.Context, id uint) (models.RemovalRequest, error) {
	var request models.RemovalRequest
	if err := r.db.WithContext(ctx).First(&request, id).Error; err != nil {
		return models.RemovalRequest{}, err
	}
	return request, nil
}

func (r *removalRepository) List(ctx context.Context, filter RemovalFilter) ([]models.RemovalRequest, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.RemovalRequest{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset, limit := normalizePage(filter.Page, filter.PageSize, 20)
	var requests []models.RemovalRequest
	if err := query.Order("requested_at ASC, id ASC").Offset(offset).Limit(limit).Find(&requests).Error; err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}
