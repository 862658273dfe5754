package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ConsultationMessageRepository persists consultation chat turns.
type ConsultationMessageRepository interface {
	Create(ctx context.Context, message *models.ConsultationMessage) error
	ListByConsultation(ctx context.Context, consultationID uint, afterID uint, limit int) ([]models.ConsultationMessage, error)
}

type consultationMessageRepository struct {
	db *gorm.DB
}

// NewConsultationMessageRepository constructs a consultation message repository backed by GORM.
func NewConsultationMessageRepository(db *gorm.DB) ConsultationMessageRepository {
	return &consultationMessageRepository{db: db}
}

func (r *consultationMessageRepository) Create(ctx context.Context, message *models.ConsultationMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// ListByConsultation returns messages oldest first, starting after afterID.
func (r *consultationMessageRepository) ListByConsultation(ctx context.Context, consultationID uint, afterID uint, limit int) ([]models.ConsultationMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	query := r.db.WithContext(ctx).Where("consultation_id = ?", consultationID)
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}

	var messages []models.ConsultationMessage
	if err := query.Order("id ASC").Limit(limit).Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
