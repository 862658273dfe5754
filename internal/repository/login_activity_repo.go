package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// LoginActivityRepository records login attempts.
type LoginActivityRepository interface {
	Create(ctx context.Context, activity *models.LoginActivity) error
	CountSince(ctx context.Context, username, outcome string, since time.Time) (int64, error)
}

type loginActivityRepository struct {
	db *gorm.DB
}

// NewLoginActivityRepository constructs a login activity repository backed by GORM.
func NewLoginActivityRepository(db *gorm.DB) LoginActivityRepository {
	return &loginActivityRepository{db: db}
}

func (r *loginActivityRepository) Create(ctx context.Context, activity *models.LoginActivity) error {
	return r.db.WithContext(ctx).Create(activity).Error
}

func (r *loginActivityRepository) CountSince(ctx context.Context, username, outcome string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.LoginActivity{}).
		Where("username = ? AND outcome = ? AND created_at >= ?", username, outcome, since).
		Count(&count).Error
	return count, err
}
