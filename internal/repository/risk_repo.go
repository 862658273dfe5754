package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// RiskAssessmentRepository stores registration risk scores. Rows are insert-only.
type RiskAssessmentRepository interface {
	Create(ctx context.Context, assessment *models.RiskAssessment) error
	LatestByAccount(ctx context.Context, accountID uint) (models.RiskAssessment, error)
}

type riskAssessmentRepository struct {
	db *gorm.DB
}

// NewRiskAssessmentRepository constructs a risk assessment repository backed by GORM.
func NewRiskAssessmentRepository(db *gorm.DB) RiskAssessmentRepository {
	return &riskAssessmentRepository{db: db}
}

func (r *riskAssessmentRepository) Create(ctx context.Context, assessment *models.RiskAssessment) error {
	return r.db.WithContext(ctx).Create(assessment).Error
}

func (r *riskAssessmentRepository) LatestByAccount(ctx context.Context, accountID uint) (models.RiskAssessment, error) {
	var assessment models.RiskAssessment
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Order("created_at DESC, id DESC").First(&assessment).Error
	if err != nil {
		return models.RiskAssessment{}, err
	}
	return assessment, nil
}
