package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// ConsultationFilter narrows consultation listings.
type ConsultationFilter struct {
	PatientID          *uint
	ClinicianAccountID *uint
	InstituteID        *uint
	Status             models.ConsultationStatus
	Limit              int
}

// ConsultationRepository persists consultation requests.
type ConsultationRepository interface {
	Create(ctx context.Context, consultation *models.Consultation) error
	Save(ctx context.Context, consultation *models.Consultation) error
	FindByID(ctx context.Context, id uint) (models.Consultation, error)
	List(ctx context.Context, filter ConsultationFilter) ([]models.Consultation, error)
}

type consultationRepository struct {
	db *gorm.DB
}

// NewConsultationRepository constructs a consultation repository backed by GORM.
func NewConsultationRepository(db *gorm.DB) ConsultationRepository {
	return &consultationRepository{db: db}
}

func (r *consultationRepository) Create(ctx context.Context, consultation *models.Consultation) error {
	return r.db.WithContext(ctx).Create(consultation).Error
}

func (r *consultationRepository) Save(ctx context.Context, consultation *models.Consultation) error {
	return r.db.WithContext(ctx).Save(consultation).Error
}

func (r *consultationRepository) FindByID(ctx context.Context, id uint) (models.Consultation, error) {
	var consultation models.Consultation
	if err := r.db.WithContext(ctx).First(&consultation, id).Error; err != nil {
		return models.Consultation{}, err
	}
	return consultation, nil
}

func (r *consultationRepository) List(ctx context.Context, filter ConsultationFilter) ([]models.Consultation, error) {
	query := r.db.WithContext(ctx).Model(&models.Consultation{})
	if filter.PatientID != nil {
		query = query.Where("patient_account_id = ?", *filter.PatientID)
	}
	if filter.ClinicianAccountID != nil {
		query = query.Where("clinician_account_id = ?", *filter.ClinicianAccountID)
	}
	if filter.InstituteID != nil {
		query = query.Where("institute_id = ?", *filter.InstituteID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var consultations []models.Consultation
	if err := query.Order("requested_at DESC, id DESC").Limit(limit).Find(&consultations).Error; err != nil {
		return nil, err
	}
	return consultations, nil
}
