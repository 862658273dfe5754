package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// AccountRepository persists accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	Save(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uint) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	IDsByRole(ctx context.Context, role models.Role) ([]uint, error)
}

type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository constructs an account repository backed by GORM.
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *accountRepository) Save(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *accountRepository) FindByID(ctx context.Context, id uint) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		return models.Account{}, err
	}
	return account, nil
}

func (r *accountRepository) UsernameTaken(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// InstituteRepository persists institutes.
type InstituteRepository interface {
	Create(ctx context.Context, institute *models.Institute) error
	Save(ctx context.Context, institute *models.Institute) error
	FindByID(ctx context.Context, id uint) (models.Institute, error)
	FindByCode(ctx context.Context, code string) (models.Institute, error)
	FindByManager(ctx context.Context, accountID uint) (models.Institute, error)
}

type instituteRepository struct {
	db *gorm.DB
}

// NewInstituteRepository constructs an institute repository backed by GORM.
func NewInstituteRepository(db *gorm.DB) InstituteRepository {
	return &instituteRepository{db: db}
}

func (r *instituteRepository) Create(ctx context.Context, institute *models.Institute) error {
	return r.db.WithContext(ctx).Create(institute).Error
}

func (r *instituteRepository) Save(ctx context.Context, institute *models.Institute) error {
	return r.db.WithContext(ctx).Save(institute).Error
}

func (r *instituteRepository) FindByID(ctx context.Context, id uint) (models.Institute, error) {
	var institute models.Institute
	if err := r.db.WithContext(ctx).First(&institute, id).Error; err != nil {
		return models.Institute{}, err
	}
	return institute, nil
}

func (r *instituteRepository) FindByCode(ctx context.Context, code string) (models.Institute, error) {
	var institute models.Institute
	if err := r.db.WithContext(ctx).Where("registration_code = ?", code).First(&institute).Error; err != nil {
		return models.Institute{}, err
	}
	return institute, nil
}

func (r *instituteRepository) FindByManager(ctx context.Context, accountID uint) (models.Institute, error) {
	var institute models.Institute
	if err := r.db.WithContext(ctx).Where("manager_account_id = ?", accountID).First(&institute).Error; err != nil {
		return models.Institute{}, err
	}
	return institute, nil
}

// ClinicianRepository persists clinician profiles.
type ClinicianRepository interface {
	Create(ctx context.Context, clinician *models.Clinician) error
	Save(ctx context.Context, clinician *models.Clinician) error
	FindByID(ctx context.Context, id uint) (models.Clinician, error)
	FindByAccount(ctx context.Context, accountID uint) (models.Clinician, error)
	ListApprovedByInstitute(ctx context.Context, instituteID uint) ([]models.Clinician, error)
}

type clinicianRepository struct {
	db *gorm.DB
}

// NewClinicianRepository constructs a clinician repository backed by GORM.
func NewClinicianRepository(db *gorm.DB) ClinicianRepository {
	return &clinicianRepository{db: db}
}

func (r *clinicianRepository) Create(ctx context.Context, clinician *models.Clinician) error {
	return r.db.WithContext(ctx).Create(clinician).Error
}

func (r *clinicianRepository) Save(ctx context.Context, clinician *models.Clinician) error {
	return r.db.WithContext(ctx).Save(clinician).Error
}

func (r *clinicianRepository) FindByID(ctx context.Context, id uint) (models.Clinician, error) {
	var clinician models.Clinician
	if err := r.db.WithContext(ctx).First(&clinician, id).Error; err != nil {
		return models.Clinician{}, err
	}
	return clinician, nil
}

func (r *clinicianRepository) FindByAccount(ctx context.Context, accountID uint) (models.Clinician, error) {
	var clinician models.Clinician
	if err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&clinician).Error; err != nil {
		return models.Clinician{}, err
	}
	return clinician, nil
}

func (r *clinicianRepository) ListApprovedByInstitute(ctx context.Context, instituteID uint) ([]models.Clinician, error) {
	var clinicians []models.Clinician
	err := r.db.WithContext(ctx).
		Joins("JOIN approval_records ON approval_records.entity_type = ? AND approval_records.entity_id = clinicians.id", models.EntityClinician).
		Where("clinicians.institute_id = ? AND approval_records.status = ?", instituteID, models.ApprovalApproved).
		Order("clinicians.id ASC").
		Find(&clinicians).Error
	if err != nil {
		return nil, err
	}
	return clinicians, nil
}

func (r *accountRepository) IDsByRole(ctx context.Context, role models.Role) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).Model(&models.Account{}).Where("role = ?", role).Order("id ASC").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
