package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func newTestStore(t *testing.T) (repository.Store, *gorm.DB) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return repository.NewStore(db), db
}

func createAccount(t *testing.T, db *gorm.DB, username string, role models.Role, instituteID *uint) models.Account {
	t.Helper()
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	account := models.Account{
		Username:     username,
		Email:        username + "@example.com",
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: hash,
		Role:         role,
		InstituteID:  instituteID,
	}
	require.NoError(t, db.Create(&account).Error)
	return account
}

func createApproval(t *testing.T, db *gorm.DB, entityType models.EntityType, entityID uint, status models.ApprovalStatus, instituteID *uint) models.ApprovalRecord {
	t.Helper()
	record := models.ApprovalRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      status,
		InstituteID: instituteID,
		RequestedAt: time.Now().UTC(),
	}
	if status != models.ApprovalRejected {
		key := models.ApprovalKey(entityType, entityID)
		record.ActiveKey = &key
	}
	require.NoError(t, db.Create(&record).Error)
	return record
}

// createInstitute seeds an institute, its manager and an institute approval in the given state.
func createInstitute(t *testing.T, db *gorm.DB, code string, status models.ApprovalStatus) (models.Institute, models.Account) {
	t.Helper()
	manager := createAccount(t, db, "manager-"+code, models.RoleInstituteManager, nil)
	institute := models.Institute{Name: "Institute " + code, ManagerAccountID: manager.ID, RegistrationCode: code}
	require.NoError(t, db.Create(&institute).Error)
	manager.InstituteID = &institute.ID
	require.NoError(t, db.Save(&manager).Error)
	createApproval(t, db, models.EntityInstitute, institute.ID, status, nil)
	return institute, manager
}

func createLearner(t *testing.T, db *gorm.DB, username string, institute models.Institute, status models.ApprovalStatus) models.Account {
	t.Helper()
	learner := createAccount(t, db, username, models.RoleLearner, &institute.ID)
	createApproval(t, db, models.EntityLearner, learner.ID, status, &institute.ID)
	if status == models.ApprovalApproved {
		require.NoError(t, db.Create(&models.LeaderboardEntry{InstituteID: institute.ID, AccountID: learner.ID}).Error)
	}
	return learner
}

func createClinician(t *testing.T, db *gorm.DB, username string, institute models.Institute, status models.ApprovalStatus) (models.Clinician, models.Account) {
	t.Helper()
	account := createAccount(t, db, username, models.RoleClinician, &institute.ID)
	clinician := models.Clinician{AccountID: account.ID, InstituteID: institute.ID, LicenseNumber: "LIC-" + username}
	require.NoError(t, db.Create(&clinician).Error)
	createApproval(t, db, models.EntityClinician, clinician.ID, status, &institute.ID)
	return clinician, account
}

// recordingNotifier captures staff notices.
type recordingNotifier struct {
	mu      sync.Mutex
	notices []StaffNotice
	err     error
}

func (n *recordingNotifier) NotifyStaff(_ context.Context, notice StaffNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) all() []StaffNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]StaffNotice(nil), n.notices...)
}

func ptrUint(v uint) *uint {
	return &v
}

func day(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}
