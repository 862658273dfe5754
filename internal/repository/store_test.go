package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/mindcare-api/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedAccount(t *testing.T, db *gorm.DB, username string, role models.Role, instituteID *uint) models.Account {
	t.Helper()
	account := models.Account{Username: username, Email: username + "@example.com", PasswordHash: "x", Role: role, InstituteID: instituteID}
	require.NoError(t, db.Create(&account).Error)
	return account
}

func TestApprovalRepositoryActiveKeyIsUnique(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	key := models.ApprovalKey(models.EntityLearner, 7)
	first := models.ApprovalRecord{EntityType: models.EntityLearner, EntityID: 7, Status: models.ApprovalPending, RequestedAt: time.Now(), ActiveKey: &key}
	require.NoError(t, repo.Create(ctx, &first))

	duplicate := models.ApprovalRecord{EntityType: models.EntityLearner, EntityID: 7, Status: models.ApprovalPending, RequestedAt: time.Now(), ActiveKey: &key}
	err := repo.Create(ctx, &duplicate)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	found, ok, err := repo.FindActive(ctx, models.EntityLearner, 7)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.ID, found.ID)

	first.Status = models.ApprovalRejected
	first.ActiveKey = nil
	require.NoError(t, repo.Save(ctx, &first))

	_, ok, err = repo.FindActive(ctx, models.EntityLearner, 7)
	require.NoError(t, err)
	require.False(t, ok)

	again := models.ApprovalRecord{EntityType: models.EntityLearner, EntityID: 7, Status: models.ApprovalPending, RequestedAt: time.Now(), ActiveKey: &key}
	require.NoError(t, repo.Create(ctx, &again))
}

func TestApprovalRepositoryListUndecided(t *testing.T) {
	db := setupTestDB(t)
	repo := NewApprovalRepository(db)
	ctx := context.Background()

	institute := uint(3)
	now := time.Now()
	records := []models.ApprovalRecord{
		{EntityType: models.EntityLearner, EntityID: 1, Status: models.ApprovalSuspicious, InstituteID: &institute, RequestedAt: now.Add(-time.Hour)},
		{EntityType: models.EntityClinician, EntityID: 2, Status: models.ApprovalPending, InstituteID: &institute, RequestedAt: now},
		{EntityType: models.EntityLearner, EntityID: 3, Status: models.ApprovalApproved, InstituteID: &institute, RequestedAt: now},
		{EntityType: models.EntityInstitute, EntityID: 9, Status: models.ApprovalPending, RequestedAt: now},
	}
	for i := range records {
		require.NoError(t, repo.Create(ctx, &records[i]))
	}

	items, total, err := repo.ListUndecided(ctx, ApprovalFilter{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Equal(t, uint(1), items[0].EntityID, "oldest request first")

	items, total, err = repo.ListUndecided(ctx, ApprovalFilter{InstituteID: &institute, EntityType: models.EntityLearner})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, models.ApprovalSuspicious, items[0].Status)
}

func TestGamificationRepositoryBadgesAndCheckIns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGamificationRepository(db)
	ctx := context.Background()

	awarded, err := repo.AwardBadge(ctx, &models.Badge{AccountID: 1, Tier: 3, AwardedAt: time.Now()})
	require.NoError(t, err)
	require.True(t, awarded)

	awarded, err = repo.AwardBadge(ctx, &models.Badge{AccountID: 1, Tier: 3, AwardedAt: time.Now()})
	require.NoError(t, err)
	require.False(t, awarded)

	badges, err := repo.ListBadges(ctx, 1)
	require.NoError(t, err)
	require.Len(t, badges, 1)

	require.NoError(t, repo.CreateCheckIn(ctx, &models.CheckIn{AccountID: 1, Day: "2026-03-01", Mood: 3, Energy: 2, SleepQuality: 3}))
	err = repo.CreateCheckIn(ctx, &models.CheckIn{AccountID: 1, Day: "2026-03-01", Mood: 4, Energy: 2, SleepQuality: 3})
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	exists, err := repo.CheckInExists(ctx, 1, "2026-03-01")
	require.NoError(t, err)
	require.True(t, exists)

	_, found, err := repo.FindState(ctx, 1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRecommendationRepositoryMarkCompletedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRecommendationRepository(db)
	ctx := context.Background()

	recs := []models.InstantRecommendation{
		{AccountID: 1, AlertID: 5, ActivityType: "yoga", Title: "Yoga", BonusPoints: 15},
		{AccountID: 1, AlertID: 5, ActivityType: "music", Title: "Music", BonusPoints: 10},
	}
	require.NoError(t, repo.CreateBatch(ctx, recs))

	count, err := repo.CountByAlert(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	pending, err := repo.ListPending(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	done, err := repo.MarkCompleted(ctx, pending[0].ID, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	done, err = repo.MarkCompleted(ctx, pending[0].ID, time.Now())
	require.NoError(t, err)
	require.False(t, done)

	pending, err = repo.ListPending(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestCrisisAlertRepositoryListByInstitute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCrisisAlertRepository(db)
	ctx := context.Background()

	instituteA, instituteB := uint(1), uint(2)
	learnerA := seedAccount(t, db, "amara", models.RoleLearner, &instituteA)
	learnerB := seedAccount(t, db, "bima", models.RoleLearner, &instituteB)

	alertA := models.CrisisAlert{AccountID: learnerA.ID, Severity: models.SeverityHigh, Context: "chatbot", MatchedTerms: []string{"hopeless"}}
	alertB := models.CrisisAlert{AccountID: learnerB.ID, Severity: models.SeverityLow, Context: "checkin", MatchedTerms: []string{"sad"}}
	require.NoError(t, repo.Create(ctx, &alertA))
	require.NoError(t, repo.Create(ctx, &alertB))

	items, total, err := repo.List(ctx, CrisisAlertFilter{InstituteID: &instituteA})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, alertA.ID, items[0].ID)
	require.Equal(t, []string{"hopeless"}, []string(items[0].MatchedTerms))

	require.NoError(t, repo.MarkNotified(ctx, alertA.ID, true, true))
	stored, err := repo.FindByID(ctx, alertA.ID)
	require.NoError(t, err)
	require.True(t, stored.ClinicianNotified)
	require.True(t, stored.InstituteNotified)
	require.Equal(t, models.SeverityHigh, stored.Severity)

	require.ErrorIs(t, repo.MarkNotified(ctx, 999, true, false), gorm.ErrRecordNotFound)
}

func TestLeaderboardRepositoryRanksWithinInstitute(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLeaderboardRepository(db)
	ctx := context.Background()

	institute := uint(4)
	first := seedAccount(t, db, "citra", models.RoleLearner, &institute)
	second := seedAccount(t, db, "dewi", models.RoleLearner, &institute)

	require.NoError(t, repo.Upsert(ctx, &models.LeaderboardEntry{InstituteID: institute, AccountID: first.ID, TotalPoints: 40}))
	require.NoError(t, repo.Upsert(ctx, &models.LeaderboardEntry{InstituteID: institute, AccountID: second.ID, TotalPoints: 10}))
	require.NoError(t, repo.UpdatePoints(ctx, second.ID, 90))
	require.NoError(t, repo.UpdatePoints(ctx, 12345, 90))

	rows, err := repo.TopByInstitute(ctx, institute, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "dewi", rows[0].Username)
	require.Equal(t, 90, rows[0].TotalPoints)
}

func TestStoreTransactionRollsBack(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.Transaction(ctx, func(tx Store) error {
		if err := tx.Accounts().Create(ctx, &models.Account{Username: "eka", Email: "e@example.com", PasswordHash: "x", Role: models.RoleLearner}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	taken, err := store.Accounts().UsernameTaken(ctx, "eka")
	require.NoError(t, err)
	require.False(t, taken)
}

func TestClinicianRepositoryListApprovedByInstitute(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	institute := uint(8)
	approved := models.Clinician{AccountID: 1, InstituteID: institute, LicenseNumber: "L-1"}
	pending := models.Clinician{AccountID: 2, InstituteID: institute, LicenseNumber: "L-2"}
	require.NoError(t, store.Clinicians().Create(ctx, &approved))
	require.NoError(t, store.Clinicians().Create(ctx, &pending))

	approvedKey := models.ApprovalKey(models.EntityClinician, approved.ID)
	pendingKey := models.ApprovalKey(models.EntityClinician, pending.ID)
	require.NoError(t, store.Approvals().Create(ctx, &models.ApprovalRecord{EntityType: models.EntityClinician, EntityID: approved.ID, Status: models.ApprovalApproved, RequestedAt: time.Now(), ActiveKey: &approvedKey}))
	require.NoError(t, store.Approvals().Create(ctx, &models.ApprovalRecord{EntityType: models.EntityClinician, EntityID: pending.ID, Status: models.ApprovalPending, RequestedAt: time.Now(), ActiveKey: &pendingKey}))

	clinicians, err := store.Clinicians().ListApprovedByInstitute(ctx, institute)
	require.NoError(t, err)
	require.Len(t, clinicians, 1)
	require.Equal(t, approved.ID, clinicians[0].ID)
}

func TestActivityPlanRepositoryCompletesOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActivityPlanRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, []models.ActivityRecommendation{
		{AccountID: 3, ActivityType: "yoga", Title: "Hatha Yoga", DurationMinutes: 30, Difficulty: "easy"},
		{AccountID: 3, ActivityType: "walking", Title: "Brisk Walking", DurationMinutes: 20, Difficulty: "easy"},
		{AccountID: 4, ActivityType: "walking", Title: "Brisk Walking", DurationMinutes: 20, Difficulty: "easy"},
	}))

	plan, err := repo.ListByAccount(ctx, 3)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	done, err := repo.MarkCompleted(ctx, plan[0].ID, time.Now())
	require.NoError(t, err)
	require.True(t, done)

	done, err = repo.MarkCompleted(ctx, plan[0].ID, time.Now())
	require.NoError(t, err)
	require.False(t, done)

	plan, err = repo.ListByAccount(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, "Brisk Walking", plan[0].Title)
	require.True(t, plan[1].Completed)
	require.NotNil(t, plan[1].CompletedAt)
}

func TestRemovalRepositoryOneActiveRequestPerEntity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRemovalRepository(db)
	ctx := context.Background()

	key := "learner:7"
	first := models.RemovalRequest{RequestedBy: 1, EntityType: models.EntityLearner, EntityID: 7, Reason: "duplicate account", Status: models.RemovalPending, RequestedAt: time.Now(), ActiveKey: &key}
	require.NoError(t, repo.Create(ctx, &first))

	second := first
	second.ID = 0
	err := repo.Create(ctx, &second)
	require.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)

	first.Status = models.RemovalRejected
	first.ActiveKey = nil
	require.NoError(t, repo.Save(ctx, &first))

	second.ID = 0
	require.NoError(t, repo.Create(ctx, &second))

	pending, total, err := repo.List(ctx, RemovalFilter{Status: models.RemovalPending})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, second.ID, pending[0].ID)
}

func TestConsultationMessageRepositoryPagesForward(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsultationMessageRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &models.ConsultationMessage{ConsultationID: 2, SenderAccountID: 5, Body: []byte{byte(i)}}))
	}
	require.NoError(t, repo.Create(ctx, &models.ConsultationMessage{ConsultationID: 9, SenderAccountID: 5, Body: []byte{1}}))

	all, err := repo.ListByConsultation(ctx, 2, 0, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Less(t, all[0].ID, all[1].ID)

	rest, err := repo.ListByConsultation(ctx, 2, all[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	require.Equal(t, all[1].ID, rest[0].ID)
}
