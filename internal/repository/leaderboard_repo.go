package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/mindcare-api/internal/models"
)

// LeaderboardRow is a ranked leaderboard line joined with the account username.
type LeaderboardRow struct {
	AccountID   uint   `json:"account_id"`
	Username    string `json:"username"`
	TotalPoints int    `json:"total_points"`
}

// LeaderboardRepository persists leaderboard entries.
type LeaderboardRepository interface {
	Upsert(ctx context.Context, entry *models.LeaderboardEntry) error
	FindByAccount(ctx context.Context, accountID uint) (models.LeaderboardEntry, bool, error)
	UpdatePoints(ctx context.Context, accountID uint, total int) error
	Remove(ctx context.Context, accountID uint) error
	TopByInstitute(ctx context.Context, instituteID uint, limit int) ([]LeaderboardRow, error)
}

type leaderboardRepository struct {
	db *gorm.DB
}

// NewLeaderboardRepository constructs a leaderboard repository backed by GORM.
func NewLeaderboardRepository(db *gorm.DB) LeaderboardRepository {
	return &leaderboardRepository{db: db}
}

func (r *leaderboardRepository) Upsert(ctx context.Context, entry *models.LeaderboardEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"institute_id", "total_points", "updated_at"}),
	}).Create(entry).Error
}

func (r *leaderboardRepository) FindByAccount(ctx context.Context, accountID uint) (models.LeaderboardEntry, bool, error) {
	var entry models.LeaderboardEntry
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LeaderboardEntry{}, false, nil
	}
	if err != nil {
		return models.LeaderboardEntry{}, false, err
	}
	return entry, true, nil
}

// UpdatePoints is a no-op for accounts without an entry.
func (r *leaderboardRepository) UpdatePoints(ctx context.Context, accountID uint, total int) error {
	return r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).
		Where("account_id = ?", accountID).
		Updates(map[string]interface{}{"total_points": total, "updated_at": time.Now().UTC()}).Error
}

// Remove drops the account from its institute ranking.
func (r *leaderboardRepository) Remove(ctx context.Context, accountID uint) error {
	return r.db.WithContext(ctx).Where("account_id = ?", accountID).Delete(&models.LeaderboardEntry{}).Error
}

func (r *leaderboardRepository) TopByInstitute(ctx context.Context, instituteID uint, limit int) ([]LeaderboardRow, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	var rows []LeaderboardRow
	err := r.db.WithContext(ctx).Model(&models.LeaderboardEntry{}).
		Select("leaderboard_entries.account_id, accounts.username, leaderboard_entries.total_points").
		Joins("JOIN accounts ON accounts.id = leaderboard_entries.account_id").
		Where("leaderboard_entries.institute_id = ?", instituteID).
		Order("leaderboard_entries.total_points DESC, leaderboard_entries.account_id ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
