package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

// LeaderboardInvalidator drops cached rankings after a points change.
type LeaderboardInvalidator interface {
	Invalidate(ctx context.Context, instituteID uint)
}

// LeaderboardService ranks learners within an institute.
type LeaderboardService interface {
	LeaderboardInvalidator
	Top(ctx context.Context, viewer ActivityActor, instituteID uint, limit int) (dto.LeaderboardResponse, error)
}

type leaderboardService struct {
	store  repository.Store
	cache  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewLeaderboardService constructs the leaderboard reader. A nil cache disables caching.
func NewLeaderboardService(store repository.Store, cache *redis.Client, ttl time.Duration, logger zerolog.Logger) LeaderboardService {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &leaderboardService{
		store:  store,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With().Str("component", "leaderboard_service").Logger(),
	}
}

func leaderboardCacheKey(instituteID uint) string {
	return fmt.Sprintf("mindcare:leaderboard:v1:%d", instituteID)
}

// Top returns the institute's ranking. Staff of an institute and its learners see
// their own institute; moderators must name one.
func (s *leaderboardService) Top(ctx context.Context, viewer ActivityActor, instituteID uint, limit int) (dto.LeaderboardResponse, error) {
	scope, err := s.resolveInstitute(ctx, viewer, instituteID)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}
	if limit <= 0 {
		limit = defaultLeaderboardSize
	}
	if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}

	var entries []dto.LeaderboardEntry
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, leaderboardCacheKey(scope)).Result()
		switch {
		case err == nil:
			if unmarshalErr := json.Unmarshal([]byte(cached), &entries); unmarshalErr == nil {
				observability.LeaderboardCache().WithLabelValues("hit").Inc()
				return dto.LeaderboardResponse{InstituteID: scope, Entries: truncateEntries(entries, limit), Cached: true}, nil
			}
		case err != redis.Nil:
			s.logger.Warn().Err(err).Msg("failed to read leaderboard cache")
		}
		observability.LeaderboardCache().WithLabelValues("miss").Inc()
	}

	rows, err := s.store.Leaderboard().TopByInstitute(ctx, scope, maxLeaderboardSize)
	if err != nil {
		return dto.LeaderboardResponse{}, err
	}
	entries = make([]dto.LeaderboardEntry, 0, len(rows))
	for idx, row := range rows {
		entries = append(entries, dto.LeaderboardEntry{
			Rank:        idx + 1,
			AccountID:   row.AccountID,
			Username:    row.Username,
			TotalPoints: row.TotalPoints,
		})
	}

	if s.cache != nil {
		if payload, err := json.Marshal(entries); err == nil {
			if err := s.cache.Set(ctx, leaderboardCacheKey(scope), payload, s.ttl).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store leaderboard cache")
			}
		}
	}

	return dto.LeaderboardResponse{InstituteID: scope, Entries: truncateEntries(entries, limit)}, nil
}

func (s *leaderboardService) Invalidate(ctx context.Context, instituteID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, leaderboardCacheKey(instituteID)).Err(); err != nil {
		s.logger.Warn().Err(err).Uint("institute_id", instituteID).Msg("failed to invalidate leaderboard cache")
	}
}

func (s *leaderboardService) resolveInstitute(ctx context.Context, viewer ActivityActor, requested uint) (uint, error) {
	switch viewer.Role {
	case models.RoleModerator:
		if requested == 0 {
			return 0, fmt.Errorf("%w: institute_id is required", ErrValidation)
		}
		return requested, nil
	case models.RoleInstituteManager:
		institute, err := s.store.Institutes().FindByManager(ctx, viewer.ID)
		if err != nil {
			return 0, storeError(err, "institute")
		}
		return institute.ID, nil
	case models.RoleClinician:
		clinician, err := s.store.Clinicians().FindByAccount(ctx, viewer.ID)
		if err != nil {
			return 0, storeError(err, "clinician")
		}
		return clinician.InstituteID, nil
	case models.RoleLearner:
		account, err := s.store.Accounts().FindByID(ctx, viewer.ID)
		if err != nil {
			return 0, storeError(err, "account")
		}
		if account.InstituteID == nil {
			return 0, fmt.Errorf("%w: account has no institute", ErrNotFound)
		}
		return *account.InstituteID, nil
	default:
		return 0, fmt.Errorf("%w: unknown role %q", ErrForbidden, viewer.Role)
	}
}

func truncateEntries(entries []dto.LeaderboardEntry, limit int) []dto.LeaderboardEntry {
	if entries == nil {
		return []dto.LeaderboardEntry{}
	}
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
