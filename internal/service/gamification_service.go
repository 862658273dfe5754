package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/mindcare-api/internal/crisis"
	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

// Point reasons and their catalog values.
const (
	ReasonCheckin        = "checkin"
	ReasonAssessment     = "assessment"
	ReasonActivity       = "activity"
	ReasonRecommendation = "recommendation"

	CheckinPoints    = 5
	AssessmentPoints = 10
	ActivityPoints   = 10
)

// Assessment severities.
const (
	AssessmentMinimal  = "Minimal"
	AssessmentMild     = "Mild"
	AssessmentModerate = "Moderate"
	AssessmentSevere   = "Severe"
)

var assessmentAdvice = map[string]string{
	AssessmentMinimal:  "Your mental health appears to be good. Continue with daily check-ins and self-care practices.",
	AssessmentMild:     "Consider talking to a counselor. Practice relaxation techniques and maintain a healthy routine.",
	AssessmentModerate: "We recommend consulting with a mental health professional. Consider therapy or counseling.",
	AssessmentSevere:   "Please seek immediate professional help. Contact a psychiatrist or crisis hotline.",
}

const dayLayout = "2006-01-02"

// GamificationService owns points, levels, streaks and badges.
type GamificationService interface {
	ApplyPoints(ctx context.Context, accountID uint, delta int, reason string) (models.GamificationState, error)
	RecordCheckin(ctx context.Context, accountID uint, day time.Time, req dto.CheckinRequest) (dto.CheckinResponse, error)
	CompleteRecommendation(ctx context.Context, accountID, recommendationID uint) (dto.PointsAwardResponse, error)
	Activities(ctx context.Context, accountID uint) ([]dto.ActivityRecommendationResponse, error)
	CompleteActivity(ctx context.Context, accountID, activityID uint) (dto.PointsAwardResponse, error)
	SubmitAssessment(ctx context.Context, accountID uint, req dto.AssessmentRequest) (dto.AssessmentResponse, error)
	State(ctx context.Context, accountID uint) (dto.GamificationStateResponse, error)
}

type gamificationService struct {
	store       repository.Store
	locker      lock.Locker
	crisis      CrisisService
	leaderboard LeaderboardInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	clock       func() time.Time
}

// NewGamificationService constructs the ledger. Crisis scanning of check-in notes and
// leaderboard cache invalidation are skipped when their collaborators are nil.
func NewGamificationService(store repository.Store, locker lock.Locker, crisisService CrisisService, leaderboard LeaderboardInvalidator, validate *validator.Validate, logger zerolog.Logger) GamificationService {
	return &gamificationService{
		store:       store,
		locker:      locker,
		crisis:      crisisService,
		leaderboard: leaderboard,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "gamification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/gamification"),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// ledgerOutcome carries what a locked ledger write produced.
type ledgerOutcome struct {
	state       models.GamificationState
	instituteID *uint
}

func (s *gamificationService) ApplyPoints(ctx context.Context, accountID uint, delta int, reason string) (models.GamificationState, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.GamificationState{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	var outcome ledgerOutcome
	err := lock.With(ctx, s.locker, accountLockKey(accountID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			state, err := loadState(ctx, tx, accountID)
			if err != nil {
				return err
			}
			outcome, err = creditPoints(ctx, tx, state, delta, reason)
			return err
		})
	})
	if err != nil {
		return models.GamificationState{}, err
	}

	s.afterLedgerWrite(ctx, outcome, delta, reason)
	return outcome.state, nil
}

func (s *gamificationService) RecordCheckin(ctx context.Context, accountID uint, day time.Time, req dto.CheckinRequest) (dto.CheckinResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CheckinResponse{}, validationFailed(err)
	}

	ctx, span := s.tracer.Start(ctx, "gamification.checkin", trace.WithAttributes(attribute.Int("account.id", int(accountID))))
	defer span.End()

	date := calendarDay(day)
	dayKey := date.Format(dayLayout)
	rawNotes := strings.TrimSpace(req.Notes)

	var (
		outcome   ledgerOutcome
		checkIn   models.CheckIn
		newBadges = []int{}
	)
	err := lock.With(ctx, s.locker, accountLockKey(accountID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			exists, err := tx.Gamification().CheckInExists(ctx, accountID, dayKey)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: already checked in on %s", ErrConflict, dayKey)
			}

			state, err := loadState(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if err := advanceStreak(&state, date); err != nil {
				return err
			}

			checkIn = models.CheckIn{
				AccountID:    accountID,
				Day:          dayKey,
				Mood:         req.Mood,
				Energy:       req.Energy,
				SleepQuality: req.SleepQuality,
				Notes:        strings.TrimSpace(s.sanitizer.Sanitize(rawNotes)),
			}
			if err := tx.Gamification().CreateCheckIn(ctx, &checkIn); err != nil {
				return storeError(err, "check-in")
			}

			outcome, err = creditPoints(ctx, tx, state, CheckinPoints, ReasonCheckin)
			if err != nil {
				return err
			}

			for _, tier := range models.BadgeTiers {
				if outcome.state.CurrentStreak < tier {
					break
				}
				awarded, err := tx.Gamification().AwardBadge(ctx, &models.Badge{AccountID: accountID, Tier: tier, AwardedAt: s.clock()})
				if err != nil {
					return err
				}
				if awarded {
					newBadges = append(newBadges, tier)
				}
			}
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			span.SetAttributes(attribute.Bool("checkin.duplicate", true))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, "check-in failed")
		}
		return dto.CheckinResponse{}, err
	}

	s.afterLedgerWrite(ctx, outcome, CheckinPoints, ReasonCheckin)
	for _, tier := range newBadges {
		observability.BadgesAwarded().WithLabelValues(fmt.Sprintf("%d", tier)).Inc()
		s.logger.Info().Uint("account_id", accountID).Int("tier", tier).Msg("streak badge awarded")
	}

	badges, err := s.store.Gamification().ListBadges(ctx, accountID)
	if err != nil {
		return dto.CheckinResponse{}, err
	}

	response := dto.CheckinResponse{
		ID:            checkIn.ID,
		Day:           dayKey,
		PointsAwarded: CheckinPoints,
		NewBadges:     newBadges,
		State:         dto.NewGamificationStateResponse(outcome.state, badges),
	}
	if evaluation, ok := s.scanNotes(ctx, accountID, rawNotes); ok {
		response.Crisis = &evaluation
	}
	return response, nil
}

// scanNotes escalates crisis language found in committed check-in notes. It
// receives the text as written; only the stored copy is sanitized.
func (s *gamificationService) scanNotes(ctx context.Context, accountID uint, notes string) (dto.CrisisEvaluationResponse, bool) {
	if s.crisis == nil || notes == "" {
		return dto.CrisisEvaluationResponse{}, false
	}
	assessment := crisis.Evaluate(notes)
	if !assessment.Detected() {
		return dto.CrisisEvaluationResponse{}, false
	}
	result, err := s.crisis.Cascade(ctx, CascadeInput{AccountID: accountID, Assessment: assessment, Context: CrisisContextCheckin, RawText: notes})
	if err != nil {
		s.logger.Error().Err(err).Uint("account_id", accountID).Msg("check-in crisis cascade failed")
		return newEvaluationResponse(assessment, nil), true
	}
	return newEvaluationResponse(assessment, &result), true
}

func (s *gamificationService) CompleteRecommendation(ctx context.Context, accountID, recommendationID uint) (dto.PointsAwardResponse, error) {
	var (
		outcome ledgerOutcome
		bonus   int
	)
	err := lock.With(ctx, s.locker, accountLockKey(accountID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			recommendation, err := tx.Recommendations().FindByID(ctx, recommendationID)
			if err != nil {
				return storeError(err, "recommendation")
			}
			if recommendation.AccountID != accountID {
				return fmt.Errorf("%w: recommendation", ErrNotFound)
			}
			if recommendation.Completed {
				return fmt.Errorf("%w: recommendation already completed", ErrConflict)
			}
			updated, err := tx.Recommendations().MarkCompleted(ctx, recommendation.ID, s.clock())
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("%w: recommendation already completed", ErrConflict)
			}

			state, err := loadState(ctx, tx, accountID)
			if err != nil {
				return err
			}
			bonus = recommendation.BonusPoints
			outcome, err = creditPoints(ctx, tx, state, bonus, ReasonRecommendation)
			return err
		})
	})
	if err != nil {
		return dto.PointsAwardResponse{}, err
	}

	s.afterLedgerWrite(ctx, outcome, bonus, ReasonRecommendation)
	return s.awardResponse(ctx, outcome.state, bonus, ReasonRecommendation)
}

func (s *gamificationService) Activities(ctx context.Context, accountID uint) ([]dto.ActivityRecommendationResponse, error) {
	activities, err := s.store.ActivityPlans().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return dto.NewActivityRecommendationResponses(activities), nil
}

// CompleteActivity credits a planned activity once. Activities of other accounts read as missing.
func (s *gamificationService) CompleteActivity(ctx context.Context, accountID, activityID uint) (dto.PointsAwardResponse, error) {
	var (
		outcome  ledgerOutcome
		activity models.ActivityRecommendation
	)
	err := lock.With(ctx, s.locker, accountLockKey(accountID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			var err error
			activity, err = tx.ActivityPlans().FindByID(ctx, activityID)
			if err != nil {
				return storeError(err, "activity")
			}
			if activity.AccountID != accountID {
				return fmt.Errorf("%w: activity", ErrNotFound)
			}
			updated, err := tx.ActivityPlans().MarkCompleted(ctx, activity.ID, s.clock())
			if err != nil {
				return err
			}
			if !updated {
				return fmt.Errorf("%w: activity already completed", ErrConflict)
			}

			state, err := loadState(ctx, tx, accountID)
			if err != nil {
				return err
			}
			outcome, err = creditPoints(ctx, tx, state, ActivityPoints, ReasonActivity)
			return err
		})
	})
	if err != nil {
		return dto.PointsAwardResponse{}, err
	}

	s.afterLedgerWrite(ctx, outcome, ActivityPoints, ReasonActivity)
	s.logger.Debug().Uint("account_id", accountID).Uint("activity_id", activity.ID).Str("activity", activity.ActivityType).Msg("activity completed")
	return s.awardResponse(ctx, outcome.state, ActivityPoints, ReasonActivity)
}

func (s *gamificationService) SubmitAssessment(ctx context.Context, accountID uint, req dto.AssessmentRequest) (dto.AssessmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AssessmentResponse{}, validationFailed(err)
	}

	total := 0
	for _, answer := range req.Answers {
		total += answer
	}
	severity := AssessmentSeverity(total, len(req.Answers))

	var (
		outcome    ledgerOutcome
		assessment models.Assessment
	)
	err := lock.With(ctx, s.locker, accountLockKey(accountID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			assessment = models.Assessment{
				AccountID:  accountID,
				TotalScore: total,
				Severity:   severity,
				Advice:     assessmentAdvice[severity],
			}
			if err := tx.Assessments().Create(ctx, &assessment); err != nil {
				return err
			}
			state, err := loadState(ctx, tx, accountID)
			if err != nil {
				return err
			}
			outcome, err = creditPoints(ctx, tx, state, AssessmentPoints, ReasonAssessment)
			return err
		})
	})
	if err != nil {
		return dto.AssessmentResponse{}, err
	}

	s.afterLedgerWrite(ctx, outcome, AssessmentPoints, ReasonAssessment)

	badges, err := s.store.Gamification().ListBadges(ctx, accountID)
	if err != nil {
		return dto.AssessmentResponse{}, err
	}
	return dto.AssessmentResponse{
		ID:            assessment.ID,
		TotalScore:    assessment.TotalScore,
		Severity:      assessment.Severity,
		Advice:        assessment.Advice,
		PointsAwarded: AssessmentPoints,
		State:         dto.NewGamificationStateResponse(outcome.state, badges),
		CreatedAt:     assessment.CreatedAt,
	}, nil
}

func (s *gamificationService) State(ctx context.Context, accountID uint) (dto.GamificationStateResponse, error) {
	state, err := loadState(ctx, s.store, accountID)
	if err != nil {
		return dto.GamificationStateResponse{}, err
	}
	badges, err := s.store.Gamification().ListBadges(ctx, accountID)
	if err != nil {
		return dto.GamificationStateResponse{}, err
	}
	return dto.NewGamificationStateResponse(state, badges), nil
}

func (s *gamificationService) awardResponse(ctx context.Context, state models.GamificationState, awarded int, reason string) (dto.PointsAwardResponse, error) {
	badges, err := s.store.Gamification().ListBadges(ctx, state.AccountID)
	if err != nil {
		return dto.PointsAwardResponse{}, err
	}
	return dto.PointsAwardResponse{Awarded: awarded, Reason: reason, State: dto.NewGamificationStateResponse(state, badges)}, nil
}

func (s *gamificationService) afterLedgerWrite(ctx context.Context, outcome ledgerOutcome, delta int, reason string) {
	if delta > 0 {
		observability.PointsAwarded().WithLabelValues(reason).Add(float64(delta))
	}
	if s.leaderboard != nil && outcome.instituteID != nil {
		s.leaderboard.Invalidate(ctx, *outcome.instituteID)
	}
}

// AssessmentSeverity buckets a questionnaire total against the number of questions.
func AssessmentSeverity(total, questions int) string {
	score := float64(total)
	n := float64(questions)
	switch {
	case score < n*0.3:
		return AssessmentMinimal
	case score < n*0.6:
		return AssessmentMild
	case score < n*0.9:
		return AssessmentModerate
	default:
		return AssessmentSevere
	}
}

// loadState returns the account's ledger state, or a zero state for a first write.
func loadState(ctx context.Context, store repository.Store, accountID uint) (models.GamificationState, error) {
	state, found, err := store.Gamification().FindState(ctx, accountID)
	if err != nil {
		return models.GamificationState{}, err
	}
	if !found {
		return models.GamificationState{AccountID: accountID, Level: 1}, nil
	}
	return state, nil
}

// creditPoints applies delta to state, appends the ledger event and mirrors the
// balance onto the leaderboard entry when the account has one.
func creditPoints(ctx context.Context, tx repository.Store, state models.GamificationState, delta int, reason string) (ledgerOutcome, error) {
	balance := state.Points + delta
	if balance < 0 {
		return ledgerOutcome{}, fmt.Errorf("%w: balance cannot drop below zero", ErrValidation)
	}
	state.Points = balance
	state.RecomputeLevel()
	if err := tx.Gamification().SaveState(ctx, &state); err != nil {
		return ledgerOutcome{}, storeError(err, "gamification state")
	}

	if err := tx.Gamification().AppendPointEvent(ctx, &models.PointEvent{
		AccountID: state.AccountID,
		Delta:     delta,
		Reason:    reason,
		Balance:   balance,
	}); err != nil {
		return ledgerOutcome{}, err
	}

	outcome := ledgerOutcome{state: state}
	entry, found, err := tx.Leaderboard().FindByAccount(ctx, state.AccountID)
	if err != nil {
		return ledgerOutcome{}, err
	}
	if found {
		if err := tx.Leaderboard().UpdatePoints(ctx, state.AccountID, balance); err != nil {
			return ledgerOutcome{}, err
		}
		instituteID := entry.InstituteID
		outcome.instituteID = &instituteID
	}
	return outcome, nil
}

// advanceStreak extends the streak for a check-in on the day after the last one
// and restarts it for any other day, including one before the last check-in.
func advanceStreak(state *models.GamificationState, date time.Time) error {
	streak := 1
	if state.LastCheckinDate != nil {
		last := calendarDay(*state.LastCheckinDate)
		switch {
		case date.Equal(last):
			return fmt.Errorf("%w: already checked in on %s", ErrConflict, date.Format(dayLayout))
		case date.Equal(last.AddDate(0, 0, 1)):
			streak = state.CurrentStreak + 1
		}
	}
	state.CurrentStreak = streak
	if streak > state.LongestStreak {
		state.LongestStreak = streak
	}
	state.LastCheckinDate = &date
	return nil
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
