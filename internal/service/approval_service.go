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

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

// ApprovalService runs the approval state machine for learners, clinicians and institutes.
type ApprovalService interface {
	Submit(ctx context.Context, actor ActivityActor, entityType models.EntityType, entityID uint) (models.ApprovalRecord, error)
	Decide(ctx context.Context, actor ActivityActor, recordID uint, req dto.ApprovalDecisionRequest) (models.ApprovalRecord, error)
	ListPending(ctx context.Context, actor ActivityActor, req dto.ApprovalListRequest) (dto.ApprovalListResponse, error)
	InstituteEligible(ctx context.Context, registrationCode string) (models.Institute, error)
}

type approvalService struct {
	store     repository.Store
	locker    lock.Locker
	audit     ActivityRecorder
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

// NewApprovalService constructs the approval workflow.
func NewApprovalService(store repository.Store, locker lock.Locker, audit ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) ApprovalService {
	return &approvalService{
		store:     store,
		locker:    locker,
		audit:     audit,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "approval_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/approval"),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *approvalService) Submit(ctx context.Context, actor ActivityActor, entityType models.EntityType, entityID uint) (models.ApprovalRecord, error) {
	ctx, span := s.tracer.Start(ctx, "approval.submit", trace.WithAttributes(
		attribute.String("approval.entity_type", string(entityType)),
		attribute.Int("approval.entity_id", int(entityID)),
	))
	defer span.End()

	var record models.ApprovalRecord
	err := withLocks(ctx, s.locker, []string{approvalEntityLockKey(entityType, entityID)}, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			instituteID, err := approvalScope(ctx, tx, entityType, entityID)
			if err != nil {
				return err
			}
			record, err = openApproval(ctx, tx, entityType, entityID, models.ApprovalPending, instituteID, s.clock())
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		return models.ApprovalRecord{}, err
	}

	observability.ApprovalDecisions().WithLabelValues(string(entityType), string(record.Status)).Inc()
	s.recordAudit(ctx, actor, ActionApprovalSubmitted, record)
	return record, nil
}

func (s *approvalService) Decide(ctx context.Context, actor ActivityActor, recordID uint, req dto.ApprovalDecisionRequest) (models.ApprovalRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.ApprovalRecord{}, validationFailed(err)
	}
	outcome := models.ApprovalStatus(req.Outcome)

	ctx, span := s.tracer.Start(ctx, "approval.decide", trace.WithAttributes(
		attribute.Int("approval.record_id", int(recordID)),
		attribute.String("approval.outcome", req.Outcome),
	))
	defer span.End()

	existing, err := s.store.Approvals().FindByID(ctx, recordID)
	if err != nil {
		return models.ApprovalRecord{}, storeError(err, "approval record")
	}

	// Same entity key as Submit, so a decision never races a resubmission.
	keys := []string{approvalEntityLockKey(existing.EntityType, existing.EntityID)}
	if existing.EntityType == models.EntityLearner {
		keys = append(keys, accountLockKey(existing.EntityID))
	}

	var record models.ApprovalRecord
	err = withLocks(ctx, s.locker, keys, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			current, err := tx.Approvals().FindByID(ctx, recordID)
			if err != nil {
				return storeError(err, "approval record")
			}
			if err := s.authorizeDecision(ctx, tx, actor, current); err != nil {
				return err
			}
			if !current.Status.Undecided() {
				return fmt.Errorf("%w: record is already %s", ErrInvalidTransition, current.Status)
			}

			decidedAt := s.clock()
			deciderID := actor.ID
			current.Status = outcome
			current.DecidedAt = &decidedAt
			current.DecidedBy = &deciderID
			current.Notes = strings.TrimSpace(s.sanitizer.Sanitize(req.Notes))
			if outcome == models.ApprovalRejected {
				current.ActiveKey = nil
			}
			if err := tx.Approvals().Save(ctx, &current); err != nil {
				return storeError(err, "approval record")
			}

			if outcome == models.ApprovalApproved {
				if err := applyApprovalEffects(ctx, tx, current); err != nil {
					return err
				}
			}
			record = current
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decide failed")
		return models.ApprovalRecord{}, err
	}

	observability.ApprovalDecisions().WithLabelValues(string(record.EntityType), string(record.Status)).Inc()
	s.logger.Info().
		Uint("record_id", record.ID).
		Str("entity_type", string(record.EntityType)).
		Str("status", string(record.Status)).
		Uint("decided_by", actor.ID).
		Msg("approval decided")
	s.recordAudit(ctx, actor, ActionApprovalDecided, record)
	return record, nil
}

func (s *approvalService) authorizeDecision(ctx context.Context, tx repository.Store, actor ActivityActor, record models.ApprovalRecord) error {
	switch actor.Role {
	case models.RoleModerator:
		return nil
	case models.RoleInstituteManager:
		if record.EntityType != models.EntityLearner || record.InstituteID == nil {
			return fmt.Errorf("%w: managers only decide learner records", ErrForbidden)
		}
		institute, err := tx.Institutes().FindByManager(ctx, actor.ID)
		if err != nil {
			if errors.Is(storeError(err, "institute"), ErrNotFound) {
				return fmt.Errorf("%w: manager has no institute", ErrForbidden)
			}
			return err
		}
		if institute.ID != *record.InstituteID {
			return fmt.Errorf("%w: learner belongs to another institute", ErrForbidden)
		}
		return nil
	default:
		return fmt.Errorf("%w: role %q cannot decide approvals", ErrForbidden, actor.Role)
	}
}

func (s *approvalService) ListPending(ctx context.Context, actor ActivityActor, req dto.ApprovalListRequest) (dto.ApprovalListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ApprovalListResponse{}, validationFailed(err)
	}

	filter := repository.ApprovalFilter{
		Page:       req.Page,
		PageSize:   req.PageSize,
		EntityType: models.EntityType(req.EntityType),
	}

	switch actor.Role {
	case models.RoleModerator:
	case models.RoleInstituteManager:
		institute, err := s.store.Institutes().FindByManager(ctx, actor.ID)
		if err != nil {
			return dto.ApprovalListResponse{}, storeError(err, "institute")
		}
		filter.InstituteID = &institute.ID
		filter.EntityType = models.EntityLearner
	default:
		return dto.ApprovalListResponse{}, fmt.Errorf("%w: role %q cannot review approvals", ErrForbidden, actor.Role)
	}

	records, total, err := s.store.Approvals().ListUndecided(ctx, filter)
	if err != nil {
		return dto.ApprovalListResponse{}, err
	}

	items := make([]dto.ApprovalResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewApprovalResponse(record))
	}
	return dto.ApprovalListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

// InstituteEligible resolves a registration code to an approved institute.
func (s *approvalService) InstituteEligible(ctx context.Context, registrationCode string) (models.Institute, error) {
	return eligibleInstitute(ctx, s.store, registrationCode)
}

func eligibleInstitute(ctx context.Context, store repository.Store, registrationCode string) (models.Institute, error) {
	code := strings.TrimSpace(registrationCode)
	if code == "" {
		return models.Institute{}, fmt.Errorf("%w: registration code is required", ErrNotEligible)
	}

	institute, err := store.Institutes().FindByCode(ctx, code)
	if err != nil {
		if errors.Is(storeError(err, "institute"), ErrNotFound) {
			return models.Institute{}, fmt.Errorf("%w: unknown registration code", ErrNotEligible)
		}
		return models.Institute{}, err
	}

	record, found, err := store.Approvals().FindActive(ctx, models.EntityInstitute, institute.ID)
	if err != nil {
		return models.Institute{}, err
	}
	if !found || record.Status != models.ApprovalApproved {
		return models.Institute{}, fmt.Errorf("%w: institute is not approved", ErrNotEligible)
	}
	return institute, nil
}

func (s *approvalService) recordAudit(ctx context.Context, actor ActivityActor, action string, record models.ApprovalRecord) {
	if s.audit == nil {
		return
	}
	entityID := record.EntityID
	_, err := s.audit.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: string(record.EntityType),
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"record_id": record.ID,
			"status":    string(record.Status),
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("record_id", record.ID).Msg("failed to audit approval change")
	}
}

// openApproval creates the active record of an entity, failing with ErrConflict when one exists.
func openApproval(ctx context.Context, tx repository.Store, entityType models.EntityType, entityID uint, status models.ApprovalStatus, instituteID *uint, now time.Time) (models.ApprovalRecord, error) {
	if _, found, err := tx.Approvals().FindActive(ctx, entityType, entityID); err != nil {
		return models.ApprovalRecord{}, err
	} else if found {
		return models.ApprovalRecord{}, fmt.Errorf("%w: %s %d already has an active approval", ErrConflict, entityType, entityID)
	}

	key := models.ApprovalKey(entityType, entityID)
	record := models.ApprovalRecord{
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      status,
		InstituteID: instituteID,
		RequestedAt: now,
		ActiveKey:   &key,
	}
	if err := tx.Approvals().Create(ctx, &record); err != nil {
		return models.ApprovalRecord{}, storeError(err, "approval record")
	}
	return record, nil
}

// approvalScope checks the entity exists and returns the institute whose manager may review it.
func approvalScope(ctx context.Context, tx repository.Store, entityType models.EntityType, entityID uint) (*uint, error) {
	switch entityType {
	case models.EntityLearner:
		account, err := tx.Accounts().FindByID(ctx, entityID)
		if err != nil {
			return nil, storeError(err, "learner account")
		}
		if account.Role != models.RoleLearner {
			return nil, fmt.Errorf("%w: account %d is not a learner", ErrValidation, entityID)
		}
		return account.InstituteID, nil
	case models.EntityClinician:
		clinician, err := tx.Clinicians().FindByID(ctx, entityID)
		if err != nil {
			return nil, storeError(err, "clinician")
		}
		instituteID := clinician.InstituteID
		return &instituteID, nil
	case models.EntityInstitute:
		if _, err := tx.Institutes().FindByID(ctx, entityID); err != nil {
			return nil, storeError(err, "institute")
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown entity type %q", ErrValidation, entityType)
	}
}

// applyApprovalEffects runs inside the deciding transaction. Institute and clinician
// eligibility is derived from the record itself; learners get a leaderboard entry.
func applyApprovalEffects(ctx context.Context, tx repository.Store, record models.ApprovalRecord) error {
	if record.EntityType != models.EntityLearner {
		return nil
	}

	account, err := tx.Accounts().FindByID(ctx, record.EntityID)
	if err != nil {
		return storeError(err, "learner account")
	}
	if account.InstituteID == nil {
		return nil
	}
	return seedLeaderboard(ctx, tx, account)
}

func seedLeaderboard(ctx context.Context, tx repository.Store, account models.Account) error {
	state, _, err := tx.Gamification().FindState(ctx, account.ID)
	if err != nil {
		return err
	}
	return tx.Leaderboard().Upsert(ctx, &models.LeaderboardEntry{
		InstituteID: *account.InstituteID,
		AccountID:   account.ID,
		TotalPoints: state.Points,
	})
}
