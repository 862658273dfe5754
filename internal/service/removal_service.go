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

// RemovalService lets managers and moderators ask for an entity to be removed and
// lets moderators carry the request out.
type RemovalService interface {
	Request(ctx context.Context, actor ActivityActor, req dto.RemovalCreateRequest) (dto.RemovalResponse, error)
	Process(ctx context.Context, actor ActivityActor, requestID uint, req dto.RemovalDecisionRequest) (dto.RemovalResponse, error)
	List(ctx context.Context, actor ActivityActor, req dto.RemovalListRequest) (dto.RemovalListResponse, error)
}

type removalService struct {
	store       repository.Store
	locker      lock.Locker
	audit       ActivityRecorder
	notifier    StaffNotifier
	leaderboard LeaderboardInvalidator
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
	clock       func() time.Time
}

// NewRemovalService constructs the removal workflow. Nil collaborators are skipped.
func NewRemovalService(store repository.Store, locker lock.Locker, audit ActivityRecorder, notifier StaffNotifier, leaderboard LeaderboardInvalidator, validate *validator.Validate, logger zerolog.Logger) RemovalService {
	return &removalService{
		store:       store,
		locker:      locker,
		audit:       audit,
		notifier:    notifier,
		leaderboard: leaderboard,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "removal_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/removal"),
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *removalService) Request(ctx context.Context, actor ActivityActor, req dto.RemovalCreateRequest) (dto.RemovalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RemovalResponse{}, validationFailed(err)
	}
	entityType := models.EntityType(req.EntityType)
	if actor.Role != models.RoleModerator && actor.Role != models.RoleInstituteManager {
		return dto.RemovalResponse{}, fmt.Errorf("%w: role %q cannot request removals", ErrForbidden, actor.Role)
	}
	if actor.Role == models.RoleInstituteManager && entityType == models.EntityInstitute {
		return dto.RemovalResponse{}, fmt.Errorf("%w: managers request removal of members only", ErrForbidden)
	}
	reason := strings.TrimSpace(s.sanitizer.Sanitize(req.Reason))
	if reason == "" {
		return dto.RemovalResponse{}, fmt.Errorf("%w: reason is required", ErrValidation)
	}

	ctx, span := s.tracer.Start(ctx, "removal.request", trace.WithAttributes(
		attribute.String("removal.entity_type", req.EntityType),
		attribute.Int("removal.entity_id", int(req.EntityID)),
	))
	defer span.End()

	var request models.RemovalRequest
	err := lock.With(ctx, s.locker, approvalEntityLockKey(entityType, req.EntityID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			instituteID, err := approvalScope(ctx, tx, entityType, req.EntityID)
			if err != nil {
				return err
			}
			if actor.Role == models.RoleInstituteManager {
				if err := managerOwns(ctx, tx, actor.ID, instituteID); err != nil {
					return err
				}
			}

			key := models.ApprovalKey(entityType, req.EntityID)
			request = models.RemovalRequest{
				RequestedBy: actor.ID,
				EntityType:  entityType,
				EntityID:    req.EntityID,
				InstituteID: instituteID,
				Reason:      reason,
				Status:      models.RemovalPending,
				RequestedAt: s.clock(),
				ActiveKey:   &key,
			}
			if err := tx.Removals().Create(ctx, &request); err != nil {
				err = storeError(err, "removal request")
				if errors.Is(err, ErrConflict) {
					return fmt.Errorf("%w: %s %d already has a pending removal request", ErrConflict, entityType, req.EntityID)
				}
				return err
			}
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "removal request failed")
		return dto.RemovalResponse{}, err
	}

	observability.RemovalRequests().WithLabelValues(string(entityType), string(request.Status)).Inc()
	s.logger.Info().
		Uint("removal_id", request.ID).
		Str("entity_type", string(entityType)).
		Uint("entity_id", request.EntityID).
		Uint("requested_by", actor.ID).
		Msg("removal requested")
	s.recordAudit(ctx, actor, ActionRemovalRequested, request)
	s.notifyModerators(ctx, actor, request)
	return dto.NewRemovalResponse(request), nil
}

// Process decides a pending request. An approved removal closes the entity's active
// approval and appends a rejected record, which blocks its login and eligibility.
func (s *removalService) Process(ctx context.Context, actor ActivityActor, requestID uint, req dto.RemovalDecisionRequest) (dto.RemovalResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RemovalResponse{}, validationFailed(err)
	}
	if actor.Role != models.RoleModerator {
		return dto.RemovalResponse{}, fmt.Errorf("%w: only moderators process removals", ErrForbidden)
	}
	outcome := models.RemovalStatus(req.Outcome)

	ctx, span := s.tracer.Start(ctx, "removal.process", trace.WithAttributes(
		attribute.Int("removal.request_id", int(requestID)),
		attribute.String("removal.outcome", req.Outcome),
	))
	defer span.End()

	existing, err := s.store.Removals().FindByID(ctx, requestID)
	if err != nil {
		return dto.RemovalResponse{}, storeError(err, "removal request")
	}
	keys := []string{approvalEntityLockKey(existing.EntityType, existing.EntityID)}
	if existing.EntityType == models.EntityLearner {
		keys = append(keys, accountLockKey(existing.EntityID))
	}

	var request models.RemovalRequest
	err = withLocks(ctx, s.locker, keys, func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			current, err := tx.Removals().FindByID(ctx, requestID)
			if err != nil {
				return storeError(err, "removal request")
			}
			if current.Status != models.RemovalPending {
				return fmt.Errorf("%w: removal request is already %s", ErrInvalidTransition, current.Status)
			}

			now := s.clock()
			processedBy := actor.ID
			current.Status = outcome
			current.ProcessedAt = &now
			current.ProcessedBy = &processedBy
			current.Notes = strings.TrimSpace(s.sanitizer.Sanitize(req.Notes))
			current.ActiveKey = nil
			if err := tx.Removals().Save(ctx, &current); err != nil {
				return storeError(err, "removal request")
			}
			if outcome == models.RemovalApproved {
				if err := applyRemoval(ctx, tx, current, now); err != nil {
					return err
				}
			}
			request = current
			return nil
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "removal processing failed")
		return dto.RemovalResponse{}, err
	}

	observability.RemovalRequests().WithLabelValues(string(request.EntityType), string(request.Status)).Inc()
	s.logger.Info().
		Uint("removal_id", request.ID).
		Str("entity_type", string(request.EntityType)).
		Uint("entity_id", request.EntityID).
		Str("status", string(request.Status)).
		Uint("processed_by", actor.ID).
		Msg("removal processed")
	s.recordAudit(ctx, actor, ActionRemovalProcessed, request)
	if request.Status == models.RemovalApproved && request.EntityType == models.EntityLearner && s.leaderboard != nil && request.InstituteID != nil {
		s.leaderboard.Invalidate(ctx, *request.InstituteID)
	}
	return dto.NewRemovalResponse(request), nil
}

func (s *removalService) List(ctx context.Context, actor ActivityActor, req dto.RemovalListRequest) (dto.RemovalListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RemovalListResponse{}, validationFailed(err)
	}
	if actor.Role != models.RoleModerator {
		return dto.RemovalListResponse{}, fmt.Errorf("%w: only moderators review removals", ErrForbidden)
	}

	status := models.RemovalStatus(req.Status)
	if status == "" {
		status = models.RemovalPending
	}
	requests, total, err := s.store.Removals().List(ctx, repository.RemovalFilter{Page: req.Page, PageSize: req.PageSize, Status: status})
	if err != nil {
		return dto.RemovalListResponse{}, err
	}
	items := make([]dto.RemovalResponse, 0, len(requests))
	for _, request := range requests {
		items = append(items, dto.NewRemovalResponse(request))
	}
	return dto.RemovalListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

// applyRemoval runs inside the processing transaction.
func applyRemoval(ctx context.Context, tx repository.Store, request models.RemovalRequest, now time.Time) error {
	active, found, err := tx.Approvals().FindActive(ctx, request.EntityType, request.EntityID)
	if err != nil {
		return err
	}
	if found {
		active.ActiveKey = nil
		if err := tx.Approvals().Save(ctx, &active); err != nil {
			return storeError(err, "approval record")
		}
	}

	closing := models.ApprovalRecord{
		EntityType:  request.EntityType,
		EntityID:    request.EntityID,
		Status:      models.ApprovalRejected,
		InstituteID: request.InstituteID,
		RequestedAt: now,
		DecidedAt:   &now,
		DecidedBy:   request.ProcessedBy,
		Notes:       "removed: " + request.Reason,
	}
	if err := tx.Approvals().Create(ctx, &closing); err != nil {
		return storeError(err, "approval record")
	}

	if request.EntityType == models.EntityLearner {
		return tx.Leaderboard().Remove(ctx, request.EntityID)
	}
	return nil
}

// managerOwns checks that instituteID is the institute managed by managerID.
func managerOwns(ctx context.Context, tx repository.Store, managerID uint, instituteID *uint) error {
	institute, err := tx.Institutes().FindByManager(ctx, managerID)
	if err != nil {
		if errors.Is(storeError(err, "institute"), ErrNotFound) {
			return fmt.Errorf("%w: manager has no institute", ErrForbidden)
		}
		return err
	}
	if instituteID == nil || *instituteID != institute.ID {
		return fmt.Errorf("%w: entity belongs to another institute", ErrForbidden)
	}
	return nil
}

func (s *removalService) recordAudit(ctx context.Context, actor ActivityActor, action string, request models.RemovalRequest) {
	if s.audit == nil {
		return
	}
	entityID := request.EntityID
	_, err := s.audit.Record(ctx, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: string(request.EntityType),
		EntityID:   &entityID,
		Metadata: map[string]interface{}{
			"removal_id": request.ID,
			"status":     string(request.Status),
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("removal_id", request.ID).Msg("failed to audit removal change")
	}
}

func (s *removalService) notifyModerators(ctx context.Context, actor ActivityActor, request models.RemovalRequest) {
	if s.notifier == nil {
		return
	}
	moderators, err := s.store.Accounts().IDsByRole(ctx, models.RoleModerator)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load moderators for removal notice")
		return
	}
	recipients := make([]uint, 0, len(moderators))
	for _, id := range moderators {
		if id != actor.ID {
			recipients = append(recipients, id)
		}
	}
	if len(recipients) == 0 {
		return
	}
	notice := StaffNotice{
		Recipients: recipients,
		Kind:       models.NotificationRemovalRequest,
		Message:    fmt.Sprintf("Removal requested for %s #%d", request.EntityType, request.EntityID),
	}
	if err := s.notifier.NotifyStaff(ctx, notice); err != nil {
		s.logger.Warn().Err(err).Msg("removal notice not delivered")
	}
}
