package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/mindcare-api/internal/crisis"
	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

// Alert context labels.
const (
	CrisisContextChatbot = "chatbot"
	CrisisContextCheckin = "checkin"
	CrisisContextManual  = "manual"
)

const (
	cascadeStepRecommendations = "recommendations"
	cascadeStepNotify          = "notify"
	maxContextLength           = 64
)

// CascadeConfig bounds the follow-up steps of the alert cascade.
type CascadeConfig struct {
	FollowUpTimeout time.Duration
	MaxRetries      uint64
	InitialBackoff  time.Duration
}

// CascadeInput is a detected crisis to escalate.
type CascadeInput struct {
	AccountID  uint
	Assessment crisis.Assessment
	Context    string
	RawText    string
}

// CascadeResult is the persisted alert and the recommendations created for it.
type CascadeResult struct {
	Alert           models.CrisisAlert
	Recommendations []models.InstantRecommendation
}

// CrisisService escalates detected crisis signals.
type CrisisService interface {
	Cascade(ctx context.Context, in CascadeInput) (CascadeResult, error)
	Evaluate(ctx context.Context, accountID uint, req dto.CrisisEvaluateRequest) (dto.CrisisEvaluationResponse, error)
	ListAlerts(ctx context.Context, viewer ActivityActor, req dto.CrisisAlertListRequest) (dto.CrisisAlertListResponse, error)
}

type crisisService struct {
	store     repository.Store
	notifier  StaffNotifier
	cfg       CascadeConfig
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCrisisService constructs the alert cascade. A nil notifier skips staff delivery.
func NewCrisisService(store repository.Store, notifier StaffNotifier, cfg CascadeConfig, validate *validator.Validate, logger zerolog.Logger) CrisisService {
	if cfg.FollowUpTimeout <= 0 {
		cfg.FollowUpTimeout = 10 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 100 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &crisisService{
		store:     store,
		notifier:  notifier,
		cfg:       cfg,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "crisis_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/crisis"),
	}
}

// Cascade persists the alert, then creates recommendations and notifies staff concurrently.
// Only a failure to persist the alert is returned.
func (s *crisisService) Cascade(ctx context.Context, in CascadeInput) (CascadeResult, error) {
	if !in.Assessment.Detected() {
		return CascadeResult{}, fmt.Errorf("%w: no crisis signal to escalate", ErrValidation)
	}
	if !in.Assessment.Severity.Valid() {
		return CascadeResult{}, fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Assessment.Severity)
	}

	ctx, span := s.tracer.Start(ctx, "crisis.cascade", trace.WithAttributes(
		attribute.String("crisis.severity", string(in.Assessment.Severity)),
		attribute.Int("crisis.account_id", int(in.AccountID)),
	))
	defer span.End()

	alert := models.CrisisAlert{
		AccountID:    in.AccountID,
		MatchedTerms: append([]string(nil), in.Assessment.MatchedTerms...),
		Severity:     in.Assessment.Severity,
		Context:      s.contextLabel(in.Context),
		RawText:      strings.TrimSpace(in.RawText),
	}
	if err := s.store.Alerts().Create(ctx, &alert); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert not persisted")
		return CascadeResult{}, storeError(err, "crisis alert")
	}
	observability.CrisisAlerts().WithLabelValues(string(alert.Severity), alert.Context).Inc()

	log := s.logger.With().Uint("alert_id", alert.ID).Uint("account_id", alert.AccountID).Str("severity", string(alert.Severity)).Logger()
	log.Warn().Strs("matched_terms", alert.MatchedTerms).Str("context", alert.Context).Msg("crisis alert raised")

	followCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FollowUpTimeout)
	defer cancel()

	var (
		group           errgroup.Group
		recommendations []models.InstantRecommendation
		flags           notifiedFlags
		flagsSet        bool
	)

	group.Go(func() error {
		err := s.retry(followCtx, cascadeStepRecommendations, func() error {
			created, err := s.ensureRecommendations(followCtx, alert)
			if err != nil {
				return err
			}
			recommendations = created
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("instant recommendations not created")
		}
		return nil
	})

	group.Go(func() error {
		err := s.retry(followCtx, cascadeStepNotify, func() error {
			result, err := s.markNotified(followCtx, alert)
			if err != nil {
				return err
			}
			flags, flagsSet = result, true
			return nil
		})
		if err != nil {
			log.Error().Err(err).Msg("alert notification flags not updated")
			return nil
		}
		s.notifyStaff(followCtx, log, alert, flags)
		return nil
	})

	_ = group.Wait()

	if flagsSet {
		alert.ClinicianNotified = flags.clinician
		alert.InstituteNotified = flags.institute
	}
	return CascadeResult{Alert: alert, Recommendations: recommendations}, nil
}

// ensureRecommendations creates the severity's activity pair unless the alert already has one.
func (s *crisisService) ensureRecommendations(ctx context.Context, alert models.CrisisAlert) ([]models.InstantRecommendation, error) {
	count, err := s.store.Recommendations().CountByAlert(ctx, alert.ID)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return s.store.Recommendations().ListByAlert(ctx, alert.ID)
	}

	activities := crisis.Recommendations(alert.Severity)
	if len(activities) == 0 {
		return nil, backoff.Permanent(fmt.Errorf("no recommendations for severity %q", alert.Severity))
	}

	rows := make([]models.InstantRecommendation, 0, len(activities))
	for _, activity := range activities {
		rows = append(rows, models.InstantRecommendation{
			AccountID:     alert.AccountID,
			AlertID:       alert.ID,
			ActivityType:  activity.Type,
			Title:         activity.Title,
			ReferenceLink: activity.ReferenceLink,
			BonusPoints:   activity.BonusPoints,
		})
	}
	if err := s.store.Recommendations().CreateBatch(ctx, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

type notifiedFlags struct {
	clinician    bool
	institute    bool
	recipients   []uint
	instituteRef *uint
}

func (s *crisisService) markNotified(ctx context.Context, alert models.CrisisAlert) (notifiedFlags, error) {
	account, err := s.store.Accounts().FindByID(ctx, alert.AccountID)
	if err != nil {
		err = storeError(err, "account")
		if errors.Is(err, ErrNotFound) {
			return notifiedFlags{}, backoff.Permanent(err)
		}
		return notifiedFlags{}, err
	}

	flags := notifiedFlags{institute: account.InstituteID != nil, instituteRef: account.InstituteID}
	if account.InstituteID != nil {
		clinicians, err := s.store.Clinicians().ListApprovedByInstitute(ctx, *account.InstituteID)
		if err != nil {
			return notifiedFlags{}, err
		}
		flags.clinician = len(clinicians) > 0
		for _, clinician := range clinicians {
			flags.recipients = append(flags.recipients, clinician.AccountID)
		}

		institute, err := s.store.Institutes().FindByID(ctx, *account.InstituteID)
		if err == nil {
			flags.recipients = append(flags.recipients, institute.ManagerAccountID)
		} else if !errors.Is(storeError(err, "institute"), ErrNotFound) {
			return notifiedFlags{}, err
		}
	}

	if err := s.store.Alerts().MarkNotified(ctx, alert.ID, flags.clinician, flags.institute); err != nil {
		return notifiedFlags{}, err
	}
	return flags, nil
}

func (s *crisisService) notifyStaff(ctx context.Context, log zerolog.Logger, alert models.CrisisAlert, flags notifiedFlags) {
	if s.notifier == nil || len(flags.recipients) == 0 {
		return
	}
	alertID := alert.ID
	err := s.notifier.NotifyStaff(ctx, StaffNotice{
		Recipients: flags.recipients,
		Kind:       models.NotificationCrisisAlert,
		Message:    fmt.Sprintf("%s crisis alert for learner #%d (%s)", strings.ToUpper(string(alert.Severity)), alert.AccountID, alert.Context),
		AlertID:    &alertID,
	})
	if err != nil {
		observability.CascadeFailures().WithLabelValues("deliver").Inc()
		log.Warn().Err(err).Msg("staff notification delivery failed")
	}
}

func (s *crisisService) retry(ctx context.Context, step string, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.cfg.InitialBackoff
	policy.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, s.cfg.MaxRetries), ctx))
	if err != nil {
		observability.CascadeFailures().WithLabelValues(step).Inc()
	}
	return err
}

func (s *crisisService) contextLabel(label string) string {
	clean := strings.ToLower(strings.TrimSpace(s.sanitizer.Sanitize(label)))
	if clean == "" {
		return CrisisContextManual
	}
	for utf8.RuneCountInString(clean) > maxContextLength {
		_, size := utf8.DecodeLastRuneInString(clean)
		clean = clean[:len(clean)-size]
	}
	return clean
}

func (s *crisisService) Evaluate(ctx context.Context, accountID uint, req dto.CrisisEvaluateRequest) (dto.CrisisEvaluationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CrisisEvaluationResponse{}, validationFailed(err)
	}

	assessment := crisis.Evaluate(req.Text)
	if !assessment.Detected() {
		return newEvaluationResponse(assessment, nil), nil
	}

	label := req.Context
	if strings.TrimSpace(label) == "" {
		label = CrisisContextManual
	}
	result, err := s.Cascade(ctx, CascadeInput{AccountID: accountID, Assessment: assessment, Context: label, RawText: req.Text})
	if err != nil {
		return dto.CrisisEvaluationResponse{}, err
	}
	return newEvaluationResponse(assessment, &result), nil
}

func (s *crisisService) ListAlerts(ctx context.Context, viewer ActivityActor, req dto.CrisisAlertListRequest) (dto.CrisisAlertListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CrisisAlertListResponse{}, validationFailed(err)
	}

	filter := repository.CrisisAlertFilter{Page: req.Page, PageSize: req.PageSize, Severity: models.Severity(req.Severity)}
	switch viewer.Role {
	case models.RoleModerator:
	case models.RoleInstituteManager:
		institute, err := s.store.Institutes().FindByManager(ctx, viewer.ID)
		if err != nil {
			return dto.CrisisAlertListResponse{}, storeError(err, "institute")
		}
		filter.InstituteID = &institute.ID
	case models.RoleClinician:
		clinician, err := s.store.Clinicians().FindByAccount(ctx, viewer.ID)
		if err != nil {
			return dto.CrisisAlertListResponse{}, storeError(err, "clinician")
		}
		filter.InstituteID = &clinician.InstituteID
	default:
		return dto.CrisisAlertListResponse{}, fmt.Errorf("%w: role %q cannot view crisis alerts", ErrForbidden, viewer.Role)
	}

	alerts, total, err := s.store.Alerts().List(ctx, filter)
	if err != nil {
		return dto.CrisisAlertListResponse{}, err
	}

	items := make([]dto.CrisisAlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		items = append(items, dto.NewCrisisAlertResponse(alert))
	}
	return dto.CrisisAlertListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func newEvaluationResponse(assessment crisis.Assessment, result *CascadeResult) dto.CrisisEvaluationResponse {
	response := dto.CrisisEvaluationResponse{
		Detected:        assessment.Detected(),
		Severity:        assessment.Severity,
		MatchedTerms:    assessment.MatchedTerms,
		Recommendations: []dto.RecommendationResponse{},
	}
	if response.MatchedTerms == nil {
		response.MatchedTerms = []string{}
	}
	if result != nil {
		alert := dto.NewCrisisAlertResponse(result.Alert)
		response.Alert = &alert
		response.Recommendations = dto.NewRecommendationResponses(result.Recommendations)
	}
	return response
}
