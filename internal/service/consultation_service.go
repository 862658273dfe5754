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

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/lock"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/pkg/sealbox"
)

const consultationMessagePageSize = 100

// ConsultationService manages learner requests for clinician time.
type ConsultationService interface {
	Request(ctx context.Context, patientID uint, req dto.ConsultationRequest) (dto.ConsultationResponse, error)
	Accept(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error)
	Decline(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error)
	Complete(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error)
	List(ctx context.Context, viewer ActivityActor, status string) ([]dto.ConsultationResponse, error)
	SendMessage(ctx context.Context, senderID, consultationID uint, req dto.ConsultationMessageRequest) (dto.ConsultationMessageResponse, error)
	Messages(ctx context.Context, viewerID, consultationID, afterID uint) ([]dto.ConsultationMessageResponse, error)
}

type consultationService struct {
	store     repository.Store
	locker    lock.Locker
	notifier  StaffNotifier
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	box       *sealbox.Box
	logger    zerolog.Logger
	clock     func() time.Time
}

// NewConsultationService constructs the consultation workflow. box seals chat
// messages at rest; without one the chat endpoints fail.
func NewConsultationService(store repository.Store, locker lock.Locker, notifier StaffNotifier, box *sealbox.Box, validate *validator.Validate, logger zerolog.Logger) ConsultationService {
	return &consultationService{
		store:     store,
		locker:    locker,
		notifier:  notifier,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		box:       box,
		logger:    logger.With().Str("component", "consultation_service").Logger(),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

func consultationLockKey(id uint) string {
	return fmt.Sprintf("consultation:%d", id)
}

func (s *consultationService) Request(ctx context.Context, patientID uint, req dto.ConsultationRequest) (dto.ConsultationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConsultationResponse{}, validationFailed(err)
	}

	patient, err := s.store.Accounts().FindByID(ctx, patientID)
	if err != nil {
		return dto.ConsultationResponse{}, storeError(err, "account")
	}
	if patient.Role != models.RoleLearner || patient.InstituteID == nil {
		return dto.ConsultationResponse{}, fmt.Errorf("%w: only learners of an institute can request consultations", ErrForbidden)
	}

	urgency := req.Urgency
	if urgency == "" {
		urgency = "medium"
	}
	consultation := models.Consultation{
		PatientAccountID: patient.ID,
		InstituteID:      *patient.InstituteID,
		Issue:            strings.TrimSpace(s.sanitizer.Sanitize(req.Issue)),
		Urgency:          urgency,
		Status:           models.ConsultationPending,
		RequestedAt:      s.clock(),
	}
	if err := s.store.Consultations().Create(ctx, &consultation); err != nil {
		return dto.ConsultationResponse{}, err
	}

	s.logger.Info().Uint("consultation_id", consultation.ID).Uint("patient_id", patient.ID).Str("urgency", urgency).Msg("consultation requested")
	s.notifyClinicians(ctx, consultation)
	return dto.NewConsultationResponse(consultation), nil
}

func (s *consultationService) Accept(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error) {
	return s.transition(ctx, clinicianAccountID, consultationID, func(consultation *models.Consultation, now time.Time) error {
		if consultation.Status != models.ConsultationPending {
			return fmt.Errorf("%w: consultation is %s", ErrInvalidTransition, consultation.Status)
		}
		consultation.Status = models.ConsultationAccepted
		consultation.ClinicianAccountID = &clinicianAccountID
		consultation.AcceptedAt = &now
		return nil
	})
}

func (s *consultationService) Decline(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error) {
	return s.transition(ctx, clinicianAccountID, consultationID, func(consultation *models.Consultation, _ time.Time) error {
		if consultation.Status != models.ConsultationPending {
			return fmt.Errorf("%w: consultation is %s", ErrInvalidTransition, consultation.Status)
		}
		consultation.Status = models.ConsultationDeclined
		consultation.ClinicianAccountID = &clinicianAccountID
		return nil
	})
}

func (s *consultationService) Complete(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error) {
	return s.transition(ctx, clinicianAccountID, consultationID, func(consultation *models.Consultation, now time.Time) error {
		if consultation.Status != models.ConsultationAccepted {
			return fmt.Errorf("%w: consultation is %s", ErrInvalidTransition, consultation.Status)
		}
		if consultation.ClinicianAccountID == nil || *consultation.ClinicianAccountID != clinicianAccountID {
			return fmt.Errorf("%w: consultation belongs to another clinician", ErrForbidden)
		}
		consultation.Status = models.ConsultationCompleted
		consultation.CompletedAt = &now
		return nil
	})
}

func (s *consultationService) transition(ctx context.Context, clinicianAccountID, consultationID uint, apply func(*models.Consultation, time.Time) error) (dto.ConsultationResponse, error) {
	var consultation models.Consultation
	err := lock.With(ctx, s.locker, consultationLockKey(consultationID), func() error {
		return s.store.Transaction(ctx, func(tx repository.Store) error {
			current, err := tx.Consultations().FindByID(ctx, consultationID)
			if err != nil {
				return storeError(err, "consultation")
			}
			instituteID, err := approvedClinicianInstitute(ctx, tx, clinicianAccountID)
			if err != nil {
				return err
			}
			if instituteID != current.InstituteID {
				return fmt.Errorf("%w: consultation belongs to another institute", ErrForbidden)
			}
			if err := apply(&current, s.clock()); err != nil {
				return err
			}
			if err := tx.Consultations().Save(ctx, &current); err != nil {
				return err
			}
			consultation = current
			return nil
		})
	})
	if err != nil {
		return dto.ConsultationResponse{}, err
	}

	s.logger.Info().Uint("consultation_id", consultation.ID).Str("status", string(consultation.Status)).Uint("clinician_id", clinicianAccountID).Msg("consultation updated")
	return dto.NewConsultationResponse(consultation), nil
}

func (s *consultationService) List(ctx context.Context, viewer ActivityActor, status string) ([]dto.ConsultationResponse, error) {
	filter := repository.ConsultationFilter{Status: models.ConsultationStatus(strings.TrimSpace(status))}
	switch viewer.Role {
	case models.RoleLearner:
		filter.PatientID = &viewer.ID
	case models.RoleClinician:
		instituteID, err := approvedClinicianInstitute(ctx, s.store, viewer.ID)
		if err != nil {
			return nil, err
		}
		filter.InstituteID = &instituteID
	case models.RoleInstituteManager:
		institute, err := s.store.Institutes().FindByManager(ctx, viewer.ID)
		if err != nil {
			return nil, storeError(err, "institute")
		}
		filter.InstituteID = &institute.ID
	default:
		return nil, fmt.Errorf("%w: role %q cannot list consultations", ErrForbidden, viewer.Role)
	}

	consultations, err := s.store.Consultations().List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewConsultationResponses(consultations), nil
}

// SendMessage appends a chat turn to an accepted consultation. Only the patient
// and the assigned clinician take part.
func (s *consultationService) SendMessage(ctx context.Context, senderID, consultationID uint, req dto.ConsultationMessageRequest) (dto.ConsultationMessageResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ConsultationMessageResponse{}, validationFailed(err)
	}
	if s.box == nil {
		return dto.ConsultationMessageResponse{}, fmt.Errorf("%w: consultation chat is not configured", ErrExternalService)
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return dto.ConsultationMessageResponse{}, fmt.Errorf("%w: content is empty", ErrValidation)
	}

	var (
		consultation models.Consultation
		message      models.ConsultationMessage
	)
	err := lock.With(ctx, s.locker, consultationLockKey(consultationID), func() error {
		current, err := s.participantConsultation(ctx, senderID, consultationID)
		if err != nil {
			return err
		}
		if current.Status != models.ConsultationAccepted {
			return fmt.Errorf("%w: consultation is %s", ErrInvalidTransition, current.Status)
		}
		sealed, err := s.box.Seal([]byte(content))
		if err != nil {
			return err
		}
		message = models.ConsultationMessage{
			ConsultationID:  current.ID,
			SenderAccountID: senderID,
			Body:            sealed,
			CreatedAt:       s.clock(),
		}
		if err := s.store.ConsultationMessages().Create(ctx, &message); err != nil {
			return err
		}
		consultation = current
		return nil
	})
	if err != nil {
		return dto.ConsultationMessageResponse{}, err
	}

	sender, recipient := "patient", consultation.PatientAccountID
	if senderID != consultation.PatientAccountID {
		sender = "clinician"
	} else {
		recipient = *consultation.ClinicianAccountID
	}
	observability.ConsultationMessages().WithLabelValues(sender).Inc()
	s.logger.Info().Uint("consultation_id", consultation.ID).Uint("message_id", message.ID).Str("sender", sender).Msg("consultation message sent")

	if s.notifier != nil {
		notice := StaffNotice{
			Recipients: []uint{recipient},
			Kind:       models.NotificationConsultation,
			Message:    fmt.Sprintf("New message in consultation #%d", consultation.ID),
		}
		if err := s.notifier.NotifyStaff(ctx, notice); err != nil {
			s.logger.Warn().Err(err).Msg("consultation message notice not delivered")
		}
	}
	return dto.NewConsultationMessageResponse(message, content), nil
}

// Messages returns chat turns after afterID, oldest first. The conversation stays
// readable once the consultation is completed.
func (s *consultationService) Messages(ctx context.Context, viewerID, consultationID, afterID uint) ([]dto.ConsultationMessageResponse, error) {
	if s.box == nil {
		return nil, fmt.Errorf("%w: consultation chat is not configured", ErrExternalService)
	}
	consultation, err := s.participantConsultation(ctx, viewerID, consultationID)
	if err != nil {
		return nil, err
	}
	if consultation.Status != models.ConsultationAccepted && consultation.Status != models.ConsultationCompleted {
		return nil, fmt.Errorf("%w: consultation is %s", ErrInvalidTransition, consultation.Status)
	}

	messages, err := s.store.ConsultationMessages().ListByConsultation(ctx, consultation.ID, afterID, consultationMessagePageSize)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ConsultationMessageResponse, 0, len(messages))
	for _, message := range messages {
		plain, err := s.box.Open(message.Body)
		if err != nil {
			return nil, fmt.Errorf("open consultation message %d: %w", message.ID, err)
		}
		out = append(out, dto.NewConsultationMessageResponse(message, string(plain)))
	}
	return out, nil
}

// participantConsultation loads a consultation that accountID takes part in.
func (s *consultationService) participantConsultation(ctx context.Context, accountID, consultationID uint) (models.Consultation, error) {
	consultation, err := s.store.Consultations().FindByID(ctx, consultationID)
	if err != nil {
		return models.Consultation{}, storeError(err, "consultation")
	}
	if consultation.PatientAccountID == accountID {
		return consultation, nil
	}
	if consultation.ClinicianAccountID != nil && *consultation.ClinicianAccountID == accountID {
		return consultation, nil
	}
	return models.Consultation{}, fmt.Errorf("%w: not a participant of this consultation", ErrForbidden)
}

func (s *consultationService) notifyClinicians(ctx context.Context, consultation models.Consultation) {
	if s.notifier == nil {
		return
	}
	clinicians, err := s.store.Clinicians().ListApprovedByInstitute(ctx, consultation.InstituteID)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load clinicians for consultation notice")
		return
	}
	recipients := make([]uint, 0, len(clinicians))
	for _, clinician := range clinicians {
		recipients = append(recipients, clinician.AccountID)
	}
	notice := StaffNotice{
		Recipients: recipients,
		Kind:       models.NotificationConsultation,
		Message:    fmt.Sprintf("New %s urgency consultation request #%d", consultation.Urgency, consultation.ID),
	}
	if err := s.notifier.NotifyStaff(ctx, notice); err != nil {
		s.logger.Warn().Err(err).Msg("consultation notice not delivered")
	}
}

// approvedClinicianInstitute resolves the institute of an approved clinician account.
func approvedClinicianInstitute(ctx context.Context, store repository.Store, accountID uint) (uint, error) {
	clinician, err := store.Clinicians().FindByAccount(ctx, accountID)
	if err != nil {
		if errors.Is(storeError(err, "clinician"), ErrNotFound) {
			return 0, fmt.Errorf("%w: account is not a clinician", ErrForbidden)
		}
		return 0, err
	}
	record, found, err := store.Approvals().FindLatest(ctx, models.EntityClinician, clinician.ID)
	if err != nil {
		return 0, err
	}
	if !found || record.Status != models.ApprovalApproved {
		return 0, fmt.Errorf("%w: clinician is not approved", ErrForbidden)
	}
	return clinician.InstituteID, nil
}
