package service

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/internal/risk"
	"github.com/noah-isme/mindcare-api/internal/wellness"
)

// CredentialDocuments are the identity and license files attached to an application.
type CredentialDocuments struct {
	ID      *multipart.FileHeader
	License *multipart.FileHeader
}

// RegistrationService creates accounts together with their gating approval records.
type RegistrationService interface {
	RegisterLearner(ctx context.Context, req dto.LearnerRegistrationRequest) (dto.RegistrationResponse, error)
	RegisterInstitute(ctx context.Context, req dto.InstituteRegistrationRequest, docs CredentialDocuments) (dto.RegistrationResponse, error)
	RegisterClinician(ctx context.Context, req dto.ClinicianRegistrationRequest, docs CredentialDocuments) (dto.RegistrationResponse, error)
}

type registrationService struct {
	store     repository.Store
	risk      RiskService
	documents DocumentService
	notifier  StaffNotifier
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	clock     func() time.Time
}

// NewRegistrationService constructs the registration flows. A nil notifier skips staff notices.
func NewRegistrationService(store repository.Store, riskService RiskService, documents DocumentService, notifier StaffNotifier, validate *validator.Validate, logger zerolog.Logger) RegistrationService {
	return &registrationService{
		store:     store,
		risk:      riskService,
		documents: documents,
		notifier:  notifier,
		validator: validate,
		logger:    logger.With().Str("component", "registration_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/registration"),
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// RegisterLearner admits a learner into an approved institute. The risk assessment
// decides between immediate approval and a suspicious record awaiting review.
func (s *registrationService) RegisterLearner(ctx context.Context, req dto.LearnerRegistrationRequest) (dto.RegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RegistrationResponse{}, validationFailed(err)
	}

	ctx, span := s.tracer.Start(ctx, "registration.learner")
	defer span.End()

	institute, err := eligibleInstitute(ctx, s.store, req.InstituteCode)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}
	account, err := s.newAccount(ctx, req.AccountFields, models.RoleLearner)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}
	account.Age = req.Age
	account.WeightKg = req.WeightKg
	account.HeightCm = req.HeightCm
	account.InstituteID = &institute.ID

	assessment := s.risk.Assess(risk.Registration{
		Username:  account.Username,
		Email:     account.Email,
		FirstName: account.FirstName,
		LastName:  account.LastName,
		Age:       req.Age,
	})
	status := models.ApprovalApproved
	if assessment.Suspect {
		status = models.ApprovalSuspicious
	}
	span.SetAttributes(attribute.Bool("risk.suspect", assessment.Suspect), attribute.String("risk.source", string(assessment.Source)))

	var (
		record     models.ApprovalRecord
		riskRecord models.RiskAssessment
		activities []models.ActivityRecommendation
	)
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, &account); err != nil {
			return storeError(err, "username")
		}
		riskRecord = riskAssessmentModel(account.ID, assessment)
		if err := tx.RiskAssessments().Create(ctx, &riskRecord); err != nil {
			return err
		}
		activities = activityPlan(account)
		if err := tx.ActivityPlans().CreateBatch(ctx, activities); err != nil {
			return err
		}
		record, err = openApproval(ctx, tx, models.EntityLearner, account.ID, status, &institute.ID, s.clock())
		if err != nil {
			return err
		}
		if status == models.ApprovalApproved {
			return seedLeaderboard(ctx, tx, account)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "learner registration failed")
		return dto.RegistrationResponse{}, err
	}

	observability.ApprovalDecisions().WithLabelValues(string(models.EntityLearner), string(record.Status)).Inc()
	s.logger.Info().
		Uint("account_id", account.ID).
		Uint("institute_id", institute.ID).
		Str("email", maskEmailAddress(account.Email)).
		Str("status", string(record.Status)).
		Float64("risk_score", assessment.Score).
		Msg("learner registered")

	if assessment.Suspect {
		s.notify(ctx, []uint{institute.ManagerAccountID}, fmt.Sprintf("Learner %s needs review: registration flagged as suspicious", account.Username))
	}

	riskResponse := dto.NewRiskAssessmentResponse(riskRecord)
	return dto.RegistrationResponse{
		Account:        dto.NewAccountResponse(account),
		ApprovalStatus: record.Status,
		ApprovalID:     record.ID,
		Risk:           &riskResponse,
		Activities:     dto.NewActivityRecommendationResponses(activities),
	}, nil
}

// activityPlan turns the learner profile into unsaved activity rows.
func activityPlan(account models.Account) []models.ActivityRecommendation {
	planned := wellness.Plan(wellness.Profile{Age: account.Age, WeightKg: account.WeightKg, HeightCm: account.HeightCm})
	rows := make([]models.ActivityRecommendation, 0, len(planned))
	for _, activity := range planned {
		rows = append(rows, models.ActivityRecommendation{
			AccountID:       account.ID,
			ActivityType:    activity.Type,
			Title:           activity.Title,
			Description:     activity.Description,
			DurationMinutes: activity.DurationMinutes,
			Difficulty:      activity.Difficulty,
		})
	}
	return rows
}

// RegisterInstitute creates the manager account and the institute, pending moderator approval.
func (s *registrationService) RegisterInstitute(ctx context.Context, req dto.InstituteRegistrationRequest, docs CredentialDocuments) (dto.RegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RegistrationResponse{}, validationFailed(err)
	}

	ctx, span := s.tracer.Start(ctx, "registration.institute")
	defer span.End()

	code := strings.TrimSpace(req.RegistrationCode)
	if _, err := s.store.Institutes().FindByCode(ctx, code); err == nil {
		return dto.RegistrationResponse{}, fmt.Errorf("%w: registration code already in use", ErrConflict)
	} else if !errors.Is(storeError(err, "institute"), ErrNotFound) {
		return dto.RegistrationResponse{}, err
	}

	account, err := s.newAccount(ctx, req.AccountFields, models.RoleInstituteManager)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}
	idDocument, licenseDocument, err := s.storeCredentials(ctx, "institute", docs)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}

	var record models.ApprovalRecord
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, &account); err != nil {
			return storeError(err, "username")
		}
		institute := models.Institute{
			Name:               strings.TrimSpace(req.InstituteName),
			ManagerAccountID:   account.ID,
			Address:            strings.TrimSpace(req.Address),
			RegistrationCode:   code,
			ContactEmail:       strings.ToLower(strings.TrimSpace(req.ContactEmail)),
			ContactPhone:       strings.TrimSpace(req.ContactPhone),
			IDDocumentURL:      idDocument.URL,
			LicenseDocumentURL: licenseDocument.URL,
			ExtractedText:      joinExtracted(idDocument, licenseDocument),
		}
		if err := tx.Institutes().Create(ctx, &institute); err != nil {
			return storeError(err, "registration code")
		}
		account.InstituteID = &institute.ID
		if err := tx.Accounts().Save(ctx, &account); err != nil {
			return err
		}
		record, err = openApproval(ctx, tx, models.EntityInstitute, institute.ID, models.ApprovalPending, nil, s.clock())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "institute registration failed")
		return dto.RegistrationResponse{}, err
	}

	observability.ApprovalDecisions().WithLabelValues(string(models.EntityInstitute), string(record.Status)).Inc()
	s.logger.Info().Uint("account_id", account.ID).Uint("approval_id", record.ID).Msg("institute registered")

	return dto.RegistrationResponse{
		Account:        dto.NewAccountResponse(account),
		ApprovalStatus: record.Status,
		ApprovalID:     record.ID,
	}, nil
}

// RegisterClinician files a clinician application with an approved institute.
func (s *registrationService) RegisterClinician(ctx context.Context, req dto.ClinicianRegistrationRequest, docs CredentialDocuments) (dto.RegistrationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RegistrationResponse{}, validationFailed(err)
	}

	ctx, span := s.tracer.Start(ctx, "registration.clinician")
	defer span.End()

	institute, err := eligibleInstitute(ctx, s.store, req.InstituteCode)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}
	account, err := s.newAccount(ctx, req.AccountFields, models.RoleClinician)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}
	account.InstituteID = &institute.ID

	idDocument, licenseDocument, err := s.storeCredentials(ctx, "clinician", docs)
	if err != nil {
		return dto.RegistrationResponse{}, err
	}

	var record models.ApprovalRecord
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.Accounts().Create(ctx, &account); err != nil {
			return storeError(err, "username")
		}
		clinician := models.Clinician{
			AccountID:          account.ID,
			InstituteID:        institute.ID,
			LicenseNumber:      strings.TrimSpace(req.LicenseNumber),
			Specialization:     strings.TrimSpace(req.Specialization),
			ExperienceYears:    req.ExperienceYears,
			Qualification:      strings.TrimSpace(req.Qualification),
			IDDocumentURL:      idDocument.URL,
			LicenseDocumentURL: licenseDocument.URL,
			ExtractedText:      joinExtracted(idDocument, licenseDocument),
		}
		if err := tx.Clinicians().Create(ctx, &clinician); err != nil {
			return storeError(err, "clinician")
		}
		record, err = openApproval(ctx, tx, models.EntityClinician, clinician.ID, models.ApprovalPending, &institute.ID, s.clock())
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clinician registration failed")
		return dto.RegistrationResponse{}, err
	}

	observability.ApprovalDecisions().WithLabelValues(string(models.EntityClinician), string(record.Status)).Inc()
	s.logger.Info().Uint("account_id", account.ID).Uint("institute_id", institute.ID).Msg("clinician application filed")
	s.notify(ctx, []uint{institute.ManagerAccountID}, fmt.Sprintf("Clinician %s applied to join %s", account.Username, institute.Name))

	return dto.RegistrationResponse{
		Account:        dto.NewAccountResponse(account),
		ApprovalStatus: record.Status,
		ApprovalID:     record.ID,
	}, nil
}

func (s *registrationService) newAccount(ctx context.Context, fields dto.AccountFields, role models.Role) (models.Account, error) {
	username := strings.TrimSpace(fields.Username)
	taken, err := s.store.Accounts().UsernameTaken(ctx, username)
	if err != nil {
		return models.Account{}, err
	}
	if taken {
		return models.Account{}, fmt.Errorf("%w: username already taken", ErrConflict)
	}

	hash, err := HashPassword(fields.Password)
	if err != nil {
		return models.Account{}, err
	}
	return models.Account{
		Username:     username,
		Email:        strings.ToLower(strings.TrimSpace(fields.Email)),
		FirstName:    strings.TrimSpace(fields.FirstName),
		LastName:     strings.TrimSpace(fields.LastName),
		Phone:        strings.TrimSpace(fields.Phone),
		PasswordHash: hash,
		Role:         role,
	}, nil
}

func (s *registrationService) storeCredentials(ctx context.Context, owner string, docs CredentialDocuments) (StoredDocument, StoredDocument, error) {
	if s.documents == nil {
		return StoredDocument{}, StoredDocument{}, fmt.Errorf("%w: document storage is not configured", ErrExternalService)
	}
	idDocument, err := s.documents.Store(ctx, owner+"-id", docs.ID)
	if err != nil {
		return StoredDocument{}, StoredDocument{}, err
	}
	licenseDocument, err := s.documents.Store(ctx, owner+"-license", docs.License)
	if err != nil {
		return StoredDocument{}, StoredDocument{}, err
	}
	return idDocument, licenseDocument, nil
}

func (s *registrationService) notify(ctx context.Context, recipients []uint, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyStaff(ctx, StaffNotice{Recipients: recipients, Kind: models.NotificationApprovalRequest, Message: message}); err != nil {
		s.logger.Warn().Err(err).Msg("approval notice not delivered")
	}
}

func joinExtracted(documents ...StoredDocument) string {
	parts := make([]string, 0, len(documents))
	for _, document := range documents {
		if text := strings.TrimSpace(document.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n\n")
}

func maskEmailAddress(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" {
		return "***"
	}
	local := parts[0]
	if len(local) <= 2 {
		local = local[:1] + "***"
	} else {
		local = local[:1] + "***" + local[len(local)-1:]
	}
	return local + "@" + parts[1]
}
