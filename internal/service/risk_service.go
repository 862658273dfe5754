package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/risk"
)

// RiskService scores registrations and manages the shared classifier.
type RiskService interface {
	Assess(registration risk.Registration) risk.Assessment
	Score(ctx context.Context, req dto.RiskScoreRequest) (dto.RiskAssessmentResponse, error)
	Reload(ctx context.Context) (dto.RiskModelReloadResponse, error)
}

type riskService struct {
	handle    *risk.ModelHandle
	scorer    *risk.Scorer
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRiskService wraps the model handle. A nil handle scores with the rules only.
func NewRiskService(handle *risk.ModelHandle, validate *validator.Validate, logger zerolog.Logger) RiskService {
	var source risk.ClassifierSource
	if handle != nil {
		source = handle
	}
	return &riskService{
		handle:    handle,
		scorer:    risk.NewScorer(source),
		validator: validate,
		logger:    logger.With().Str("component", "risk_service").Logger(),
	}
}

func (s *riskService) Assess(registration risk.Registration) risk.Assessment {
	assessment := s.scorer.Score(risk.Extract(registration))
	observability.RiskAssessments().WithLabelValues(string(assessment.Source), strconv.FormatBool(assessment.Suspect)).Inc()
	return assessment
}

func (s *riskService) Score(_ context.Context, req dto.RiskScoreRequest) (dto.RiskAssessmentResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.RiskAssessmentResponse{}, validationFailed(err)
	}
	assessment := s.Assess(risk.Registration{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
	})
	return dto.NewRiskAssessmentResponse(riskAssessmentModel(0, assessment)), nil
}

func (s *riskService) Reload(_ context.Context) (dto.RiskModelReloadResponse, error) {
	if s.handle == nil {
		return dto.RiskModelReloadResponse{}, nil
	}
	if err := s.handle.Reload(); err != nil {
		return dto.RiskModelReloadResponse{ClassifierLoaded: s.handle.Classifier() != nil}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return dto.RiskModelReloadResponse{ClassifierLoaded: s.handle.Classifier() != nil}, nil
}

func riskAssessmentModel(accountID uint, assessment risk.Assessment) models.RiskAssessment {
	return models.RiskAssessment{
		AccountID:             accountID,
		GenericUsername:       assessment.Features.GenericUsername,
		SuspiciousEmailDomain: assessment.Features.SuspiciousEmailDomain,
		NameLength:            assessment.Features.NameLength,
		ImplausibleAge:        assessment.Features.ImplausibleAge,
		Score:                 assessment.Score,
		Suspect:               assessment.Suspect,
		Reasons:               append([]string{}, assessment.Reasons...),
		Source:                string(assessment.Source),
	}
}
