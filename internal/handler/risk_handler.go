package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// RiskHandler exposes the registration risk scorer to moderators.
type RiskHandler struct {
	service service.RiskService
	logger  zerolog.Logger
}

// NewRiskHandler constructs a risk handler.
func NewRiskHandler(service service.RiskService, logger zerolog.Logger) *RiskHandler {
	return &RiskHandler{
		service: service,
		logger:  logger.With().Str("component", "risk_handler").Logger(),
	}
}

// Score handles POST /risk/score.
func (h *RiskHandler) Score(c *fiber.Ctx) error {
	var payload dto.RiskScoreRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Score(requestContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to score registration")
	}
	return utils.SendSuccess(c, "risk assessed", response)
}

// Reload handles POST /moderation/risk-model/reload.
func (h *RiskHandler) Reload(c *fiber.Ctx) error {
	response, err := h.service.Reload(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to reload risk model")
	}
	requestLogger(h.logger, c).Info().Bool("classifier_loaded", response.ClassifierLoaded).Uint("moderator_id", userIDFromContext(c)).Msg("risk model reloaded")
	return utils.SendSuccess(c, "risk model reloaded", response)
}
