package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// CrisisHandler exposes crisis evaluation and the staff alert list.
type CrisisHandler struct {
	service service.CrisisService
	logger  zerolog.Logger
}

// NewCrisisHandler constructs a crisis handler.
func NewCrisisHandler(service service.CrisisService, logger zerolog.Logger) *CrisisHandler {
	return &CrisisHandler{
		service: service,
		logger:  logger.With().Str("component", "crisis_handler").Logger(),
	}
}

// Evaluate handles POST /crisis/evaluate.
func (h *CrisisHandler) Evaluate(c *fiber.Ctx) error {
	var payload dto.CrisisEvaluateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Evaluate(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to evaluate text")
	}
	return utils.SendSuccess(c, "text evaluated", response)
}

// Alerts handles GET /crisis/alerts.
func (h *CrisisHandler) Alerts(c *fiber.Ctx) error {
	var query dto.CrisisAlertListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.ListAlerts(requestContext(c), activityActorFromContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list crisis alerts")
	}
	return utils.SendSuccess(c, "crisis alerts", response)
}
