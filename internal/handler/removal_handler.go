package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// RemovalHandler serves removal requests.
type RemovalHandler struct {
	service service.RemovalService
	logger  zerolog.Logger
}

// NewRemovalHandler constructs a removal handler.
func NewRemovalHandler(service service.RemovalService, logger zerolog.Logger) *RemovalHandler {
	return &RemovalHandler{
		service: service,
		logger:  logger.With().Str("component", "removal_handler").Logger(),
	}
}

// Create handles POST /removals.
func (h *RemovalHandler) Create(c *fiber.Ctx) error {
	var payload dto.RemovalCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Request(requestContext(c), activityActorFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to request removal")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "removal requested", response)
}

// List handles GET /removals.
func (h *RemovalHandler) List(c *fiber.Ctx) error {
	var query dto.RemovalListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.List(requestContext(c), activityActorFromContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list removal requests")
	}
	return utils.SendSuccess(c, "removal requests", response)
}

// Process handles POST /removals/:id/decision.
func (h *RemovalHandler) Process(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid removal request id")
	}

	var payload dto.RemovalDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Process(requestContext(c), activityActorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to process removal")
	}
	return utils.SendSuccess(c, "removal processed", response)
}
