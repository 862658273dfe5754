package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// ApprovalHandler serves the review queue.
type ApprovalHandler struct {
	service service.ApprovalService
	logger  zerolog.Logger
}

// NewApprovalHandler constructs an approval handler.
func NewApprovalHandler(service service.ApprovalService, logger zerolog.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		service: service,
		logger:  logger.With().Str("component", "approval_handler").Logger(),
	}
}

// Pending handles GET /approvals/pending.
func (h *ApprovalHandler) Pending(c *fiber.Ctx) error {
	var query dto.ApprovalListRequest
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	response, err := h.service.ListPending(requestContext(c), activityActorFromContext(c), query)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list approvals")
	}
	return utils.SendSuccess(c, "pending approvals", response)
}

// Submit handles POST /approvals.
func (h *ApprovalHandler) Submit(c *fiber.Ctx) error {
	var payload dto.ApprovalSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	switch models.EntityType(payload.EntityType) {
	case models.EntityLearner, models.EntityClinician, models.EntityInstitute:
	default:
		return utils.SendError(c, fiber.StatusBadRequest, "entity_type must be learner, clinician or institute")
	}
	if payload.EntityID == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "entity_id is required")
	}

	record, err := h.service.Submit(requestContext(c), activityActorFromContext(c), models.EntityType(payload.EntityType), payload.EntityID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit approval")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "approval submitted", dto.NewApprovalResponse(record))
}

// Decide handles POST /approvals/:id/decision.
func (h *ApprovalHandler) Decide(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid approval id")
	}

	var payload dto.ApprovalDecisionRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Decide(requestContext(c), activityActorFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to decide approval")
	}
	return utils.SendSuccess(c, "approval decided", dto.NewApprovalResponse(record))
}
