package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// ConsultationHandler serves consultation requests and the clinician queue.
type ConsultationHandler struct {
	service service.ConsultationService
	logger  zerolog.Logger
}

// NewConsultationHandler constructs a consultation handler.
func NewConsultationHandler(service service.ConsultationService, logger zerolog.Logger) *ConsultationHandler {
	return &ConsultationHandler{
		service: service,
		logger:  logger.With().Str("component", "consultation_handler").Logger(),
	}
}

// Request handles POST /consultations.
func (h *ConsultationHandler) Request(c *fiber.Ctx) error {
	var payload dto.ConsultationRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Request(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to request consultation")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "consultation requested", response)
}

// List handles GET /consultations.
func (h *ConsultationHandler) List(c *fiber.Ctx) error {
	response, err := h.service.List(requestContext(c), activityActorFromContext(c), c.Query("status"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to list consultations")
	}
	return utils.SendSuccess(c, "consultations", response)
}

// Accept handles POST /consultations/:id/accept.
func (h *ConsultationHandler) Accept(c *fiber.Ctx) error {
	return h.transition(c, h.service.Accept, "consultation accepted")
}

// Decline handles POST /consultations/:id/decline.
func (h *ConsultationHandler) Decline(c *fiber.Ctx) error {
	return h.transition(c, h.service.Decline, "consultation declined")
}

// Complete handles POST /consultations/:id/complete.
func (h *ConsultationHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, h.service.Complete, "consultation completed")
}

type consultationTransition func(ctx context.Context, clinicianAccountID, consultationID uint) (dto.ConsultationResponse, error)

func (h *ConsultationHandler) transition(c *fiber.Ctx, apply consultationTransition, message string) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	response, err := apply(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update consultation")
	}
	return utils.SendSuccess(c, message, response)
}

// SendMessage handles POST /consultations/:id/messages.
func (h *ConsultationHandler) SendMessage(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}

	var payload dto.ConsultationMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SendMessage(requestContext(c), userIDFromContext(c), id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to send consultation message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", response)
}

// Messages handles GET /consultations/:id/messages?after=<id>.
func (h *ConsultationHandler) Messages(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid consultation id")
	}
	after, err := parseQueryInt(c, "after")
	if err != nil || after < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid after cursor")
	}

	response, err := h.service.Messages(requestContext(c), userIDFromContext(c), id, uint(after))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load consultation messages")
	}
	return utils.SendSuccess(c, "consultation messages", response)
}
