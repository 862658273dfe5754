package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// GamificationHandler exposes learner check-ins, activities and assessments.
type GamificationHandler struct {
	service service.GamificationService
	logger  zerolog.Logger
	clock   func() time.Time
}

// NewGamificationHandler constructs a gamification handler.
func NewGamificationHandler(service service.GamificationService, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{
		service: service,
		logger:  logger.With().Str("component", "gamification_handler").Logger(),
		clock:   time.Now,
	}
}

// Register wires the learner wellbeing routes.
func (h *GamificationHandler) Register(router fiber.Router) {
	router.Get("/me", h.state)
	router.Post("/checkins", h.checkin)
	router.Get("/activities", h.activities)
	router.Post("/activities/:id/complete", h.completeActivity)
	router.Post("/assessments", h.submitAssessment)
	router.Post("/recommendations/:id/complete", h.completeRecommendation)
}

func (h *GamificationHandler) state(c *fiber.Ctx) error {
	response, err := h.service.State(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load points")
	}
	return utils.SendSuccess(c, "gamification state", response)
}

func (h *GamificationHandler) checkin(c *fiber.Ctx) error {
	var payload dto.CheckinRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.RecordCheckin(requestContext(c), userIDFromContext(c), h.clock().UTC(), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record check-in")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "check-in recorded", response)
}

func (h *GamificationHandler) activities(c *fiber.Ctx) error {
	response, err := h.service.Activities(requestContext(c), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load activities")
	}
	return utils.SendSuccess(c, "activities", response)
}

func (h *GamificationHandler) completeActivity(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid activity id")
	}

	response, err := h.service.CompleteActivity(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to complete activity")
	}
	return utils.SendSuccess(c, "activity completed", response)
}

func (h *GamificationHandler) submitAssessment(c *fiber.Ctx) error {
	var payload dto.AssessmentRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SubmitAssessment(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to submit assessment")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assessment submitted", response)
}

func (h *GamificationHandler) completeRecommendation(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid recommendation id")
	}

	response, err := h.service.CompleteRecommendation(requestContext(c), userIDFromContext(c), id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to complete recommendation")
	}
	return utils.SendSuccess(c, "recommendation completed", response)
}
