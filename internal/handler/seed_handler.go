package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// SeedHeader carries the bootstrap token.
const SeedHeader = "X-Seed-Token"

// SeedHandler exposes tooling endpoints for bootstrapping accounts.
type SeedHandler struct {
	service service.SeedService
	logger  zerolog.Logger
}

// NewSeedHandler constructs a seed handler.
func NewSeedHandler(service service.SeedService, logger zerolog.Logger) *SeedHandler {
	return &SeedHandler{
		service: service,
		logger:  logger.With().Str("component", "seed_handler").Logger(),
	}
}

// Register wires seed routes.
func (h *SeedHandler) Register(router fiber.Router) {
	router.Post("/moderator", h.moderator)
	router.Post("/institute", h.institute)
}

func (h *SeedHandler) moderator(c *fiber.Ctx) error {
	var payload dto.SeedModeratorRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SeedModerator(requestContext(c), c.Get(SeedHeader), payload)
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "moderator seeded", response)
}

func (h *SeedHandler) institute(c *fiber.Ctx) error {
	var payload dto.SeedInstituteRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.SeedInstitute(requestContext(c), c.Get(SeedHeader), payload)
	if err != nil {
		return h.seedError(c, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "institute seeded", response)
}

func (h *SeedHandler) seedError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSeedDisabled):
		return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
	case errors.Is(err, service.ErrSeedUnauthorized):
		return utils.SendError(c, fiber.StatusForbidden, "invalid token")
	default:
		return respondError(c, h.logger, err, "seed operation failed")
	}
}
