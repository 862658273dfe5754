package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// LeaderboardHandler serves institute rankings.
type LeaderboardHandler struct {
	service service.LeaderboardService
	logger  zerolog.Logger
}

// NewLeaderboardHandler constructs a leaderboard handler.
func NewLeaderboardHandler(service service.LeaderboardService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Top handles GET /leaderboard. Moderators pick the institute with institute_id.
func (h *LeaderboardHandler) Top(c *fiber.Ctx) error {
	instituteID, err := parseQueryInt(c, "institute_id")
	if err != nil || instituteID < 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid institute_id")
	}
	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	response, err := h.service.Top(requestContext(c), activityActorFromContext(c), uint(instituteID), limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load leaderboard")
	}
	return utils.SendSuccess(c, "leaderboard", response)
}
