package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/middleware"
	"github.com/noah-isme/mindcare-api/internal/service"
	"github.com/noah-isme/mindcare-api/internal/utils"
)

// ChatbotHandler wires the support chatbot, including the websocket upgrade.
type ChatbotHandler struct {
	service service.ChatbotService
	logger  zerolog.Logger
}

// NewChatbotHandler creates a chatbot handler instance.
func NewChatbotHandler(service service.ChatbotService, logger zerolog.Logger) *ChatbotHandler {
	return &ChatbotHandler{
		service: service,
		logger:  logger.With().Str("component", "chatbot_handler").Logger(),
	}
}

// Register binds chatbot routes under the provided router group.
func (h *ChatbotHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("request_ctx", requestContext(c))
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/ws", websocket.New(h.handleConnection))
	router.Post("/messages", h.reply)
	router.Get("/messages", h.history)
}

func (h *ChatbotHandler) reply(c *fiber.Ctx) error {
	var payload dto.ChatbotMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	response, err := h.service.Reply(requestContext(c), userIDFromContext(c), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to answer message")
	}
	return utils.SendSuccess(c, "chatbot reply", response)
}

func (h *ChatbotHandler) history(c *fiber.Ctx) error {
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid before timestamp")
		}
		before = parsed
	}

	limit, err := parseQueryInt(c, "limit")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid limit")
	}

	messages, err := h.service.History(requestContext(c), userIDFromContext(c), before, limit)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load chat history")
	}
	return utils.SendSuccess(c, "chat history", messages)
}

func (h *ChatbotHandler) handleConnection(conn *websocket.Conn) {
	accountID, _ := conn.Locals(middleware.LocalUserID).(uint)
	if accountID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "user id missing"))
		_ = conn.Close()
		return
	}

	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	correlation := ""
	if value := conn.Locals("correlation_id"); value != nil {
		correlation = fmt.Sprint(value)
	}

	h.logger.Info().Uint("account_id", accountID).Msg("chatbot websocket connected")
	h.service.ServeConnection(conn, service.ChatbotConnectionOptions{
		AccountID:     accountID,
		CorrelationID: correlation,
		Context:       baseCtx,
	})
	h.logger.Info().Uint("account_id", accountID).Msg("chatbot websocket disconnected")
}
