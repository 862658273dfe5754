package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/mindcare-api/internal/crisis"
	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/middleware"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/pkg/ai"
)

// Fixed replies used when the text generator cannot answer.
const (
	FallbackListening   = "I am here to listen. Please share what you are feeling."
	FallbackTrouble     = "I am having trouble responding. Please contact your doctor."
	FallbackEmptyAnswer = "I understand. Please talk to a doctor for better support."
)

const (
	chatbotHistoryTurns     = 10
	chatbotRecommendations  = 2
	chatbotSendBufferSize   = 8
	chatbotKeepaliveTimeout = 30 * time.Second
)

// ChatbotConnectionOptions wraps metadata extracted during the websocket upgrade.
type ChatbotConnectionOptions struct {
	AccountID     uint
	CorrelationID string
	Context       context.Context
}

// ChatbotService answers learner messages after screening them for crisis language.
type ChatbotService interface {
	Reply(ctx context.Context, accountID uint, req dto.ChatbotMessageRequest) (dto.ChatbotReplyResponse, error)
	History(ctx context.Context, accountID uint, before time.Time, limit int) ([]dto.ChatMessageResponse, error)
	ServeConnection(conn *websocket.Conn, opts ChatbotConnectionOptions)
}

type chatbotService struct {
	store     repository.Store
	crisis    CrisisService
	replier   ai.Replier
	timeout   time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewChatbotService constructs the chatbot. A nil replier always answers with a fallback.
func NewChatbotService(store repository.Store, crisisService CrisisService, replier ai.Replier, timeout time.Duration, validate *validator.Validate, logger zerolog.Logger) ChatbotService {
	if replier == nil {
		replier = ai.UnavailableReplier{}
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &chatbotService{
		store:     store,
		crisis:    crisisService,
		replier:   replier,
		timeout:   timeout,
		validator: validate,
		logger:    logger.With().Str("component", "chatbot_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/chatbot"),
	}
}

// Reply escalates crisis language before anything else, then asks the text generator.
// Generator errors and timeouts never fail the call; they produce a fixed reply.
func (s *chatbotService) Reply(ctx context.Context, accountID uint, req dto.ChatbotMessageRequest) (dto.ChatbotReplyResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.ChatbotReplyResponse{}, validationFailed(err)
	}

	ctx, span := s.tracer.Start(ctx, "chatbot.reply", trace.WithAttributes(attribute.Int("account.id", int(accountID))))
	defer span.End()

	message := strings.TrimSpace(req.Message)
	response := dto.ChatbotReplyResponse{Recommendations: []dto.RecommendationResponse{}}

	var alertID *uint
	if assessment := crisis.Evaluate(message); assessment.Detected() && s.crisis != nil {
		result, err := s.crisis.Cascade(ctx, CascadeInput{
			AccountID:  accountID,
			Assessment: assessment,
			Context:    CrisisContextChatbot,
			RawText:    message,
		})
		if err != nil {
			span.RecordError(err)
			return dto.ChatbotReplyResponse{}, err
		}
		id := result.Alert.ID
		alertID = &id
		response.Severity = assessment.Severity
		response.AlertID = alertID
		span.SetAttributes(attribute.String("crisis.severity", string(assessment.Severity)))
	}

	history, err := s.store.Chat().History(ctx, accountID, time.Time{}, chatbotHistoryTurns)
	if err != nil {
		s.logger.Warn().Err(err).Uint("account_id", accountID).Msg("failed to load chat history")
		history = nil
	}

	userTurn := models.ChatMessage{
		AccountID: accountID,
		Sender:    models.ChatSenderUser,
		Content:   message,
		AlertID:   alertID,
	}
	if err := s.store.Chat().Save(ctx, &userTurn); err != nil {
		return dto.ChatbotReplyResponse{}, err
	}

	response.Reply, response.Fallback = s.generate(ctx, message, history)
	span.SetAttributes(attribute.Bool("chatbot.fallback", response.Fallback))

	assistantTurn := models.ChatMessage{
		AccountID: accountID,
		Sender:    models.ChatSenderAssistant,
		Content:   response.Reply,
	}
	if err := s.store.Chat().Save(ctx, &assistantTurn); err != nil {
		s.logger.Warn().Err(err).Uint("account_id", accountID).Msg("failed to store assistant reply")
	}

	pending, err := s.store.Recommendations().ListPending(ctx, accountID, chatbotRecommendations)
	if err != nil {
		s.logger.Warn().Err(err).Uint("account_id", accountID).Msg("failed to load pending recommendations")
	} else {
		response.Recommendations = dto.NewRecommendationResponses(pending)
	}

	return response, nil
}

// generate feeds the stored turns to the text generator as written. Escaping
// happens only when history is rendered.
func (s *chatbotService) generate(ctx context.Context, message string, history []models.ChatMessage) (string, bool) {
	turns := make([]ai.Turn, 0, len(history))
	for _, item := range history {
		turns = append(turns, ai.Turn{FromUser: item.Sender == models.ChatSenderUser, Content: item.Content})
	}

	replyCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	reply, err := s.replier.Reply(replyCtx, ai.ReplyInput{Message: message, History: turns})
	observability.ChatbotLatency().Observe(time.Since(start).Seconds())

	reply = strings.TrimSpace(reply)
	if err == nil && reply == "" {
		err = ai.ErrEmptyReply
	}
	if err == nil {
		observability.ChatbotReplies().WithLabelValues("generated").Inc()
		return reply, false
	}

	outcome := "error"
	fallback := FallbackTrouble
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	case errors.Is(err, ai.ErrEmptyReply):
		outcome = "empty"
		fallback = FallbackEmptyAnswer
	case errors.Is(err, ai.ErrProviderStatus), errors.Is(err, ai.ErrUnavailable):
		outcome = "rejected"
		fallback = FallbackListening
	}
	observability.ChatbotReplies().WithLabelValues(outcome).Inc()
	s.logger.Warn().Err(err).Str("outcome", outcome).Msg("chatbot falling back to fixed reply")
	return fallback, true
}

func (s *chatbotService) History(ctx context.Context, accountID uint, before time.Time, limit int) ([]dto.ChatMessageResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	messages, err := s.store.Chat().History(ctx, accountID, before, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewChatMessageResponses(messages), nil
}

type chatbotFrame struct {
	Reply *dto.ChatbotReplyResponse `json:"reply,omitempty"`
	Error string                    `json:"error,omitempty"`
}

type chatbotClient struct {
	conn    *websocket.Conn
	send    chan chatbotFrame
	closed  chan struct{}
	once    sync.Once
	service *chatbotService
	options ChatbotConnectionOptions
}

// ServeConnection answers each JSON message read from the socket until it closes.
func (s *chatbotService) ServeConnection(conn *websocket.Conn, opts ChatbotConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	client := &chatbotClient{
		conn:    conn,
		send:    make(chan chatbotFrame, chatbotSendBufferSize),
		closed:  make(chan struct{}),
		service: s,
		options: opts,
	}

	go client.writer()
	client.reader()
}

func (c *chatbotClient) reader() {
	defer c.close()

	correlation := c.options.CorrelationID
	if correlation == "" {
		correlation = middleware.CorrelationIDFromContext(c.options.Context)
	}
	log := c.service.logger.With().Uint("account_id", c.options.AccountID).Str("correlation_id", correlation).Logger()

	for {
		var payload dto.ChatbotMessageRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			log.Debug().Err(err).Msg("chatbot read loop ended")
			return
		}

		frame := chatbotFrame{}
		reply, err := c.service.Reply(c.options.Context, c.options.AccountID, payload)
		if err != nil {
			log.Warn().Err(err).Msg("failed to answer chatbot message")
			frame.Error = publicMessage(err)
		} else {
			frame.Reply = &reply
		}

		select {
		case <-c.closed:
			return
		case c.send <- frame:
		default:
			log.Warn().Msg("chatbot queue full, dropping reply")
		}
	}
}

func (c *chatbotClient) writer() {
	defer c.close()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame); err != nil {
				c.service.logger.Debug().Err(err).Msg("chatbot write loop terminated")
				return
			}
		case <-time.After(chatbotKeepaliveTimeout):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("chatbot ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *chatbotClient) close() {
	c.once.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

// publicMessage reduces an error to text that is safe to show a learner.
func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "message is invalid"
	default:
		return "message could not be processed"
	}
}
