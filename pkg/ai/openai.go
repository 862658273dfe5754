package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	replyDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mindcare",
		Subsystem: "ai",
		Name:      "reply_duration_seconds",
		Help:      "Duration of AI chat reply requests",
	}, []string{"model"})

	replyFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mindcare",
		Subsystem: "ai",
		Name:      "reply_failures_total",
		Help:      "Number of AI chat reply failures",
	}, []string{"model"})
)

const maxHistoryTurns = 10

// OpenAIConfig defines configuration options for the OpenAI replier.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIReplier implements Replier against the OpenAI chat completion API.
type OpenAIReplier struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIReplier builds a replier using the provided configuration.
func NewOpenAIReplier(cfg OpenAIConfig) (*OpenAIReplier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIReplier{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/mindcare-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_replier").Logger(),
	}, nil
}

// Reply sends the conversation to OpenAI and returns the assistant text.
func (r *OpenAIReplier) Reply(parent context.Context, input ReplyInput) (string, error) {
	ctx, span := r.tracer.Start(parent, "openai.reply", trace.WithAttributes(
		attribute.String("model", r.cfg.Model),
		attribute.Int("history_turns", len(input.History)),
	))
	defer span.End()

	start := time.Now()
	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Messages:    buildMessages(input),
	})
	replyDuration.WithLabelValues(r.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		replyFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: openai reply: %w", ErrProviderStatus, err)
		}
		return "", fmt.Errorf("openai reply: %w", err)
	}

	if len(resp.Choices) == 0 {
		replyFailures.WithLabelValues(r.cfg.Model).Inc()
		span.SetStatus(codes.Error, "no choices")
		return "", ErrEmptyReply
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		replyFailures.WithLabelValues(r.cfg.Model).Inc()
		span.SetStatus(codes.Error, "empty content")
		return "", ErrEmptyReply
	}

	r.logger.Debug().Int("prompt_tokens", resp.Usage.PromptTokens).Int("completion_tokens", resp.Usage.CompletionTokens).Msg("reply generated")
	return content, nil
}

func systemPrompt() string {
	return "You are a compassionate mental health support assistant. Help the user with empathy and care. " +
		"Keep replies short, never diagnose, and encourage reaching out to a clinician when distress is high."
}

func buildMessages(input ReplyInput) []openai.ChatCompletionMessage {
	history := input.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt()})
	for _, turn := range history {
		role := openai.ChatMessageRoleAssistant
		if turn.FromUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: input.Message})
	return messages
}
