package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/observability"
	"github.com/noah-isme/mindcare-api/internal/repository"
)

const notificationBufferSize = 16

// StaffNotice is one message addressed to a set of staff accounts.
type StaffNotice struct {
	Recipients []uint
	Kind       string
	Message    string
	AlertID    *uint
}

// StaffNotifier delivers staff notices. Delivery is best-effort for callers.
type StaffNotifier interface {
	NotifyStaff(ctx context.Context, notice StaffNotice) error
}

// NotificationService persists staff notifications and streams them to dashboards via SSE.
type NotificationService interface {
	StaffNotifier
	List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id, recipientID uint) (dto.NotificationResponse, error)
	Subscribe(recipientID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source        string                     `json:"source"`
	Notifications []dto.NotificationResponse `json:"notifications"`
	SentAt        time.Time                  `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. Redis and NATS are optional.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/mindcare-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *notificationService) NotifyStaff(ctx context.Context, notice StaffNotice) error {
	recipients := uniqueRecipients(notice.Recipients)
	if len(recipients) == 0 {
		return nil
	}

	message := strings.TrimSpace(s.sanitizer.Sanitize(notice.Message))
	if message == "" {
		return fmt.Errorf("%w: notification message empty after sanitization", ErrValidation)
	}
	kind := strings.TrimSpace(notice.Kind)
	if kind == "" {
		kind = "generic"
	}

	ctx, span := s.tracer.Start(ctx, "notifications.notify_staff", trace.WithAttributes(
		attribute.String("notification.kind", kind),
		attribute.Int("notification.recipients", len(recipients)),
	))
	defer span.End()

	rows := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		rows = append(rows, models.Notification{RecipientID: recipient, Kind: kind, Message: message, AlertID: notice.AlertID})
	}
	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		span.RecordError(err)
		return err
	}

	responses := dto.NewNotificationResponseSlice(rows)
	for _, response := range responses {
		s.broker.broadcast(response.RecipientID, response)
	}
	if err := s.publish(ctx, responses); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(kind).Add(float64(len(rows)))
	return nil
}

func (s *notificationService) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error) {
	if recipientID == 0 {
		return nil, fmt.Errorf("%w: recipient is required", ErrValidation)
	}

	notifications, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, err
	}
	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, recipientID uint) (dto.NotificationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int("notification.recipient_id", int(recipientID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(ctx, id, recipientID)
	if err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, storeError(err, "notification")
	}
	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(recipientID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(recipientID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(recipientID, channel)
			observability.SSEClientsActive().Dec()
		})
	}
	return channel, cleanup
}

func (s *notificationService) publish(ctx context.Context, notifications []dto.NotificationResponse) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(notificationEvent{
		Source:        s.nodeID,
		Notifications: notifications,
		SentAt:        time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}
	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

// handleEvent relays notifications published by other replicas to local subscribers.
func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}
	if event.Source == s.nodeID {
		return
	}
	for _, notification := range event.Notifications {
		s.broker.broadcast(notification.RecipientID, notification)
	}
}

func uniqueRecipients(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (b *notificationBroker) subscribe(recipientID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[recipientID]; !exists {
		b.subscribers[recipientID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[recipientID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(recipientID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[recipientID]; ok {
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, recipientID)
		}
	}
}

func (b *notificationBroker) broadcast(recipientID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[recipientID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
