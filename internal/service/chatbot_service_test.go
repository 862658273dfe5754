package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mindcare-api/internal/dto"
	"github.com/noah-isme/mindcare-api/internal/models"
	"github.com/noah-isme/mindcare-api/internal/repository"
	"github.com/noah-isme/mindcare-api/pkg/ai"
)

type blockingReplier struct{}

func (blockingReplier) Reply(ctx context.Context, _ ai.ReplyInput) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type historyCapture struct {
	input ai.ReplyInput
}

func (h *historyCapture) Reply(_ context.Context, in ai.ReplyInput) (string, error) {
	h.input = in
	return "Thanks for sharing.", nil
}

func newChatbot(store repository.Store, replier ai.Replier, timeout time.Duration) ChatbotService {
	crisisService := NewCrisisService(store, nil, fastCascade(), testValidator(), testLogger())
	return NewChatbotService(store, crisisService, replier, timeout, testValidator(), testLogger())
}

func TestChatbotReplyGenerated(t *testing.T) {
	store, db := newTestStore(t)
	learner := createAccount(t, db, "learner", models.RoleLearner, nil)
	svc := newChatbot(store, ai.StaticReplier{Text: "  That sounds like a good day.  "}, time.Second)
	ctx := context.Background()

	response, err := svc.Reply(ctx, learner.ID, dto.ChatbotMessageRequest{Message: "I went for a run"})
	require.NoError(t, err)
	require.False(t, response.Fallback)
	require.Equal(t, "That sounds like a good day.", response.Reply)
	require.Nil(t, response.AlertID)
	require.Empty(t, response.Recommendations)

	history, err := svc.History(ctx, learner.ID, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	senders := []string{history[0].Sender, history[1].Sender}
	require.ElementsMatch(t, []string{models.ChatSenderUser, models.ChatSenderAssistant}, senders)
}

func TestChatbotFallbackStillRaisesAlert(t *testing.T) {
	store, db := newTestStore(t)
	learner := createAccount(t, db, "learner", models.RoleLearner, nil)
	svc := newChatbot(store, ai.StaticReplier{Err: fmt.Errorf("%w: 503", ai.ErrProviderStatus)}, time.Second)

	response, err := svc.Reply(context.Background(), learner.ID, dto.ChatbotMessageRequest{Message: "I want to die"})
	require.NoError(t, err)
	require.True(t, response.Fallback)
	require.Equal(t, FallbackListening, response.Reply)
	require.Equal(t, models.SeverityCritical, response.Severity)
	require.NotNil(t, response.AlertID)
	require.Len(t, response.Recommendations, 2)

	alert, err := store.Alerts().FindByID(context.Background(), *response.AlertID)
	require.NoError(t, err)
	require.Equal(t, CrisisContextChatbot, alert.Context)
	require.Equal(t, learner.ID, alert.AccountID)
}

func TestChatbotFallbackMapping(t *testing.T) {
	cases := []struct {
		name    string
		replier ai.Replier
		want    string
	}{
		{name: "timeout", replier: blockingReplier{}, want: FallbackTrouble},
		{name: "empty", replier: ai.StaticReplier{Text: "   "}, want: FallbackEmptyAnswer},
		{name: "unavailable", replier: nil, want: FallbackListening},
		{name: "transport", replier: ai.StaticReplier{Err: errors.New("connection reset")}, want: FallbackTrouble},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, db := newTestStore(t)
			learner := createAccount(t, db, "learner", models.RoleLearner, nil)
			svc := newChatbot(store, tc.replier, 20*time.Millisecond)

			response, err := svc.Reply(context.Background(), learner.ID, dto.ChatbotMessageRequest{Message: "hello there"})
			require.NoError(t, err)
			require.True(t, response.Fallback)
			require.Equal(t, tc.want, response.Reply)
		})
	}
}

func TestChatbotSendsRecentHistory(t *testing.T) {
	store, db := newTestStore(t)
	learner := createAccount(t, db, "learner", models.RoleLearner, nil)
	capture := &historyCapture{}
	svc := newChatbot(store, capture, time.Second)
	ctx := context.Background()

	_, err := svc.Reply(ctx, learner.ID, dto.ChatbotMessageRequest{Message: "first message"})
	require.NoError(t, err)
	require.Empty(t, capture.input.History)

	_, err = svc.Reply(ctx, learner.ID, dto.ChatbotMessageRequest{Message: "second message"})
	require.NoError(t, err)
	require.Equal(t, "second message", capture.input.Message)
	require.Len(t, capture.input.History, 2)
}

func TestChatbotRejectsEmptyMessage(t *testing.T) {
	store, _ := newTestStore(t)
	svc := newChatbot(store, ai.StaticReplier{Text: "hi"}, time.Second)

	_, err := svc.Reply(context.Background(), 1, dto.ChatbotMessageRequest{Message: ""})
	require.ErrorIs(t, err, ErrValidation)
}

func TestChatbotKeepsRawTurnsAndEscapesOnRender(t *testing.T) {
	store, db := newTestStore(t)
	learner := createAccount(t, db, "learner", models.RoleLearner, nil)
	capture := &historyCapture{}
	svc := newChatbot(store, capture, time.Second)
	ctx := context.Background()

	_, err := svc.Reply(ctx, learner.ID, dto.ChatbotMessageRequest{Message: "I can't sleep & I'm <tired>"})
	require.NoError(t, err)
	_, err = svc.Reply(ctx, learner.ID, dto.ChatbotMessageRequest{Message: "still here"})
	require.NoError(t, err)

	contents := make([]string, 0, len(capture.input.History))
	for _, turn := range capture.input.History {
		contents = append(contents, turn.Content)
	}
	require.Contains(t, contents, "I can't sleep & I'm <tired>")

	history, err := svc.History(ctx, learner.ID, time.Time{}, 10)
	require.NoError(t, err)
	for _, item := range history {
		require.NotContains(t, item.Content, "<tired>")
	}
}
