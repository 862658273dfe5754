package ai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestBuildMessagesKeepsRecentHistory(t *testing.T) {
	history := make([]Turn, 0, 14)
	for i := 0; i < 14; i++ {
		history = append(history, Turn{FromUser: i%2 == 0, Content: string(rune('a' + i))})
	}

	messages := buildMessages(ReplyInput{Message: "hello", History: history})
	require.Len(t, messages, maxHistoryTurns+2)
	require.Equal(t, openai.ChatMessageRoleSystem, messages[0].Role)
	require.Equal(t, "e", messages[1].Content)
	require.Equal(t, openai.ChatMessageRoleUser, messages[1].Role)
	require.Equal(t, "hello", messages[len(messages)-1].Content)
}

func TestNewOpenAIReplierRequiresKey(t *testing.T) {
	_, err := NewOpenAIReplier(OpenAIConfig{})
	require.Error(t, err)
}

func TestStaticAndUnavailableRepliers(t *testing.T) {
	text, err := StaticReplier{Text: "hi"}.Reply(context.Background(), ReplyInput{})
	require.NoError(t, err)
	require.Equal(t, "hi", text)

	_, err = UnavailableReplier{}.Reply(context.Background(), ReplyInput{})
	require.True(t, errors.Is(err, ErrUnavailable))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = StaticReplier{Text: "hi"}.Reply(ctx, ReplyInput{})
	require.ErrorIs(t, err, context.Canceled)
}
