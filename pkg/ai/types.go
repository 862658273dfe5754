package ai

import (
	"context"
	"errors"
)

var (
	// ErrProviderStatus wraps errors where the provider answered with a failure status.
	ErrProviderStatus = errors.New("ai provider returned an error status")
	// ErrEmptyReply is returned when the provider produced no usable text.
	ErrEmptyReply = errors.New("ai provider returned an empty reply")
	// ErrUnavailable is returned by replier stubs when no provider is configured.
	ErrUnavailable = errors.New("ai provider not configured")
)

// Turn is one earlier message of the conversation.
type Turn struct {
	FromUser bool
	Content  string
}

// ReplyInput is what the support assistant sees for one reply.
type ReplyInput struct {
	Message string
	History []Turn
}

// Replier generates a supportive reply to a learner's message.
type Replier interface {
	Reply(ctx context.Context, input ReplyInput) (string, error)
}

// UnavailableReplier always fails with ErrUnavailable.
type UnavailableReplier struct{}

// Reply implements Replier.
func (UnavailableReplier) Reply(context.Context, ReplyInput) (string, error) {
	return "", ErrUnavailable
}

// StaticReplier returns a fixed reply or error; it backs tests and offline demos.
type StaticReplier struct {
	Text string
	Err  error
}

// Reply implements Replier.
func (r StaticReplier) Reply(ctx context.Context, _ ReplyInput) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.Err != nil {
		return "", r.Err
	}
	return r.Text, nil
}
