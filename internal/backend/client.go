// Package backend abstracts the conversational model provider that drives
// interviewer replies and analyzer extraction.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"profiler/internal/config"
	"profiler/internal/conversation"
)

// ErrUnavailable wraps transport-level failures. An exchange that hits it
// is rolled back rather than recorded half-done.
var ErrUnavailable = errors.New("backend unavailable")

// Message is one entry of a chat-shaped request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client is the interface every provider implements.
type Client interface {
	// Complete sends a single prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// CompleteWithSystem sends a prompt with a system message.
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// Converse returns the next assistant reply for a conversation history.
	Converse(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error)
}

// New builds a client for the configured provider.
func New(cfg config.BackendConfig) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropicClient(cfg), nil
	case "openai":
		return NewOpenAIClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown backend provider %q", cfg.Provider)
	}
}

// messagesFromTurns converts conversation history to chat messages. Turns
// spoken by the interviewer side go out as the "assistant" role, which is
// what both provider APIs expect for model-authored messages.
func messagesFromTurns(turns []conversation.Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		role := string(t.Role)
		if t.Role == conversation.RoleSystem {
			role = "assistant"
		}
		out = append(out, Message{Role: role, Content: t.Content})
	}
	return out
}

// backoff waits before retry attempt i (1-based): 1s, 2s, 4s. A cancelled
// context cuts the wait short and returns its error, so a caller's deadline
// is never stretched by retry sleeps.
func backoff(ctx context.Context, i int) error {
	t := time.NewTimer(time.Duration(1<<uint(i-1)) * time.Second)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
