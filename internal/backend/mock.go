package backend

import (
	"context"
	"sync"

	"profiler/internal/conversation"
)

// MockClient is a scriptable in-memory client for tests and offline runs.
// Queued replies are returned in order; once the queue drains, a canned
// reply is returned. An injected error takes precedence over replies.
type MockClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int

	// Prompts records every user prompt seen, for assertions.
	Prompts []string
}

// NewMockClient returns an empty mock.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Queue appends scripted replies.
func (m *MockClient) Queue(replies ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, replies...)
}

// FailWith makes every subsequent call return err until cleared with nil.
func (m *MockClient) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many completions were requested.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockClient) next(prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.Prompts = append(m.Prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) > 0 {
		r := m.replies[0]
		m.replies = m.replies[1:]
		return r, nil
	}
	return "Thanks for sharing. Could you tell me a bit more about that?", nil
}

// Complete sends a prompt and returns the next scripted reply.
func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.next(prompt)
}

// CompleteWithSystem sends a prompt with a system message.
func (m *MockClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return m.next(userPrompt)
}

// Converse returns the next scripted reply for a conversation history.
func (m *MockClient) Converse(ctx context.Context, systemPrompt string, turns []conversation.Turn) (string, error) {
	last := ""
	if len(turns) > 0 {
		last = turns[len(turns)-1].Content
	}
	return m.next(last)
}
