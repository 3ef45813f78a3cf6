package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"profiler/internal/config"
	"profiler/internal/conversation"
)

func anthropicServer(t *testing.T, handler func(w http.ResponseWriter, req anthropicRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") == "" {
			t.Error("missing x-api-key header")
		}
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		handler(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAnthropicConverse(t *testing.T) {
	srv := anthropicServer(t, func(w http.ResponseWriter, req anthropicRequest) {
		if req.System != "interviewer" {
			t.Errorf("system = %q", req.System)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "hands-on projects" {
			t.Errorf("unexpected messages %+v", req.Messages)
		}
		// Interviewer-side turns go out as the assistant role.
		if req.Messages[0].Role != "assistant" {
			t.Errorf("interviewer turn role = %q, want assistant", req.Messages[0].Role)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "  What kind of projects?  "}},
		})
	})

	c := NewAnthropicClient(config.BackendConfig{
		Provider: "anthropic", APIKey: "test-key", Model: "m", BaseURL: srv.URL,
	})

	turns := []conversation.Turn{
		{Seq: 1, Role: conversation.RoleSystem, Content: "How do you learn?"},
		{Seq: 2, Role: conversation.RoleUser, Content: "hands-on projects"},
	}
	got, err := c.Converse(context.Background(), "interviewer", turns)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if got != "What kind of projects?" {
		t.Errorf("reply = %q, want trimmed completion", got)
	}
}

func TestAnthropicRetriesOn429(t *testing.T) {
	attempts := 0
	srv := anthropicServer(t, func(w http.ResponseWriter, req anthropicRequest) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "ok"}},
		})
	})

	c := NewAnthropicClient(config.BackendConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	got, err := c.Complete(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "ok" {
		t.Errorf("reply = %q", got)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestAnthropicClientErrorNotRetried(t *testing.T) {
	attempts := 0
	srv := anthropicServer(t, func(w http.ResponseWriter, req anthropicRequest) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	})

	c := NewAnthropicClient(config.BackendConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), "hi")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, 4xx must not retry", attempts)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	srv := anthropicServer(t, func(w http.ResponseWriter, req anthropicRequest) {
		attempts++
		// Cancel mid-exchange: the client must not sleep out its backoff
		// schedule before giving up.
		cancel()
		w.WriteHeader(http.StatusInternalServerError)
	})

	c := NewAnthropicClient(config.BackendConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	_, err := c.Complete(ctx, "hi")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1: no retry after cancellation", attempts)
	}
}

func TestOpenAIConverseInsertsSystemMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("messages = %+v, want leading system message", req.Messages)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "reply"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(config.BackendConfig{APIKey: "k", Model: "m", BaseURL: srv.URL})

	turns := []conversation.Turn{{Seq: 1, Role: conversation.RoleUser, Content: "hello"}}
	got, err := c.Converse(context.Background(), "sys", turns)
	if err != nil {
		t.Fatalf("Converse: %v", err)
	}
	if got != "reply" {
		t.Errorf("reply = %q", got)
	}
}

func TestMissingAPIKey(t *testing.T) {
	c := NewAnthropicClient(config.BackendConfig{Model: "m"})
	if _, err := c.Complete(context.Background(), "hi"); err == nil {
		t.Error("expected error without API key")
	}
}

func TestNewFactory(t *testing.T) {
	for _, provider := range []string{"anthropic", "openai", "mock"} {
		if _, err := New(config.BackendConfig{Provider: provider, APIKey: "k"}); err != nil {
			t.Errorf("New(%s): %v", provider, err)
		}
	}
	if _, err := New(config.BackendConfig{Provider: "gopher"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestMockClientScript(t *testing.T) {
	m := NewMockClient()
	m.Queue("first", "second")

	if got, _ := m.Complete(context.Background(), "a"); got != "first" {
		t.Errorf("reply = %q", got)
	}
	if got, _ := m.Complete(context.Background(), "b"); got != "second" {
		t.Errorf("reply = %q", got)
	}
	// Drained queue falls back to the canned reply.
	if got, _ := m.Complete(context.Background(), "c"); got == "" {
		t.Error("expected canned reply after queue drained")
	}

	m.FailWith(ErrUnavailable)
	if _, err := m.Complete(context.Background(), "d"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want injected error", err)
	}
	if m.Calls() != 4 {
		t.Errorf("Calls = %d, want 4", m.Calls())
	}
}
