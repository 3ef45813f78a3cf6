// Package recall gives analyzers similarity search over earlier turns of a
// session, so extraction prompts can include relevant context from before
// the recent-history window.
package recall

import (
	"context"

	"profiler/internal/config"
	"profiler/internal/conversation"
)

// Recaller indexes turns and retrieves the ones most similar to a query.
type Recaller interface {
	// Index adds a turn to the session's recall index.
	Index(ctx context.Context, sessionID string, turn conversation.Turn) error

	// Recall returns up to k indexed turns most similar to query, oldest
	// first. k <= 0 uses the recaller's configured default.
	Recall(ctx context.Context, sessionID, query string, k int) ([]conversation.Turn, error)

	// Drop discards a session's index. Called when the session is archived
	// or aborted.
	Drop(sessionID string)
}

// New builds the configured recaller. Disabled recall returns a no-op so
// callers never branch.
func New(cfg config.RecallConfig) (Recaller, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	embedder, err := NewCachingEmbedder(NewHashEmbedder(), cfg.EmbedCacheSize)
	if err != nil {
		return nil, err
	}
	return NewVectorRecaller(embedder, cfg.TopK), nil
}

// Noop ignores every turn and recalls nothing.
type Noop struct{}

func (Noop) Index(ctx context.Context, sessionID string, turn conversation.Turn) error {
	return nil
}

func (Noop) Recall(ctx context.Context, sessionID, query string, k int) ([]conversation.Turn, error) {
	return nil, nil
}

func (Noop) Drop(sessionID string) {}
