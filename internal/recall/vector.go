package recall

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"profiler/internal/conversation"
	"profiler/internal/logging"
)

// VectorRecaller stores turn embeddings in chromem-go, an embedded pure-Go
// vector database. Each session gets its own collection for isolation.
type VectorRecaller struct {
	db          *chromem.DB
	embedder    Embedder
	defaultK    int
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// NewVectorRecaller creates a recaller backed by an in-memory vector store.
// defaultK is used when a Recall call passes k <= 0.
func NewVectorRecaller(embedder Embedder, defaultK int) *VectorRecaller {
	if defaultK <= 0 {
		defaultK = 3
	}
	return &VectorRecaller{
		db:          chromem.NewDB(),
		embedder:    embedder,
		defaultK:    defaultK,
		collections: make(map[string]*chromem.Collection),
	}
}

func collectionName(sessionID string) string {
	return "session_" + sessionID
}

func (r *VectorRecaller) getOrCreateCollection(sessionID string) (*chromem.Collection, error) {
	r.mu.RLock()
	col, exists := r.collections[sessionID]
	r.mu.RUnlock()

	if exists {
		return col, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := r.collections[sessionID]; exists {
		return col, nil
	}

	col, err := r.db.CreateCollection(collectionName(sessionID), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	r.collections[sessionID] = col
	return col, nil
}

// Index adds a turn to the session's recall index.
func (r *VectorRecaller) Index(ctx context.Context, sessionID string, turn conversation.Turn) error {
	col, err := r.getOrCreateCollection(sessionID)
	if err != nil {
		return err
	}

	embedding, err := r.embedder.Embed(ctx, turn.Content)
	if err != nil {
		return fmt.Errorf("embed turn: %w", err)
	}

	doc := chromem.Document{
		ID:        fmt.Sprintf("%s_%d", sessionID, turn.Seq),
		Content:   turn.Content,
		Embedding: embedding,
		Metadata: map[string]string{
			"seq":   strconv.Itoa(turn.Seq),
			"role":  string(turn.Role),
			"phase": turn.Phase,
			"ts":    turn.Timestamp.Format(time.RFC3339),
		},
	}

	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	logging.RecallDebug("Indexed turn %d for session %s", turn.Seq, sessionID)
	return nil
}

// Recall returns up to k indexed turns most similar to query, oldest first.
func (r *VectorRecaller) Recall(ctx context.Context, sessionID, query string, k int) ([]conversation.Turn, error) {
	if k <= 0 {
		k = r.defaultK
	}
	r.mu.RLock()
	col, exists := r.collections[sessionID]
	r.mu.RUnlock()
	if !exists {
		return nil, nil
	}

	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	// chromem requires nResults <= collection size
	if n := col.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		if isInsufficientDocsError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	turns := make([]conversation.Turn, 0, len(results))
	for _, res := range results {
		seq, err := strconv.Atoi(res.Metadata["seq"])
		if err != nil {
			continue
		}
		ts, _ := time.Parse(time.RFC3339, res.Metadata["ts"])
		turns = append(turns, conversation.Turn{
			Seq:       seq,
			Role:      conversation.Role(res.Metadata["role"]),
			Content:   res.Content,
			Phase:     res.Metadata["phase"],
			Timestamp: ts,
		})
	}

	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })

	logging.RecallDebug("Recalled %d/%d turns for session %s", len(turns), k, sessionID)
	return turns, nil
}

// Drop discards a session's index.
func (r *VectorRecaller) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[sessionID]; !exists {
		return
	}
	delete(r.collections, sessionID)
	if err := r.db.DeleteCollection(collectionName(sessionID)); err != nil {
		logging.RecallDebug("Drop collection %s: %v", sessionID, err)
	}
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
