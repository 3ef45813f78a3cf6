// Package analyzer contains the insight extractors that run concurrently
// after each interview exchange. Each analyzer reads the conversation and
// proposes profile field values; it never writes the profile directly.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"profiler/internal/conversation"
	"profiler/internal/profile"
)

// Input is everything one analyzer invocation may look at.
type Input struct {
	SessionID string

	// Seq is the sequence number of the user turn that triggered this run.
	// Patches carry it so merges stay ordered by conversation time.
	Seq int

	// Recent is the trailing window of the conversation.
	Recent []conversation.Turn

	// Recalled holds similar earlier turns retrieved from the recall index.
	Recalled []conversation.Turn

	// Snapshot is a copy of the profile at exchange start. Analyzers in
	// the same exchange all see this same snapshot.
	Snapshot profile.Profile

	// Scratch is this analyzer's private notes from its previous run in
	// the session.
	Scratch string
}

// Result is what one invocation produces.
type Result struct {
	Patch profile.Patch

	// Scratch replaces the analyzer's private notes for the next run.
	Scratch string
}

// Analyzer extracts profile insights from conversation.
type Analyzer interface {
	// Name identifies the analyzer for provenance and priority ordering.
	Name() string

	// Analyze inspects the input and returns proposed profile fields.
	// Errors are absorbed by the caller: a failing analyzer costs its
	// patch, never the exchange.
	Analyze(ctx context.Context, in Input) (Result, error)
}

// Registry holds the analyzers available to interview phases.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]Analyzer)}
}

// Register adds an analyzer. Duplicate names error so config mistakes
// surface at boot.
func (r *Registry) Register(a Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := a.Name()
	if _, exists := r.analyzers[name]; exists {
		return fmt.Errorf("analyzer %q already registered", name)
	}
	r.analyzers[name] = a
	return nil
}

// Get returns the named analyzer.
func (r *Registry) Get(name string) (Analyzer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[name]
	return a, ok
}

// Resolve maps names to analyzers, erroring on the first unknown name.
func (r *Registry) Resolve(names []string) ([]Analyzer, error) {
	out := make([]Analyzer, 0, len(names))
	for _, name := range names {
		a, ok := r.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown analyzer %q", name)
		}
		out = append(out, a)
	}
	return out, nil
}

// Names returns registered analyzer names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.analyzers))
	for name := range r.analyzers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
