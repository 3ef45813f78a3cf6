// Package aggregator merges insight patches from concurrently running
// analyzers into a single profile.
//
// The merge is deterministic and order-independent: for every field the
// winning write is the one with the highest triggering sequence number,
// ties broken by a fixed analyzer-priority order. Applying the same set of
// patches in any permutation yields an identical profile, which matters
// because analyzers complete out of order. A merge never removes a field
// that is already set.
package aggregator

import (
	"profiler/internal/logging"
	"profiler/internal/profile"
)

// Aggregator resolves conflicting analyzer writes using a configured
// priority order (earlier entries win ties).
type Aggregator struct {
	rank map[string]int
	n    int
}

// New creates an aggregator with the given analyzer-priority order.
// Analyzers missing from the list rank below all listed ones, ordered
// among themselves by name so the result stays deterministic.
func New(priority []string) *Aggregator {
	rank := make(map[string]int, len(priority))
	for i, name := range priority {
		rank[name] = i
	}
	return &Aggregator{rank: rank, n: len(priority)}
}

// Merge applies patches to a copy of current and returns the result.
// current is never mutated.
func (a *Aggregator) Merge(current profile.Profile, patches []profile.Patch) profile.Profile {
	merged := current.Clone()

	applied := 0
	for _, pt := range patches {
		if pt.Empty() {
			continue
		}
		for d, fields := range pt.Fields {
			for name, value := range fields {
				incoming := profile.Field{Value: value, Source: pt.Analyzer, Seq: pt.Seq}
				cur, exists := merged.Get(d, name)
				if !exists || a.wins(incoming, cur) {
					merged.Set(d, name, incoming)
					applied++
				}
			}
		}
	}

	if applied > 0 {
		logging.AggregateDebug("Merged %d patches: %d field writes, profile now %d fields",
			len(patches), applied, merged.FieldCount())
	}
	return merged
}

// wins reports whether the incoming write beats the current field.
// Strict comparison: an identical (seq, rank, analyzer) write keeps the
// existing value, so re-applying a patch is a no-op.
func (a *Aggregator) wins(incoming, current profile.Field) bool {
	if incoming.Seq != current.Seq {
		return incoming.Seq > current.Seq
	}
	ri, rc := a.rankOf(incoming.Source), a.rankOf(current.Source)
	if ri != rc {
		return ri < rc
	}
	// Same seq and same rank: unlisted analyzers tie-break by name.
	return incoming.Source < current.Source
}

func (a *Aggregator) rankOf(analyzer string) int {
	if r, ok := a.rank[analyzer]; ok {
		return r
	}
	return a.n
}
