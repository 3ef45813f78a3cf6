// Package phase decides when an interview moves from one phase to the next.
// The machine is pure: it holds the phase table, takes explicit state, and
// returns new state. Progression is strictly monotonic. A phase that stops
// making progress is force-advanced after its retry limit, so an interview
// can stall for at most a bounded number of exchanges per phase.
package phase

import (
	"profiler/internal/config"
	"profiler/internal/logging"
	"profiler/internal/profile"
)

// Complete is the terminal phase name reported once every configured phase
// has been traversed.
const Complete = "complete"

// State is the persistable progression state of one session.
type State struct {
	// Index into the phase table; len(phases) means the interview is done.
	Index int `json:"index"`

	// Retries counts consecutive exchanges without profile progress in the
	// current phase.
	Retries int `json:"retries"`
}

// Outcome describes what one evaluation decided.
type Outcome struct {
	State State

	// Advanced is true when at least one phase boundary was crossed.
	Advanced bool

	// Forced is true when the crossing came from the retry limit rather
	// than from phase completion.
	Forced bool

	// Completed is true when the whole interview finished this evaluation.
	Completed bool
}

// Machine evaluates progression against a fixed phase table.
type Machine struct {
	phases []config.PhaseConfig
}

// NewMachine builds a machine over the configured phase table.
func NewMachine(phases []config.PhaseConfig) *Machine {
	return &Machine{phases: phases}
}

// Current returns the active phase config, or false when s is terminal.
func (m *Machine) Current(s State) (config.PhaseConfig, bool) {
	if s.Index < 0 || s.Index >= len(m.phases) {
		return config.PhaseConfig{}, false
	}
	return m.phases[s.Index], true
}

// Name returns the active phase name, or Complete for terminal state.
func (m *Machine) Name(s State) string {
	if pc, ok := m.Current(s); ok {
		return pc.Name
	}
	return Complete
}

// IsComplete reports whether s is terminal.
func (m *Machine) IsComplete(s State) bool {
	return s.Index >= len(m.phases)
}

// satisfied reports whether every required field of pc is present in p.
func satisfied(pc config.PhaseConfig, p profile.Profile) bool {
	for _, ref := range pc.RequiredRefs() {
		if !p.HasRef(ref) {
			return false
		}
	}
	return true
}

// approached reports whether the exchange newly satisfied at least one of
// pc's required fields. Writes to fields outside the completion predicate do
// not count: they must not keep a stalled phase alive.
func approached(pc config.PhaseConfig, before, after profile.Profile) bool {
	for _, ref := range pc.RequiredRefs() {
		if !before.HasRef(ref) && after.HasRef(ref) {
			return true
		}
	}
	return false
}

// Evaluate computes the next state after an exchange. before and after are
// the profile as it stood going into the exchange and after aggregation.
// The retry counter resets only when the exchange brought the current phase
// closer to its completion predicate, so a phase force-advances after at
// most RetryLimit exchanges without a new required field. Advancing through
// a phase whose fields were prefilled by an earlier phase's analyzers
// cascades in the same call.
func (m *Machine) Evaluate(s State, before, after profile.Profile) Outcome {
	out := Outcome{State: s}
	if m.IsComplete(s) {
		out.Completed = true
		return out
	}

	from := m.Name(s)

	// Cross every boundary whose requirements are already met.
	for out.State.Index < len(m.phases) && satisfied(m.phases[out.State.Index], after) {
		out.State.Index++
		out.State.Retries = 0
		out.Advanced = true
	}

	if !out.Advanced {
		if approached(m.phases[out.State.Index], before, after) {
			out.State.Retries = 0
		} else {
			out.State.Retries++
		}
		if out.State.Retries >= m.phases[out.State.Index].RetryLimit() {
			logging.PhaseWarn("Phase %s stalled after %d retries, forcing advance",
				m.phases[out.State.Index].Name, out.State.Retries)
			out.State.Index++
			out.State.Retries = 0
			out.Advanced = true
			out.Forced = true

			// The forced landing phase may itself already be satisfied.
			for out.State.Index < len(m.phases) && satisfied(m.phases[out.State.Index], after) {
				out.State.Index++
			}
		}
	}

	out.Completed = m.IsComplete(out.State)
	if out.Advanced {
		logging.Phase("Phase transition: %s -> %s (forced=%v)", from, m.Name(out.State), out.Forced)
	}
	return out
}

// MaxStalledExchanges bounds how many fruitless exchanges an interview can
// absorb in total: each phase force-advances after its retry limit.
func (m *Machine) MaxStalledExchanges() int {
	total := 0
	for _, pc := range m.phases {
		total += pc.RetryLimit()
	}
	return total
}
