package config

import (
	"fmt"
	"time"

	"profiler/internal/profile"
)

// Backpressure policies for concurrent submissions to one session.
const (
	BackpressureQueue  = "queue"  // callers wait their turn
	BackpressureReject = "reject" // concurrent callers get an immediate busy error
)

// InterviewConfig holds the phase table and coordination settings.
type InterviewConfig struct {
	// Phases are traversed in declaration order. When the last phase
	// completes the interview is complete.
	Phases []PhaseConfig `yaml:"phases"`

	// AnalyzerPriority breaks ties when two analyzers write the same
	// field at the same turn. Earlier entries win.
	AnalyzerPriority []string `yaml:"analyzer_priority"`

	// AnalyzerTimeout bounds each analyzer invocation.
	AnalyzerTimeout string `yaml:"analyzer_timeout"`

	// Backpressure selects queue or reject for concurrent submissions
	// to the same session.
	Backpressure string `yaml:"backpressure"`

	// HistoryWindow is how many recent turns are shown to the backend
	// and the analyzers.
	HistoryWindow int `yaml:"history_window"`
}

// PhaseConfig describes one interview phase.
type PhaseConfig struct {
	Name string `yaml:"name"`

	// OpeningPrompt is the question asked when the phase is entered.
	OpeningPrompt string `yaml:"opening_prompt"`

	// RequiredFields are "domain.field" references. The phase is complete
	// once every one of them is present in the profile.
	RequiredFields []string `yaml:"required_fields"`

	// Analyzers run concurrently after each exchange in this phase.
	Analyzers []string `yaml:"analyzers"`

	// MaxRetries is how many exchanges may pass without profile progress
	// before the phase is force-advanced. 0 uses the default of 3.
	MaxRetries int `yaml:"max_retries"`
}

// DefaultMaxRetries is the stall bound applied when a phase does not set
// its own.
const DefaultMaxRetries = 3

// DefaultInterviewConfig returns the standard four-phase interview.
func DefaultInterviewConfig() InterviewConfig {
	return InterviewConfig{
		Phases: []PhaseConfig{
			{
				Name: "initial",
				OpeningPrompt: "Welcome! I'd like to learn about your background. " +
					"What brings you here, and how much time can you dedicate to learning each week?",
				RequiredFields: []string{
					"personal_info.background",
					"personal_info.time_availability",
				},
				Analyzers:  []string{"personal-info"},
				MaxRetries: 3,
			},
			{
				Name: "learning_style",
				OpeningPrompt: "How do you learn best? For example, do you prefer videos, " +
					"reading, or hands-on projects?",
				RequiredFields: []string{
					"learning_style.primary_style",
					"learning_preferences.preferred_methods",
				},
				Analyzers:  []string{"learning-style"},
				MaxRetries: 3,
			},
			{
				Name: "career_goals",
				OpeningPrompt: "Where do you want your career to go? " +
					"Tell me about the role you're aiming for.",
				RequiredFields: []string{
					"career_goals.target_role",
					"career_goals.milestones",
				},
				Analyzers:  []string{"career-path"},
				MaxRetries: 3,
			},
			{
				Name: "skills_assessment",
				OpeningPrompt: "Let's take stock of your current skills. " +
					"What are you confident in, and where do you feel you have gaps?",
				RequiredFields: []string{
					"skills.technical",
					"skills.gaps",
				},
				Analyzers:  []string{"skills-gap", "career-path"},
				MaxRetries: 3,
			},
		},
		AnalyzerPriority: []string{
			"personal-info",
			"learning-style",
			"career-path",
			"skills-gap",
		},
		AnalyzerTimeout: "10s",
		Backpressure:    BackpressureQueue,
		HistoryWindow:   5,
	}
}

// AnalyzerTimeoutDuration parses the per-analyzer timeout, defaulting to 10s.
func (ic InterviewConfig) AnalyzerTimeoutDuration() time.Duration {
	return parseDuration(ic.AnalyzerTimeout, 10*time.Second)
}

// PhaseNames returns phase names in traversal order.
func (ic InterviewConfig) PhaseNames() []string {
	out := make([]string, len(ic.Phases))
	for i, p := range ic.Phases {
		out[i] = p.Name
	}
	return out
}

// RequiredRefs parses the phase's required field references. Call Validate
// first; invalid refs are skipped here.
func (pc PhaseConfig) RequiredRefs() []profile.FieldRef {
	out := make([]profile.FieldRef, 0, len(pc.RequiredFields))
	for _, s := range pc.RequiredFields {
		ref, err := profile.ParseFieldRef(s)
		if err != nil {
			continue
		}
		out = append(out, ref)
	}
	return out
}

// RetryLimit returns the phase stall bound, applying the default.
func (pc PhaseConfig) RetryLimit() int {
	if pc.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return pc.MaxRetries
}

// Validate checks the interview configuration for structural problems.
func (ic InterviewConfig) Validate() error {
	if len(ic.Phases) == 0 {
		return fmt.Errorf("no interview phases configured")
	}

	switch ic.Backpressure {
	case "", BackpressureQueue, BackpressureReject:
	default:
		return fmt.Errorf("unknown backpressure policy %q", ic.Backpressure)
	}

	seen := make(map[string]bool, len(ic.Phases))
	for i, p := range ic.Phases {
		if p.Name == "" {
			return fmt.Errorf("phase %d has no name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate phase name %q", p.Name)
		}
		seen[p.Name] = true

		if p.OpeningPrompt == "" {
			return fmt.Errorf("phase %q has no opening prompt", p.Name)
		}
		if len(p.RequiredFields) == 0 {
			return fmt.Errorf("phase %q has no required fields", p.Name)
		}
		for _, s := range p.RequiredFields {
			if _, err := profile.ParseFieldRef(s); err != nil {
				return fmt.Errorf("phase %q: %w", p.Name, err)
			}
		}
		if len(p.Analyzers) == 0 {
			return fmt.Errorf("phase %q has no analyzers", p.Name)
		}
		if p.MaxRetries < 0 {
			return fmt.Errorf("phase %q has negative max_retries", p.Name)
		}
	}

	return nil
}
