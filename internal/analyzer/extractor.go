package analyzer

import (
	"context"
	"fmt"
	"strings"

	"profiler/internal/backend"
	"profiler/internal/conversation"
	"profiler/internal/logging"
	"profiler/internal/profile"
)

// FieldExtractor is a model-backed analyzer that fills a fixed vocabulary
// of profile fields. Model output outside the vocabulary is dropped, not
// failed: the model's partial understanding is still useful.
type FieldExtractor struct {
	name         string
	systemPrompt string
	vocabulary   []profile.FieldRef
	allowed      map[string]profile.FieldRef
	client       backend.Client
}

// NewFieldExtractor builds an analyzer that may only write the given refs.
func NewFieldExtractor(name, systemPrompt string, vocabulary []profile.FieldRef, client backend.Client) *FieldExtractor {
	allowed := make(map[string]profile.FieldRef, len(vocabulary))
	for _, ref := range vocabulary {
		allowed[ref.String()] = ref
	}
	return &FieldExtractor{
		name:         name,
		systemPrompt: systemPrompt,
		vocabulary:   vocabulary,
		allowed:      allowed,
		client:       client,
	}
}

// Name identifies the analyzer.
func (e *FieldExtractor) Name() string {
	return e.name
}

// Analyze asks the model to extract vocabulary fields from the conversation.
func (e *FieldExtractor) Analyze(ctx context.Context, in Input) (Result, error) {
	timer := logging.StartTimer(logging.CategoryAnalyzer, e.name)
	defer timer.Stop()

	response, err := e.client.CompleteWithSystem(ctx, e.systemPrompt, e.buildPrompt(in))
	if err != nil {
		return Result{}, fmt.Errorf("%s extraction failed: %w", e.name, err)
	}

	ex, err := parseExtraction(response)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", e.name, err)
	}

	patch := profile.NewPatch(e.name, in.Seq)
	for key, value := range ex.Fields {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		ref, ok := e.allowed[key]
		if !ok {
			logging.AnalyzerDebug("%s proposed out-of-vocabulary field %q, dropping", e.name, key)
			continue
		}
		patch.Add(ref.Domain, ref.Name, value)
	}

	scratch := in.Scratch
	if ex.Notes != "" {
		scratch = ex.Notes
	}

	logging.AnalyzerDebug("%s extracted %d fields at seq %d", e.name, countFields(patch), in.Seq)
	return Result{Patch: patch, Scratch: scratch}, nil
}

// buildPrompt assembles the extraction prompt: vocabulary, current values,
// recalled context, recent transcript, and prior notes.
func (e *FieldExtractor) buildPrompt(in Input) string {
	var sb strings.Builder

	sb.WriteString("## Fields To Extract\n\n")
	for _, ref := range e.vocabulary {
		sb.WriteString("- ")
		sb.WriteString(ref.String())
		if f, ok := in.Snapshot.Get(ref.Domain, ref.Name); ok {
			sb.WriteString(" (currently: ")
			sb.WriteString(f.Value)
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}

	if len(in.Recalled) > 0 {
		sb.WriteString("\n## Related Earlier Conversation\n\n")
		sb.WriteString(conversation.Transcript(in.Recalled))
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Recent Conversation\n\n")
	sb.WriteString(conversation.Transcript(in.Recent))
	sb.WriteString("\n")

	if in.Scratch != "" {
		sb.WriteString("\n## Your Previous Notes\n\n")
		sb.WriteString(in.Scratch)
		sb.WriteString("\n")
	}

	sb.WriteString("\nRespond with JSON only:\n")
	sb.WriteString(`{"fields": {"domain.field": "value", ...}, "notes": "anything to remember for next time"}` + "\n")
	sb.WriteString("Only include fields the conversation gives real evidence for. Omit the rest.\n")

	return sb.String()
}

func countFields(p profile.Patch) int {
	n := 0
	for _, fields := range p.Fields {
		n += len(fields)
	}
	return n
}
