package analyzer

import (
	"profiler/internal/backend"
	"profiler/internal/profile"
)

// The standard analyzer set. Each gets a narrow vocabulary and a focused
// system prompt; overlap (career-path and skills-gap both writing skills
// fields) is resolved downstream by the aggregator.

func refs(pairs ...[2]string) []profile.FieldRef {
	out := make([]profile.FieldRef, len(pairs))
	for i, p := range pairs {
		out[i] = profile.FieldRef{Domain: profile.Domain(p[0]), Name: p[1]}
	}
	return out
}

// NewPersonalInfo extracts who the user is and what constraints they have.
func NewPersonalInfo(client backend.Client) *FieldExtractor {
	return NewFieldExtractor(
		"personal-info",
		"You extract personal background facts from a career interview. "+
			"Report only what the user actually said. Be concise: each value is "+
			"one short phrase.",
		refs(
			[2]string{"personal_info", "background"},
			[2]string{"personal_info", "time_availability"},
			[2]string{"personal_info", "current_role"},
			[2]string{"personal_info", "motivation"},
		),
		client,
	)
}

// NewLearningStyle extracts how the user prefers to learn.
func NewLearningStyle(client backend.Client) *FieldExtractor {
	return NewFieldExtractor(
		"learning-style",
		"You identify learning-style preferences from a career interview. "+
			"Classify the primary style as one of: visual, auditory, reading, "+
			"kinesthetic. List preferred methods the user mentions.",
		refs(
			[2]string{"learning_style", "primary_style"},
			[2]string{"learning_style", "pace"},
			[2]string{"learning_preferences", "preferred_methods"},
			[2]string{"learning_preferences", "content_format"},
		),
		client,
	)
}

// NewCareerPath extracts career goals and suggests milestones toward them.
func NewCareerPath(client backend.Client) *FieldExtractor {
	return NewFieldExtractor(
		"career-path",
		"You map career goals from a career interview. Identify the target "+
			"role the user is aiming for and propose three concrete milestones "+
			"toward it as a single semicolon-separated value. Note transferable "+
			"skills they already have.",
		refs(
			[2]string{"career_goals", "target_role"},
			[2]string{"career_goals", "milestones"},
			[2]string{"career_goals", "timeline"},
			[2]string{"skills", "transferable"},
			[2]string{"skills", "technical"},
		),
		client,
	)
}

// NewSkillsGap extracts current skills and the gaps toward the target role.
func NewSkillsGap(client backend.Client) *FieldExtractor {
	return NewFieldExtractor(
		"skills-gap",
		"You assess skills from a career interview. List the user's current "+
			"technical skills, their strengths, and the gaps between what they "+
			"have and what their target role needs. Use semicolon-separated "+
			"values.",
		refs(
			[2]string{"skills", "technical"},
			[2]string{"skills", "strengths"},
			[2]string{"skills", "gaps"},
		),
		client,
	)
}

// RegisterStandard registers the standard analyzer set against one backend.
func RegisterStandard(r *Registry, client backend.Client) error {
	for _, a := range []Analyzer{
		NewPersonalInfo(client),
		NewLearningStyle(client),
		NewCareerPath(client),
		NewSkillsGap(client),
	} {
		if err := r.Register(a); err != nil {
			return err
		}
	}
	return nil
}
