// Package profile defines the canonical user profile assembled during an
// interview, plus the insight patches analyzers produce against it.
//
// A Profile only ever grows: fields are added or overwritten by writes
// carrying a higher turn sequence number, never removed. Provenance (which
// analyzer wrote a field, at which turn) is kept on every field so merges
// stay deterministic regardless of analyzer completion order.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Domain is a topic area of the profile.
type Domain string

const (
	DomainPersonalInfo        Domain = "personal_info"
	DomainLearningStyle       Domain = "learning_style"
	DomainCareerGoals         Domain = "career_goals"
	DomainSkills              Domain = "skills"
	DomainLearningPreferences Domain = "learning_preferences"
)

// KnownDomains lists every valid profile domain.
var KnownDomains = []Domain{
	DomainPersonalInfo,
	DomainLearningStyle,
	DomainCareerGoals,
	DomainSkills,
	DomainLearningPreferences,
}

// IsKnownDomain reports whether d is one of the defined topic domains.
func IsKnownDomain(d Domain) bool {
	for _, k := range KnownDomains {
		if d == k {
			return true
		}
	}
	return false
}

// Field is one typed value in the profile with its provenance tag.
type Field struct {
	Value  string `json:"value"`
	Source string `json:"source"` // analyzer that last wrote the field
	Seq    int    `json:"seq"`    // sequence number of the triggering turn
}

// Profile maps topic domains to named fields.
type Profile map[Domain]map[string]Field

// New returns an empty profile.
func New() Profile {
	return make(Profile)
}

// Get returns the field for domain/name.
func (p Profile) Get(d Domain, name string) (Field, bool) {
	fields, ok := p[d]
	if !ok {
		return Field{}, false
	}
	f, ok := fields[name]
	return f, ok
}

// Has reports whether domain/name is set.
func (p Profile) Has(d Domain, name string) bool {
	_, ok := p.Get(d, name)
	return ok
}

// HasRef reports whether the referenced field is set.
func (p Profile) HasRef(r FieldRef) bool {
	return p.Has(r.Domain, r.Name)
}

// Set writes a field. Callers are expected to respect the sequence-number
// invariant; the aggregator is the normal write path.
func (p Profile) Set(d Domain, name string, f Field) {
	fields, ok := p[d]
	if !ok {
		fields = make(map[string]Field)
		p[d] = fields
	}
	fields[name] = f
}

// Clone returns a deep copy.
func (p Profile) Clone() Profile {
	out := make(Profile, len(p))
	for d, fields := range p {
		cp := make(map[string]Field, len(fields))
		for name, f := range fields {
			cp[name] = f
		}
		out[d] = cp
	}
	return out
}

// Equal reports whether two profiles hold identical fields and provenance.
func (p Profile) Equal(o Profile) bool {
	if p.FieldCount() != o.FieldCount() {
		return false
	}
	for d, fields := range p {
		for name, f := range fields {
			of, ok := o.Get(d, name)
			if !ok || of != f {
				return false
			}
		}
	}
	return true
}

// FieldCount returns the total number of set fields.
func (p Profile) FieldCount() int {
	n := 0
	for _, fields := range p {
		n += len(fields)
	}
	return n
}

// Domains returns the domains present in the profile, sorted for stable output.
func (p Profile) Domains() []Domain {
	out := make([]Domain, 0, len(p))
	for d := range p {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FieldNames returns the sorted field names in a domain.
func (p Profile) FieldNames(d Domain) []string {
	fields, ok := p[d]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(fields))
	for name := range fields {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FieldRef identifies one profile field as "domain.field".
type FieldRef struct {
	Domain Domain
	Name   string
}

// String renders the reference in "domain.field" form.
func (r FieldRef) String() string {
	return string(r.Domain) + "." + r.Name
}

// ParseFieldRef parses a "domain.field" reference.
func ParseFieldRef(s string) (FieldRef, error) {
	idx := strings.Index(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return FieldRef{}, fmt.Errorf("invalid field reference %q (want domain.field)", s)
	}
	ref := FieldRef{Domain: Domain(s[:idx]), Name: s[idx+1:]}
	if !IsKnownDomain(ref.Domain) {
		return FieldRef{}, fmt.Errorf("unknown profile domain %q in reference %q", ref.Domain, s)
	}
	return ref, nil
}

// Patch is the partial profile fragment one analyzer invocation produces.
// It is transient: the aggregator consumes it and discards it.
type Patch struct {
	Analyzer string                       `json:"analyzer"`
	Seq      int                          `json:"seq"` // sequence of the triggering turn
	Fields   map[Domain]map[string]string `json:"fields"`
}

// NewPatch returns an empty patch attributed to an analyzer and turn.
func NewPatch(analyzer string, seq int) Patch {
	return Patch{Analyzer: analyzer, Seq: seq, Fields: make(map[Domain]map[string]string)}
}

// Add records one field value in the patch.
func (pt *Patch) Add(d Domain, name, value string) {
	if pt.Fields == nil {
		pt.Fields = make(map[Domain]map[string]string)
	}
	fields, ok := pt.Fields[d]
	if !ok {
		fields = make(map[string]string)
		pt.Fields[d] = fields
	}
	fields[name] = value
}

// Empty reports whether the patch carries no fields.
func (pt Patch) Empty() bool {
	for _, fields := range pt.Fields {
		if len(fields) > 0 {
			return false
		}
	}
	return true
}
