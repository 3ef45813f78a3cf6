package interview

import (
	"strings"
	"time"

	"profiler/internal/profile"
)

// Report is the structured view of a session's profile. It can be requested
// at any point; Completed tells the caller whether the interview finished.
type Report struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Phase     string    `json:"phase"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`

	// Domains hold the extracted fields grouped by topic, in stable order.
	Domains []DomainReport `json:"domains"`

	// Summary is a plain-text rendering of the profile.
	Summary string `json:"summary"`
}

// DomainReport is one topic section of the report.
type DomainReport struct {
	Domain profile.Domain `json:"domain"`
	Fields []FieldReport  `json:"fields"`
}

// FieldReport is one extracted field with provenance.
type FieldReport struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Source string `json:"source"`
	Seq    int    `json:"seq"`
}

// BuildReport assembles the report for a session. The rendering is
// deterministic: same profile, same report.
func (c *Coordinator) BuildReport(sessionID string) (*Report, error) {
	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	p := sess.Profile()
	state := sess.PhaseState()
	status := sess.Status()

	rep := &Report{
		SessionID: sessionID,
		Status:    status,
		Phase:     c.machine.Name(state),
		Completed: status == StatusComplete || c.machine.IsComplete(state),
		CreatedAt: sess.CreatedAt,
		UpdatedAt: sess.UpdatedAt(),
		Turns:     sess.Log.Len(),
	}

	var sb strings.Builder
	for _, d := range p.Domains() {
		dr := DomainReport{Domain: d}
		sb.WriteString(strings.ToUpper(strings.ReplaceAll(string(d), "_", " ")))
		sb.WriteString("\n")
		for _, name := range p.FieldNames(d) {
			f, _ := p.Get(d, name)
			dr.Fields = append(dr.Fields, FieldReport{
				Name:   name,
				Value:  f.Value,
				Source: f.Source,
				Seq:    f.Seq,
			})
			sb.WriteString("  ")
			sb.WriteString(strings.ReplaceAll(name, "_", " "))
			sb.WriteString(": ")
			sb.WriteString(f.Value)
			sb.WriteString("\n")
		}
		rep.Domains = append(rep.Domains, dr)
	}
	rep.Summary = strings.TrimRight(sb.String(), "\n")

	return rep, nil
}
