package profile

import "testing"

func TestParseFieldRef(t *testing.T) {
	ref, err := ParseFieldRef("personal_info.background")
	if err != nil {
		t.Fatalf("ParseFieldRef: %v", err)
	}
	if ref.Domain != DomainPersonalInfo || ref.Name != "background" {
		t.Errorf("ref = %+v", ref)
	}
	if ref.String() != "personal_info.background" {
		t.Errorf("String = %q", ref.String())
	}

	for _, bad := range []string{"", "nodot", ".field", "domain.", "not_a_domain.field"} {
		if _, err := ParseFieldRef(bad); err == nil {
			t.Errorf("ParseFieldRef(%q) should fail", bad)
		}
	}

	// Field names may themselves contain dots; split at the first one.
	ref, err = ParseFieldRef("skills.a.b")
	if err != nil {
		t.Fatalf("ParseFieldRef: %v", err)
	}
	if ref.Name != "a.b" {
		t.Errorf("name = %q, want a.b", ref.Name)
	}
}

func TestProfileSetGetHas(t *testing.T) {
	p := New()
	if p.Has(DomainSkills, "technical") {
		t.Error("empty profile has field")
	}

	p.Set(DomainSkills, "technical", Field{Value: "go", Source: "skills-gap", Seq: 2})
	f, ok := p.Get(DomainSkills, "technical")
	if !ok || f.Value != "go" || f.Seq != 2 {
		t.Errorf("field = %+v, %v", f, ok)
	}
	if !p.HasRef(FieldRef{Domain: DomainSkills, Name: "technical"}) {
		t.Error("HasRef = false")
	}
	if p.FieldCount() != 1 {
		t.Errorf("FieldCount = %d", p.FieldCount())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := New()
	p.Set(DomainSkills, "technical", Field{Value: "orig", Source: "a", Seq: 1})

	c := p.Clone()
	c.Set(DomainSkills, "technical", Field{Value: "changed", Source: "b", Seq: 2})
	c.Set(DomainCareerGoals, "target_role", Field{Value: "new", Source: "b", Seq: 2})

	if f, _ := p.Get(DomainSkills, "technical"); f.Value != "orig" {
		t.Errorf("clone write leaked into original: %+v", f)
	}
	if p.Has(DomainCareerGoals, "target_role") {
		t.Error("clone domain leaked into original")
	}
}

func TestEqual(t *testing.T) {
	a := New()
	a.Set(DomainSkills, "technical", Field{Value: "v", Source: "s", Seq: 1})

	b := a.Clone()
	if !a.Equal(b) || !b.Equal(a) {
		t.Error("clone not equal to original")
	}

	b.Set(DomainSkills, "technical", Field{Value: "v", Source: "s", Seq: 2})
	if a.Equal(b) {
		t.Error("differing provenance reported equal")
	}

	c := a.Clone()
	c.Set(DomainSkills, "gaps", Field{Value: "x", Source: "s", Seq: 1})
	if a.Equal(c) {
		t.Error("extra field reported equal")
	}
}

func TestSortedAccessors(t *testing.T) {
	p := New()
	p.Set(DomainSkills, "gaps", Field{})
	p.Set(DomainSkills, "technical", Field{})
	p.Set(DomainCareerGoals, "target_role", Field{})

	domains := p.Domains()
	if len(domains) != 2 || domains[0] != DomainCareerGoals || domains[1] != DomainSkills {
		t.Errorf("Domains = %v", domains)
	}

	names := p.FieldNames(DomainSkills)
	if len(names) != 2 || names[0] != "gaps" || names[1] != "technical" {
		t.Errorf("FieldNames = %v", names)
	}
	if p.FieldNames(DomainLearningStyle) != nil {
		t.Error("FieldNames for absent domain should be nil")
	}
}

func TestPatch(t *testing.T) {
	pt := NewPatch("skills-gap", 7)
	if !pt.Empty() {
		t.Error("new patch not empty")
	}

	pt.Add(DomainSkills, "technical", "go; sql")
	pt.Add(DomainSkills, "gaps", "kubernetes")
	if pt.Empty() {
		t.Error("populated patch reported empty")
	}
	if pt.Fields[DomainSkills]["technical"] != "go; sql" {
		t.Errorf("fields = %v", pt.Fields)
	}

	// Add on a zero-value patch allocates.
	var zero Patch
	zero.Add(DomainSkills, "x", "y")
	if zero.Empty() {
		t.Error("Add on zero patch lost the field")
	}
}
