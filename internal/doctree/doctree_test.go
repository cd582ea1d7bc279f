package doctree

import "testing"

func TestSectionPath_Update(t *testing.T) {
	var p SectionPath
	p = p.Update("1 Intro", 1)
	p = p.Update("1.1 Scope", 2)
	p = p.Update("1.1.1 Boundary", 3)
	if got := p.String(); got != "1 Intro > 1.1 Scope > 1.1.1 Boundary" {
		t.Fatalf("unexpected path %q", got)
	}

	p = p.Update("1.2 Method", 2)
	if got := p.String(); got != "1 Intro > 1.2 Method" {
		t.Fatalf("expected sibling to replace deeper entries, got %q", got)
	}

	p = p.Update("2 Results", 1)
	if got := p.String(); got != "2 Results" {
		t.Fatalf("expected top-level heading to reset path, got %q", got)
	}
}

func TestSectionPath_UpdateSkippedLevel(t *testing.T) {
	// A depth-3 heading with only one ancestor keeps what exists.
	p := SectionPath{"1 Intro"}.Update("1.1.1 Deep", 3)
	if len(p) != 2 || p[1] != "1.1.1 Deep" {
		t.Fatalf("unexpected path %v", p)
	}
}

func TestSectionPath_UpdateDoesNotAlias(t *testing.T) {
	base := SectionPath{"1 A", "1.1 B"}
	a := base.Update("1.2 C", 2)
	b := base.Update("1.3 D", 2)
	if a[1] != "1.2 C" || b[1] != "1.3 D" {
		t.Fatalf("updates aliased: %v %v", a, b)
	}
	if base[1] != "1.1 B" {
		t.Fatalf("base path mutated: %v", base)
	}
}

func TestSectionPath_EmptyString(t *testing.T) {
	var p SectionPath
	if p.String() != "" {
		t.Fatalf("expected empty string, got %q", p.String())
	}
}
