package entity

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"golang.org/x/net/html"
)

func match(s string) (string, bool) {
	m := New()
	for _, r := range s {
		if !m.Step(r) {
			return "", false
		}
	}
	return m.Terminal()
}

func TestReplacementsAgainstReference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.entity")
	defer teardown()
	//
	// x/net/html carries the full WHATWG table; our trie must agree with
	// it on every name it contains.
	for name, want := range table {
		ref := html.UnescapeString("&" + name)
		if ref == "&"+name {
			t.Errorf("reference table does not know %q, ours does", name)
			continue
		}
		if got, ok := match(name); !ok || got != want || got != ref {
			t.Errorf("%q: trie=%q table=%q reference=%q", name, got, want, ref)
		}
	}
}

func TestIncrementalMatching(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.entity")
	defer teardown()
	//
	m := New()
	for _, r := range "not" {
		if !m.Step(r) {
			t.Fatalf("dead matcher at %q", r)
		}
	}
	if repl, ok := m.Terminal(); !ok || repl != "¬" {
		t.Errorf("expected 'not' to be a legacy terminal ¬, got %q/%v", repl, ok)
	}
	if !m.Legacy() {
		t.Error("expected 'not' to be marked legacy")
	}
	if !m.CanContinue() {
		t.Error("expected longer matches after 'not' (notin;)")
	}
	for _, r := range "in;" {
		if !m.Step(r) {
			t.Fatalf("dead matcher at %q", r)
		}
	}
	if repl, ok := m.Terminal(); !ok || repl != "∉" {
		t.Errorf("expected 'notin;' to resolve to ∉, got %q/%v", repl, ok)
	}
	if m.Legacy() {
		t.Error("'notin;' must not be marked legacy")
	}
}

func TestDeadPathStaysDead(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.entity")
	defer teardown()
	//
	m := New()
	if m.Step('q') != true {
		t.Fatal("expected q to start quot")
	}
	if m.Step('z') {
		t.Error("expected qz to be a dead path")
	}
	if m.Step('u') {
		t.Error("expected dead matcher to stay dead")
	}
	if _, ok := m.Terminal(); ok {
		t.Error("dead matcher must not report a terminal")
	}
}

func TestNumericReplacements(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.entity")
	defer teardown()
	//
	cases := []struct {
		cp   int64
		want rune
		ok   bool
	}{
		{0x41, 'A', true},
		{0x80, '€', false}, // C1 remap
		{0x9F, 'Ÿ', false}, // C1 remap
		{0x00, '�', false},
		{0xD800, '�', false},
		{0x110000, '�', false},
		{0x10FFFF, '\U0010FFFF', true},
	}
	for _, c := range cases {
		got, ok := Numeric(c.cp)
		if got != c.want || ok != c.ok {
			t.Errorf("Numeric(%#x) = %q/%v, expected %q/%v", c.cp, got, ok, c.want, c.ok)
		}
	}
}

func TestMultiCodepointReplacement(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.entity")
	defer teardown()
	//
	if repl, ok := match("NotEqualTilde;"); !ok || repl != "≂̸" {
		t.Errorf("expected two-codepoint replacement, got %q/%v", repl, ok)
	}
}
