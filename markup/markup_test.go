package markup

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestLocationOrdering(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.markup")
	defer teardown()
	//
	a := Location{Line: 1, Col: 9}
	b := Location{Line: 2, Col: 1}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Error("location ordering is inconsistent")
	}
}

func TestTextData(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.markup")
	defer teardown()
	//
	txt := Text{Runs: []string{"a", "b", "c"}}
	if txt.Data() != "abc" {
		t.Errorf("expected abc, got %q", txt.Data())
	}
}

func TestReportNilSafe(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.markup")
	defer teardown()
	//
	var r Report
	r.Send(BadToken, Location{Line: 1, Col: 1}, "discarded") // must not panic
	//
	var got []Diagnostic
	r = Collect(&got)
	r.Send(MisnestedTag, Location{Line: 3, Col: 4}, "tag %q", "b")
	if len(got) != 1 || got[0].Kind != MisnestedTag || got[0].Loc.Line != 3 {
		t.Errorf("unexpected diagnostics: %v", got)
	}
	if got[0].String() == "" || MisnestedTag.String() != "misnested-tag" {
		t.Error("diagnostic rendering broken")
	}
}
