package input

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

func scalars(t *testing.T, in string, report markup.Report) []Scalar {
	t.Helper()
	l, err := stream.ToList(Scalars(stream.Of([]rune(in)...), report))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l
}

func text(ss []Scalar) string {
	rs := make([]rune, len(ss))
	for i, s := range ss {
		rs[i] = s.R
	}
	return string(rs)
}

func TestNewlineNormalization(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.input")
	defer teardown()
	//
	cases := []struct{ in, want string }{
		{"a\r\nb", "a\nb"},
		{"a\rb", "a\nb"},
		{"a\r\rb", "a\n\nb"},
		{"a\r\n\nb", "a\n\nb"},
	}
	for _, c := range cases {
		if got := text(scalars(t, c.in, nil)); got != c.want {
			t.Errorf("%q: expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestLocations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.input")
	defer teardown()
	//
	ss := scalars(t, "ab\ncd", nil)
	want := []markup.Location{
		{Line: 1, Col: 1}, {Line: 1, Col: 2}, {Line: 1, Col: 3},
		{Line: 2, Col: 1}, {Line: 2, Col: 2},
	}
	if len(ss) != len(want) {
		t.Fatalf("expected %d scalars, got %d", len(want), len(ss))
	}
	for i, s := range ss {
		if s.Loc != want[i] {
			t.Errorf("scalar %d: expected %v, got %v", i, want[i], s.Loc)
		}
	}
}

func TestLocationsMonotone(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.input")
	defer teardown()
	//
	ss := scalars(t, "a\r\nb\rc\nd\te", nil)
	for i := 1; i < len(ss); i++ {
		if ss[i].Loc.Before(ss[i-1].Loc) {
			t.Errorf("location %v at #%d goes backwards from %v", ss[i].Loc, i, ss[i-1].Loc)
		}
	}
}

func TestSurrogateRejected(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.input")
	defer teardown()
	//
	var diags []markup.Diagnostic
	in := []rune{'a', 0xD800, 'b'}
	l, err := stream.ToList(Scalars(stream.Of(in...), markup.Collect(&diags)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text(l) != "a�b" {
		t.Errorf("expected surrogate replaced, got %q", text(l))
	}
	if len(diags) != 1 || diags[0].Kind != markup.DecodingError {
		t.Errorf("expected a decoding-error diagnostic, got %v", diags)
	}
}
