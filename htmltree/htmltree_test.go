package htmltree

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/htmlscan"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

func parse(t *testing.T, src string, cfg Config) ([]markup.Signal, []markup.Diagnostic) {
	t.Helper()
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	cfg.Report = rep
	z := htmlscan.New(input.Scalars(stream.Of([]rune(src)...), rep), rep)
	signals, err := stream.ToList(Signals(z, cfg))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return signals, diags
}

// bodyContent slices out the signals between <body> and </body>.
func bodyContent(t *testing.T, signals []markup.Signal) []markup.Signal {
	t.Helper()
	start, end := -1, -1
	depth := 0
	for i, s := range signals {
		switch sig := s.(type) {
		case markup.StartElement:
			if sig.Name.Local == "body" && start < 0 {
				start = i + 1
				depth = 0
				continue
			}
			if start >= 0 {
				depth++
			}
		case markup.EndElement:
			if start >= 0 {
				if depth == 0 {
					end = i
				} else {
					depth--
				}
			}
		}
		if end >= 0 {
			break
		}
	}
	if start < 0 || end < 0 {
		t.Fatalf("no body element in %v", signals)
	}
	return signals[start:end]
}

// sketch renders a signal slice compactly for comparisons.
func sketch(signals []markup.Signal) []string {
	var out []string
	for _, s := range signals {
		switch sig := s.(type) {
		case markup.StartElement:
			out = append(out, "<"+sig.Name.Local+">")
		case markup.EndElement:
			out = append(out, "</"+sig.Name.Local+">")
		case markup.Text:
			out = append(out, sig.Data())
		case markup.Comment:
			out = append(out, "<!--"+sig.Text+"-->")
		case markup.Doctype:
			out = append(out, "<!DOCTYPE "+sig.Name+">")
		}
	}
	return out
}

func equalSketch(a []string, b ...string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDocumentScaffolding(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "x", Config{})
	got := sketch(signals)
	if !equalSketch(got, "<html>", "<head>", "</head>", "<body>", "x", "</body>", "</html>") {
		t.Errorf("unexpected scaffolding: %v", got)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
}

func TestImplicitParagraphEnd(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<p>a<p>b", Config{})
	got := sketch(bodyContent(t, signals))
	if !equalSketch(got, "<p>", "a", "</p>", "<p>", "b", "</p>") {
		t.Errorf("unexpected signals: %v", got)
	}
	if len(diags) != 0 {
		t.Errorf("implicit paragraph end is not an error, got %v", diags)
	}
}

func TestAdoptionAgency(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<b>1<i>2</b>3</i>4", Config{})
	got := sketch(bodyContent(t, signals))
	if !equalSketch(got,
		"<b>", "1", "<i>", "2", "</i>", "</b>", "<i>", "3", "</i>", "4") {
		t.Errorf("unexpected signals: %v", got)
	}
	misnested := 0
	for _, d := range diags {
		if d.Kind == markup.MisnestedTag {
			misnested++
		}
	}
	if misnested != 1 {
		t.Errorf("expected one misnested-tag diagnostic, got %v", diags)
	}
}

func TestImplicitTableBody(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<table><tr><td>x</table>", Config{})
	got := sketch(bodyContent(t, signals))
	if !equalSketch(got,
		"<table>", "<tbody>", "<tr>", "<td>", "x", "</td>", "</tr>", "</tbody>", "</table>") {
		t.Errorf("unexpected signals: %v", got)
	}
	if len(diags) != 0 {
		t.Errorf("implicit tbody is not an error, got %v", diags)
	}
}

func TestEntitiesInBody(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<!DOCTYPE html><html><body>&amp;&lt;&unknown;", Config{})
	var text string
	for _, s := range signals {
		if txt, ok := s.(markup.Text); ok {
			text += txt.Data()
		}
	}
	if text != "&<&unknown;" {
		t.Errorf("expected unknown entity preserved literally, got %q", text)
	}
	if len(diags) != 1 || diags[0].Kind != markup.BadToken {
		t.Errorf("expected one bad-token diagnostic, got %v", diags)
	}
	if _, ok := signals[0].(markup.Doctype); !ok {
		t.Errorf("expected leading doctype signal, got %v", signals[0])
	}
}

func TestRawTextScript(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, _ := parse(t, "<script>if (a<b) x();</script>", Config{})
	found := false
	for _, s := range signals {
		if txt, ok := s.(markup.Text); ok && txt.Data() == "if (a<b) x();" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected script body kept verbatim, got %v", sketch(signals))
	}
}

func TestNoscriptDependsOnScripting(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	// scripting on: noscript content is raw text
	signals, _ := parse(t, "<body><noscript><p>x</p></noscript>", Config{Scripting: true})
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok && se.Name.Local == "p" {
			t.Error("noscript content must be raw text with scripting enabled")
		}
	}
	// scripting off: noscript content parses normally
	signals, _ = parse(t, "<body><noscript><p>x</p></noscript>", Config{Scripting: false})
	foundP := false
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok && se.Name.Local == "p" {
			foundP = true
		}
	}
	if !foundP {
		t.Error("noscript content must parse with scripting disabled")
	}
}

func TestForeignContentSVG(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, `<svg viewbox="0 0 1 1"><foreignobject/><circle/></svg>`, Config{})
	var svg, fo markup.StartElement
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok {
			switch se.Name.Local {
			case "svg":
				svg = se
			case "foreignObject":
				fo = se
			}
		}
	}
	if svg.Name.Space != markup.NsSVG {
		t.Errorf("expected svg element in SVG namespace, got %v", svg)
	}
	if len(svg.Attrs) != 1 || svg.Attrs[0].Name.Local != "viewBox" {
		t.Errorf("expected viewBox attribute adjustment, got %v", svg.Attrs)
	}
	if fo.Name.Local != "foreignObject" {
		t.Error("expected foreignObject tag-name adjustment")
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
}

func TestForeignBreakout(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<svg><desc2>a</desc2><p>b", Config{})
	got := sketch(bodyContent(t, signals))
	if !equalSketch(got, "<svg>", "<desc2>", "a", "</desc2>", "</svg>", "<p>", "b", "</p>") {
		t.Errorf("expected <p> to break out of SVG, got %v", got)
	}
	hasBreakout := false
	for _, d := range diags {
		if d.Kind == markup.BadContent {
			hasBreakout = true
		}
	}
	if !hasBreakout {
		t.Errorf("expected a bad-content diagnostic for the breakout, got %v", diags)
	}
}

func TestXLinkAttributeAdjustment(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, _ := parse(t, `<svg><a xlink:href="u">x</a></svg>`, Config{})
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok && se.Name.Local == "a" {
			if len(se.Attrs) != 1 || se.Attrs[0].Name.Space != markup.NsXLink ||
				se.Attrs[0].Name.Local != "href" {
				t.Errorf("expected xlink:href in XLink namespace, got %v", se.Attrs)
			}
			return
		}
	}
	t.Error("no <a> element found")
}

func TestTemplateContentsInline(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, _ := parse(t, "<template><td>x</td></template>done", Config{})
	var names []string
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok {
			names = append(names, se.Name.Local)
		}
	}
	// template contents are emitted between its start and end signals
	want := []string{"html", "head", "template", "td", "body"}
	if len(names) != len(want) {
		t.Fatalf("unexpected elements %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("element %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestFragmentParsing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "a<span>b</span>", Config{Context: "div"})
	got := sketch(signals)
	if !equalSketch(got, "a", "<span>", "b", "</span>") {
		t.Errorf("fragment output must not carry document scaffolding: %v", got)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
}

func TestSelect(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, _ := parse(t, "<select><option>a<option>b</select>", Config{})
	got := sketch(bodyContent(t, signals))
	if !equalSketch(got,
		"<select>", "<option>", "a", "</option>", "<option>", "b", "</option>", "</select>") {
		t.Errorf("unexpected signals: %v", got)
	}
}

func TestUnclosedElementsReportedAtEOF(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, diags := parse(t, "<div><span>x", Config{})
	found := false
	for _, d := range diags {
		if d.Kind == markup.BadDocument {
			found = true
		}
	}
	if !found {
		t.Errorf("expected bad-document diagnostics for unclosed elements, got %v", diags)
	}
	assertBalanced(t, signals)
}

// assertBalanced checks the central invariant: StartElement/EndElement
// form a correct parenthesization with matching names.
func assertBalanced(t *testing.T, signals []markup.Signal) {
	t.Helper()
	var stack []markup.QName
	for _, s := range signals {
		switch sig := s.(type) {
		case markup.StartElement:
			stack = append(stack, sig.Name)
		case markup.EndElement:
			if len(stack) == 0 {
				t.Fatalf("unbalanced EndElement %v", sig)
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top != sig.Name {
				t.Fatalf("EndElement %v closes %v", sig.Name, top)
			}
		}
	}
	if len(stack) != 0 {
		t.Fatalf("unclosed elements remain: %v", stack)
	}
}

func TestBalanceOnMalformedInputs(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	inputs := []string{
		"<b><i></b></i>",
		"<table>x<tr><td><div></table>",
		"</p></p></div>",
		"<a href=x><a href=y>z",
		"<ul><li>a<li>b</ul></li>",
		"<svg><g><p>x",
		"<select><table><tr>",
		"<template><tr><td>",
		"<h1><h2>x</h1>",
		"<form><form><input>",
		"<!doctype html><frameset><frame></frameset>",
	}
	for _, in := range inputs {
		signals, _ := parse(t, in, Config{})
		assertBalanced(t, signals)
	}
}

func TestLocationsNonDecreasing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmltree")
	defer teardown()
	//
	signals, _ := parse(t, "<p>a\n<p>b\n<table><tr><td>c</table>", Config{})
	prev := markup.Location{Line: 1, Col: 1}
	for _, s := range signals {
		loc := s.Location()
		if loc == (markup.Location{}) {
			continue // synthesized end signals carry no location
		}
		if loc.Before(prev) {
			t.Errorf("location %v goes backwards (previous %v)", loc, prev)
		}
		prev = loc
	}
}
