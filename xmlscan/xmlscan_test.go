package xmlscan

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

func parse(t *testing.T, src string) ([]markup.Signal, []markup.Diagnostic) {
	t.Helper()
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	signals, err := stream.ToList(Signals(input.Scalars(stream.Of([]rune(src)...), rep), rep))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return signals, diags
}

func TestWellFormedDocument(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<?xml version="1.0" encoding="UTF-8"?><doc a="1">hi<!-- c --><?pi data?></doc>`)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	if len(signals) != 6 {
		t.Fatalf("expected 6 signals, got %v", signals)
	}
	decl, ok := signals[0].(markup.XmlDecl)
	if !ok || decl.Version != "1.0" || decl.Encoding != "UTF-8" {
		t.Errorf("expected xml declaration, got %v", signals[0])
	}
	start, ok := signals[1].(markup.StartElement)
	if !ok || start.Name.Local != "doc" || len(start.Attrs) != 1 || start.Attrs[0].Value != "1" {
		t.Errorf("unexpected document element: %v", signals[1])
	}
	if txt, ok := signals[2].(markup.Text); !ok || txt.Data() != "hi" {
		t.Errorf("expected text 'hi', got %v", signals[2])
	}
	if cm, ok := signals[3].(markup.Comment); !ok || cm.Text != " c " {
		t.Errorf("expected comment, got %v", signals[3])
	}
	if pi, ok := signals[4].(markup.PI); !ok || pi.Target != "pi" || pi.Text != "data" {
		t.Errorf("expected processing instruction, got %v", signals[4])
	}
	if _, ok := signals[5].(markup.EndElement); !ok {
		t.Errorf("expected end element, got %v", signals[5])
	}
}

func TestNamespaceResolution(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a xmlns:x="u"><x:b/></a>`)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	want := []markup.QName{
		{Space: "", Local: "a"},
		{Space: "u", Local: "b"},
		{Space: "u", Local: "b"},
		{Space: "", Local: "a"},
	}
	if len(signals) != 4 {
		t.Fatalf("expected 4 signals, got %v", signals)
	}
	for i, s := range signals {
		var got markup.QName
		switch sig := s.(type) {
		case markup.StartElement:
			got = sig.Name
		case markup.EndElement:
			got = sig.Name
		}
		if got != want[i] {
			t.Errorf("signal %d: expected %v, got %v", i, want[i], got)
		}
	}
}

func TestDefaultNamespace(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, _ := parse(t, `<a xmlns="d"><b/><c xmlns=""><d/></c></a>`)
	spaces := map[string]string{}
	for _, s := range signals {
		if se, ok := s.(markup.StartElement); ok {
			spaces[se.Name.Local] = se.Name.Space
		}
	}
	if spaces["a"] != "d" || spaces["b"] != "d" {
		t.Errorf("default namespace not inherited: %v", spaces)
	}
	if spaces["c"] != "" || spaces["d"] != "" {
		t.Errorf("xmlns=\"\" must unbind the default namespace: %v", spaces)
	}
}

func TestMismatchedEndTagRecovery(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a><b></a>`)
	var names []string
	for _, s := range signals {
		switch sig := s.(type) {
		case markup.StartElement:
			names = append(names, "<"+sig.Name.Local+">")
		case markup.EndElement:
			names = append(names, "</"+sig.Name.Local+">")
		}
	}
	want := []string{"<a>", "<b>", "</b>", "</a>"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("signal %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if len(diags) != 1 || diags[0].Kind != markup.UnmatchedEndTag {
		t.Errorf("expected one unmatched-end-tag diagnostic, got %v", diags)
	}
}

func TestStrayEndTagDropped(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a></b></a>`)
	if len(signals) != 2 {
		t.Errorf("expected stray end tag dropped, got %v", signals)
	}
	if len(diags) != 1 || diags[0].Kind != markup.UnmatchedEndTag {
		t.Errorf("expected unmatched-end-tag, got %v", diags)
	}
}

func TestPredefinedEntities(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a>&lt;&amp;&gt;&apos;&quot;&#x41;&#66;</a>`)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	if txt, ok := signals[1].(markup.Text); !ok || txt.Data() != `<&>'"AB` {
		t.Errorf("unexpected text: %v", signals[1])
	}
}

func TestGeneralEntityReportedNotExpanded(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a>&custom;</a>`)
	if txt, ok := signals[1].(markup.Text); !ok || txt.Data() != "&custom;" {
		t.Errorf("expected literal preservation, got %v", signals[1])
	}
	if len(diags) != 1 || diags[0].Kind != markup.BadToken {
		t.Errorf("expected one bad-token diagnostic, got %v", diags)
	}
}

func TestCDATASection(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a><![CDATA[<b>&amp;]]></a>`)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	txt, ok := signals[1].(markup.Text)
	if !ok || txt.Data() != "<b>&amp;" {
		t.Errorf("expected CDATA content verbatim, got %v", signals[1])
	}
	if !txt.CDATA {
		t.Error("expected CDATA marker on text signal")
	}
}

func TestDoctypeExternalIDs(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<!DOCTYPE greeting PUBLIC "-//pub//" "hello.dtd"><greeting/>`)
	if len(diags) != 0 {
		t.Fatalf("expected no diagnostics, got %v", diags)
	}
	dt, ok := signals[0].(markup.Doctype)
	if !ok || dt.Name != "greeting" {
		t.Fatalf("expected doctype, got %v", signals[0])
	}
	if !dt.HasPublicID || dt.PublicID != "-//pub//" {
		t.Errorf("expected public id parsed, got %v", dt)
	}
	if !dt.HasSystemID || dt.SystemID != "hello.dtd" {
		t.Errorf("expected system id parsed, got %v", dt)
	}
}

func TestInternalSubsetSkipped(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, _ := parse(t, `<!DOCTYPE a [<!ENTITY x "y">]><a/>`)
	if _, ok := signals[0].(markup.Doctype); !ok {
		t.Fatalf("expected doctype, got %v", signals[0])
	}
	if _, ok := signals[1].(markup.StartElement); !ok {
		t.Errorf("expected document element after internal subset, got %v", signals[1])
	}
}

func TestDuplicateAttribute(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a b="1" b="2"/>`)
	se := signals[0].(markup.StartElement)
	if len(se.Attrs) != 1 || se.Attrs[0].Value != "1" {
		t.Errorf("expected first occurrence kept, got %v", se.Attrs)
	}
	if len(diags) != 1 || diags[0].Kind != markup.AttributeDuplicated {
		t.Errorf("expected attribute-duplicated, got %v", diags)
	}
}

func TestUndeclaredPrefix(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<x:a/>`)
	se := signals[0].(markup.StartElement)
	if se.Name.Local != "a" || se.Name.Space != "" {
		t.Errorf("expected recovery to no-namespace, got %v", se.Name)
	}
	if len(diags) != 1 || diags[0].Kind != markup.BadNamespace {
		t.Errorf("expected bad-namespace, got %v", diags)
	}
}

func TestUnclosedElementsAtEOF(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.xmlscan")
	defer teardown()
	//
	signals, diags := parse(t, `<a><b>`)
	ends := 0
	for _, s := range signals {
		if _, ok := s.(markup.EndElement); ok {
			ends++
		}
	}
	if ends != 2 {
		t.Errorf("expected both elements closed at EOF, got %v", signals)
	}
	if len(diags) != 2 {
		t.Errorf("expected two bad-document diagnostics, got %v", diags)
	}
}
