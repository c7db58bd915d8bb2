package htmlscan

import (
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

func scan(t *testing.T, in string) ([]Token, []markup.Diagnostic) {
	t.Helper()
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	z := New(input.Scalars(stream.Of([]rune(in)...), rep), rep)
	toks, err := stream.ToList[Token](z)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOFToken {
		t.Fatalf("token stream not terminated by EOF: %v", toks)
	}
	return toks[:len(toks)-1], diags
}

func TestSimpleTags(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `<DIV CLASS="a">text</DIV>`)
	if len(toks) != 3 {
		t.Fatalf("expected 3 tokens, got %v", toks)
	}
	if toks[0].Kind != StartTagToken || toks[0].Name != "div" {
		t.Errorf("expected lowercased start tag div, got %v", toks[0])
	}
	if v, ok := toks[0].Attr("class"); !ok || v != "a" {
		t.Errorf("expected class=a, got %v", toks[0].Attrs)
	}
	if toks[1].Kind != CharsToken || toks[1].Text != "text" {
		t.Errorf("expected aggregated chars 'text', got %v", toks[1])
	}
	if toks[2].Kind != EndTagToken || toks[2].Name != "div" {
		t.Errorf("expected end tag div, got %v", toks[2])
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
}

func TestAttributeVariants(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, _ := scan(t, `<p a="1" b='2' c=3 d>`)
	if len(toks) != 1 {
		t.Fatalf("expected one token, got %v", toks)
	}
	want := map[string]string{"a": "1", "b": "2", "c": "3", "d": ""}
	if len(toks[0].Attrs) != 4 {
		t.Fatalf("expected 4 attributes, got %v", toks[0].Attrs)
	}
	for name, val := range want {
		if v, ok := toks[0].Attr(name); !ok || v != val {
			t.Errorf("attribute %s: expected %q, got %q (ok=%v)", name, val, v, ok)
		}
	}
}

func TestDuplicateAttributeKeepsFirst(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `<p id="1" id="2">`)
	if len(toks[0].Attrs) != 1 || toks[0].Attrs[0].Value != "1" {
		t.Errorf("expected first occurrence kept, got %v", toks[0].Attrs)
	}
	found := false
	for _, d := range diags {
		if d.Kind == markup.AttributeDuplicated {
			found = true
		}
	}
	if !found {
		t.Errorf("expected attribute-duplicated diagnostic, got %v", diags)
	}
}

func TestSelfClosing(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, _ := scan(t, `<br/>`)
	if !toks[0].SelfClosing {
		t.Errorf("expected self-closing flag, got %v", toks[0])
	}
}

func TestEndTagWithAttributesSurfaced(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `</p class="x">`)
	if toks[0].Kind != EndTagToken {
		t.Fatalf("expected end tag, got %v", toks[0])
	}
	if len(toks[0].Attrs) != 1 {
		t.Errorf("expected attributes surfaced on end tag, got %v", toks[0].Attrs)
	}
	if len(diags) == 0 {
		t.Error("expected a parse error for attributes on end tag")
	}
}

func TestComments(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, _ := scan(t, `<!-- a -- b -->`)
	if toks[0].Kind != CommentToken || toks[0].Text != " a -- b " {
		t.Errorf("expected comment ' a -- b ', got %v", toks[0])
	}
}

func TestProcessingInstructionBecomesBogusComment(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `<?php echo ?>`)
	if toks[0].Kind != CommentToken || toks[0].Text != "?php echo ?" {
		t.Errorf("expected bogus comment, got %v", toks[0])
	}
	if len(diags) == 0 {
		t.Error("expected a diagnostic for the bogus PI")
	}
}

func TestDoctype(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `<!DOCTYPE html>`)
	if toks[0].Kind != DoctypeToken || toks[0].Name != "html" || toks[0].ForceQuirks {
		t.Errorf("expected doctype html, got %v", toks[0])
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
	//
	toks, _ = scan(t, `<!DOCTYPE html PUBLIC "-//W3C//DTD HTML 4.01//EN" "http://www.w3.org/TR/html4/strict.dtd">`)
	d := toks[0]
	if !d.HasPublicID || d.PublicID != "-//W3C//DTD HTML 4.01//EN" {
		t.Errorf("expected public id, got %v", d)
	}
	if !d.HasSystemID || d.SystemID != "http://www.w3.org/TR/html4/strict.dtd" {
		t.Errorf("expected system id, got %v", d)
	}
}

func TestNamedCharacterReferences(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	cases := []struct {
		in, want string
		diags    int
	}{
		{"&amp;&lt;", "&<", 0},
		{"&AMP", "&", 1}, // legacy, missing semicolon
		{"&unknown;", "&unknown;", 1},
		{"&notit;", "¬it;", 1},
		{"& x", "& x", 0}, // bare ampersand is not a reference
	}
	for _, c := range cases {
		toks, diags := scan(t, c.in)
		if len(toks) != 1 || toks[0].Kind != CharsToken || toks[0].Text != c.want {
			t.Errorf("%q: expected chars %q, got %v", c.in, c.want, toks)
		}
		if len(diags) != c.diags {
			t.Errorf("%q: expected %d diagnostics, got %v", c.in, c.diags, diags)
		}
	}
}

func TestNumericCharacterReferences(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	cases := []struct {
		in, want string
		diags    int
	}{
		{"&#x41;", "A", 0},
		{"&#65;", "A", 0},
		{"&#x80;", "€", 1}, // C1 remap is a parse error
		{"&#0;", "�", 1},
		{"&#x110000;", "�", 1},
	}
	for _, c := range cases {
		toks, diags := scan(t, c.in)
		if len(toks) != 1 || toks[0].Text != c.want {
			t.Errorf("%q: expected %q, got %v", c.in, c.want, toks)
		}
		if len(diags) != c.diags {
			t.Errorf("%q: expected %d diagnostics, got %v", c.in, c.diags, diags)
		}
	}
}

func TestLegacyReferenceInAttribute(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	// The historical rule: &not followed by '=' inside an attribute value
	// stays literal.
	toks, _ := scan(t, `<a href="?a=b&not=c">`)
	if v, _ := toks[0].Attr("href"); v != "?a=b&not=c" {
		t.Errorf("expected literal preservation, got %q", v)
	}
	toks, _ = scan(t, `<a href="x&amp;y">`)
	if v, _ := toks[0].Attr("href"); v != "x&y" {
		t.Errorf("expected &amp; resolved, got %q", v)
	}
}

func TestRCDATA(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	z := New(input.Scalars(stream.Of([]rune("<title>a <b> &amp; c</title>d")...), rep), rep)
	var toks []Token
	for {
		var tok Token
		done := false
		z.Advance(
			func(e error) { t.Fatalf("stream error: %v", e) },
			func() { done = true },
			func(v Token) { tok = v })
		if done {
			break
		}
		toks = append(toks, tok)
		if tok.Kind == StartTagToken && tok.Name == "title" {
			z.NextIsRCDATA("title")
		}
	}
	// start, chars, end, chars, EOF
	if len(toks) != 5 {
		t.Fatalf("expected 5 tokens, got %v", toks)
	}
	if toks[1].Text != "a <b> & c" {
		t.Errorf("expected markup inert inside RCDATA, got %q", toks[1].Text)
	}
	if toks[2].Kind != EndTagToken || toks[2].Name != "title" {
		t.Errorf("expected </title> to close RCDATA, got %v", toks[2])
	}
}

func TestScriptDataEscaped(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	in := "<script><!-- if (a<b) { } --></script>"
	z := New(input.Scalars(stream.Of([]rune(in)...), rep), rep)
	var toks []Token
	for {
		var tok Token
		done := false
		z.Advance(
			func(e error) { t.Fatalf("stream error: %v", e) },
			func() { done = true },
			func(v Token) { tok = v })
		if done {
			break
		}
		toks = append(toks, tok)
		if tok.Kind == StartTagToken && tok.Name == "script" {
			z.NextIsScriptData()
		}
	}
	if len(toks) != 4 { // start, chars, end, EOF
		t.Fatalf("expected 4 tokens, got %v", toks)
	}
	if toks[1].Text != "<!-- if (a<b) { } -->" {
		t.Errorf("expected script body verbatim, got %q", toks[1].Text)
	}
}

func TestCDATAOutsideForeignContent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `<![CDATA[x]]>`)
	if toks[0].Kind != CommentToken || toks[0].Text != "[CDATA[x]]" {
		t.Errorf("expected bogus comment, got %v", toks[0])
	}
	if len(diags) == 0 {
		t.Error("expected a diagnostic for CDATA outside foreign content")
	}
}

func TestCDATAInForeignContent(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	var diags []markup.Diagnostic
	rep := markup.Collect(&diags)
	z := New(input.Scalars(stream.Of([]rune("<![CDATA[a]]b]]>c")...), rep), rep)
	z.PermitCDATA(true)
	toks, err := stream.ToList[Token](z)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if toks[0].Kind != CharsToken || toks[0].Text != "a]]bc" {
		t.Errorf("expected CDATA text 'a]]bc', got %v", toks[0])
	}
}

func TestEOFInsideTag(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, diags := scan(t, `a<p class="x`)
	if len(toks) != 1 || toks[0].Kind != CharsToken || toks[0].Text != "a" {
		t.Errorf("expected only chars 'a' (tag dropped at EOF), got %v", toks)
	}
	if len(diags) == 0 {
		t.Error("expected an EOF-in-tag diagnostic")
	}
}

func TestLocations(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.htmlscan")
	defer teardown()
	//
	toks, _ := scan(t, "ab\n<p>")
	if toks[0].Loc != (markup.Location{Line: 1, Col: 1}) {
		t.Errorf("chars location: got %v", toks[0].Loc)
	}
	if toks[1].Loc != (markup.Location{Line: 2, Col: 1}) {
		t.Errorf("tag location: got %v", toks[1].Loc)
	}
	prev := markup.Location{Line: 1, Col: 1}
	for _, tok := range toks {
		if tok.Loc.Before(prev) {
			t.Errorf("locations go backwards at %v", tok)
		}
		prev = tok.Loc
	}
}
