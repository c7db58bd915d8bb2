package sigil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/stream"
	"github.com/stretchr/testify/require"
)

func parseHTMLString(t *testing.T, src string, opts ...Option) []Signal {
	t.Helper()
	signals, err := stream.ToList(ParseHTMLReader(strings.NewReader(src), opts...))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return signals
}

func parseXMLString(t *testing.T, src string, opts ...Option) []Signal {
	t.Helper()
	signals, err := stream.ToList(ParseXMLReader(strings.NewReader(src), opts...))
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return signals
}

// normalize renders signals location-free and with adjacent text merged,
// for round-trip comparisons.
func normalize(signals []Signal) []string {
	var out []string
	var text strings.Builder
	cdata := false
	flush := func() {
		if text.Len() > 0 {
			marker := "text:"
			if cdata {
				marker = "cdata:"
			}
			out = append(out, marker+text.String())
			text.Reset()
		}
		cdata = false
	}
	for _, s := range signals {
		switch sig := s.(type) {
		case Text:
			cdata = sig.CDATA
			text.WriteString(sig.Data())
			continue
		case StartElement:
			flush()
			label := "<" + sig.Name.String()
			for _, a := range sig.Attrs {
				label += fmt.Sprintf(" %s=%q", a.Name, a.Value)
			}
			out = append(out, label+">")
		case EndElement:
			flush()
			out = append(out, "</"+sig.Name.String()+">")
		case Comment:
			flush()
			out = append(out, "<!--"+sig.Text+"-->")
		case PI:
			flush()
			out = append(out, "<?"+sig.Target+" "+sig.Text+"?>")
		case Doctype:
			flush()
			out = append(out, "<!DOCTYPE "+sig.Name+">")
		case XmlDecl:
			flush()
			out = append(out, "<?xml?>")
		}
	}
	flush()
	return out
}

func TestHTMLRoundTrip(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	inputs := []string{
		`<!DOCTYPE html><p class="x">a&amp;b<br>c</p>`,
		`<table><tr><td>x</table>`,
		`<b>1<i>2</b>3</i>4`,
		`<ul><li>one<li>two</ul>`,
		`<script>if (a<b) f();</script><p>done`,
	}
	for _, in := range inputs {
		first := parseHTMLString(t, in)
		rendered, err := RenderString(WriteHTML(stream.Of(first...)))
		require.NoError(t, err, in)
		second := parseHTMLString(t, rendered)
		require.Equal(t, normalize(first), normalize(second),
			"round trip diverged for %q (rendered %q)", in, rendered)
	}
}

func TestXMLRoundTrip(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	inputs := []string{
		`<?xml version="1.0"?><a k="v"><b>t</b><c/></a>`,
		`<a xmlns:x="u"><x:b>t</x:b></a>`,
		`<a><![CDATA[1 < 2]]></a>`,
		`<a><!-- note --><?target data?></a>`,
	}
	for _, in := range inputs {
		first := parseXMLString(t, in)
		rendered, err := RenderString(WriteXML(stream.Of(first...)))
		require.NoError(t, err, in)
		second := parseXMLString(t, rendered)
		require.Equal(t, normalize(first), normalize(second),
			"round trip diverged for %q (rendered %q)", in, rendered)
	}
}

func TestDiagnosticsOrderedWithSignals(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	// A diagnostic attached to a token must be delivered before the
	// signal derived from that token.
	var order []string
	rep := func(d Diagnostic) { order = append(order, "diag:"+d.Kind.String()) }
	signals := ParseHTMLReader(strings.NewReader("<b>1<i>2</b>3</i>4"), WithReport(rep))
	for {
		done := false
		signals.Advance(
			func(err error) { t.Fatalf("stream error: %v", err) },
			func() { done = true },
			func(s Signal) {
				if e, ok := s.(EndElement); ok {
					order = append(order, "end:"+e.Name.Local)
				}
			})
		if done {
			break
		}
	}
	// the misnested-tag diagnostic precedes the </i> and </b> emitted by
	// the recovery
	want := []string{"diag:misnested-tag", "end:i", "end:b", "end:i", "end:body", "end:html"}
	require.Equal(t, want, order)
}

func TestForcedEncodingOverride(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	// 0xE9 is é in Windows-1252; forcing the encoding overrides the
	// (absent) detection.
	signals := parseHTMLString(t, "caf\xe9", Encoding("windows-1252"))
	var text string
	for _, s := range signals {
		if txt, ok := s.(Text); ok {
			text += txt.Data()
		}
	}
	if text != "café" {
		t.Errorf("expected café, got %q", text)
	}
}

func TestFragmentOption(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	signals := parseHTMLString(t, "a<em>b</em>", Context("div"))
	got := normalize(signals)
	em := QName{Space: NsHTML, Local: "em"}
	want := []string{"text:a", "<" + em.String() + ">", "text:b", "</" + em.String() + ">"}
	require.Equal(t, want, got)
}

func TestDumpTree(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.pipeline")
	defer teardown()
	//
	signals := parseHTMLString(t, "<p>a<b>c</b></p>")
	dump := DumpTree(signals)
	p := QName{Space: NsHTML, Local: "p"}
	b := QName{Space: NsHTML, Local: "b"}
	for _, want := range []string{"<" + p.String() + ">", "<" + b.String() + ">", `"a"`, `"c"`} {
		if !strings.Contains(dump, want) {
			t.Errorf("expected dump to contain %s:\n%s", want, dump)
		}
	}
}
