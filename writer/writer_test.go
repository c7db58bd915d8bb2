package writer

import (
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

func render(t *testing.T, s stream.Stream[[]byte]) string {
	t.Helper()
	chunks, err := stream.ToList(s)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	var b strings.Builder
	for _, c := range chunks {
		b.Write(c)
	}
	return b.String()
}

func html(local string) markup.QName {
	return markup.QName{Space: markup.NsHTML, Local: local}
}

func TestHTMLEscaping(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: html("p"), Attrs: []markup.Attr{
			{Name: markup.QName{Local: "title"}, Value: `a"b&c`},
		}},
		markup.Text{Runs: []string{"x<y&z>"}},
		markup.EndElement{Name: html("p")},
	}
	got := render(t, HTML(stream.Of(signals...), nil))
	want := `<p title="a&quot;b&amp;c">x&lt;y&amp;z&gt;</p>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestHTMLVoidElements(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: html("br")},
		markup.EndElement{Name: html("br")},
		markup.StartElement{Name: html("img"), Attrs: []markup.Attr{
			{Name: markup.QName{Local: "src"}, Value: "u"},
		}},
		markup.EndElement{Name: html("img")},
	}
	got := render(t, HTML(stream.Of(signals...), nil))
	if got != `<br><img src="u">` {
		t.Errorf("void elements must have no end tag and no solidus, got %s", got)
	}
}

func TestHTMLRawTextBodies(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: html("script")},
		markup.Text{Runs: []string{"if (a<b) c&&d();"}},
		markup.EndElement{Name: html("script")},
	}
	got := render(t, HTML(stream.Of(signals...), nil))
	if got != "<script>if (a<b) c&&d();</script>" {
		t.Errorf("script body must be raw, got %s", got)
	}
}

func TestHTMLUnbalancedEndRefused(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	var diags []markup.Diagnostic
	signals := []markup.Signal{
		markup.EndElement{Name: html("div")},
	}
	got := render(t, HTML(stream.Of(signals...), markup.Collect(&diags)))
	if got != "" {
		t.Errorf("unbalanced end element must be dropped, got %q", got)
	}
	if len(diags) != 1 || diags[0].Kind != markup.BadDocument {
		t.Errorf("expected a bad-document diagnostic, got %v", diags)
	}
}

func TestHTMLDoctype(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	got := render(t, HTML(stream.Of[markup.Signal](markup.Doctype{Name: "html"}), nil))
	if got != "<!DOCTYPE html>" {
		t.Errorf("expected <!DOCTYPE html>, got %s", got)
	}
}

func TestXMLDeclarationAndEmptyElement(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.XmlDecl{Version: "1.0"},
		markup.StartElement{Name: markup.QName{Local: "a"}},
		markup.StartElement{Name: markup.QName{Local: "b"}},
		markup.EndElement{Name: markup.QName{Local: "b"}},
		markup.EndElement{Name: markup.QName{Local: "a"}},
	}
	got := render(t, XML(stream.Of(signals...), XMLConfig{}))
	want := `<?xml version="1.0" encoding="UTF-8"?><a><b/></a>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLPrefixSynthesis(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: markup.QName{Space: "u1", Local: "a"}},
		markup.StartElement{Name: markup.QName{Space: "u2", Local: "b"}},
		markup.EndElement{Name: markup.QName{Space: "u2", Local: "b"}},
		markup.EndElement{Name: markup.QName{Space: "u1", Local: "a"}},
	}
	got := render(t, XML(stream.Of(signals...), XMLConfig{}))
	want := `<ns1:a xmlns:ns1="u1"><ns2:b xmlns:ns2="u2"/></ns1:a>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLPrefixReuseInScope(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: markup.QName{Space: "u", Local: "a"}},
		markup.StartElement{Name: markup.QName{Space: "u", Local: "b"}},
		markup.EndElement{Name: markup.QName{Space: "u", Local: "b"}},
		markup.EndElement{Name: markup.QName{Space: "u", Local: "a"}},
	}
	got := render(t, XML(stream.Of(signals...), XMLConfig{}))
	want := `<ns1:a xmlns:ns1="u"><ns1:b/></ns1:a>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLPrefixPolicy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	cfg := XMLConfig{Prefix: func(uri string) string {
		if uri == "http://www.w3.org/2000/svg" {
			return "svg"
		}
		return ""
	}}
	signals := []markup.Signal{
		markup.StartElement{Name: markup.QName{Space: "http://www.w3.org/2000/svg", Local: "rect"}},
		markup.EndElement{Name: markup.QName{Space: "http://www.w3.org/2000/svg", Local: "rect"}},
	}
	got := render(t, XML(stream.Of(signals...), cfg))
	want := `<svg:rect xmlns:svg="http://www.w3.org/2000/svg"/>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLEscaping(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: markup.QName{Local: "a"}, Attrs: []markup.Attr{
			{Name: markup.QName{Local: "q"}, Value: `<>&"'`},
		}},
		markup.Text{Runs: []string{"x<y&z>"}},
		markup.EndElement{Name: markup.QName{Local: "a"}},
	}
	got := render(t, XML(stream.Of(signals...), XMLConfig{}))
	want := `<a q="&lt;&gt;&amp;&quot;&apos;">x&lt;y&amp;z&gt;</a>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLCDATAOnRequest(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	signals := []markup.Signal{
		markup.StartElement{Name: markup.QName{Local: "a"}},
		markup.Text{Runs: []string{"1 < 2 ]]> done"}, CDATA: true},
		markup.EndElement{Name: markup.QName{Local: "a"}},
	}
	got := render(t, XML(stream.Of(signals...), XMLConfig{}))
	want := `<a><![CDATA[1 < 2 ]]]]><![CDATA[> done]]></a>`
	if got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestXMLUnbalancedEndRefused(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.writer")
	defer teardown()
	//
	var diags []markup.Diagnostic
	got := render(t, XML(stream.Of[markup.Signal](
		markup.EndElement{Name: markup.QName{Local: "a"}},
	), XMLConfig{Report: markup.Collect(&diags)}))
	if got != "" {
		t.Errorf("unbalanced end element must be dropped, got %q", got)
	}
	if len(diags) != 1 {
		t.Errorf("expected one diagnostic, got %v", diags)
	}
}
