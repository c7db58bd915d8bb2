/*
Package writer serializes signal sequences back to UTF-8 bytes, for HTML
and for XML. Serialization is the reverse half of the pipeline: both
writers are streaming stages that emit one byte chunk per signal and hold
no more state than the stack of open elements.

Both writers refuse to emit an unbalanced EndElement: the signal is
dropped under a diagnostic, so the output is always well-formed markup.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package writer

import (
	"strings"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
	"golang.org/x/net/html/atom"
)

// tracer traces to 'sigil.writer'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.writer")
}

// voidAtoms are elements serialized without an end tag (and without a
// trailing solidus).
var voidAtoms = map[atom.Atom]bool{
	atom.Area: true, atom.Base: true, atom.Br: true, atom.Col: true,
	atom.Embed: true, atom.Hr: true, atom.Img: true, atom.Input: true,
	atom.Link: true, atom.Meta: true, atom.Param: true, atom.Source: true,
	atom.Track: true, atom.Wbr: true,
}

// HTML serializes a signal stream as an HTML document.
func HTML(src stream.Stream[markup.Signal], report markup.Report) stream.Stream[[]byte] {
	w := &htmlWriter{report: report}
	return stream.NewStage[markup.Signal, []byte](src, w.step, w.flush)
}

type htmlOpen struct {
	name string
	void bool
	raw  bool // script or style: body is emitted unescaped
}

type htmlWriter struct {
	report markup.Report
	stack  []htmlOpen
}

func (w *htmlWriter) inRawText() bool {
	return len(w.stack) > 0 && w.stack[len(w.stack)-1].raw
}

func (w *htmlWriter) step(s markup.Signal, emit func([]byte)) {
	var b strings.Builder
	switch sig := s.(type) {

	case markup.Doctype:
		b.WriteString("<!DOCTYPE ")
		b.WriteString(sig.Name)
		if sig.HasPublicID {
			b.WriteString(` PUBLIC "`)
			b.WriteString(sig.PublicID)
			b.WriteString(`"`)
			if sig.HasSystemID {
				b.WriteString(` "`)
				b.WriteString(sig.SystemID)
				b.WriteString(`"`)
			}
		} else if sig.HasSystemID {
			b.WriteString(` SYSTEM "`)
			b.WriteString(sig.SystemID)
			b.WriteString(`"`)
		}
		b.WriteString(">")

	case markup.StartElement:
		name := sig.Name.Local
		a := atom.Lookup([]byte(name))
		b.WriteString("<")
		b.WriteString(name)
		for _, attr := range sig.Attrs {
			b.WriteString(" ")
			b.WriteString(htmlAttrName(attr.Name))
			b.WriteString(`="`)
			b.WriteString(escapeHTMLAttr(attr.Value))
			b.WriteString(`"`)
		}
		b.WriteString(">")
		void := sig.Name.Space == markup.NsHTML && voidAtoms[a]
		raw := sig.Name.Space == markup.NsHTML && (a == atom.Script || a == atom.Style)
		w.stack = append(w.stack, htmlOpen{name: name, void: void, raw: raw})

	case markup.EndElement:
		if len(w.stack) == 0 {
			w.report.Send(markup.BadDocument, sig.Loc, "unbalanced end element </%s> dropped", sig.Name.Local)
			return
		}
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		if top.void {
			return // void elements have no end tag
		}
		b.WriteString("</")
		b.WriteString(top.name)
		b.WriteString(">")

	case markup.Text:
		for _, run := range sig.Runs {
			if w.inRawText() {
				b.WriteString(run) // script and style bodies stay raw
			} else {
				b.WriteString(escapeHTMLText(run))
			}
		}

	case markup.Comment:
		b.WriteString("<!--")
		b.WriteString(sig.Text)
		b.WriteString("-->")

	case markup.PI:
		// HTML has no processing instructions; serialize the WHATWG way.
		b.WriteString("<?")
		b.WriteString(sig.Target)
		if sig.Text != "" {
			b.WriteString(" ")
			b.WriteString(sig.Text)
		}
		b.WriteString(">")

	case markup.XmlDecl:
		w.report.Send(markup.BadDocument, sig.Loc, "xml declaration dropped in HTML output")
		return
	}
	if b.Len() > 0 {
		emit([]byte(b.String()))
	}
}

func (w *htmlWriter) flush(emit func([]byte)) {
	for i := len(w.stack) - 1; i >= 0; i-- {
		top := w.stack[i]
		w.report.Send(markup.BadDocument, markup.Location{}, "<%s> not closed by signal stream", top.name)
		if !top.void {
			emit([]byte("</" + top.name + ">"))
		}
	}
	w.stack = nil
	tracer().Debugf("HTML writer finished")
}

func htmlAttrName(n markup.QName) string {
	switch n.Space {
	case "", markup.NsHTML:
		return n.Local
	case markup.NsXLink:
		return "xlink:" + n.Local
	case markup.NsXML:
		return "xml:" + n.Local
	case markup.NsXMLNS:
		if n.Local == "xmlns" {
			return "xmlns"
		}
		return "xmlns:" + n.Local
	}
	return n.Local
}

func escapeHTMLText(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func escapeHTMLAttr(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '"':
			b.WriteString("&quot;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
