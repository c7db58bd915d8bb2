package writer

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"strings"

	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

// XMLConfig parameterizes the XML writer.
type XMLConfig struct {
	// Prefix proposes a prefix for a namespace URI not yet in scope. The
	// writer falls back to synthesized ns1, ns2, … prefixes when Prefix
	// is nil, returns "", or proposes a prefix already bound to another
	// URI.
	Prefix func(uri string) string
	Report markup.Report
}

// XML serializes a signal stream as an XML document.
func XML(src stream.Stream[markup.Signal], cfg XMLConfig) stream.Stream[[]byte] {
	w := &xmlWriter{cfg: cfg}
	return stream.NewStage[markup.Signal, []byte](src, w.step, w.flush)
}

type xmlBinding struct {
	prefix string
	uri    string
}

type xmlOpen struct {
	tag      string // serialized tag name, prefix included
	bindBase int
}

type xmlWriter struct {
	cfg      XMLConfig
	stack    []xmlOpen
	bindings []xmlBinding
	nextNS   int
	open     bool // start tag not yet closed with '>', may become '/>'
}

func (w *xmlWriter) step(s markup.Signal, emit func([]byte)) {
	var b strings.Builder

	// A pending start tag becomes self-closing if the matching end
	// element follows immediately.
	if w.open {
		w.open = false
		if _, ok := s.(markup.EndElement); ok && len(w.stack) > 0 {
			top := w.stack[len(w.stack)-1]
			w.stack = w.stack[:len(w.stack)-1]
			w.bindings = w.bindings[:top.bindBase]
			b.WriteString("/>")
			emit([]byte(b.String()))
			return
		}
		b.WriteString(">")
	}

	switch sig := s.(type) {

	case markup.XmlDecl:
		b.WriteString(`<?xml version="`)
		if sig.Version != "" {
			b.WriteString(sig.Version)
		} else {
			b.WriteString("1.0")
		}
		b.WriteString(`" encoding="UTF-8"`)
		if sig.Standalone != nil {
			if *sig.Standalone {
				b.WriteString(` standalone="yes"`)
			} else {
				b.WriteString(` standalone="no"`)
			}
		}
		b.WriteString("?>")

	case markup.Doctype:
		b.WriteString("<!DOCTYPE ")
		b.WriteString(sig.Name)
		if sig.HasPublicID {
			fmt.Fprintf(&b, ` PUBLIC "%s" "%s"`, sig.PublicID, sig.SystemID)
		} else if sig.HasSystemID {
			fmt.Fprintf(&b, ` SYSTEM "%s"`, sig.SystemID)
		}
		b.WriteString(">")

	case markup.StartElement:
		bindBase := len(w.bindings)
		var declare []xmlBinding
		tag, newDecl := w.qualify(sig.Name, false)
		declare = append(declare, newDecl...)
		b.WriteString("<")
		b.WriteString(tag)
		var attrs []string
		for _, attr := range sig.Attrs {
			aname, newDecl := w.qualify(attr.Name, true)
			declare = append(declare, newDecl...)
			attrs = append(attrs,
				fmt.Sprintf(`%s="%s"`, aname, escapeXMLAttr(attr.Value)))
		}
		for _, d := range declare {
			if d.prefix == "" {
				fmt.Fprintf(&b, ` xmlns="%s"`, escapeXMLAttr(d.uri))
			} else {
				fmt.Fprintf(&b, ` xmlns:%s="%s"`, d.prefix, escapeXMLAttr(d.uri))
			}
		}
		for _, a := range attrs {
			b.WriteString(" ")
			b.WriteString(a)
		}
		w.stack = append(w.stack, xmlOpen{tag: tag, bindBase: bindBase})
		w.open = true

	case markup.EndElement:
		if len(w.stack) == 0 {
			w.cfg.Report.Send(markup.BadDocument, sig.Loc,
				"unbalanced end element </%s> dropped", sig.Name.Local)
			return
		}
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.bindings = w.bindings[:top.bindBase]
		b.WriteString("</")
		b.WriteString(top.tag)
		b.WriteString(">")

	case markup.Text:
		if sig.CDATA {
			b.WriteString("<![CDATA[")
			b.WriteString(strings.ReplaceAll(sig.Data(), "]]>", "]]]]><![CDATA[>"))
			b.WriteString("]]>")
		} else {
			for _, run := range sig.Runs {
				b.WriteString(escapeXMLText(run))
			}
		}

	case markup.Comment:
		b.WriteString("<!--")
		b.WriteString(sig.Text)
		b.WriteString("-->")

	case markup.PI:
		b.WriteString("<?")
		b.WriteString(sig.Target)
		if sig.Text != "" {
			b.WriteString(" ")
			b.WriteString(sig.Text)
		}
		b.WriteString("?>")
	}

	if b.Len() > 0 {
		emit([]byte(b.String()))
	}
}

func (w *xmlWriter) flush(emit func([]byte)) {
	if w.open {
		w.open = false
		emit([]byte(">"))
	}
	for i := len(w.stack) - 1; i >= 0; i-- {
		w.cfg.Report.Send(markup.BadDocument, markup.Location{},
			"<%s> not closed by signal stream", w.stack[i].tag)
		emit([]byte("</" + w.stack[i].tag + ">"))
	}
	w.stack = nil
	tracer().Debugf("XML writer finished")
}

// qualify maps a QName to its serialized form, synthesizing and
// declaring prefixes for URIs not in scope. Attributes never use the
// default namespace.
func (w *xmlWriter) qualify(n markup.QName, isAttr bool) (string, []xmlBinding) {
	switch n.Space {
	case "":
		return n.Local, nil
	case markup.NsXML:
		return "xml:" + n.Local, nil
	case markup.NsXMLNS:
		if n.Local == "xmlns" {
			return "xmlns", nil
		}
		return "xmlns:" + n.Local, nil
	}
	// in scope already?
	for i := len(w.bindings) - 1; i >= 0; i-- {
		bind := w.bindings[i]
		if bind.uri != n.Space {
			continue
		}
		if bind.prefix == "" && isAttr {
			continue // default namespace does not apply to attributes
		}
		if w.shadowed(bind, i) {
			continue
		}
		if bind.prefix == "" {
			return n.Local, nil
		}
		return bind.prefix + ":" + n.Local, nil
	}
	prefix := ""
	if w.cfg.Prefix != nil {
		prefix = w.cfg.Prefix(n.Space)
	}
	if prefix == "" || w.prefixTaken(prefix) {
		for {
			w.nextNS++
			prefix = fmt.Sprintf("ns%d", w.nextNS)
			if !w.prefixTaken(prefix) {
				break
			}
		}
	}
	bind := xmlBinding{prefix: prefix, uri: n.Space}
	w.bindings = append(w.bindings, bind)
	return prefix + ":" + n.Local, []xmlBinding{bind}
}

// shadowed reports whether a later binding re-uses the same prefix.
func (w *xmlWriter) shadowed(bind xmlBinding, at int) bool {
	for i := len(w.bindings) - 1; i > at; i-- {
		if w.bindings[i].prefix == bind.prefix {
			return true
		}
	}
	return false
}

func (w *xmlWriter) prefixTaken(prefix string) bool {
	for i := len(w.bindings) - 1; i >= 0; i-- {
		if w.bindings[i].prefix == prefix {
			return true
		}
	}
	return false
}

func escapeXMLText(s string) string {
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

func escapeXMLAttr(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
