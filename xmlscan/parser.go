package xmlscan

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"strings"

	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

// Signals chains the XML scanner and parser onto a preprocessed scalar
// stream.
func Signals(src stream.Stream[input.Scalar], report markup.Report) stream.Stream[markup.Signal] {
	p := &parser{report: report}
	return stream.NewStage[token, markup.Signal](newScanner(src, report), p.step, p.flush)
}

// nsBinding is one prefix binding; bindings form a stack that grows and
// shrinks with the element stack.
type nsBinding struct {
	prefix string
	uri    string
}

// openElem is an entry of the stack of open elements.
type openElem struct {
	name     markup.QName
	raw      string // name as written, for matching end tags
	bindBase int    // length of the binding stack before this element
}

type parser struct {
	report   markup.Report
	stack    []openElem
	bindings []nsBinding
	rootSeen bool
	emit     func(markup.Signal)
}

func (p *parser) step(t token, emit func(markup.Signal)) {
	p.emit = emit
	p.token(t)
	p.emit = nil
}

func (p *parser) flush(emit func(markup.Signal)) {
	p.emit = emit
	p.closeAll(markup.Location{})
	p.emit = nil
}

func (p *parser) diag(kind markup.ErrorKind, loc markup.Location, format string, args ...interface{}) {
	p.report.Send(kind, loc, format, args...)
}

func (p *parser) closeAll(loc markup.Location) {
	for len(p.stack) > 0 {
		top := p.stack[len(p.stack)-1]
		p.diag(markup.BadDocument, loc, "<%s> left open at end of input", top.raw)
		p.pop()
	}
}

func (p *parser) pop() {
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.bindings = p.bindings[:top.bindBase]
	p.emit(markup.EndElement{Name: top.name})
}

// lookup resolves a namespace prefix. The empty prefix resolves the
// default namespace (or none).
func (p *parser) lookup(prefix string) (string, bool) {
	switch prefix {
	case "xml":
		return markup.NsXML, true
	case "xmlns":
		return markup.NsXMLNS, true
	}
	for i := len(p.bindings) - 1; i >= 0; i-- {
		if p.bindings[i].prefix == prefix {
			return p.bindings[i].uri, true
		}
	}
	if prefix == "" {
		return "", true // no default namespace in scope
	}
	return "", false
}

func splitName(raw string) (prefix, local string) {
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		return raw[:i], raw[i+1:]
	}
	return "", raw
}

func (p *parser) token(t token) {
	switch t.kind {

	case declToken:
		p.emit(markup.XmlDecl{
			Version: t.version, Encoding: t.encoding, Standalone: t.standalone,
			Loc: t.loc,
		})

	case doctypeToken:
		p.emit(markup.Doctype{
			Name: t.name, PublicID: t.publicID, SystemID: t.systemID,
			HasPublicID: t.hasPublic, HasSystemID: t.hasSystem, Loc: t.loc,
		})

	case commentToken:
		p.emit(markup.Comment{Text: t.text, Loc: t.loc})

	case piToken:
		p.emit(markup.PI{Target: t.name, Text: t.text, Loc: t.loc})

	case textToken:
		if len(p.stack) == 0 && !whitespaceOnly(t.text) {
			p.diag(markup.BadContent, t.loc, "text outside the document element")
		}
		p.emit(markup.Text{Runs: []string{t.text}, Loc: t.loc})

	case cdataToken:
		if len(p.stack) == 0 {
			p.diag(markup.BadContent, t.loc, "CDATA section outside the document element")
		}
		p.emit(markup.Text{Runs: []string{t.text}, CDATA: true, Loc: t.loc})

	case startToken:
		p.startElement(t)

	case endToken:
		p.endElement(t)

	case eofToken:
		p.closeAll(t.loc)
	}
}

func whitespaceOnly(s string) bool {
	return strings.TrimLeft(s, " \t\n") == ""
}

func (p *parser) startElement(t token) {
	if len(p.stack) == 0 {
		if p.rootSeen {
			p.diag(markup.BadDocument, t.loc, "multiple document elements; <%s> after the first root", t.name)
		}
		p.rootSeen = true
	}
	bindBase := len(p.bindings)

	// First pass: namespace declarations come into scope before any name
	// on the same tag is resolved.
	for _, a := range t.attrs {
		prefix, local := splitName(a.name)
		switch {
		case prefix == "" && local == "xmlns":
			p.bindings = append(p.bindings, nsBinding{prefix: "", uri: a.value})
		case prefix == "xmlns":
			if a.value == "" {
				p.diag(markup.BadNamespace, a.loc, "prefix %q unbound to empty URI", local)
			}
			p.bindings = append(p.bindings, nsBinding{prefix: local, uri: a.value})
		}
	}

	prefix, local := splitName(t.name)
	uri, ok := p.lookup(prefix)
	if !ok {
		p.diag(markup.BadNamespace, t.loc, "undeclared prefix %q", prefix)
		uri = ""
	}
	name := markup.QName{Space: uri, Local: local}

	// Second pass: resolve and de-duplicate attributes. Unprefixed
	// attributes are in no namespace.
	var attrs []markup.Attr
	seen := map[markup.QName]bool{}
	for _, a := range t.attrs {
		aprefix, alocal := splitName(a.name)
		if (aprefix == "" && alocal == "xmlns") || aprefix == "xmlns" {
			continue // declarations are not regular attributes
		}
		auri := ""
		if aprefix != "" {
			var aok bool
			auri, aok = p.lookup(aprefix)
			if !aok {
				p.diag(markup.BadNamespace, a.loc, "undeclared prefix %q", aprefix)
				auri = ""
			}
		}
		qn := markup.QName{Space: auri, Local: alocal}
		if seen[qn] {
			p.report.Send(markup.AttributeDuplicated, a.loc,
				"attribute %q repeated; first occurrence kept", a.name)
			continue
		}
		seen[qn] = true
		attrs = append(attrs, markup.Attr{Name: qn, Value: a.value})
	}

	p.emit(markup.StartElement{Name: name, Attrs: attrs, Loc: t.loc})
	if t.selfClosing {
		p.emit(markup.EndElement{Name: name})
		p.bindings = p.bindings[:bindBase]
		return
	}
	p.stack = append(p.stack, openElem{name: name, raw: t.name, bindBase: bindBase})
}

// endElement matches an end tag against the stack. A mismatched tag is
// reported and recovered from by closing the most recent open elements
// down to the match; an end tag matching nothing is dropped.
func (p *parser) endElement(t token) {
	if len(p.stack) == 0 {
		p.diag(markup.UnmatchedEndTag, t.loc, "stray </%s>", t.name)
		return
	}
	top := p.stack[len(p.stack)-1]
	if top.raw == t.name {
		p.pop()
		return
	}
	match := -1
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].raw == t.name {
			match = i
			break
		}
	}
	if match < 0 {
		p.diag(markup.UnmatchedEndTag, t.loc, "</%s> matches no open element", t.name)
		return
	}
	p.diag(markup.UnmatchedEndTag, t.loc,
		"</%s> closes <%s> implicitly", t.name, top.raw)
	for len(p.stack) > match {
		p.pop()
	}
}
