package markup

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"fmt"
	"strings"
)

// Well-known namespace URIs. For HTML input the namespace of a name is
// inferred by the tree constructor; for XML it is resolved from in-scope
// prefix bindings.
const (
	NsHTML   = "http://www.w3.org/1999/xhtml"
	NsMathML = "http://www.w3.org/1998/Math/MathML"
	NsSVG    = "http://www.w3.org/2000/svg"
	NsXLink  = "http://www.w3.org/1999/xlink"
	NsXML    = "http://www.w3.org/XML/1998/namespace"
	NsXMLNS  = "http://www.w3.org/2000/xmlns/"
)

// Location is a position in the input, 1-based for both line and column.
// It is tracked through the input preprocessor and attached to every token
// and signal for diagnostics.
type Location struct {
	Line, Col int
}

func (loc Location) String() string {
	return fmt.Sprintf("%d:%d", loc.Line, loc.Col)
}

// Before returns true if loc strictly precedes other.
func (loc Location) Before(other Location) bool {
	return loc.Line < other.Line || (loc.Line == other.Line && loc.Col < other.Col)
}

// QName is a qualified name: a (namespace-URI, local-name) pair.
// The empty namespace denotes an unqualified name.
type QName struct {
	Space string
	Local string
}

// Name creates an unqualified QName.
func Name(local string) QName {
	return QName{Local: local}
}

func (n QName) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Attr is a single attribute of an element. Order of attributes is
// preserved as in the source; duplicates on a single start tag are resolved
// by keeping the first occurrence (the duplicates are reported).
// Injected marks attributes synthesized by the parser rather than written
// in the source, e.g. namespace adjustments in foreign content.
type Attr struct {
	Name     QName
	Value    string
	Injected bool
}

// --- Signals ---------------------------------------------------------------

// Signal is an event in the left-to-right traversal of a document tree.
// The concrete types are StartElement, EndElement, Text, Comment, PI,
// Doctype and XmlDecl. Signal sequences produced by the parsers are
// guaranteed to be well-balanced: every StartElement is matched by exactly
// one EndElement, even when the input is malformed.
type Signal interface {
	Location() Location
	isSignal()
}

// StartElement opens an element. It is always eventually matched by an
// EndElement in the same signal sequence.
type StartElement struct {
	Name  QName
	Attrs []Attr
	Loc   Location
}

// EndElement closes the most recently opened element.
type EndElement struct {
	Name QName
	Loc  Location
}

// Text is a run of character data. Runs holds one or more strings to avoid
// useless concatenation; consumers wanting a single string use Data.
// CDATA marks text that originated from (and should be re-serialized as)
// an explicit CDATA section; XML only.
type Text struct {
	Runs  []string
	CDATA bool
	Loc   Location
}

// Data returns the concatenation of all runs.
func (t Text) Data() string {
	if len(t.Runs) == 1 {
		return t.Runs[0]
	}
	return strings.Join(t.Runs, "")
}

// Comment is a comment node.
type Comment struct {
	Text string
	Loc  Location
}

// PI is a processing instruction. HTML input never produces these (the
// HTML parser degrades them to bogus comments); XML input and writer
// support them.
type PI struct {
	Target string
	Text   string
	Loc    Location
}

// Doctype is a document type declaration.
type Doctype struct {
	Name        string
	PublicID    string
	SystemID    string
	HasPublicID bool
	HasSystemID bool
	ForceQuirks bool
	Loc         Location
}

// XmlDecl is an XML text declaration (`<?xml version=…?>`); XML only.
type XmlDecl struct {
	Version    string
	Encoding   string
	Standalone *bool
	Loc        Location
}

func (s StartElement) Location() Location { return s.Loc }
func (s EndElement) Location() Location   { return s.Loc }
func (s Text) Location() Location         { return s.Loc }
func (s Comment) Location() Location      { return s.Loc }
func (s PI) Location() Location           { return s.Loc }
func (s Doctype) Location() Location      { return s.Loc }
func (s XmlDecl) Location() Location      { return s.Loc }

func (s StartElement) isSignal() {}
func (s EndElement) isSignal()   {}
func (s Text) isSignal()         {}
func (s Comment) isSignal()      {}
func (s PI) isSignal()           {}
func (s Doctype) isSignal()      {}
func (s XmlDecl) isSignal()      {}
