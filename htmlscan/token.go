/*
Package htmlscan tokenizes HTML the way the WHATWG HTML specification
prescribes (§13.2.5 of the living standard): a state machine over code
points that never rejects its input. Malformed constructs produce
diagnostics and a best-effort token.

The tokenizer is one stage of a pull pipeline. The tree constructor
(package htmltree) drives it and feeds decisions back between tokens:
raw-text and RCDATA element content, plaintext, and whether CDATA
sections are permitted (foreign content) are switched through explicit
methods, never through shared state.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package htmlscan

import (
	"fmt"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/sigil/markup"
)

// tracer traces to 'sigil.htmlscan'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.htmlscan")
}

// Kind enumerates token kinds.
type Kind int8

const (
	CharsToken Kind = iota // a run of character data
	StartTagToken
	EndTagToken
	CommentToken
	DoctypeToken
	EOFToken
)

func (k Kind) String() string {
	switch k {
	case CharsToken:
		return "chars"
	case StartTagToken:
		return "start-tag"
	case EndTagToken:
		return "end-tag"
	case CommentToken:
		return "comment"
	case DoctypeToken:
		return "doctype"
	case EOFToken:
		return "EOF"
	}
	return "?"
}

// Token is the tokenizer's output unit. Which fields are meaningful
// depends on Kind. Attribute names are local names; namespaces are the
// tree constructor's business. An end tag may carry attributes or the
// self-closing flag — that is a parse error, but the flags are surfaced
// and the parser decides policy.
type Token struct {
	Kind        Kind
	Name        string // tag name or doctype name
	Attrs       []markup.Attr
	SelfClosing bool
	Text        string // character data or comment text
	PublicID    string
	SystemID    string
	HasPublicID bool
	HasSystemID bool
	ForceQuirks bool
	Loc         markup.Location
}

func (t Token) String() string {
	switch t.Kind {
	case CharsToken:
		return fmt.Sprintf("chars(%q)", t.Text)
	case StartTagToken:
		return fmt.Sprintf("<%s>", t.Name)
	case EndTagToken:
		return fmt.Sprintf("</%s>", t.Name)
	case CommentToken:
		return fmt.Sprintf("comment(%q)", t.Text)
	case DoctypeToken:
		return fmt.Sprintf("doctype(%s)", t.Name)
	}
	return t.Kind.String()
}

// Attr fetches an attribute by (local) name; ok is false if absent.
func (t Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
