package markup

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import "fmt"

// ErrorKind classifies a diagnostic. Diagnostics are recoverable by
// definition: the parsers never abort on malformed input, they report and
// continue with the mandated (or, for XML, plausible) recovery. Only I/O
// failures from the byte source terminate a pipeline.
type ErrorKind int

const (
	DecodingError       ErrorKind = iota // invalid byte sequence for the encoding
	BadToken                             // tokenizer-level parse error
	BadDocument                          // document-level structural error
	UnmatchedEndTag                      // end tag with no matching open element
	MisnestedTag                         // formatting elements closed out of order
	BadNamespace                         // undeclared or misused namespace prefix
	AttributeDuplicated                  // attribute repeated on one start tag
	BadContent                           // element or text in a wrong context
)

func (k ErrorKind) String() string {
	switch k {
	case DecodingError:
		return "decoding-error"
	case BadToken:
		return "bad-token"
	case BadDocument:
		return "bad-document"
	case UnmatchedEndTag:
		return "unmatched-end-tag"
	case MisnestedTag:
		return "misnested-tag"
	case BadNamespace:
		return "bad-namespace"
	case AttributeDuplicated:
		return "attribute-duplicated"
	case BadContent:
		return "bad-content"
	}
	return "unknown"
}

// Diagnostic is a single recoverable parse problem: where it happened,
// what kind it is, and a human-readable message. Diagnostics are ordered
// with respect to the signals they affect: a diagnostic attached to a
// token is delivered before the signal derived from that token.
type Diagnostic struct {
	Kind ErrorKind
	Loc  Location
	Msg  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Loc, d.Kind, d.Msg)
}

// Report is a sink for diagnostics. A nil Report discards them.
type Report func(Diagnostic)

// Send delivers a diagnostic, tolerating a nil sink.
func (r Report) Send(kind ErrorKind, loc Location, format string, args ...interface{}) {
	if r == nil {
		return
	}
	r(Diagnostic{Kind: kind, Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

// Collect returns a Report that appends to a slice, for tests and for
// hosts that want to inspect diagnostics after the fact.
func Collect(into *[]Diagnostic) Report {
	return func(d Diagnostic) {
		*into = append(*into, d)
	}
}
