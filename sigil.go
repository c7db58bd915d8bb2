package sigil

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"github.com/npillmayer/sigil/markup"
)

// The data model lives in package markup; the aliases below let clients
// work with the root package alone.

type (
	Location     = markup.Location
	QName        = markup.QName
	Attr         = markup.Attr
	Signal       = markup.Signal
	StartElement = markup.StartElement
	EndElement   = markup.EndElement
	Text         = markup.Text
	Comment      = markup.Comment
	PI           = markup.PI
	Doctype      = markup.Doctype
	XmlDecl      = markup.XmlDecl
	Diagnostic   = markup.Diagnostic
	ErrorKind    = markup.ErrorKind
	Report       = markup.Report
)

const (
	NsHTML   = markup.NsHTML
	NsMathML = markup.NsMathML
	NsSVG    = markup.NsSVG
	NsXLink  = markup.NsXLink
	NsXML    = markup.NsXML
	NsXMLNS  = markup.NsXMLNS
)

const (
	DecodingError       = markup.DecodingError
	BadToken            = markup.BadToken
	BadDocument         = markup.BadDocument
	UnmatchedEndTag     = markup.UnmatchedEndTag
	MisnestedTag        = markup.MisnestedTag
	BadNamespace        = markup.BadNamespace
	AttributeDuplicated = markup.AttributeDuplicated
	BadContent          = markup.BadContent
)

// Name creates an unqualified QName.
func Name(local string) QName {
	return markup.Name(local)
}

// Collect returns a Report that appends to a slice.
func Collect(into *[]Diagnostic) Report {
	return markup.Collect(into)
}
