package sigil

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"io"
	"strings"

	"github.com/npillmayer/sigil/charset"
	"github.com/npillmayer/sigil/htmlscan"
	"github.com/npillmayer/sigil/htmltree"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/stream"
	"github.com/npillmayer/sigil/writer"
	"github.com/npillmayer/sigil/xmlscan"
)

// ParseHTML assembles the full HTML pipeline over a byte-chunk source:
// decoder, preprocessor, tokenizer and tree constructor. The returned
// signal stream is lazy; nothing is read before the first advance.
func ParseHTML(bytes stream.Stream[[]byte], opts ...Option) stream.Stream[Signal] {
	o := gather(opts)
	tracer().Debugf("assembling HTML pipeline (context=%q)", o.context)
	runes := charset.Runes(bytes, charset.Config{
		Forced: o.encoding, Report: o.report,
	})
	z := htmlscan.New(input.Scalars(runes, o.report), o.report)
	return htmltree.Signals(z, htmltree.Config{
		Scripting: o.scripting, Context: o.context, Report: o.report,
	})
}

// ParseHTMLReader is ParseHTML over an io.Reader byte source.
func ParseHTMLReader(r io.Reader, opts ...Option) stream.Stream[Signal] {
	return ParseHTML(stream.FromReader(r, 0), opts...)
}

// ParseXML assembles the XML pipeline: decoder, preprocessor, scanner and
// namespace-resolving parser.
func ParseXML(bytes stream.Stream[[]byte], opts ...Option) stream.Stream[Signal] {
	o := gather(opts)
	tracer().Debugf("assembling XML pipeline")
	runes := charset.Runes(bytes, charset.Config{
		Forced: o.encoding, XML: true, Report: o.report,
	})
	return xmlscan.Signals(input.Scalars(runes, o.report), o.report)
}

// ParseXMLReader is ParseXML over an io.Reader byte source.
func ParseXMLReader(r io.Reader, opts ...Option) stream.Stream[Signal] {
	return ParseXML(stream.FromReader(r, 0), opts...)
}

// WriteHTML serializes a signal stream to HTML bytes.
func WriteHTML(signals stream.Stream[Signal], opts ...Option) stream.Stream[[]byte] {
	o := gather(opts)
	return writer.HTML(signals, o.report)
}

// WriteXML serializes a signal stream to XML bytes.
func WriteXML(signals stream.Stream[Signal], opts ...Option) stream.Stream[[]byte] {
	o := gather(opts)
	return writer.XML(signals, writer.XMLConfig{Prefix: o.prefix, Report: o.report})
}

// RenderString drains a byte stream into a string; a convenience for
// synchronous hosts and tests.
func RenderString(bytes stream.Stream[[]byte]) (string, error) {
	chunks, err := stream.ToList(bytes)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range chunks {
		b.Write(c)
	}
	return b.String(), nil
}
