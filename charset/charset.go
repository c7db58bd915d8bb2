/*
Package charset detects the character encoding of a byte source and
decodes it to a stream of code points.

Detection consumes at most the first 1024 bytes and picks an encoding by,
in order: a byte order mark, an XML text declaration, an HTML meta
prescan, and a mode-dependent fallback (UTF-8 for XML, Windows-1252 for
HTML). Decoding never stops on malformed input: invalid byte sequences
become U+FFFD with a decoding diagnostic.

Encoding labels resolve through the WHATWG encoding index
(golang.org/x/text/encoding/htmlindex), which already maps Latin-1 and
US-ASCII labels onto Windows-1252 as the HTML specification requires.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package charset

import (
	"bytes"
	"strings"

	"github.com/npillmayer/schuko/tracing"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// tracer traces to 'sigil.charset'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.charset")
}

// sniffLimit is the maximum number of bytes detection may consume.
const sniffLimit = 1024

// Detect picks an encoding from the leading bytes of a document. prefix
// holds at most the first sniffLimit bytes. xmlMode selects the XML
// fallback (UTF-8) over the HTML one (Windows-1252). bomLen is the number
// of leading bytes the decoder must skip.
func Detect(prefix []byte, xmlMode bool) (enc encoding.Encoding, name string, bomLen int) {
	if e, n, l := detectBOM(prefix); e != nil {
		return e, n, l
	}
	if xmlMode || bytes.HasPrefix(prefix, []byte("<?xml")) {
		if label := xmlDeclEncoding(prefix); label != "" {
			if e, n := lookup(label); e != nil {
				return e, n, 0
			}
		}
	}
	if !xmlMode {
		if label := prescanMeta(prefix); label != "" {
			if e, n := lookup(label); e != nil {
				return e, n, 0
			}
		}
	}
	if xmlMode {
		return unicode.UTF8, "utf-8", 0
	}
	e, _ := lookup("windows-1252")
	return e, "windows-1252", 0
}

func detectBOM(p []byte) (encoding.Encoding, string, int) {
	switch {
	case bytes.HasPrefix(p, []byte{0x00, 0x00, 0xFE, 0xFF}):
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM), "utf-32be", 4
	case bytes.HasPrefix(p, []byte{0xFF, 0xFE, 0x00, 0x00}):
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM), "utf-32le", 4
	case bytes.HasPrefix(p, []byte{0xEF, 0xBB, 0xBF}):
		return unicode.UTF8, "utf-8", 3
	case bytes.HasPrefix(p, []byte{0xFE, 0xFF}):
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), "utf-16be", 2
	case bytes.HasPrefix(p, []byte{0xFF, 0xFE}):
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), "utf-16le", 2
	}
	return nil, "", 0
}

// Lookup resolves a forced or declared encoding label. It returns nil for
// unknown labels, so callers can fall back and report.
func Lookup(label string) (encoding.Encoding, string) {
	return lookup(label)
}

func lookup(label string) (encoding.Encoding, string) {
	label = strings.ToLower(strings.TrimSpace(label))
	// A document cannot honestly re-declare itself as UTF-16 in ASCII-
	// compatible bytes; the specification demands UTF-8 then.
	switch label {
	case "utf-16", "utf-16be", "utf-16le":
		label = "utf-8"
	case "x-user-defined":
		label = "windows-1252"
	}
	e, err := htmlindex.Get(label)
	if err != nil {
		return nil, ""
	}
	n, err := htmlindex.Name(e)
	if err != nil {
		n = label
	}
	return e, n
}

// xmlDeclEncoding extracts the encoding pseudo-attribute from an XML text
// declaration, if the prefix carries one.
func xmlDeclEncoding(p []byte) string {
	if !bytes.HasPrefix(p, []byte("<?xml")) {
		return ""
	}
	end := bytes.Index(p, []byte("?>"))
	if end < 0 {
		end = len(p)
	}
	decl := string(p[:end])
	i := strings.Index(decl, "encoding")
	if i < 0 {
		return ""
	}
	rest := decl[i+len("encoding"):]
	rest = strings.TrimLeft(rest, " \t\r\n")
	if !strings.HasPrefix(rest, "=") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t\r\n")
	if len(rest) == 0 || (rest[0] != '"' && rest[0] != '\'') {
		return ""
	}
	quote := rest[0]
	rest = rest[1:]
	if j := strings.IndexByte(rest, quote); j >= 0 {
		return rest[:j]
	}
	return ""
}

// --- HTML meta prescan -----------------------------------------------------

// prescanMeta implements the byte-level prescan for a charset declaration
// in a <meta> tag within the bounded prefix. It is tokenization-blind:
// a meta inside noscript or template is honored all the same.
func prescanMeta(p []byte) string {
	i := 0
	for i < len(p) {
		if p[i] != '<' {
			i++
			continue
		}
		if hasCIPrefix(p[i:], "<!--") {
			end := bytes.Index(p[i+4:], []byte("-->"))
			if end < 0 {
				return ""
			}
			i += 4 + end + 3
			continue
		}
		if hasCIPrefix(p[i:], "<meta") && i+5 < len(p) && isSpaceOrSlash(p[i+5]) {
			label, adv := scanMetaAttributes(p[i+5:])
			if label != "" {
				return label
			}
			i += 5 + adv
			continue
		}
		i++
	}
	return ""
}

func hasCIPrefix(p []byte, prefix string) bool {
	if len(p) < len(prefix) {
		return false
	}
	return strings.EqualFold(string(p[:len(prefix)]), prefix)
}

func isSpaceOrSlash(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == '/'
}

// scanMetaAttributes walks the attribute list of a meta tag, looking for
// charset="…" or the http-equiv/content pair. adv is the number of bytes
// consumed, up to and including '>'.
func scanMetaAttributes(p []byte) (label string, adv int) {
	var httpEquiv, content, charset string
	i := 0
	for i < len(p) && p[i] != '>' {
		if isSpaceOrSlash(p[i]) {
			i++
			continue
		}
		nameStart := i
		for i < len(p) && p[i] != '=' && p[i] != '>' && !isSpaceOrSlash(p[i]) {
			i++
		}
		name := strings.ToLower(string(p[nameStart:i]))
		value := ""
		for i < len(p) && isSpaceOrSlash(p[i]) {
			i++
		}
		if i < len(p) && p[i] == '=' {
			i++
			for i < len(p) && isSpaceOrSlash(p[i]) {
				i++
			}
			if i < len(p) && (p[i] == '"' || p[i] == '\'') {
				quote := p[i]
				i++
				valStart := i
				for i < len(p) && p[i] != quote {
					i++
				}
				value = string(p[valStart:i])
				if i < len(p) {
					i++
				}
			} else {
				valStart := i
				for i < len(p) && p[i] != '>' && !isSpaceOrSlash(p[i]) {
					i++
				}
				value = string(p[valStart:i])
			}
		}
		switch name {
		case "charset":
			charset = value
		case "http-equiv":
			httpEquiv = value
		case "content":
			content = value
		}
	}
	if i < len(p) {
		i++ // the '>'
	}
	if charset != "" {
		return charset, i
	}
	if strings.EqualFold(httpEquiv, "content-type") && content != "" {
		if cs := charsetFromContentType(content); cs != "" {
			return cs, i
		}
	}
	return "", i
}

// charsetFromContentType extracts charset=… from a Content-Type value.
func charsetFromContentType(content string) string {
	lower := strings.ToLower(content)
	i := strings.Index(lower, "charset")
	if i < 0 {
		return ""
	}
	rest := strings.TrimLeft(content[i+len("charset"):], " \t")
	if !strings.HasPrefix(rest, "=") {
		return ""
	}
	rest = strings.TrimLeft(rest[1:], " \t")
	if rest == "" {
		return ""
	}
	if rest[0] == '"' || rest[0] == '\'' {
		if j := strings.IndexByte(rest[1:], rest[0]); j >= 0 {
			return rest[1 : 1+j]
		}
		return ""
	}
	if j := strings.IndexAny(rest, "; \t"); j >= 0 {
		return rest[:j]
	}
	return rest
}
