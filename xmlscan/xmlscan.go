/*
Package xmlscan tokenizes and parses XML 1.0 (fifth edition) with
namespaces, as a streaming pipeline stage: code points in, signals out.

Unlike a conforming XML processor, the parser never aborts: every
well-formedness violation is reported as a diagnostic, and the parser
recovers by synthesizing the most plausible structure, so that the signal
output is always a well-formed tree. Doctype external identifiers are
parsed but not resolved; general entities other than the five predefined
ones are not expanded, only reported.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package xmlscan

import (
	"strings"
	"unicode"

	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

// tracer traces to 'sigil.xmlscan'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.xmlscan")
}

// --- Tokens -----------------------------------------------------------------

type tokenKind uint8

const (
	textToken tokenKind = iota
	cdataToken
	startToken
	endToken
	commentToken
	piToken
	declToken
	doctypeToken
	eofToken
)

type rawAttr struct {
	name  string // as written, possibly prefixed
	value string
	loc   markup.Location
}

type token struct {
	kind        tokenKind
	name        string // element name, PI target or doctype name
	attrs       []rawAttr
	selfClosing bool
	text        string
	publicID    string
	systemID    string
	hasPublic   bool
	hasSystem   bool
	version     string // xml declaration
	encoding    string
	standalone  *bool
	loc         markup.Location
}

// --- Scanner ----------------------------------------------------------------

type scanState uint8

const (
	textState scanState = iota
	ltState
	bangState
	closeTagNameState
	afterCloseTagNameState
	piTargetState
	piBodyState
	commentState
	commentDashState
	commentDashDashState
	cdataState
	cdataBracketState
	cdataEndState
	doctypeState
	tagNameState
	beforeAttrState
	attrNameState
	afterAttrNameState
	beforeValueState
	valueState
	afterSlashState
)

type scanner struct {
	report markup.Report
	state  scanState

	loc    markup.Location // of the scalar being processed
	tokLoc markup.Location

	first      bool // before the first token: "<?xml" is a declaration
	textBuf    []rune
	textLoc    markup.Location
	haveText   bool
	nameBuf    []rune
	bangBuf    []rune
	attrs      []rawAttr
	attrName   []rune
	attrLoc    markup.Location
	valueBuf   []rune
	quote      rune
	piTarget   string
	piBuf      []rune
	refBuf     []rune // character/entity reference accumulator, nil if idle
	refInValue bool

	// doctype scanning
	dtDepth int
	dtBuf   []rune
	dtQuote rune

	pending []input.Scalar
	emitTok func(token)
}

func newScanner(src stream.Stream[input.Scalar], report markup.Report) stream.Stream[token] {
	sc := &scanner{report: report, first: true}
	return stream.NewStage[input.Scalar, token](src, sc.step, sc.flush)
}

func (sc *scanner) step(s input.Scalar, emit func(token)) {
	sc.emitTok = emit
	sc.process(s)
	for len(sc.pending) > 0 {
		next := sc.pending[0]
		sc.pending = sc.pending[1:]
		sc.process(next)
	}
	sc.emitTok = nil
}

func (sc *scanner) reconsume(s input.Scalar) {
	sc.pending = append([]input.Scalar{s}, sc.pending...)
}

func (sc *scanner) err(loc markup.Location, format string, args ...interface{}) {
	sc.report.Send(markup.BadToken, loc, format, args...)
}

func (sc *scanner) text(r rune, loc markup.Location) {
	if !sc.haveText {
		sc.textLoc = loc
		sc.haveText = true
	}
	sc.textBuf = append(sc.textBuf, r)
}

func (sc *scanner) flushText() {
	if !sc.haveText {
		return
	}
	sc.emitTok(token{kind: textToken, text: string(sc.textBuf), loc: sc.textLoc})
	sc.textBuf = sc.textBuf[:0]
	sc.haveText = false
}

func (sc *scanner) emit(t token) {
	sc.flushText()
	if t.kind != textToken && t.kind != cdataToken {
		sc.first = false
	}
	sc.emitTok(t)
}

func isNameStart(r rune) bool {
	return r == '_' || r == ':' || unicode.IsLetter(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || r == '-' || r == '.' || unicode.IsDigit(r) ||
		unicode.Is(unicode.Mn, r)
}

func isXMLSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n'
}

func (sc *scanner) process(s input.Scalar) {
	r := s.R
	sc.loc = s.Loc

	// Character and entity references are resolved inline, in text and in
	// attribute values.
	if sc.refBuf != nil {
		sc.reference(s)
		return
	}

	switch sc.state {

	case textState:
		switch r {
		case '<':
			sc.tokLoc = s.Loc
			sc.state = ltState
		case '&':
			sc.refBuf = []rune{'&'}
			sc.refInValue = false
		default:
			sc.text(r, s.Loc)
		}

	case ltState:
		switch {
		case r == '/':
			sc.nameBuf = sc.nameBuf[:0]
			sc.state = closeTagNameState
		case r == '!':
			sc.bangBuf = sc.bangBuf[:0]
			sc.state = bangState
		case r == '?':
			sc.nameBuf = sc.nameBuf[:0]
			sc.state = piTargetState
		case isNameStart(r):
			sc.nameBuf = append(sc.nameBuf[:0], r)
			sc.attrs = nil
			sc.state = tagNameState
		default:
			sc.err(s.Loc, "'<' not followed by a name")
			sc.text('<', sc.tokLoc)
			sc.state = textState
			sc.reconsume(s)
		}

	case bangState:
		sc.bangBuf = append(sc.bangBuf, r)
		sofar := string(sc.bangBuf)
		switch {
		case sofar == "--":
			sc.piBuf = sc.piBuf[:0]
			sc.state = commentState
		case sofar == "[CDATA["[:len(sofar)]:
			if len(sofar) == len("[CDATA[") {
				sc.state = cdataState
				sc.piBuf = sc.piBuf[:0]
			}
		case strings.HasPrefix("DOCTYPE", sofar):
			if sofar == "DOCTYPE" {
				sc.state = doctypeState
				sc.dtDepth = 0
				sc.dtQuote = 0
				sc.dtBuf = sc.dtBuf[:0]
			}
		case sofar == "-":
		default:
			sc.err(sc.tokLoc, "malformed markup declaration")
			sc.state = textState
		}

	case commentState:
		switch r {
		case '-':
			sc.state = commentDashState
		default:
			sc.piBuf = append(sc.piBuf, r)
		}

	case commentDashState:
		switch r {
		case '-':
			sc.state = commentDashDashState
		default:
			sc.piBuf = append(sc.piBuf, '-', r)
			sc.state = commentState
		}

	case commentDashDashState:
		switch r {
		case '>':
			sc.emit(token{kind: commentToken, text: string(sc.piBuf), loc: sc.tokLoc})
			sc.state = textState
		case '-':
			sc.piBuf = append(sc.piBuf, '-')
		default:
			sc.err(s.Loc, "'--' inside comment")
			sc.piBuf = append(sc.piBuf, '-', '-', r)
			sc.state = commentState
		}

	case cdataState:
		switch r {
		case ']':
			sc.state = cdataBracketState
		default:
			sc.piBuf = append(sc.piBuf, r)
		}

	case cdataBracketState:
		switch r {
		case ']':
			sc.state = cdataEndState
		default:
			sc.piBuf = append(sc.piBuf, ']', r)
			sc.state = cdataState
		}

	case cdataEndState:
		switch r {
		case '>':
			sc.emit(token{kind: cdataToken, text: string(sc.piBuf), loc: sc.tokLoc})
			sc.state = textState
		case ']':
			sc.piBuf = append(sc.piBuf, ']')
		default:
			sc.piBuf = append(sc.piBuf, ']', ']', r)
			sc.state = cdataState
		}

	case doctypeState:
		// The internal subset is skipped; the doctype name and external
		// identifiers are extracted after the fact.
		switch {
		case sc.dtQuote != 0:
			sc.dtBuf = append(sc.dtBuf, r)
			if r == sc.dtQuote {
				sc.dtQuote = 0
			}
		case r == '"' || r == '\'':
			sc.dtQuote = r
			sc.dtBuf = append(sc.dtBuf, r)
		case r == '[':
			sc.dtDepth++
			sc.dtBuf = append(sc.dtBuf, r)
		case r == ']':
			sc.dtDepth--
			sc.dtBuf = append(sc.dtBuf, r)
		case r == '>' && sc.dtDepth <= 0:
			sc.emitDoctype()
			sc.state = textState
		default:
			sc.dtBuf = append(sc.dtBuf, r)
		}

	case piTargetState:
		switch {
		case isNameChar(r):
			sc.nameBuf = append(sc.nameBuf, r)
		case isXMLSpace(r):
			sc.piTarget = string(sc.nameBuf)
			sc.piBuf = sc.piBuf[:0]
			sc.state = piBodyState
		case r == '?':
			sc.piTarget = string(sc.nameBuf)
			sc.piBuf = sc.piBuf[:0]
			sc.state = piBodyState
			sc.reconsume(s)
		default:
			sc.err(s.Loc, "malformed processing instruction target")
			sc.piTarget = string(sc.nameBuf)
			sc.piBuf = sc.piBuf[:0]
			sc.state = piBodyState
			sc.reconsume(s)
		}

	case piBodyState:
		sc.piBuf = append(sc.piBuf, r)
		n := len(sc.piBuf)
		if n >= 2 && sc.piBuf[n-2] == '?' && sc.piBuf[n-1] == '>' {
			body := strings.TrimLeft(string(sc.piBuf[:n-2]), " \t\n")
			if sc.first && sc.piTarget == "xml" {
				sc.emitXMLDecl(body)
			} else if strings.EqualFold(sc.piTarget, "xml") {
				sc.err(sc.tokLoc, "misplaced XML declaration")
				sc.emit(token{kind: piToken, name: sc.piTarget, text: body, loc: sc.tokLoc})
			} else {
				sc.emit(token{kind: piToken, name: sc.piTarget, text: body, loc: sc.tokLoc})
			}
			sc.state = textState
		}

	case closeTagNameState:
		switch {
		case isNameChar(r):
			sc.nameBuf = append(sc.nameBuf, r)
		case isXMLSpace(r):
			sc.state = afterCloseTagNameState
		case r == '>':
			sc.emit(token{kind: endToken, name: string(sc.nameBuf), loc: sc.tokLoc})
			sc.state = textState
		default:
			sc.err(s.Loc, "malformed end tag")
			sc.emit(token{kind: endToken, name: string(sc.nameBuf), loc: sc.tokLoc})
			sc.state = textState
		}

	case afterCloseTagNameState:
		switch {
		case isXMLSpace(r):
		case r == '>':
			sc.emit(token{kind: endToken, name: string(sc.nameBuf), loc: sc.tokLoc})
			sc.state = textState
		default:
			sc.err(s.Loc, "junk in end tag")
		}

	case tagNameState:
		switch {
		case isNameChar(r):
			sc.nameBuf = append(sc.nameBuf, r)
		case isXMLSpace(r):
			sc.state = beforeAttrState
		case r == '/':
			sc.state = afterSlashState
		case r == '>':
			sc.emitStart(false)
		default:
			sc.err(s.Loc, "invalid character %q in element name", r)
			sc.state = beforeAttrState
		}

	case beforeAttrState:
		switch {
		case isXMLSpace(r):
		case r == '/':
			sc.state = afterSlashState
		case r == '>':
			sc.emitStart(false)
		case isNameStart(r):
			sc.attrName = append(sc.attrName[:0], r)
			sc.attrLoc = s.Loc
			sc.state = attrNameState
		default:
			sc.err(s.Loc, "expected attribute name, got %q", r)
		}

	case attrNameState:
		switch {
		case isNameChar(r):
			sc.attrName = append(sc.attrName, r)
		case r == '=':
			sc.state = beforeValueState
		case isXMLSpace(r):
			sc.state = afterAttrNameState
		default:
			sc.err(s.Loc, "attribute %q has no value", string(sc.attrName))
			sc.attrs = append(sc.attrs, rawAttr{name: string(sc.attrName), loc: sc.attrLoc})
			sc.state = beforeAttrState
			sc.reconsume(s)
		}

	case afterAttrNameState:
		switch {
		case isXMLSpace(r):
		case r == '=':
			sc.state = beforeValueState
		default:
			sc.err(s.Loc, "attribute %q has no value", string(sc.attrName))
			sc.attrs = append(sc.attrs, rawAttr{name: string(sc.attrName), loc: sc.attrLoc})
			sc.state = beforeAttrState
			sc.reconsume(s)
		}

	case beforeValueState:
		switch {
		case isXMLSpace(r):
		case r == '"' || r == '\'':
			sc.quote = r
			sc.valueBuf = sc.valueBuf[:0]
			sc.state = valueState
		default:
			sc.err(s.Loc, "attribute value must be quoted")
			sc.quote = 0
			sc.valueBuf = sc.valueBuf[:0]
			sc.state = valueState
			sc.reconsume(s)
		}

	case valueState:
		switch {
		case sc.quote != 0 && r == sc.quote:
			sc.finishAttr()
			sc.state = beforeAttrState
		case sc.quote == 0 && (isXMLSpace(r) || r == '>'):
			sc.finishAttr()
			sc.state = beforeAttrState
			sc.reconsume(s)
		case r == '&':
			sc.refBuf = []rune{'&'}
			sc.refInValue = true
		case r == '<':
			sc.err(s.Loc, "'<' in attribute value")
			sc.valueBuf = append(sc.valueBuf, r)
		default:
			sc.valueBuf = append(sc.valueBuf, r)
		}

	case afterSlashState:
		if r == '>' {
			sc.emitStart(true)
		} else {
			sc.err(s.Loc, "expected '>' after '/'")
			sc.state = beforeAttrState
			sc.reconsume(s)
		}
	}
}

func (sc *scanner) finishAttr() {
	sc.attrs = append(sc.attrs, rawAttr{
		name:  string(sc.attrName),
		value: string(sc.valueBuf),
		loc:   sc.attrLoc,
	})
}

func (sc *scanner) emitStart(selfClosing bool) {
	sc.emit(token{
		kind:        startToken,
		name:        string(sc.nameBuf),
		attrs:       sc.attrs,
		selfClosing: selfClosing,
		loc:         sc.tokLoc,
	})
	sc.attrs = nil
	sc.state = textState
}

// emitDoctype extracts name and external identifiers from the collected
// declaration body.
func (sc *scanner) emitDoctype() {
	fields := strings.Fields(string(sc.dtBuf))
	t := token{kind: doctypeToken, loc: sc.tokLoc}
	if len(fields) > 0 {
		t.name = fields[0]
	}
	unquote := func(s string) string {
		return strings.Trim(s, `"'`)
	}
	for i := 1; i < len(fields); i++ {
		switch fields[i] {
		case "PUBLIC":
			if i+1 < len(fields) {
				t.publicID = unquote(fields[i+1])
				t.hasPublic = true
			}
			if i+2 < len(fields) {
				t.systemID = unquote(fields[i+2])
				t.hasSystem = true
			}
			i = len(fields)
		case "SYSTEM":
			if i+1 < len(fields) {
				t.systemID = unquote(fields[i+1])
				t.hasSystem = true
			}
			i = len(fields)
		}
	}
	sc.emit(t)
}

// emitXMLDecl parses the pseudo-attributes of the text declaration.
func (sc *scanner) emitXMLDecl(body string) {
	t := token{kind: declToken, version: "1.0", loc: sc.tokLoc}
	for _, pseudo := range []string{"version", "encoding", "standalone"} {
		val, ok := pseudoAttr(body, pseudo)
		if !ok {
			continue
		}
		switch pseudo {
		case "version":
			t.version = val
		case "encoding":
			t.encoding = val
		case "standalone":
			yes := val == "yes"
			t.standalone = &yes
		}
	}
	sc.emit(t)
}

func pseudoAttr(body, name string) (string, bool) {
	i := strings.Index(body, name)
	if i < 0 {
		return "", false
	}
	rest := strings.TrimLeft(body[i+len(name):], " \t\n")
	if !strings.HasPrefix(rest, "=") {
		return "", false
	}
	rest = strings.TrimLeft(rest[1:], " \t\n")
	if len(rest) == 0 || (rest[0] != '"' && rest[0] != '\'') {
		return "", false
	}
	if j := strings.IndexByte(rest[1:], rest[0]); j >= 0 {
		return rest[1 : 1+j], true
	}
	return "", false
}

// reference resolves character references and the five predefined entity
// references; any other general entity is reported and kept literally.
func (sc *scanner) reference(s input.Scalar) {
	r := s.R
	if r != ';' && (isNameChar(r) || r == '#' || (len(sc.refBuf) >= 2 && sc.refBuf[1] == '#' && isHex(r))) {
		sc.refBuf = append(sc.refBuf, r)
		if len(sc.refBuf) > 32 { // no sane reference is this long
			sc.err(sc.loc, "runaway reference truncated")
			sc.refOut(string(sc.refBuf))
			sc.refBuf = nil
		}
		return
	}
	if r != ';' {
		sc.err(sc.loc, "reference not terminated by ';'")
		sc.refOut(string(sc.refBuf))
		sc.refBuf = nil
		sc.reconsume(s)
		return
	}
	body := string(sc.refBuf[1:])
	sc.refBuf = nil
	switch {
	case body == "amp":
		sc.refOut("&")
	case body == "lt":
		sc.refOut("<")
	case body == "gt":
		sc.refOut(">")
	case body == "apos":
		sc.refOut("'")
	case body == "quot":
		sc.refOut("\"")
	case strings.HasPrefix(body, "#x"), strings.HasPrefix(body, "#X"):
		sc.refOut(string(decodeCharRef(body[2:], 16, sc)))
	case strings.HasPrefix(body, "#"):
		sc.refOut(string(decodeCharRef(body[1:], 10, sc)))
	case body == "":
		sc.err(sc.loc, "empty reference")
		sc.refOut("&;")
	default:
		sc.err(sc.loc, "general entity &%s; not expanded", body)
		sc.refOut("&" + body + ";")
	}
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func decodeCharRef(digits string, base int64, sc *scanner) rune {
	var code int64
	for _, d := range digits {
		var v int64
		switch {
		case d >= '0' && d <= '9':
			v = int64(d - '0')
		case d >= 'a' && d <= 'f':
			v = int64(d-'a') + 10
		case d >= 'A' && d <= 'F':
			v = int64(d-'A') + 10
		default:
			sc.err(sc.loc, "bad digit in character reference")
			return '�'
		}
		if v >= base {
			sc.err(sc.loc, "bad digit in character reference")
			return '�'
		}
		code = code*base + v
		if code > 0x10FFFF {
			break
		}
	}
	if code == 0 || code > 0x10FFFF || (code >= 0xD800 && code <= 0xDFFF) {
		sc.err(sc.loc, "character reference out of range")
		return '�'
	}
	return rune(code)
}

func (sc *scanner) refOut(text string) {
	if sc.refInValue {
		sc.valueBuf = append(sc.valueBuf, []rune(text)...)
		return
	}
	for _, r := range text {
		sc.text(r, sc.loc)
	}
}

func (sc *scanner) flush(emit func(token)) {
	sc.emitTok = emit
	switch sc.state {
	case textState:
		if sc.refBuf != nil {
			sc.err(sc.loc, "end of input inside reference")
			sc.refOut(string(sc.refBuf))
		}
	case commentState, commentDashState, commentDashDashState:
		sc.err(sc.loc, "end of input inside comment")
		sc.emit(token{kind: commentToken, text: string(sc.piBuf), loc: sc.tokLoc})
	case cdataState, cdataBracketState, cdataEndState:
		sc.err(sc.loc, "end of input inside CDATA section")
		sc.emit(token{kind: cdataToken, text: string(sc.piBuf), loc: sc.tokLoc})
	case doctypeState:
		sc.err(sc.loc, "end of input inside doctype")
		sc.emitDoctype()
	case piTargetState, piBodyState:
		sc.err(sc.loc, "end of input inside processing instruction")
	case ltState:
		sc.err(sc.loc, "end of input after '<'")
		sc.text('<', sc.tokLoc)
	default:
		sc.err(sc.loc, "end of input inside tag")
	}
	sc.flushText()
	sc.emitTok(token{kind: eofToken, loc: sc.loc})
	sc.emitTok = nil
	tracer().Debugf("XML scanner reached end of input")
}
