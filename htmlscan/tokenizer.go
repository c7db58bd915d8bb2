package htmlscan

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"strings"

	"github.com/npillmayer/sigil/entity"
	"github.com/npillmayer/sigil/input"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

// Tokenizer states. The WHATWG grouping is kept, with the comment
// less-than-sign sub-states folded into the comment state (they differ
// only in which parse error they raise).
type state uint8

const (
	dataState state = iota
	rcdataState
	rawtextState
	scriptDataState
	plaintextState
	tagOpenState
	endTagOpenState
	tagNameState
	rawLessThanState // < in RCDATA, RAWTEXT and script data
	rawEndTagOpenState
	rawEndTagNameState
	scriptEscapeStartState
	scriptEscapeStartDashState
	scriptEscapedState
	scriptEscapedDashState
	scriptEscapedDashDashState
	scriptEscapedLessThanState
	scriptDoubleEscapeStartState
	scriptDoubleEscapedState
	scriptDoubleEscapedDashState
	scriptDoubleEscapedDashDashState
	scriptDoubleEscapedLessThanState
	scriptDoubleEscapeEndState
	beforeAttrNameState
	attrNameState
	afterAttrNameState
	beforeAttrValueState
	attrValueDoubleState
	attrValueSingleState
	attrValueUnquotedState
	afterAttrValueQuotedState
	selfClosingStartTagState
	bogusCommentState
	markupDeclOpenState
	commentStartState
	commentStartDashState
	commentState
	commentEndDashState
	commentEndState
	commentEndBangState
	doctypeState
	beforeDoctypeNameState
	doctypeNameState
	afterDoctypeNameState
	doctypeKeywordState
	afterDoctypePublicKeywordState
	beforeDoctypePublicIDState
	doctypePublicIDDoubleState
	doctypePublicIDSingleState
	afterDoctypePublicIDState
	betweenDoctypePublicSystemState
	afterDoctypeSystemKeywordState
	beforeDoctypeSystemIDState
	doctypeSystemIDDoubleState
	doctypeSystemIDSingleState
	afterDoctypeSystemIDState
	bogusDoctypeState
	cdataSectionState
	cdataSectionBracketState
	cdataSectionEndState
	charRefState
	namedCharRefState
	ambiguousAmpersandState
	numericCharRefState
	hexCharRefStartState
	hexCharRefState
	decCharRefState
	numericCharRefEndState
)

// Tokenizer is the HTML tokenizer stage. Input is consumed strictly one
// code point per state step; the few constructs that need look-ahead
// (markup declaration open, end tags in raw text, named references) use
// small explicit buffers and the reconsume queue.
type Tokenizer struct {
	stage  *stream.Stage[input.Scalar, Token]
	report markup.Report

	state       state
	returnState state
	rawReturn   state // raw-text mode to fall back to from a failed end tag

	loc    markup.Location // location of the scalar being processed
	tokLoc markup.Location // location where the current token started

	charbuf   []rune // aggregated character data
	charLoc   markup.Location
	haveChars bool

	tok          Token  // tag, comment or doctype under construction
	nameBuf      []rune // tag or doctype name accumulator
	commentBuf   []rune
	idBuf        []rune // doctype public/system identifier accumulator
	pendingName  string // committed name of the attribute under construction
	pendingDup   bool   // pending attribute is a duplicate, to be dropped
	valueBuf     []rune // attribute value accumulator
	lastStartTag string // for "appropriate end tag" checks in raw text

	tmp []rune // temporary buffer: raw end tags, markup decl open, escapes

	entMatch      *entity.Matcher
	entBuf        []rune // code points consumed after '&'
	entBestRepl   string
	entBestLen    int // runes of entBuf covered by the best terminal
	entBestSemi   bool
	charRefCode   int64
	charRefDigits bool

	cdataAllowed bool

	pending []input.Scalar // reconsume queue, front is next
	emit    func(Token)
}

// New chains a tokenizer onto a preprocessed scalar stream.
func New(src stream.Stream[input.Scalar], report markup.Report) *Tokenizer {
	z := &Tokenizer{report: report, state: dataState}
	z.stage = stream.NewStage[input.Scalar, Token](src, z.step, z.flush)
	return z
}

// Advance implements stream.Stream[Token].
func (z *Tokenizer) Advance(onErr func(error), onEnd func(), onVal func(Token)) {
	z.stage.Advance(onErr, onEnd, onVal)
}

// --- Parser feedback -------------------------------------------------------

// The tree constructor calls these between tokens; the tokenizer never
// switches content modes on its own.

// NextIsRawText puts the tokenizer into RAWTEXT content for the given
// element (style, xmp, iframe, noembed, noframes, and noscript with
// scripting enabled).
func (z *Tokenizer) NextIsRawText(tag string) {
	z.lastStartTag = tag
	z.state = rawtextState
}

// NextIsRCDATA puts the tokenizer into RCDATA content (title, textarea).
func (z *Tokenizer) NextIsRCDATA(tag string) {
	z.lastStartTag = tag
	z.state = rcdataState
}

// NextIsScriptData puts the tokenizer into script data content.
func (z *Tokenizer) NextIsScriptData() {
	z.lastStartTag = "script"
	z.state = scriptDataState
}

// NextIsPlaintext switches to plaintext: every remaining code point is
// character data.
func (z *Tokenizer) NextIsPlaintext() {
	z.state = plaintextState
}

// PermitCDATA toggles whether <![CDATA[ opens a CDATA section. The tree
// constructor enables it inside foreign (SVG/MathML) content.
func (z *Tokenizer) PermitCDATA(allow bool) {
	z.cdataAllowed = allow
}

// --- Character predicates --------------------------------------------------

func isWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f'
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isAlnum(r rune) bool { return isLetter(r) || isDigit(r) }

func lower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

// --- Stage plumbing --------------------------------------------------------

func (z *Tokenizer) step(s input.Scalar, emit func(Token)) {
	z.emit = emit
	z.process(s)
	for len(z.pending) > 0 {
		next := z.pending[0]
		z.pending = z.pending[1:]
		z.process(next)
	}
	z.emit = nil
}

// reconsume re-queues a scalar to be processed in the (new) current state.
func (z *Tokenizer) reconsume(s input.Scalar) {
	z.pending = append([]input.Scalar{s}, z.pending...)
}

func (z *Tokenizer) err(loc markup.Location, format string, args ...interface{}) {
	z.report.Send(markup.BadToken, loc, format, args...)
}

// --- Emission --------------------------------------------------------------

func (z *Tokenizer) appendChar(r rune, loc markup.Location) {
	if !z.haveChars {
		z.charLoc = loc
		z.haveChars = true
	}
	z.charbuf = append(z.charbuf, r)
}

func (z *Tokenizer) appendString(s string, loc markup.Location) {
	for _, r := range s {
		z.appendChar(r, loc)
	}
}

func (z *Tokenizer) flushChars() {
	if !z.haveChars {
		return
	}
	z.emit(Token{Kind: CharsToken, Text: string(z.charbuf), Loc: z.charLoc})
	z.charbuf = z.charbuf[:0]
	z.haveChars = false
}

func (z *Tokenizer) emitToken(t Token) {
	z.flushChars()
	z.emit(t)
}

func (z *Tokenizer) newTag(kind Kind) {
	z.tok = Token{Kind: kind, Loc: z.tokLoc}
	z.nameBuf = z.nameBuf[:0]
	z.pendingName = ""
	z.valueBuf = z.valueBuf[:0]
}

func (z *Tokenizer) commitAttrName() {
	z.pendingName = string(z.tmp)
	z.pendingDup = false
	for _, a := range z.tok.Attrs {
		if a.Name.Local == z.pendingName {
			z.report.Send(markup.AttributeDuplicated, z.loc,
				"attribute %q repeated; first occurrence kept", z.pendingName)
			z.pendingDup = true
			break
		}
	}
	z.tmp = z.tmp[:0]
}

func (z *Tokenizer) commitAttr() {
	if z.pendingName == "" {
		return
	}
	if !z.pendingDup {
		z.tok.Attrs = append(z.tok.Attrs, markup.Attr{
			Name:  markup.QName{Local: z.pendingName},
			Value: string(z.valueBuf),
		})
	}
	z.pendingName = ""
	z.pendingDup = false
	z.valueBuf = z.valueBuf[:0]
}

func (z *Tokenizer) emitTag() {
	z.commitAttr()
	z.tok.Name = string(z.nameBuf)
	if z.tok.Kind == EndTagToken {
		if len(z.tok.Attrs) > 0 {
			z.err(z.tok.Loc, "end tag </%s> has attributes", z.tok.Name)
		}
		if z.tok.SelfClosing {
			z.err(z.tok.Loc, "end tag </%s> is self-closing", z.tok.Name)
		}
	}
	if z.tok.Kind == StartTagToken {
		z.lastStartTag = z.tok.Name
	}
	z.emitToken(z.tok)
	z.state = dataState
}

func (z *Tokenizer) emitComment() {
	z.emitToken(Token{Kind: CommentToken, Text: string(z.commentBuf), Loc: z.tokLoc})
	z.commentBuf = z.commentBuf[:0]
	z.state = dataState
}

func (z *Tokenizer) emitDoctype() {
	z.tok.Name = string(z.nameBuf)
	z.emitToken(z.tok)
	z.state = dataState
}

// --- The state machine -----------------------------------------------------

func (z *Tokenizer) process(s input.Scalar) {
	r := s.R
	z.loc = s.Loc
	switch z.state {

	case dataState:
		switch r {
		case '&':
			z.returnState = dataState
			z.startCharRef()
		case '<':
			z.tokLoc = s.Loc
			z.state = tagOpenState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar(r, s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case plaintextState:
		if r == 0 {
			z.err(s.Loc, "unexpected NULL character")
			r = '�'
		}
		z.appendChar(r, s.Loc)

	case rcdataState:
		switch r {
		case '&':
			z.returnState = rcdataState
			z.startCharRef()
		case '<':
			z.rawReturn = rcdataState
			z.tokLoc = s.Loc
			z.state = rawLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case rawtextState:
		switch r {
		case '<':
			z.rawReturn = rawtextState
			z.tokLoc = s.Loc
			z.state = rawLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case scriptDataState:
		switch r {
		case '<':
			z.rawReturn = scriptDataState
			z.tokLoc = s.Loc
			z.state = rawLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case tagOpenState:
		switch {
		case r == '!':
			z.tmp = z.tmp[:0]
			z.state = markupDeclOpenState
		case r == '/':
			z.state = endTagOpenState
		case isLetter(r):
			z.newTag(StartTagToken)
			z.state = tagNameState
			z.reconsume(s)
		case r == '?':
			z.err(s.Loc, "unexpected ? instead of tag name")
			z.commentBuf = z.commentBuf[:0]
			z.state = bogusCommentState
			z.reconsume(s)
		default:
			z.err(s.Loc, "invalid first character of tag name")
			z.appendChar('<', z.tokLoc)
			z.state = dataState
			z.reconsume(s)
		}

	case endTagOpenState:
		switch {
		case isLetter(r):
			z.newTag(EndTagToken)
			z.state = tagNameState
			z.reconsume(s)
		case r == '>':
			z.err(s.Loc, "missing end tag name")
			z.state = dataState
		default:
			z.err(s.Loc, "invalid first character of end tag name")
			z.commentBuf = z.commentBuf[:0]
			z.state = bogusCommentState
			z.reconsume(s)
		}

	case tagNameState:
		switch {
		case isWhitespace(r):
			z.state = beforeAttrNameState
		case r == '/':
			z.state = selfClosingStartTagState
		case r == '>':
			z.emitTag()
		case r == 0:
			z.err(s.Loc, "unexpected NULL character")
			z.nameBuf = append(z.nameBuf, '�')
		default:
			z.nameBuf = append(z.nameBuf, lower(r))
		}

	// --- End tags inside RCDATA / RAWTEXT / script data -----------------

	case rawLessThanState:
		switch {
		case r == '/':
			z.tmp = z.tmp[:0]
			z.state = rawEndTagOpenState
		case r == '!' && z.rawReturn == scriptDataState:
			z.appendChar('<', z.tokLoc)
			z.appendChar('!', s.Loc)
			z.state = scriptEscapeStartState
		default:
			z.appendChar('<', z.tokLoc)
			z.state = z.rawReturn
			z.reconsume(s)
		}

	case rawEndTagOpenState:
		if isLetter(r) {
			z.newTag(EndTagToken)
			z.state = rawEndTagNameState
			z.reconsume(s)
		} else {
			z.appendString("</", z.tokLoc)
			z.state = z.rawReturn
			z.reconsume(s)
		}

	case rawEndTagNameState:
		appropriate := string(z.nameBuf) == z.lastStartTag && z.lastStartTag != ""
		switch {
		case isWhitespace(r) && appropriate:
			z.state = beforeAttrNameState
		case r == '/' && appropriate:
			z.state = selfClosingStartTagState
		case r == '>' && appropriate:
			z.emitTag()
		case isLetter(r):
			z.nameBuf = append(z.nameBuf, lower(r))
			z.tmp = append(z.tmp, r)
		default:
			z.appendString("</", z.tokLoc)
			for _, c := range z.tmp {
				z.appendChar(c, s.Loc)
			}
			z.tmp = z.tmp[:0]
			z.state = z.rawReturn
			z.reconsume(s)
		}

	// --- Script data escaping -------------------------------------------

	case scriptEscapeStartState:
		if r == '-' {
			z.appendChar('-', s.Loc)
			z.state = scriptEscapeStartDashState
		} else {
			z.state = scriptDataState
			z.reconsume(s)
		}

	case scriptEscapeStartDashState:
		if r == '-' {
			z.appendChar('-', s.Loc)
			z.state = scriptEscapedDashDashState
		} else {
			z.state = scriptDataState
			z.reconsume(s)
		}

	case scriptEscapedState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
			z.state = scriptEscapedDashState
		case '<':
			z.tokLoc = s.Loc
			z.state = scriptEscapedLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case scriptEscapedDashState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
			z.state = scriptEscapedDashDashState
		case '<':
			z.tokLoc = s.Loc
			z.state = scriptEscapedLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
			z.state = scriptEscapedState
		default:
			z.appendChar(r, s.Loc)
			z.state = scriptEscapedState
		}

	case scriptEscapedDashDashState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
		case '<':
			z.tokLoc = s.Loc
			z.state = scriptEscapedLessThanState
		case '>':
			z.appendChar('>', s.Loc)
			z.state = scriptDataState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
			z.state = scriptEscapedState
		default:
			z.appendChar(r, s.Loc)
			z.state = scriptEscapedState
		}

	case scriptEscapedLessThanState:
		switch {
		case r == '/':
			z.tmp = z.tmp[:0]
			z.rawReturn = scriptEscapedState
			z.state = rawEndTagOpenState
		case isLetter(r):
			z.tmp = z.tmp[:0]
			z.appendChar('<', z.tokLoc)
			z.state = scriptDoubleEscapeStartState
			z.reconsume(s)
		default:
			z.appendChar('<', z.tokLoc)
			z.state = scriptEscapedState
			z.reconsume(s)
		}

	case scriptDoubleEscapeStartState:
		switch {
		case isWhitespace(r) || r == '/' || r == '>':
			if string(z.tmp) == "script" {
				z.state = scriptDoubleEscapedState
			} else {
				z.state = scriptEscapedState
			}
			z.appendChar(r, s.Loc)
		case isLetter(r):
			z.tmp = append(z.tmp, lower(r))
			z.appendChar(r, s.Loc)
		default:
			z.state = scriptEscapedState
			z.reconsume(s)
		}

	case scriptDoubleEscapedState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
			z.state = scriptDoubleEscapedDashState
		case '<':
			z.appendChar('<', s.Loc)
			z.state = scriptDoubleEscapedLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
		default:
			z.appendChar(r, s.Loc)
		}

	case scriptDoubleEscapedDashState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
			z.state = scriptDoubleEscapedDashDashState
		case '<':
			z.appendChar('<', s.Loc)
			z.state = scriptDoubleEscapedLessThanState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
			z.state = scriptDoubleEscapedState
		default:
			z.appendChar(r, s.Loc)
			z.state = scriptDoubleEscapedState
		}

	case scriptDoubleEscapedDashDashState:
		switch r {
		case '-':
			z.appendChar('-', s.Loc)
		case '<':
			z.appendChar('<', s.Loc)
			z.state = scriptDoubleEscapedLessThanState
		case '>':
			z.appendChar('>', s.Loc)
			z.state = scriptDataState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.appendChar('�', s.Loc)
			z.state = scriptDoubleEscapedState
		default:
			z.appendChar(r, s.Loc)
			z.state = scriptDoubleEscapedState
		}

	case scriptDoubleEscapedLessThanState:
		if r == '/' {
			z.appendChar('/', s.Loc)
			z.tmp = z.tmp[:0]
			z.state = scriptDoubleEscapeEndState
		} else {
			z.state = scriptDoubleEscapedState
			z.reconsume(s)
		}

	case scriptDoubleEscapeEndState:
		switch {
		case isWhitespace(r) || r == '/' || r == '>':
			if string(z.tmp) == "script" {
				z.state = scriptEscapedState
			} else {
				z.state = scriptDoubleEscapedState
			}
			z.appendChar(r, s.Loc)
		case isLetter(r):
			z.tmp = append(z.tmp, lower(r))
			z.appendChar(r, s.Loc)
		default:
			z.state = scriptDoubleEscapedState
			z.reconsume(s)
		}

	// --- Attributes ------------------------------------------------------

	case beforeAttrNameState:
		switch {
		case isWhitespace(r):
		case r == '/' || r == '>':
			z.state = afterAttrNameState
			z.reconsume(s)
		case r == '=':
			z.err(s.Loc, "unexpected = before attribute name")
			z.commitAttr()
			z.tmp = append(z.tmp[:0], '=')
			z.state = attrNameState
		default:
			z.commitAttr()
			z.tmp = z.tmp[:0]
			z.state = attrNameState
			z.reconsume(s)
		}

	case attrNameState:
		switch {
		case isWhitespace(r) || r == '/' || r == '>':
			z.commitAttrName()
			z.state = afterAttrNameState
			z.reconsume(s)
		case r == '=':
			z.commitAttrName()
			z.state = beforeAttrValueState
		case r == 0:
			z.err(s.Loc, "unexpected NULL character")
			z.tmp = append(z.tmp, '�')
		case r == '"' || r == '\'' || r == '<':
			z.err(s.Loc, "unexpected %q in attribute name", r)
			z.tmp = append(z.tmp, lower(r))
		default:
			z.tmp = append(z.tmp, lower(r))
		}

	case afterAttrNameState:
		switch {
		case isWhitespace(r):
		case r == '/':
			z.state = selfClosingStartTagState
		case r == '=':
			z.state = beforeAttrValueState
		case r == '>':
			z.emitTag()
		default:
			z.commitAttr()
			z.tmp = z.tmp[:0]
			z.state = attrNameState
			z.reconsume(s)
		}

	case beforeAttrValueState:
		switch {
		case isWhitespace(r):
		case r == '"':
			z.state = attrValueDoubleState
		case r == '\'':
			z.state = attrValueSingleState
		case r == '>':
			z.err(s.Loc, "missing attribute value")
			z.emitTag()
		default:
			z.state = attrValueUnquotedState
			z.reconsume(s)
		}

	case attrValueDoubleState:
		switch r {
		case '"':
			z.state = afterAttrValueQuotedState
		case '&':
			z.returnState = attrValueDoubleState
			z.startCharRef()
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.valueBuf = append(z.valueBuf, '�')
		default:
			z.valueBuf = append(z.valueBuf, r)
		}

	case attrValueSingleState:
		switch r {
		case '\'':
			z.state = afterAttrValueQuotedState
		case '&':
			z.returnState = attrValueSingleState
			z.startCharRef()
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.valueBuf = append(z.valueBuf, '�')
		default:
			z.valueBuf = append(z.valueBuf, r)
		}

	case attrValueUnquotedState:
		switch {
		case isWhitespace(r):
			z.state = beforeAttrNameState
		case r == '&':
			z.returnState = attrValueUnquotedState
			z.startCharRef()
		case r == '>':
			z.emitTag()
		case r == 0:
			z.err(s.Loc, "unexpected NULL character")
			z.valueBuf = append(z.valueBuf, '�')
		case r == '"' || r == '\'' || r == '<' || r == '=' || r == '`':
			z.err(s.Loc, "unexpected %q in unquoted attribute value", r)
			z.valueBuf = append(z.valueBuf, r)
		default:
			z.valueBuf = append(z.valueBuf, r)
		}

	case afterAttrValueQuotedState:
		switch {
		case isWhitespace(r):
			z.state = beforeAttrNameState
		case r == '/':
			z.state = selfClosingStartTagState
		case r == '>':
			z.emitTag()
		default:
			z.err(s.Loc, "missing whitespace between attributes")
			z.state = beforeAttrNameState
			z.reconsume(s)
		}

	case selfClosingStartTagState:
		switch {
		case r == '>':
			z.tok.SelfClosing = true
			z.emitTag()
		default:
			z.err(s.Loc, "unexpected / in tag")
			z.state = beforeAttrNameState
			z.reconsume(s)
		}

	// --- Comments and markup declarations --------------------------------

	case bogusCommentState:
		switch r {
		case '>':
			z.emitComment()
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.commentBuf = append(z.commentBuf, '�')
		default:
			z.commentBuf = append(z.commentBuf, r)
		}

	case markupDeclOpenState:
		z.tmp = append(z.tmp, r)
		sofar := string(z.tmp)
		switch {
		case sofar == "--":
			z.commentBuf = z.commentBuf[:0]
			z.state = commentStartState
		case strings.EqualFold(sofar, "doctype"[:len(sofar)]):
			if len(sofar) == len("doctype") {
				z.state = doctypeState
			}
		case sofar == "[CDATA["[:len(sofar)]:
			if len(sofar) == len("[CDATA[") {
				if z.cdataAllowed {
					z.state = cdataSectionState
				} else {
					z.err(z.tokLoc, "CDATA section outside foreign content")
					z.commentBuf = append(z.commentBuf[:0], []rune("[CDATA[")...)
					z.state = bogusCommentState
				}
			}
		case sofar == "-":
		default:
			z.err(z.tokLoc, "incorrectly opened comment")
			z.commentBuf = z.commentBuf[:0]
			z.state = bogusCommentState
			z.tmp = z.tmp[:len(z.tmp)-1]
			for _, c := range z.tmp {
				z.commentBuf = append(z.commentBuf, c)
			}
			z.reconsume(s)
		}

	case commentStartState:
		switch r {
		case '-':
			z.state = commentStartDashState
		case '>':
			z.err(s.Loc, "abrupt closing of empty comment")
			z.emitComment()
		default:
			z.state = commentState
			z.reconsume(s)
		}

	case commentStartDashState:
		switch r {
		case '-':
			z.state = commentEndState
		case '>':
			z.err(s.Loc, "abrupt closing of empty comment")
			z.emitComment()
		default:
			z.commentBuf = append(z.commentBuf, '-')
			z.state = commentState
			z.reconsume(s)
		}

	case commentState:
		switch r {
		case '-':
			z.state = commentEndDashState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.commentBuf = append(z.commentBuf, '�')
		default:
			z.commentBuf = append(z.commentBuf, r)
		}

	case commentEndDashState:
		switch r {
		case '-':
			z.state = commentEndState
		default:
			z.commentBuf = append(z.commentBuf, '-')
			z.state = commentState
			z.reconsume(s)
		}

	case commentEndState:
		switch r {
		case '>':
			z.emitComment()
		case '!':
			z.state = commentEndBangState
		case '-':
			z.commentBuf = append(z.commentBuf, '-')
		default:
			z.commentBuf = append(z.commentBuf, '-', '-')
			z.state = commentState
			z.reconsume(s)
		}

	case commentEndBangState:
		switch r {
		case '-':
			z.commentBuf = append(z.commentBuf, '-', '-', '!')
			z.state = commentEndDashState
		case '>':
			z.err(s.Loc, "incorrectly closed comment")
			z.emitComment()
		default:
			z.commentBuf = append(z.commentBuf, '-', '-', '!')
			z.state = commentState
			z.reconsume(s)
		}

	// --- Doctype ---------------------------------------------------------

	case doctypeState:
		switch {
		case isWhitespace(r):
			z.state = beforeDoctypeNameState
		case r == '>':
			z.state = beforeDoctypeNameState
			z.reconsume(s)
		default:
			z.err(s.Loc, "missing whitespace before doctype name")
			z.state = beforeDoctypeNameState
			z.reconsume(s)
		}

	case beforeDoctypeNameState:
		switch {
		case isWhitespace(r):
		case r == '>':
			z.err(s.Loc, "missing doctype name")
			z.tok = Token{Kind: DoctypeToken, ForceQuirks: true, Loc: z.tokLoc}
			z.nameBuf = z.nameBuf[:0]
			z.emitDoctype()
		case r == 0:
			z.err(s.Loc, "unexpected NULL character")
			z.tok = Token{Kind: DoctypeToken, Loc: z.tokLoc}
			z.nameBuf = append(z.nameBuf[:0], '�')
			z.state = doctypeNameState
		default:
			z.tok = Token{Kind: DoctypeToken, Loc: z.tokLoc}
			z.nameBuf = append(z.nameBuf[:0], lower(r))
			z.state = doctypeNameState
		}

	case doctypeNameState:
		switch {
		case isWhitespace(r):
			z.state = afterDoctypeNameState
		case r == '>':
			z.emitDoctype()
		case r == 0:
			z.err(s.Loc, "unexpected NULL character")
			z.nameBuf = append(z.nameBuf, '�')
		default:
			z.nameBuf = append(z.nameBuf, lower(r))
		}

	case afterDoctypeNameState:
		switch {
		case isWhitespace(r):
		case r == '>':
			z.emitDoctype()
		case isLetter(r):
			z.tmp = append(z.tmp[:0], lower(r))
			z.state = doctypeKeywordState
		default:
			z.err(s.Loc, "invalid character sequence after doctype name")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case doctypeKeywordState:
		if isLetter(r) && len(z.tmp) < 6 {
			z.tmp = append(z.tmp, lower(r))
			if len(z.tmp) == 6 {
				switch string(z.tmp) {
				case "public":
					z.state = afterDoctypePublicKeywordState
				case "system":
					z.state = afterDoctypeSystemKeywordState
				default:
					z.err(s.Loc, "invalid character sequence after doctype name")
					z.tok.ForceQuirks = true
					z.state = bogusDoctypeState
				}
			}
		} else {
			z.err(s.Loc, "invalid character sequence after doctype name")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case afterDoctypePublicKeywordState:
		switch {
		case isWhitespace(r):
			z.state = beforeDoctypePublicIDState
		case r == '"' || r == '\'':
			z.err(s.Loc, "missing whitespace after public keyword")
			z.tok.HasPublicID = true
			z.idBuf = z.idBuf[:0]
			z.state = publicIDStateFor(r)
		case r == '>':
			z.err(s.Loc, "missing doctype public identifier")
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.err(s.Loc, "missing quote before doctype public identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case beforeDoctypePublicIDState:
		switch {
		case isWhitespace(r):
		case r == '"' || r == '\'':
			z.tok.HasPublicID = true
			z.idBuf = z.idBuf[:0]
			z.state = publicIDStateFor(r)
		case r == '>':
			z.err(s.Loc, "missing doctype public identifier")
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.err(s.Loc, "missing quote before doctype public identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case doctypePublicIDDoubleState, doctypePublicIDSingleState:
		quote := rune('"')
		if z.state == doctypePublicIDSingleState {
			quote = '\''
		}
		switch r {
		case quote:
			z.tok.PublicID = string(z.idBuf)
			z.state = afterDoctypePublicIDState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.idBuf = append(z.idBuf, '�')
		case '>':
			z.err(s.Loc, "abrupt doctype public identifier")
			z.tok.PublicID = string(z.idBuf)
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.idBuf = append(z.idBuf, r)
		}

	case afterDoctypePublicIDState:
		switch {
		case isWhitespace(r):
			z.state = betweenDoctypePublicSystemState
		case r == '>':
			z.emitDoctype()
		case r == '"' || r == '\'':
			z.err(s.Loc, "missing whitespace between doctype identifiers")
			z.tok.HasSystemID = true
			z.idBuf = z.idBuf[:0]
			z.state = systemIDStateFor(r)
		default:
			z.err(s.Loc, "missing quote before doctype system identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case betweenDoctypePublicSystemState:
		switch {
		case isWhitespace(r):
		case r == '>':
			z.emitDoctype()
		case r == '"' || r == '\'':
			z.tok.HasSystemID = true
			z.idBuf = z.idBuf[:0]
			z.state = systemIDStateFor(r)
		default:
			z.err(s.Loc, "missing quote before doctype system identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case afterDoctypeSystemKeywordState:
		switch {
		case isWhitespace(r):
			z.state = beforeDoctypeSystemIDState
		case r == '"' || r == '\'':
			z.err(s.Loc, "missing whitespace after system keyword")
			z.tok.HasSystemID = true
			z.idBuf = z.idBuf[:0]
			z.state = systemIDStateFor(r)
		case r == '>':
			z.err(s.Loc, "missing doctype system identifier")
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.err(s.Loc, "missing quote before doctype system identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case beforeDoctypeSystemIDState:
		switch {
		case isWhitespace(r):
		case r == '"' || r == '\'':
			z.tok.HasSystemID = true
			z.idBuf = z.idBuf[:0]
			z.state = systemIDStateFor(r)
		case r == '>':
			z.err(s.Loc, "missing doctype system identifier")
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.err(s.Loc, "missing quote before doctype system identifier")
			z.tok.ForceQuirks = true
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case doctypeSystemIDDoubleState, doctypeSystemIDSingleState:
		quote := rune('"')
		if z.state == doctypeSystemIDSingleState {
			quote = '\''
		}
		switch r {
		case quote:
			z.tok.SystemID = string(z.idBuf)
			z.state = afterDoctypeSystemIDState
		case 0:
			z.err(s.Loc, "unexpected NULL character")
			z.idBuf = append(z.idBuf, '�')
		case '>':
			z.err(s.Loc, "abrupt doctype system identifier")
			z.tok.SystemID = string(z.idBuf)
			z.tok.ForceQuirks = true
			z.emitDoctype()
		default:
			z.idBuf = append(z.idBuf, r)
		}

	case afterDoctypeSystemIDState:
		switch {
		case isWhitespace(r):
		case r == '>':
			z.emitDoctype()
		default:
			z.err(s.Loc, "unexpected character after doctype system identifier")
			z.state = bogusDoctypeState
			z.reconsume(s)
		}

	case bogusDoctypeState:
		switch r {
		case '>':
			z.emitDoctype()
		case 0:
			z.err(s.Loc, "unexpected NULL character")
		}

	// --- CDATA sections --------------------------------------------------

	case cdataSectionState:
		switch r {
		case ']':
			z.state = cdataSectionBracketState
		default:
			z.appendChar(r, s.Loc)
		}

	case cdataSectionBracketState:
		switch r {
		case ']':
			z.state = cdataSectionEndState
		default:
			z.appendChar(']', s.Loc)
			z.state = cdataSectionState
			z.reconsume(s)
		}

	case cdataSectionEndState:
		switch r {
		case '>':
			z.state = dataState
		case ']':
			z.appendChar(']', s.Loc)
		default:
			z.appendString("]]", s.Loc)
			z.state = cdataSectionState
			z.reconsume(s)
		}

	// --- Character references --------------------------------------------

	case charRefState:
		switch {
		case isAlnum(r):
			z.entMatch = entity.New()
			z.state = namedCharRefState
			z.reconsume(s)
		case r == '#':
			z.entBuf = append(z.entBuf, '#')
			z.charRefCode = 0
			z.charRefDigits = false
			z.state = numericCharRefState
		default:
			z.flushCharRef(string(z.entBuf))
			z.state = z.returnState
			z.reconsume(s)
		}

	case namedCharRefState:
		if z.entMatch.Step(r) {
			z.entBuf = append(z.entBuf, r)
			// a terminal is only usable when semicolon-terminated or
			// marked as a legacy reference
			if repl, ok := z.entMatch.Terminal(); ok && (r == ';' || z.entMatch.Legacy()) {
				z.entBestRepl = repl
				z.entBestLen = len(z.entBuf) - 1 // runes after '&'
				z.entBestSemi = r == ';'
			}
			if r == ';' || !z.entMatch.CanContinue() {
				z.resolveNamedRef(nil)
			}
			return
		}
		z.resolveNamedRef(&s)

	case ambiguousAmpersandState:
		switch {
		case isAlnum(r):
			z.flushCharRef(string(r))
		case r == ';':
			z.err(s.Loc, "unknown named character reference")
			z.state = z.returnState
			z.reconsume(s)
		default:
			z.state = z.returnState
			z.reconsume(s)
		}

	case numericCharRefState:
		switch {
		case r == 'x' || r == 'X':
			z.entBuf = append(z.entBuf, r)
			z.state = hexCharRefStartState
		default:
			z.state = decCharRefState
			z.reconsume(s)
		}

	case hexCharRefStartState:
		if isHexDigit(r) {
			z.state = hexCharRefState
			z.reconsume(s)
		} else {
			z.err(s.Loc, "absence of digits in numeric character reference")
			z.flushCharRef(string(z.entBuf))
			z.state = z.returnState
			z.reconsume(s)
		}

	case hexCharRefState:
		switch {
		case isHexDigit(r):
			z.charRefDigits = true
			z.charRefCode = z.charRefCode*16 + int64(hexVal(r))
			if z.charRefCode > 0x10FFFF {
				z.charRefCode = 0x110000 // clamp; resolves to U+FFFD
			}
		case r == ';':
			z.endNumericRef()
		default:
			z.err(s.Loc, "missing semicolon after character reference")
			z.endNumericRef()
			z.reconsume(s)
		}

	case decCharRefState:
		switch {
		case isDigit(r):
			z.charRefDigits = true
			z.charRefCode = z.charRefCode*10 + int64(r-'0')
			if z.charRefCode > 0x10FFFF {
				z.charRefCode = 0x110000
			}
		case r == ';':
			z.endNumericRef()
		default:
			if !z.charRefDigits {
				z.err(s.Loc, "absence of digits in numeric character reference")
				z.flushCharRef(string(z.entBuf))
				z.state = z.returnState
				z.reconsume(s)
				return
			}
			z.err(s.Loc, "missing semicolon after character reference")
			z.endNumericRef()
			z.reconsume(s)
		}
	}
}

func publicIDStateFor(quote rune) state {
	if quote == '"' {
		return doctypePublicIDDoubleState
	}
	return doctypePublicIDSingleState
}

func systemIDStateFor(quote rune) state {
	if quote == '"' {
		return doctypeSystemIDDoubleState
	}
	return doctypeSystemIDSingleState
}

func hexVal(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	default:
		return int(r-'A') + 10
	}
}

// --- Character reference resolution ----------------------------------------

func (z *Tokenizer) startCharRef() {
	z.entBuf = append(z.entBuf[:0], '&')
	z.entBestRepl = ""
	z.entBestLen = 0
	z.entBestSemi = false
	z.state = charRefState
}

func (z *Tokenizer) inAttrValue() bool {
	switch z.returnState {
	case attrValueDoubleState, attrValueSingleState, attrValueUnquotedState:
		return true
	}
	return false
}

// flushCharRef delivers resolved (or literal) reference text either into
// the pending attribute value or into the character buffer, depending on
// the return state.
func (z *Tokenizer) flushCharRef(text string) {
	if z.inAttrValue() {
		z.valueBuf = append(z.valueBuf, []rune(text)...)
		return
	}
	z.appendString(text, z.loc)
}

// resolveNamedRef finishes named-reference matching. killer is the scalar
// that ended the match without being part of it, or nil if the reference
// ended on its own terms (';' or exhausted trie).
func (z *Tokenizer) resolveNamedRef(killer *input.Scalar) {
	if z.entBestRepl == "" {
		// No terminal on the path: output the consumed code points
		// literally and keep swallowing alphanumerics; a terminating ';'
		// then flags an unknown reference.
		z.flushCharRef(string(z.entBuf))
		z.state = ambiguousAmpersandState
		if killer != nil {
			z.reconsume(*killer)
		}
		return
	}
	defer func() {
		z.state = z.returnState
		if killer != nil {
			z.reconsume(*killer)
		}
	}()
	// The historical rule: inside an attribute value, a legacy match not
	// terminated by ';' and followed by '=' or an alphanumeric is left
	// alone.
	if z.inAttrValue() && !z.entBestSemi {
		var next rune
		if z.entBestLen+1 < len(z.entBuf) {
			next = z.entBuf[z.entBestLen+1]
		} else if killer != nil {
			next = killer.R
		}
		if next == '=' || isAlnum(next) {
			z.flushCharRef(string(z.entBuf))
			return
		}
	}
	if !z.entBestSemi {
		z.err(z.loc, "missing semicolon after character reference")
	}
	z.flushCharRef(z.entBestRepl)
	if z.entBestLen+1 < len(z.entBuf) {
		z.flushCharRef(string(z.entBuf[z.entBestLen+1:]))
	}
}

func (z *Tokenizer) endNumericRef() {
	r, ok := entity.Numeric(z.charRefCode)
	if !ok {
		z.err(z.loc, "numeric character reference out of range or remapped")
	}
	z.flushCharRef(string(r))
	z.state = z.returnState
}

// --- End of input ----------------------------------------------------------

// flush runs the state-specific EOF rules, then emits the EOF token.
func (z *Tokenizer) flush(emit func(Token)) {
	z.emit = emit
	loc := z.loc
	switch z.state {
	case dataState, rcdataState, rawtextState, scriptDataState, plaintextState,
		scriptEscapedState, scriptEscapedDashState, scriptEscapedDashDashState,
		scriptDoubleEscapedState, scriptDoubleEscapedDashState,
		scriptDoubleEscapedDashDashState, scriptEscapeStartState,
		scriptEscapeStartDashState, scriptDoubleEscapeStartState,
		scriptDoubleEscapeEndState:
		// nothing buffered beyond character data
	case tagOpenState:
		z.err(loc, "EOF before tag name")
		z.appendChar('<', z.tokLoc)
	case endTagOpenState:
		z.err(loc, "EOF before tag name")
		z.appendString("</", z.tokLoc)
	case rawLessThanState, scriptEscapedLessThanState, scriptDoubleEscapedLessThanState:
		z.appendChar('<', z.tokLoc)
	case rawEndTagOpenState:
		z.appendString("</", z.tokLoc)
	case rawEndTagNameState:
		z.appendString("</", z.tokLoc)
		for _, c := range z.tmp {
			z.appendChar(c, loc)
		}
	case tagNameState, beforeAttrNameState, attrNameState, afterAttrNameState,
		beforeAttrValueState, attrValueDoubleState, attrValueSingleState,
		attrValueUnquotedState, afterAttrValueQuotedState, selfClosingStartTagState:
		z.err(loc, "EOF inside tag")
	case bogusCommentState:
		z.emitComment()
	case markupDeclOpenState:
		z.err(loc, "incorrectly opened comment")
		z.commentBuf = append(z.commentBuf[:0], z.tmp...)
		z.emitComment()
	case commentStartState, commentState:
		z.err(loc, "EOF inside comment")
		z.emitComment()
	case commentStartDashState, commentEndDashState:
		z.err(loc, "EOF inside comment")
		z.commentBuf = append(z.commentBuf, '-')
		z.emitComment()
	case commentEndState:
		z.err(loc, "EOF inside comment")
		z.commentBuf = append(z.commentBuf, '-', '-')
		z.emitComment()
	case commentEndBangState:
		z.err(loc, "EOF inside comment")
		z.commentBuf = append(z.commentBuf, '-', '-', '!')
		z.emitComment()
	case doctypeState, beforeDoctypeNameState:
		z.err(loc, "EOF inside doctype")
		z.tok = Token{Kind: DoctypeToken, ForceQuirks: true, Loc: z.tokLoc}
		z.nameBuf = z.nameBuf[:0]
		z.emitDoctype()
	case doctypeNameState, afterDoctypeNameState, doctypeKeywordState,
		afterDoctypePublicKeywordState, beforeDoctypePublicIDState,
		doctypePublicIDDoubleState, doctypePublicIDSingleState,
		afterDoctypePublicIDState, betweenDoctypePublicSystemState,
		afterDoctypeSystemKeywordState, beforeDoctypeSystemIDState,
		doctypeSystemIDDoubleState, doctypeSystemIDSingleState,
		afterDoctypeSystemIDState:
		z.err(loc, "EOF inside doctype")
		z.tok.ForceQuirks = true
		z.emitDoctype()
	case bogusDoctypeState:
		z.emitDoctype()
	case cdataSectionState, cdataSectionBracketState, cdataSectionEndState:
		z.err(loc, "EOF inside CDATA section")
	case namedCharRefState:
		z.resolveNamedRef(nil)
	case hexCharRefState, decCharRefState:
		if z.charRefDigits {
			z.err(loc, "missing semicolon after character reference")
			z.endNumericRef()
		} else {
			z.flushCharRef(string(z.entBuf))
		}
	case charRefState, numericCharRefState, hexCharRefStartState:
		z.flushCharRef(string(z.entBuf))
	case ambiguousAmpersandState:
		// consumed code points were already flushed on entry
	}
	z.flushChars()
	z.emit(Token{Kind: EOFToken, Loc: loc})
	z.emit = nil
	tracer().Debugf("tokenizer reached EOF at %s", loc)
}
