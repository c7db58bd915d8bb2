package htmltree

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"strings"

	"github.com/npillmayer/sigil/htmlscan"
	"github.com/npillmayer/sigil/markup"
	"golang.org/x/net/html/atom"
)

func ta(tok htmlscan.Token) atom.Atom {
	return atom.Lookup([]byte(tok.Name))
}

func isWS(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f' || r == '\r'
}

func whitespaceOnly(s string) bool {
	return strings.TrimLeft(s, " \t\n\f\r") == ""
}

// splitLeadingWS splits a character run into its whitespace prefix and
// the remainder, for modes that ignore whitespace but reprocess the rest.
func splitLeadingWS(s string) (ws, rest string) {
	i := 0
	for i < len(s) && isWS(rune(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

// --- Dispatcher ------------------------------------------------------------

func (c *ctor) dispatch(tok htmlscan.Token) {
	if tok.Kind != htmlscan.CharsToken {
		c.ignoreLF = false
	}
	if c.useForeignRules(tok) {
		c.foreignContent(tok)
		return
	}
	c.inMode(c.mode, tok)
}

func (c *ctor) inMode(mode insertionMode, tok htmlscan.Token) {
	switch mode {
	case initialMode:
		c.modeInitial(tok)
	case beforeHTMLMode:
		c.modeBeforeHTML(tok)
	case beforeHeadMode:
		c.modeBeforeHead(tok)
	case inHeadMode:
		c.modeInHead(tok)
	case inHeadNoscriptMode:
		c.modeInHeadNoscript(tok)
	case afterHeadMode:
		c.modeAfterHead(tok)
	case inBodyMode:
		c.modeInBody(tok)
	case textMode:
		c.modeText(tok)
	case inTableMode:
		c.modeInTable(tok)
	case inTableTextMode:
		c.modeInTableText(tok)
	case inCaptionMode:
		c.modeInCaption(tok)
	case inColumnGroupMode:
		c.modeInColumnGroup(tok)
	case inTableBodyMode:
		c.modeInTableBody(tok)
	case inRowMode:
		c.modeInRow(tok)
	case inCellMode:
		c.modeInCell(tok)
	case inSelectMode:
		c.modeInSelect(tok)
	case inSelectInTableMode:
		c.modeInSelectInTable(tok)
	case inTemplateMode:
		c.modeInTemplate(tok)
	case afterBodyMode:
		c.modeAfterBody(tok)
	case inFramesetMode:
		c.modeInFrameset(tok)
	case afterFramesetMode:
		c.modeAfterFrameset(tok)
	case afterAfterBodyMode:
		c.modeAfterAfterBody(tok)
	case afterAfterFramesetMode:
		c.modeAfterAfterFrameset(tok)
	}
}

// --- Element insertion -----------------------------------------------------

// insert pushes an HTML element for a start tag and emits its
// StartElement. When foster parenting applies, a streaming parser cannot
// relocate the node before the table; it is emitted in place under a
// diagnostic.
func (c *ctor) insert(tok htmlscan.Token) *elem {
	if c.fostering && c.tableOnStack() {
		c.report(markup.BadContent, tok.Loc, "<%s> misplaced in table; emitted in place", tok.Name)
	}
	e := htmlElem(tok.Name, tok.Attrs)
	c.push(e, tok.Loc)
	return e
}

// insertVoid emits a void element: start and end with no content.
func (c *ctor) insertVoid(tok htmlscan.Token) {
	c.insert(tok)
	c.pop()
}

func (c *ctor) tableOnStack() bool {
	cur := c.current()
	if cur == nil || !cur.isHTML() {
		return false
	}
	switch cur.a {
	case atom.Table, atom.Tbody, atom.Tfoot, atom.Thead, atom.Tr:
		return true
	}
	return false
}

// insertText adds character data at the current position.
func (c *ctor) insertText(text string, loc markup.Location) {
	if c.ignoreLF {
		c.ignoreLF = false
		text = strings.TrimPrefix(text, "\n")
	}
	if text == "" {
		return
	}
	if c.fostering && c.tableOnStack() {
		c.report(markup.BadContent, loc, "text misplaced in table; emitted in place")
	}
	c.text(text, loc)
}

// startRawText inserts the element and switches the tokenizer to RAWTEXT
// content; the constructor parks in text mode.
func (c *ctor) startRawText(tok htmlscan.Token) {
	c.insert(tok)
	c.z.NextIsRawText(tok.Name)
	c.origMode = c.mode
	c.mode = textMode
}

func (c *ctor) startRCDATA(tok htmlscan.Token) {
	c.insert(tok)
	c.z.NextIsRCDATA(tok.Name)
	c.origMode = c.mode
	c.mode = textMode
}

// --- initial, before html, before head ------------------------------------

// quirkyPublicIDPrefixes is the abbreviated prefix list deciding quirks
// mode from legacy doctype public identifiers.
var quirkyPublicIDPrefixes = []string{
	"-//w3o//dtd w3 html strict 3.0//",
	"-/w3c/dtd html 4.0 transitional/en",
	"html",
	"-//ietf//dtd html",
	"-//w3c//dtd html 3",
	"-//w3c//dtd html 4.0 frameset//",
	"-//w3c//dtd html 4.0 transitional//",
	"-//netscape comm. corp.//dtd html//",
}

func (c *ctor) quirksFor(tok htmlscan.Token) quirksMode {
	if tok.ForceQuirks || tok.Name != "html" {
		return fullQuirks
	}
	public := strings.ToLower(tok.PublicID)
	for _, prefix := range quirkyPublicIDPrefixes {
		if strings.HasPrefix(public, prefix) {
			return fullQuirks
		}
	}
	if strings.HasPrefix(public, "-//w3c//dtd xhtml 1.0 frameset//") ||
		strings.HasPrefix(public, "-//w3c//dtd xhtml 1.0 transitional//") {
		return limitedQuirks
	}
	return noQuirks
}

func (c *ctor) modeInitial(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		if _, rest := splitLeadingWS(tok.Text); rest == "" {
			return
		}
		tokRest := tok
		_, tokRest.Text = splitLeadingWS(tok.Text)
		c.quirks = fullQuirks
		c.mode = beforeHTMLMode
		c.inMode(beforeHTMLMode, tokRest)
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.quirks = c.quirksFor(tok)
		c.signal(markup.Doctype{
			Name: tok.Name, PublicID: tok.PublicID, SystemID: tok.SystemID,
			HasPublicID: tok.HasPublicID, HasSystemID: tok.HasSystemID,
			ForceQuirks: tok.ForceQuirks, Loc: tok.Loc,
		})
		c.mode = beforeHTMLMode
	default:
		c.quirks = fullQuirks
		c.mode = beforeHTMLMode
		c.inMode(beforeHTMLMode, tok)
	}
}

func (c *ctor) modeBeforeHTML(tok htmlscan.Token) {
	synthesize := func() {
		c.push(htmlElem("html", nil), tok.Loc)
		c.mode = beforeHeadMode
		c.inMode(beforeHeadMode, tok)
	}
	switch tok.Kind {
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.CharsToken:
		if _, rest := splitLeadingWS(tok.Text); rest != "" {
			tokRest := tok
			_, tokRest.Text = splitLeadingWS(tok.Text)
			tok = tokRest
			synthesize()
		}
	case htmlscan.StartTagToken:
		if ta(tok) == atom.Html {
			c.push(htmlElem("html", tok.Attrs), tok.Loc)
			c.mode = beforeHeadMode
			return
		}
		synthesize()
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Head, atom.Body, atom.Html, atom.Br:
			synthesize()
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		synthesize()
	}
}

func (c *ctor) modeBeforeHead(tok htmlscan.Token) {
	synthesize := func() {
		c.push(htmlElem("head", nil), tok.Loc)
		c.headSeen = true
		c.mode = inHeadMode
		c.inMode(inHeadMode, tok)
	}
	switch tok.Kind {
	case htmlscan.CharsToken:
		if _, rest := splitLeadingWS(tok.Text); rest != "" {
			tokRest := tok
			_, tokRest.Text = splitLeadingWS(tok.Text)
			tok = tokRest
			synthesize()
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Head:
			c.push(htmlElem("head", tok.Attrs), tok.Loc)
			c.headSeen = true
			c.mode = inHeadMode
		default:
			synthesize()
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Head, atom.Body, atom.Html, atom.Br:
			synthesize()
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		synthesize()
	}
}

// --- in head ----------------------------------------------------------------

func (c *ctor) modeInHead(tok htmlscan.Token) {
	leaveHead := func() {
		c.popUntilAtom(atom.Head)
		c.mode = afterHeadMode
	}
	switch tok.Kind {
	case htmlscan.CharsToken:
		ws, rest := splitLeadingWS(tok.Text)
		c.insertText(ws, tok.Loc)
		if rest == "" {
			return
		}
		tokRest := tok
		tokRest.Text = rest
		leaveHead()
		c.inMode(c.mode, tokRest)
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Base, atom.Basefont, atom.Bgsound, atom.Link, atom.Meta:
			c.insertVoid(tok)
		case atom.Title:
			c.startRCDATA(tok)
		case atom.Noscript:
			if c.cfg.Scripting {
				c.startRawText(tok)
			} else {
				c.insert(tok)
				c.mode = inHeadNoscriptMode
			}
		case atom.Noframes, atom.Style:
			c.startRawText(tok)
		case atom.Script:
			c.insert(tok)
			c.z.NextIsScriptData()
			c.origMode = c.mode
			c.mode = textMode
		case atom.Template:
			c.insert(tok)
			c.afeMarker()
			c.framesetOK = false
			c.mode = inTemplateMode
			c.templateModes = append(c.templateModes, inTemplateMode)
		case atom.Head:
			c.report(markup.BadContent, tok.Loc, "<head> inside head")
		default:
			leaveHead()
			c.inMode(c.mode, tok)
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Head:
			leaveHead()
		case atom.Template:
			c.endTemplate(tok)
		case atom.Body, atom.Html, atom.Br:
			leaveHead()
			c.inMode(c.mode, tok)
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		leaveHead()
		c.inMode(c.mode, tok)
	}
}

// endTemplate closes a template element from any mode.
func (c *ctor) endTemplate(tok htmlscan.Token) {
	if !c.templateOnStack() {
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </template>")
		return
	}
	c.generateImpliedEndThoroughly()
	if cur := c.current(); cur == nil || cur.a != atom.Template {
		c.report(markup.MisnestedTag, tok.Loc, "misnested </template>")
	}
	c.popUntilAtom(atom.Template)
	c.afeClearToMarker()
	if n := len(c.templateModes); n > 0 {
		c.templateModes = c.templateModes[:n-1]
	}
	c.resetInsertionMode()
}

func (c *ctor) modeInHeadNoscript(tok htmlscan.Token) {
	leave := func() {
		c.report(markup.BadContent, tok.Loc, "unexpected content in <noscript>")
		c.popUntilAtom(atom.Noscript)
		c.mode = inHeadMode
	}
	switch tok.Kind {
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.CharsToken:
		if whitespaceOnly(tok.Text) {
			c.inMode(inHeadMode, tok)
			return
		}
		leave()
		c.inMode(c.mode, tok)
	case htmlscan.CommentToken:
		c.inMode(inHeadMode, tok)
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Basefont, atom.Bgsound, atom.Link, atom.Meta, atom.Noframes, atom.Style:
			c.inMode(inHeadMode, tok)
		case atom.Head, atom.Noscript:
			c.report(markup.BadContent, tok.Loc, "<%s> inside noscript", tok.Name)
		default:
			leave()
			c.inMode(c.mode, tok)
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Noscript:
			c.popUntilAtom(atom.Noscript)
			c.mode = inHeadMode
		case atom.Br:
			leave()
			c.inMode(c.mode, tok)
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		leave()
		c.inMode(c.mode, tok)
	}
}

func (c *ctor) modeAfterHead(tok htmlscan.Token) {
	synthesize := func() {
		c.push(htmlElem("body", nil), tok.Loc)
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	}
	switch tok.Kind {
	case htmlscan.CharsToken:
		ws, rest := splitLeadingWS(tok.Text)
		c.insertText(ws, tok.Loc)
		if rest == "" {
			return
		}
		tokRest := tok
		tokRest.Text = rest
		tok = tokRest
		synthesize()
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Body:
			c.push(htmlElem("body", tok.Attrs), tok.Loc)
			c.framesetOK = false
			c.mode = inBodyMode
		case atom.Frameset:
			c.push(htmlElem("frameset", tok.Attrs), tok.Loc)
			c.mode = inFramesetMode
		case atom.Base, atom.Basefont, atom.Bgsound, atom.Link, atom.Meta,
			atom.Noframes, atom.Script, atom.Style, atom.Template, atom.Title:
			c.report(markup.BadContent, tok.Loc, "<%s> after head", tok.Name)
			c.inMode(inHeadMode, tok)
		case atom.Head:
			c.report(markup.BadContent, tok.Loc, "<head> after head")
		default:
			synthesize()
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Template:
			c.endTemplate(tok)
		case atom.Body, atom.Html, atom.Br:
			synthesize()
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		synthesize()
	}
}

// --- in body ----------------------------------------------------------------

func (c *ctor) modeInBody(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		text := tok.Text
		if strings.ContainsRune(text, 0) {
			c.report(markup.BadToken, tok.Loc, "NULL character dropped")
			text = strings.Map(func(r rune) rune {
				if r == 0 {
					return -1
				}
				return r
			}, text)
		}
		if text == "" {
			return
		}
		c.reconstruct()
		c.insertText(text, tok.Loc)
		if !whitespaceOnly(text) {
			c.framesetOK = false
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		c.bodyStartTag(tok)
	case htmlscan.EndTagToken:
		c.bodyEndTag(tok)
	case htmlscan.EOFToken:
		if len(c.templateModes) > 0 {
			c.inMode(inTemplateMode, tok)
			return
		}
		c.reportOpenAtEOF(tok.Loc)
		c.stop()
	}
}

// stop ends parsing: pending text is flushed and every open element is
// closed, with diagnostics for non-implicit ones handled by callers.
func (c *ctor) stop() {
	c.flushText()
	for len(c.stack) > 0 {
		c.pop()
	}
	c.stopped = true
}

var eofImplicitAtoms = map[atom.Atom]bool{
	atom.Dd: true, atom.Dt: true, atom.Li: true, atom.Optgroup: true,
	atom.Option: true, atom.P: true, atom.Rb: true, atom.Rp: true,
	atom.Rt: true, atom.Rtc: true, atom.Tbody: true, atom.Td: true,
	atom.Tfoot: true, atom.Th: true, atom.Thead: true, atom.Tr: true,
	atom.Body: true, atom.Html: true,
}

// reportOpenAtEOF walks the insertion-mode-specific EOF table: elements
// that may legitimately remain open are closed silently, everything else
// with a diagnostic.
func (c *ctor) reportOpenAtEOF(loc markup.Location) {
	for _, e := range c.stack {
		if e.silent || (e.isHTML() && eofImplicitAtoms[e.a]) {
			continue
		}
		c.report(markup.BadDocument, loc, "<%s> left open at end of input", e.name.Local)
	}
}

func (c *ctor) bodyStartTag(tok htmlscan.Token) {
	a := ta(tok)
	switch a {
	case atom.Html:
		c.report(markup.BadContent, tok.Loc, "<html> inside document")
	case atom.Base, atom.Basefont, atom.Bgsound, atom.Link, atom.Meta,
		atom.Noframes, atom.Script, atom.Style, atom.Template, atom.Title:
		c.inMode(inHeadMode, tok)
	case atom.Body:
		c.report(markup.BadContent, tok.Loc, "<body> inside body")
		c.framesetOK = false
	case atom.Frameset:
		c.report(markup.BadContent, tok.Loc, "<frameset> inside body")
		// re-rooting the document is not expressible in an emitted
		// stream; the tag is dropped
	case atom.Address, atom.Article, atom.Aside, atom.Blockquote, atom.Center,
		atom.Details, atom.Dialog, atom.Dir, atom.Div, atom.Dl, atom.Fieldset,
		atom.Figcaption, atom.Figure, atom.Footer, atom.Header, atom.Hgroup,
		atom.Main, atom.Menu, atom.Nav, atom.Ol, atom.P, atom.Section,
		atom.Summary, atom.Ul:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.insert(tok)
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		if cur := c.current(); cur != nil && cur.isHTML() && isHeading(cur.a) {
			c.report(markup.MisnestedTag, tok.Loc, "<%s> nested in heading", tok.Name)
			c.pop()
		}
		c.insert(tok)
	case atom.Pre, atom.Listing:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.insert(tok)
		c.ignoreLF = true
		c.framesetOK = false
	case atom.Form:
		if c.form != nil && !c.templateOnStack() {
			c.report(markup.BadContent, tok.Loc, "nested <form> ignored")
			return
		}
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		e := c.insert(tok)
		if !c.templateOnStack() {
			c.form = e
		}
	case atom.Li:
		c.framesetOK = false
		c.listItemStart(tok, atom.Li)
	case atom.Dd, atom.Dt:
		c.framesetOK = false
		c.listItemStart(tok, atom.Dd, atom.Dt)
	case atom.Plaintext:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.insert(tok)
		c.z.NextIsPlaintext()
	case atom.Button:
		if c.atomInScope(defaultScope, atom.Button) {
			c.report(markup.MisnestedTag, tok.Loc, "<button> inside button")
			c.generateImpliedEnd(0)
			c.popUntilAtom(atom.Button)
		}
		c.reconstruct()
		c.insert(tok)
		c.framesetOK = false
	case atom.A:
		if i := c.afeFind(atom.A); i >= 0 {
			c.report(markup.MisnestedTag, tok.Loc, "<a> inside <a>")
			fe := c.afe[i].el
			c.adoptionAgency(htmlscan.Token{Kind: htmlscan.EndTagToken, Name: "a", Loc: tok.Loc})
			c.afeRemoveByElem(fe)
			c.removeFromStack(fe)
		}
		c.reconstruct()
		e := c.insert(tok)
		c.afePush(e, tok)
	case atom.B, atom.Big, atom.Code, atom.Em, atom.Font, atom.I, atom.S,
		atom.Small, atom.Strike, atom.Strong, atom.Tt, atom.U:
		c.reconstruct()
		e := c.insert(tok)
		c.afePush(e, tok)
	case atom.Nobr:
		c.reconstruct()
		if c.atomInScope(defaultScope, atom.Nobr) {
			c.report(markup.MisnestedTag, tok.Loc, "<nobr> inside nobr")
			c.adoptionAgency(htmlscan.Token{Kind: htmlscan.EndTagToken, Name: "nobr", Loc: tok.Loc})
			c.reconstruct()
		}
		e := c.insert(tok)
		c.afePush(e, tok)
	case atom.Applet, atom.Marquee, atom.Object:
		c.reconstruct()
		c.insert(tok)
		c.afeMarker()
		c.framesetOK = false
	case atom.Table:
		if c.quirks != fullQuirks && c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.insert(tok)
		c.framesetOK = false
		c.mode = inTableMode
	case atom.Area, atom.Br, atom.Embed, atom.Img, atom.Keygen, atom.Wbr:
		c.reconstruct()
		c.insertVoid(tok)
		c.framesetOK = false
	case atom.Input:
		c.reconstruct()
		c.insertVoid(tok)
		if v, ok := tok.Attr("type"); !ok || !strings.EqualFold(v, "hidden") {
			c.framesetOK = false
		}
	case atom.Param, atom.Source, atom.Track:
		c.insertVoid(tok)
	case atom.Hr:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.insertVoid(tok)
		c.framesetOK = false
	case atom.Image:
		c.report(markup.BadToken, tok.Loc, "<image> treated as <img>")
		tok.Name = "img"
		c.bodyStartTag(tok)
	case atom.Textarea:
		c.insert(tok)
		c.ignoreLF = true
		c.z.NextIsRCDATA("textarea")
		c.framesetOK = false
		c.origMode = c.mode
		c.mode = textMode
	case atom.Xmp:
		if c.atomInScope(buttonScope, atom.P) {
			c.closeP(tok.Loc)
		}
		c.reconstruct()
		c.framesetOK = false
		c.startRawText(tok)
	case atom.Iframe:
		c.framesetOK = false
		c.startRawText(tok)
	case atom.Noembed:
		c.startRawText(tok)
	case atom.Noscript:
		if c.cfg.Scripting {
			c.startRawText(tok)
		} else {
			c.reconstruct()
			c.insert(tok)
		}
	case atom.Select:
		c.reconstruct()
		c.insert(tok)
		c.framesetOK = false
		switch c.mode {
		case inTableMode, inCaptionMode, inTableBodyMode, inRowMode, inCellMode:
			c.mode = inSelectInTableMode
		default:
			c.mode = inSelectMode
		}
	case atom.Optgroup, atom.Option:
		if cur := c.current(); cur != nil && cur.isHTML() && cur.a == atom.Option {
			c.pop()
		}
		c.reconstruct()
		c.insert(tok)
	case atom.Rb, atom.Rtc:
		if c.atomInScope(defaultScope, atom.Ruby) {
			c.generateImpliedEnd(0)
			if cur := c.current(); cur == nil || cur.a != atom.Ruby {
				c.report(markup.MisnestedTag, tok.Loc, "<%s> outside ruby", tok.Name)
			}
		}
		c.insert(tok)
	case atom.Rp, atom.Rt:
		if c.atomInScope(defaultScope, atom.Ruby) {
			c.generateImpliedEnd(atom.Rtc)
			if cur := c.current(); cur == nil || (cur.a != atom.Ruby && cur.a != atom.Rtc) {
				c.report(markup.MisnestedTag, tok.Loc, "<%s> outside ruby", tok.Name)
			}
		}
		c.insert(tok)
	case atom.Math:
		c.reconstruct()
		c.insertForeign(tok, markup.NsMathML)
	case atom.Svg:
		c.reconstruct()
		c.insertForeign(tok, markup.NsSVG)
	case atom.Caption, atom.Col, atom.Colgroup, atom.Frame, atom.Head,
		atom.Tbody, atom.Td, atom.Tfoot, atom.Th, atom.Thead, atom.Tr:
		c.report(markup.BadContent, tok.Loc, "<%s> outside table context", tok.Name)
	default:
		c.reconstruct()
		c.insert(tok)
	}
}

func isHeading(a atom.Atom) bool {
	switch a {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		return true
	}
	return false
}

// listItemStart implements the li/dd/dt start-tag loop.
func (c *ctor) listItemStart(tok htmlscan.Token, closers ...atom.Atom) {
	for i := len(c.stack) - 1; i >= 0; i-- {
		node := c.stack[i]
		if node.isHTML() && memberOf(node.a, closers) {
			c.generateImpliedEnd(node.a)
			if c.current() != node {
				c.report(markup.MisnestedTag, tok.Loc, "implicitly closing <%s>", node.name.Local)
			}
			c.popUntil(func(e *elem) bool { return e == node })
			break
		}
		if c.isSpecial(node) && node.a != atom.Address && node.a != atom.Div && node.a != atom.P {
			break
		}
	}
	if c.atomInScope(buttonScope, atom.P) {
		c.closeP(tok.Loc)
	}
	c.insert(tok)
}

func memberOf(a atom.Atom, set []atom.Atom) bool {
	for _, x := range set {
		if a == x {
			return true
		}
	}
	return false
}

func (c *ctor) templateOnStack() bool {
	for _, e := range c.stack {
		if e.isHTML() && e.a == atom.Template {
			return true
		}
	}
	return false
}

func (c *ctor) bodyEndTag(tok htmlscan.Token) {
	a := ta(tok)
	switch a {
	case atom.Template:
		c.endTemplate(tok)
	case atom.Body, atom.Html:
		if !c.atomInScope(defaultScope, atom.Body) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
		c.mode = afterBodyMode
		if a == atom.Html {
			c.inMode(afterBodyMode, tok)
		}
	case atom.Address, atom.Article, atom.Aside, atom.Blockquote, atom.Button,
		atom.Center, atom.Details, atom.Dialog, atom.Dir, atom.Div, atom.Dl,
		atom.Fieldset, atom.Figcaption, atom.Figure, atom.Footer, atom.Header,
		atom.Hgroup, atom.Listing, atom.Main, atom.Menu, atom.Nav, atom.Ol,
		atom.Pre, atom.Section, atom.Summary, atom.Ul:
		if !c.atomInScope(defaultScope, a) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != a {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
		}
		c.popUntilAtom(a)
	case atom.Form:
		if !c.templateOnStack() {
			node := c.form
			c.form = nil
			if node == nil || !c.elemInScope(defaultScope, node) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </form>")
				return
			}
			c.generateImpliedEnd(0)
			if c.current() != node {
				c.report(markup.MisnestedTag, tok.Loc, "misnested </form>")
			}
			c.popUntil(func(e *elem) bool { return e == node })
			return
		}
		if !c.atomInScope(defaultScope, atom.Form) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </form>")
			return
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != atom.Form {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </form>")
		}
		c.popUntilAtom(atom.Form)
	case atom.P:
		if !c.atomInScope(buttonScope, atom.P) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </p>; synthesizing empty paragraph")
			c.insert(htmlscan.Token{Kind: htmlscan.StartTagToken, Name: "p", Loc: tok.Loc})
		}
		c.closeP(tok.Loc)
	case atom.Li:
		if !c.atomInScope(listItemScope, atom.Li) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </li>")
			return
		}
		c.generateImpliedEnd(atom.Li)
		if cur := c.current(); cur == nil || cur.a != atom.Li {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </li>")
		}
		c.popUntilAtom(atom.Li)
	case atom.Dd, atom.Dt:
		if !c.atomInScope(defaultScope, a) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
		c.generateImpliedEnd(a)
		if cur := c.current(); cur == nil || cur.a != a {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
		}
		c.popUntilAtom(a)
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		if !c.inScope(defaultScope, func(e *elem) bool { return e.isHTML() && isHeading(e.a) }) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != a {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
		}
		c.popUntil(func(e *elem) bool { return e.isHTML() && isHeading(e.a) })
	case atom.A, atom.B, atom.Big, atom.Code, atom.Em, atom.Font, atom.I,
		atom.Nobr, atom.S, atom.Small, atom.Strike, atom.Strong, atom.Tt, atom.U:
		c.adoptionAgency(tok)
	case atom.Applet, atom.Marquee, atom.Object:
		if !c.atomInScope(defaultScope, a) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != a {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
		}
		c.popUntilAtom(a)
		c.afeClearToMarker()
	case atom.Br:
		c.report(markup.BadToken, tok.Loc, "</br> treated as <br>")
		c.bodyStartTag(htmlscan.Token{Kind: htmlscan.StartTagToken, Name: "br", Loc: tok.Loc})
	default:
		c.anyOtherEndTag(tok)
	}
}

// anyOtherEndTag closes the named element if it is open below only
// non-special elements; otherwise the tag is stray.
func (c *ctor) anyOtherEndTag(tok htmlscan.Token) {
	a := ta(tok)
	for i := len(c.stack) - 1; i >= 0; i-- {
		node := c.stack[i]
		if node.isHTML() && ((a != 0 && node.a == a) || node.name.Local == tok.Name) {
			c.generateImpliedEnd(a)
			if c.current() != node {
				c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
			}
			c.popUntil(func(e *elem) bool { return e == node })
			return
		}
		if c.isSpecial(node) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
	}
	c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
}

// --- text mode --------------------------------------------------------------

func (c *ctor) modeText(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		c.insertText(tok.Text, tok.Loc)
	case htmlscan.EndTagToken:
		c.pop()
		c.mode = c.origMode
	case htmlscan.EOFToken:
		c.report(markup.BadDocument, tok.Loc, "end of input inside <%s>", c.currentName())
		c.pop()
		c.mode = c.origMode
		c.inMode(c.mode, tok)
	}
}

func (c *ctor) currentName() string {
	if cur := c.current(); cur != nil {
		return cur.name.Local
	}
	return "?"
}

// --- table modes ------------------------------------------------------------

func (c *ctor) clearStackToTableContext() {
	for {
		cur := c.current()
		if cur == nil || cur.silent {
			return
		}
		if cur.isHTML() && (cur.a == atom.Table || cur.a == atom.Template || cur.a == atom.Html) {
			return
		}
		c.pop()
	}
}

func (c *ctor) clearStackToTableBodyContext() {
	for {
		cur := c.current()
		if cur == nil || cur.silent {
			return
		}
		if cur.isHTML() {
			switch cur.a {
			case atom.Tbody, atom.Tfoot, atom.Thead, atom.Template, atom.Html:
				return
			}
		}
		c.pop()
	}
}

func (c *ctor) clearStackToTableRowContext() {
	for {
		cur := c.current()
		if cur == nil || cur.silent {
			return
		}
		if cur.isHTML() {
			switch cur.a {
			case atom.Tr, atom.Template, atom.Html:
				return
			}
		}
		c.pop()
	}
}

func (c *ctor) modeInTable(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		cur := c.current()
		if cur != nil && cur.isHTML() {
			switch cur.a {
			case atom.Table, atom.Tbody, atom.Tfoot, atom.Thead, atom.Tr:
				c.pendingTableText = c.pendingTableText[:0]
				c.pendingTableLoc = tok.Loc
				c.origMode = c.mode
				c.mode = inTableTextMode
				c.inMode(inTableTextMode, tok)
				return
			}
		}
		c.fosterInBody(tok)
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Caption:
			c.clearStackToTableContext()
			c.afeMarker()
			c.insert(tok)
			c.mode = inCaptionMode
		case atom.Colgroup:
			c.clearStackToTableContext()
			c.insert(tok)
			c.mode = inColumnGroupMode
		case atom.Col:
			c.clearStackToTableContext()
			c.push(htmlElem("colgroup", nil), tok.Loc)
			c.mode = inColumnGroupMode
			c.inMode(inColumnGroupMode, tok)
		case atom.Tbody, atom.Tfoot, atom.Thead:
			c.clearStackToTableContext()
			c.insert(tok)
			c.mode = inTableBodyMode
		case atom.Td, atom.Th, atom.Tr:
			c.clearStackToTableContext()
			c.push(htmlElem("tbody", nil), tok.Loc)
			c.mode = inTableBodyMode
			c.inMode(inTableBodyMode, tok)
		case atom.Table:
			c.report(markup.MisnestedTag, tok.Loc, "<table> inside table")
			if c.atomInScope(tableScope, atom.Table) {
				c.popUntilAtom(atom.Table)
				c.resetInsertionMode()
				c.inMode(c.mode, tok)
			}
		case atom.Style, atom.Script, atom.Template:
			c.inMode(inHeadMode, tok)
		case atom.Input:
			if v, ok := tok.Attr("type"); ok && strings.EqualFold(v, "hidden") {
				c.report(markup.BadContent, tok.Loc, "hidden <input> in table")
				c.insertVoid(tok)
				return
			}
			c.fosterInBody(tok)
		case atom.Form:
			c.report(markup.BadContent, tok.Loc, "<form> in table")
			if !c.templateOnStack() && c.form == nil {
				e := c.insert(tok)
				c.form = e
				c.pop()
			}
		default:
			c.fosterInBody(tok)
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Table:
			if !c.atomInScope(tableScope, atom.Table) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </table>")
				return
			}
			c.popUntilAtom(atom.Table)
			c.resetInsertionMode()
		case atom.Body, atom.Caption, atom.Col, atom.Colgroup, atom.Html,
			atom.Tbody, atom.Td, atom.Tfoot, atom.Th, atom.Thead, atom.Tr:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		case atom.Template:
			c.endTemplate(tok)
		default:
			c.fosterInBody(tok)
		}
	case htmlscan.EOFToken:
		c.inMode(inBodyMode, tok)
	}
}

// fosterInBody processes a token with the in-body rules under foster
// parenting.
func (c *ctor) fosterInBody(tok htmlscan.Token) {
	c.fostering = true
	c.inMode(inBodyMode, tok)
	c.fostering = false
}

func (c *ctor) modeInTableText(tok htmlscan.Token) {
	if tok.Kind == htmlscan.CharsToken {
		text := tok.Text
		if strings.ContainsRune(text, 0) {
			c.report(markup.BadToken, tok.Loc, "NULL character dropped")
			text = strings.Map(func(r rune) rune {
				if r == 0 {
					return -1
				}
				return r
			}, text)
		}
		c.pendingTableText = append(c.pendingTableText, []rune(text)...)
		return
	}
	pending := string(c.pendingTableText)
	c.pendingTableText = c.pendingTableText[:0]
	if pending != "" {
		if whitespaceOnly(pending) {
			c.text(pending, c.pendingTableLoc)
		} else {
			c.report(markup.BadContent, c.pendingTableLoc, "text misplaced in table; emitted in place")
			c.reconstruct()
			c.text(pending, c.pendingTableLoc)
			c.framesetOK = false
		}
	}
	c.mode = c.origMode
	c.inMode(c.mode, tok)
}

func (c *ctor) modeInCaption(tok htmlscan.Token) {
	closeCaption := func() bool {
		if !c.atomInScope(tableScope, atom.Caption) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "no <caption> in scope")
			return false
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != atom.Caption {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </caption>")
		}
		c.popUntilAtom(atom.Caption)
		c.afeClearToMarker()
		c.mode = inTableMode
		return true
	}
	switch tok.Kind {
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Caption, atom.Col, atom.Colgroup, atom.Tbody, atom.Td,
			atom.Tfoot, atom.Th, atom.Thead, atom.Tr:
			if closeCaption() {
				c.inMode(c.mode, tok)
			}
			return
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Caption:
			closeCaption()
			return
		case atom.Table:
			if closeCaption() {
				c.inMode(c.mode, tok)
			}
			return
		case atom.Body, atom.Col, atom.Colgroup, atom.Html, atom.Tbody,
			atom.Td, atom.Tfoot, atom.Th, atom.Thead, atom.Tr:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
	}
	c.inMode(inBodyMode, tok)
}

func (c *ctor) modeInColumnGroup(tok htmlscan.Token) {
	leave := func() bool {
		cur := c.current()
		if cur == nil || !cur.isHTML() || cur.a != atom.Colgroup {
			c.report(markup.BadContent, tok.Loc, "cannot leave column group here")
			return false
		}
		c.pop()
		c.mode = inTableMode
		return true
	}
	switch tok.Kind {
	case htmlscan.CharsToken:
		ws, rest := splitLeadingWS(tok.Text)
		c.insertText(ws, tok.Loc)
		if rest == "" {
			return
		}
		tokRest := tok
		tokRest.Text = rest
		if leave() {
			c.inMode(c.mode, tokRest)
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Col:
			c.insertVoid(tok)
		case atom.Template:
			c.inMode(inHeadMode, tok)
		default:
			if leave() {
				c.inMode(c.mode, tok)
			}
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Colgroup:
			leave()
		case atom.Col:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </col>")
		case atom.Template:
			c.endTemplate(tok)
		default:
			if leave() {
				c.inMode(c.mode, tok)
			}
		}
	case htmlscan.EOFToken:
		c.inMode(inBodyMode, tok)
	}
}

func (c *ctor) modeInTableBody(tok htmlscan.Token) {
	closeSection := func() bool {
		if !c.atomInScope(tableScope, atom.Tbody) &&
			!c.atomInScope(tableScope, atom.Thead) &&
			!c.atomInScope(tableScope, atom.Tfoot) {
			c.report(markup.BadContent, tok.Loc, "no table section in scope")
			return false
		}
		c.clearStackToTableBodyContext()
		c.pop()
		c.mode = inTableMode
		return true
	}
	switch tok.Kind {
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Tr:
			c.clearStackToTableBodyContext()
			c.insert(tok)
			c.mode = inRowMode
			return
		case atom.Th, atom.Td:
			c.report(markup.BadContent, tok.Loc, "<%s> outside row; synthesizing <tr>", tok.Name)
			c.clearStackToTableBodyContext()
			c.push(htmlElem("tr", nil), tok.Loc)
			c.mode = inRowMode
			c.inMode(inRowMode, tok)
			return
		case atom.Caption, atom.Col, atom.Colgroup, atom.Tbody, atom.Tfoot, atom.Thead:
			if closeSection() {
				c.inMode(c.mode, tok)
			}
			return
		}
	case htmlscan.EndTagToken:
		a := ta(tok)
		switch a {
		case atom.Tbody, atom.Tfoot, atom.Thead:
			if !c.atomInScope(tableScope, a) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
				return
			}
			c.clearStackToTableBodyContext()
			c.pop()
			c.mode = inTableMode
			return
		case atom.Table:
			if closeSection() {
				c.inMode(c.mode, tok)
			}
			return
		case atom.Body, atom.Caption, atom.Col, atom.Colgroup, atom.Html,
			atom.Td, atom.Th, atom.Tr:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
	}
	c.inMode(inTableMode, tok)
}

func (c *ctor) modeInRow(tok htmlscan.Token) {
	closeRow := func() bool {
		if !c.atomInScope(tableScope, atom.Tr) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "no <tr> in scope")
			return false
		}
		c.clearStackToTableRowContext()
		c.pop()
		c.mode = inTableBodyMode
		return true
	}
	switch tok.Kind {
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Th, atom.Td:
			c.clearStackToTableRowContext()
			c.insert(tok)
			c.mode = inCellMode
			c.afeMarker()
			return
		case atom.Caption, atom.Col, atom.Colgroup, atom.Tbody, atom.Tfoot,
			atom.Thead, atom.Tr:
			if closeRow() {
				c.inMode(c.mode, tok)
			}
			return
		}
	case htmlscan.EndTagToken:
		a := ta(tok)
		switch a {
		case atom.Tr:
			closeRow()
			return
		case atom.Table:
			if closeRow() {
				c.inMode(c.mode, tok)
			}
			return
		case atom.Tbody, atom.Tfoot, atom.Thead:
			if !c.atomInScope(tableScope, a) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
				return
			}
			if closeRow() {
				c.inMode(c.mode, tok)
			}
			return
		case atom.Body, atom.Caption, atom.Col, atom.Colgroup, atom.Html,
			atom.Td, atom.Th:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		}
	}
	c.inMode(inTableMode, tok)
}

func (c *ctor) modeInCell(tok htmlscan.Token) {
	closeCell := func() bool {
		var cell atom.Atom
		if c.atomInScope(tableScope, atom.Td) {
			cell = atom.Td
		} else if c.atomInScope(tableScope, atom.Th) {
			cell = atom.Th
		} else {
			c.report(markup.BadContent, tok.Loc, "no cell in scope")
			return false
		}
		c.generateImpliedEnd(0)
		if cur := c.current(); cur == nil || cur.a != cell {
			c.report(markup.MisnestedTag, tok.Loc, "misnested cell close")
		}
		c.popUntilAtom(cell)
		c.afeClearToMarker()
		c.mode = inRowMode
		return true
	}
	switch tok.Kind {
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Caption, atom.Col, atom.Colgroup, atom.Tbody, atom.Td,
			atom.Tfoot, atom.Th, atom.Thead, atom.Tr:
			if closeCell() {
				c.inMode(c.mode, tok)
			}
			return
		}
	case htmlscan.EndTagToken:
		a := ta(tok)
		switch a {
		case atom.Td, atom.Th:
			if !c.atomInScope(tableScope, a) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
				return
			}
			c.generateImpliedEnd(0)
			if cur := c.current(); cur == nil || cur.a != a {
				c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
			}
			c.popUntilAtom(a)
			c.afeClearToMarker()
			c.mode = inRowMode
			return
		case atom.Body, atom.Caption, atom.Col, atom.Colgroup, atom.Html:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			return
		case atom.Table, atom.Tbody, atom.Tfoot, atom.Thead, atom.Tr:
			if !c.atomInScope(tableScope, a) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
				return
			}
			if closeCell() {
				c.inMode(c.mode, tok)
			}
			return
		}
	}
	c.inMode(inBodyMode, tok)
}

// --- select modes -----------------------------------------------------------

func (c *ctor) modeInSelect(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		text := tok.Text
		if strings.ContainsRune(text, 0) {
			c.report(markup.BadToken, tok.Loc, "NULL character dropped")
			text = strings.Map(func(r rune) rune {
				if r == 0 {
					return -1
				}
				return r
			}, text)
		}
		c.insertText(text, tok.Loc)
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Option:
			if cur := c.current(); cur != nil && cur.a == atom.Option {
				c.pop()
			}
			c.insert(tok)
		case atom.Optgroup:
			if cur := c.current(); cur != nil && cur.a == atom.Option {
				c.pop()
			}
			if cur := c.current(); cur != nil && cur.a == atom.Optgroup {
				c.pop()
			}
			c.insert(tok)
		case atom.Hr:
			if cur := c.current(); cur != nil && cur.a == atom.Option {
				c.pop()
			}
			if cur := c.current(); cur != nil && cur.a == atom.Optgroup {
				c.pop()
			}
			c.insertVoid(tok)
		case atom.Select:
			c.report(markup.MisnestedTag, tok.Loc, "<select> inside select")
			if c.atomInScope(selectScope, atom.Select) {
				c.popUntilAtom(atom.Select)
				c.resetInsertionMode()
			}
		case atom.Input, atom.Keygen, atom.Textarea:
			c.report(markup.BadContent, tok.Loc, "<%s> inside select", tok.Name)
			if c.atomInScope(selectScope, atom.Select) {
				c.popUntilAtom(atom.Select)
				c.resetInsertionMode()
				c.inMode(c.mode, tok)
			}
		case atom.Script, atom.Template:
			c.inMode(inHeadMode, tok)
		default:
			c.report(markup.BadContent, tok.Loc, "<%s> inside select", tok.Name)
		}
	case htmlscan.EndTagToken:
		switch ta(tok) {
		case atom.Option:
			if cur := c.current(); cur != nil && cur.a == atom.Option {
				c.pop()
			} else {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </option>")
			}
		case atom.Optgroup:
			if cur := c.current(); cur != nil && cur.a == atom.Option && len(c.stack) >= 2 &&
				c.stack[len(c.stack)-2].a == atom.Optgroup {
				c.pop()
			}
			if cur := c.current(); cur != nil && cur.a == atom.Optgroup {
				c.pop()
			} else {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </optgroup>")
			}
		case atom.Select:
			if !c.atomInScope(selectScope, atom.Select) {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </select>")
				return
			}
			c.popUntilAtom(atom.Select)
			c.resetInsertionMode()
		case atom.Template:
			c.endTemplate(tok)
		default:
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		}
	case htmlscan.EOFToken:
		c.inMode(inBodyMode, tok)
	}
}

func (c *ctor) modeInSelectInTable(tok htmlscan.Token) {
	tableTags := func(a atom.Atom) bool {
		switch a {
		case atom.Caption, atom.Table, atom.Tbody, atom.Tfoot, atom.Thead,
			atom.Tr, atom.Td, atom.Th:
			return true
		}
		return false
	}
	switch tok.Kind {
	case htmlscan.StartTagToken:
		if tableTags(ta(tok)) {
			c.report(markup.BadContent, tok.Loc, "<%s> inside select in table", tok.Name)
			c.popUntilAtom(atom.Select)
			c.resetInsertionMode()
			c.inMode(c.mode, tok)
			return
		}
	case htmlscan.EndTagToken:
		if a := ta(tok); tableTags(a) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
			if c.atomInScope(tableScope, a) {
				c.popUntilAtom(atom.Select)
				c.resetInsertionMode()
				c.inMode(c.mode, tok)
			}
			return
		}
	}
	c.inMode(inSelectMode, tok)
}

// --- template mode ----------------------------------------------------------

func (c *ctor) modeInTemplate(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken, htmlscan.CommentToken, htmlscan.DoctypeToken:
		c.inMode(inBodyMode, tok)
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Base, atom.Basefont, atom.Bgsound, atom.Link, atom.Meta,
			atom.Noframes, atom.Script, atom.Style, atom.Template, atom.Title:
			c.inMode(inHeadMode, tok)
		case atom.Caption, atom.Colgroup, atom.Tbody, atom.Tfoot, atom.Thead:
			c.retemplate(inTableMode, tok)
		case atom.Col:
			c.retemplate(inColumnGroupMode, tok)
		case atom.Tr:
			c.retemplate(inTableBodyMode, tok)
		case atom.Td, atom.Th:
			c.retemplate(inRowMode, tok)
		default:
			c.retemplate(inBodyMode, tok)
		}
	case htmlscan.EndTagToken:
		if ta(tok) == atom.Template {
			c.endTemplate(tok)
			return
		}
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
	case htmlscan.EOFToken:
		if !c.templateOnStack() {
			c.stop()
			return
		}
		c.report(markup.BadDocument, tok.Loc, "end of input inside template")
		c.popUntilAtom(atom.Template)
		c.afeClearToMarker()
		if n := len(c.templateModes); n > 0 {
			c.templateModes = c.templateModes[:n-1]
		}
		c.resetInsertionMode()
		c.inMode(c.mode, tok)
	}
}

func (c *ctor) retemplate(mode insertionMode, tok htmlscan.Token) {
	if n := len(c.templateModes); n > 0 {
		c.templateModes[n-1] = mode
	}
	c.mode = mode
	c.inMode(mode, tok)
}

// --- after body, frameset, trailing modes -----------------------------------

func (c *ctor) modeAfterBody(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		if whitespaceOnly(tok.Text) {
			c.inMode(inBodyMode, tok)
			return
		}
		c.report(markup.BadContent, tok.Loc, "text after </body>")
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		if ta(tok) == atom.Html {
			c.inMode(inBodyMode, tok)
			return
		}
		c.report(markup.BadContent, tok.Loc, "<%s> after </body>", tok.Name)
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.EndTagToken:
		if ta(tok) == atom.Html {
			if c.fragment {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </html>")
				return
			}
			c.mode = afterAfterBodyMode
			return
		}
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.EOFToken:
		c.stop()
	}
}

func (c *ctor) modeInFrameset(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		if ws, _ := splitLeadingWS(tok.Text); ws != "" {
			c.insertText(ws, tok.Loc)
		}
		if !whitespaceOnly(tok.Text) {
			c.report(markup.BadContent, tok.Loc, "text inside frameset dropped")
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Frameset:
			c.insert(tok)
		case atom.Frame:
			c.insertVoid(tok)
		case atom.Noframes:
			c.inMode(inHeadMode, tok)
		default:
			c.report(markup.BadContent, tok.Loc, "<%s> inside frameset", tok.Name)
		}
	case htmlscan.EndTagToken:
		if ta(tok) == atom.Frameset {
			if cur := c.current(); cur != nil && cur.isHTML() && cur.a == atom.Html {
				c.report(markup.UnmatchedEndTag, tok.Loc, "stray </frameset>")
				return
			}
			c.pop()
			if cur := c.current(); !c.fragment && (cur == nil || cur.a != atom.Frameset) {
				c.mode = afterFramesetMode
			}
			return
		}
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
	case htmlscan.EOFToken:
		if cur := c.current(); cur != nil && !(cur.isHTML() && cur.a == atom.Html) {
			c.report(markup.BadDocument, tok.Loc, "end of input inside frameset")
		}
		c.stop()
	}
}

func (c *ctor) modeAfterFrameset(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CharsToken:
		if ws, _ := splitLeadingWS(tok.Text); ws != "" {
			c.insertText(ws, tok.Loc)
		}
		if !whitespaceOnly(tok.Text) {
			c.report(markup.BadContent, tok.Loc, "text after frameset dropped")
		}
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.report(markup.BadDocument, tok.Loc, "stray doctype")
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Noframes:
			c.inMode(inHeadMode, tok)
		default:
			c.report(markup.BadContent, tok.Loc, "<%s> after frameset", tok.Name)
		}
	case htmlscan.EndTagToken:
		if ta(tok) == atom.Html {
			c.mode = afterAfterFramesetMode
			return
		}
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
	case htmlscan.EOFToken:
		c.stop()
	}
}

func (c *ctor) modeAfterAfterBody(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken:
		c.inMode(inBodyMode, tok)
	case htmlscan.CharsToken:
		if whitespaceOnly(tok.Text) {
			c.inMode(inBodyMode, tok)
			return
		}
		c.report(markup.BadContent, tok.Loc, "content after document end")
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.StartTagToken:
		if ta(tok) == atom.Html {
			c.inMode(inBodyMode, tok)
			return
		}
		c.report(markup.BadContent, tok.Loc, "content after document end")
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.EndTagToken:
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
		c.mode = inBodyMode
		c.inMode(inBodyMode, tok)
	case htmlscan.EOFToken:
		c.stop()
	}
}

func (c *ctor) modeAfterAfterFrameset(tok htmlscan.Token) {
	switch tok.Kind {
	case htmlscan.CommentToken:
		c.signal(markup.Comment{Text: tok.Text, Loc: tok.Loc})
	case htmlscan.DoctypeToken, htmlscan.CharsToken:
		c.inMode(inBodyMode, tok)
	case htmlscan.StartTagToken:
		switch ta(tok) {
		case atom.Html:
			c.inMode(inBodyMode, tok)
		case atom.Noframes:
			c.inMode(inHeadMode, tok)
		default:
			c.report(markup.BadContent, tok.Loc, "content after document end")
		}
	case htmlscan.EndTagToken:
		c.report(markup.UnmatchedEndTag, tok.Loc, "stray </%s>", tok.Name)
	case htmlscan.EOFToken:
		c.stop()
	}
}
