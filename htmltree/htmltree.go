/*
Package htmltree implements HTML tree construction (§13.2.6 of the WHATWG
HTML living standard) as a streaming stage: tokens in, signals out,
without ever materializing the tree.

Every element accepted onto the stack of open elements emits a
StartElement signal immediately; every pop emits the matching EndElement.
The output is therefore always a balanced left-to-right traversal, even
for the malformed HTML of the open web. Where the specification moves
nodes after the fact (foster parenting, the adoption agency's
reparenting step), a streaming parser cannot reorder what it has already
emitted; the affected content is emitted at the current position and a
diagnostic is issued. The recovery for misnested formatting elements
reproduces the visible effect of the adoption agency through the list of
active formatting elements, which reopens formatting context after a
scope-breaking close.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package htmltree

import (
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/sigil/htmlscan"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
	"golang.org/x/net/html/atom"
)

// tracer traces to 'sigil.htmltree'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.htmltree")
}

// Config parameterizes tree construction.
type Config struct {
	Scripting bool   // affects <noscript> content handling
	Context   string // context element name for fragment parsing; "" parses a document
	Report    markup.Report
}

// Signals chains the tree constructor onto an HTML tokenizer. The
// constructor drives tokenizer content modes (raw text, RCDATA, CDATA
// permission) between tokens.
func Signals(z *htmlscan.Tokenizer, cfg Config) stream.Stream[markup.Signal] {
	c := &ctor{z: z, cfg: cfg, mode: initialMode, framesetOK: true}
	if cfg.Context != "" {
		c.setupFragment(cfg.Context)
	}
	return stream.NewStage[htmlscan.Token, markup.Signal](z, c.step, c.flush)
}

// --- Insertion modes -------------------------------------------------------

type insertionMode uint8

const (
	initialMode insertionMode = iota
	beforeHTMLMode
	beforeHeadMode
	inHeadMode
	inHeadNoscriptMode
	afterHeadMode
	inBodyMode
	textMode
	inTableMode
	inTableTextMode
	inCaptionMode
	inColumnGroupMode
	inTableBodyMode
	inRowMode
	inCellMode
	inSelectMode
	inSelectInTableMode
	inTemplateMode
	afterBodyMode
	inFramesetMode
	afterFramesetMode
	afterAfterBodyMode
	afterAfterFramesetMode
)

type quirksMode uint8

const (
	noQuirks quirksMode = iota
	limitedQuirks
	fullQuirks
)

// --- Elements --------------------------------------------------------------

// elem is an entry of the stack of open elements. silent elements are
// synthesized roots of fragment parsing; they emit no signals.
type elem struct {
	name   markup.QName
	a      atom.Atom // zero for unknown or foreign-cased names
	attrs  []markup.Attr
	silent bool
}

func (e *elem) isHTML() bool { return e.name.Space == markup.NsHTML }

func htmlElem(name string, attrs []markup.Attr) *elem {
	return &elem{
		name:  markup.QName{Space: markup.NsHTML, Local: name},
		a:     atom.Lookup([]byte(name)),
		attrs: attrs,
	}
}

// --- Constructor state -----------------------------------------------------

// afeEntry is one entry of the list of active formatting elements; a nil
// elem pointer is a scope marker.
type afeEntry struct {
	el  *elem
	tok htmlscan.Token // the start tag, for cloning on reconstruction
}

type ctor struct {
	z   *htmlscan.Tokenizer
	cfg Config

	mode          insertionMode
	origMode      insertionMode
	templateModes []insertionMode

	stack []*elem
	afe   []afeEntry // entries with el == nil are scope markers

	headSeen   bool
	form       *elem
	framesetOK bool
	quirks     quirksMode
	fragment   bool
	contextTag string
	fostering  bool
	ignoreLF   bool
	stopped    bool

	pendingTableText []rune
	pendingTableLoc  markup.Location

	textRuns []string
	textLoc  markup.Location

	emit func(markup.Signal)
}

func (c *ctor) report(kind markup.ErrorKind, loc markup.Location, format string, args ...interface{}) {
	c.cfg.Report.Send(kind, loc, format, args...)
}

// --- Stage plumbing --------------------------------------------------------

func (c *ctor) step(tok htmlscan.Token, emit func(markup.Signal)) {
	c.emit = emit
	if !c.stopped {
		c.dispatch(tok)
		c.syncTokenizer()
	}
	c.emit = nil
}

func (c *ctor) flush(emit func(markup.Signal)) {
	// The EOF token drives the regular end-of-input handling; this is the
	// safety net for a truncated token stream.
	c.emit = emit
	c.flushText()
	for len(c.stack) > 0 {
		c.pop()
	}
	c.emit = nil
	tracer().Debugf("tree construction finished")
}

// syncTokenizer pushes content-mode decisions back into the tokenizer
// between tokens: CDATA sections are only allowed in foreign content
// proper.
func (c *ctor) syncTokenizer() {
	cur := c.adjustedCurrent()
	allow := cur != nil && !cur.isHTML() &&
		!c.isHTMLIntegrationPoint(cur) && !c.isMathMLTextIntegrationPoint(cur)
	c.z.PermitCDATA(allow)
}

// --- Signal emission -------------------------------------------------------

func (c *ctor) signal(s markup.Signal) {
	if _, istext := s.(markup.Text); !istext {
		c.flushText()
	}
	c.emit(s)
}

func (c *ctor) text(s string, loc markup.Location) {
	if s == "" {
		return
	}
	if len(c.textRuns) == 0 {
		c.textLoc = loc
	}
	c.textRuns = append(c.textRuns, s)
}

func (c *ctor) flushText() {
	if len(c.textRuns) == 0 {
		return
	}
	runs := c.textRuns
	c.textRuns = nil
	c.emit(markup.Text{Runs: runs, Loc: c.textLoc})
}

// --- Stack of open elements ------------------------------------------------

func (c *ctor) current() *elem {
	if len(c.stack) == 0 {
		return nil
	}
	return c.stack[len(c.stack)-1]
}

// adjustedCurrent is the adjusted current node: in fragment parsing with
// one element on the stack it is the context element.
func (c *ctor) adjustedCurrent() *elem {
	if c.fragment && len(c.stack) == 1 {
		return htmlElem(c.contextTag, nil)
	}
	return c.current()
}

func (c *ctor) push(e *elem, loc markup.Location) {
	c.stack = append(c.stack, e)
	if !e.silent {
		c.signal(markup.StartElement{Name: e.name, Attrs: e.attrs, Loc: loc})
	}
}

func (c *ctor) pop() *elem {
	if len(c.stack) == 0 {
		return nil
	}
	e := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	if !e.silent {
		c.signal(markup.EndElement{Name: e.name})
	}
	return e
}

// popUntil pops elements until one matching the predicate has been
// popped; it returns that element or nil if the stack drained.
func (c *ctor) popUntil(match func(*elem) bool) *elem {
	for len(c.stack) > 0 {
		e := c.pop()
		if match(e) {
			return e
		}
	}
	return nil
}

func (c *ctor) popUntilAtom(a atom.Atom) *elem {
	return c.popUntil(func(e *elem) bool { return e.a == a && e.isHTML() })
}

func (c *ctor) onStack(target *elem) bool {
	for _, e := range c.stack {
		if e == target {
			return true
		}
	}
	return false
}

func (c *ctor) removeFromStack(target *elem) {
	for i, e := range c.stack {
		if e == target {
			c.stack = append(c.stack[:i], c.stack[i+1:]...)
			return
		}
	}
}

// --- Scope queries ---------------------------------------------------------

// Scope terminator sets. A scope query walks the stack top-down: a match
// of the target wins, a terminator loses.
var defaultScopeAtoms = map[atom.Atom]bool{
	atom.Applet: true, atom.Caption: true, atom.Html: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Marquee: true, atom.Object: true,
	atom.Template: true,
}

var mathmlScopeNames = map[string]bool{
	"mi": true, "mo": true, "mn": true, "ms": true, "mtext": true,
	"annotation-xml": true,
}

var svgScopeNames = map[string]bool{
	"foreignObject": true, "desc": true, "title": true,
}

type scopeKind uint8

const (
	defaultScope scopeKind = iota
	listItemScope
	buttonScope
	tableScope
	selectScope
)

func (c *ctor) terminatesScope(e *elem, kind scopeKind) bool {
	if kind == selectScope {
		// inverted: everything but optgroup and option terminates
		return !(e.isHTML() && (e.a == atom.Optgroup || e.a == atom.Option))
	}
	if kind == tableScope {
		return e.isHTML() && (e.a == atom.Html || e.a == atom.Table || e.a == atom.Template)
	}
	switch e.name.Space {
	case markup.NsHTML:
		if defaultScopeAtoms[e.a] {
			return true
		}
		switch kind {
		case listItemScope:
			return e.a == atom.Ol || e.a == atom.Ul
		case buttonScope:
			return e.a == atom.Button
		}
	case markup.NsMathML:
		return mathmlScopeNames[e.name.Local]
	case markup.NsSVG:
		return svgScopeNames[e.name.Local]
	}
	return false
}

func (c *ctor) inScope(kind scopeKind, match func(*elem) bool) bool {
	for i := len(c.stack) - 1; i >= 0; i-- {
		e := c.stack[i]
		if match(e) {
			return true
		}
		if c.terminatesScope(e, kind) {
			return false
		}
	}
	return false
}

func (c *ctor) atomInScope(kind scopeKind, a atom.Atom) bool {
	return c.inScope(kind, func(e *elem) bool { return e.isHTML() && e.a == a })
}

func (c *ctor) elemInScope(kind scopeKind, target *elem) bool {
	return c.inScope(kind, func(e *elem) bool { return e == target })
}

// --- Implied end tags ------------------------------------------------------

var impliedEndAtoms = map[atom.Atom]bool{
	atom.Dd: true, atom.Dt: true, atom.Li: true, atom.Optgroup: true,
	atom.Option: true, atom.P: true, atom.Rb: true, atom.Rp: true,
	atom.Rt: true, atom.Rtc: true,
}

var thoroughImpliedEndAtoms = map[atom.Atom]bool{
	atom.Caption: true, atom.Colgroup: true, atom.Tbody: true, atom.Td: true,
	atom.Tfoot: true, atom.Th: true, atom.Thead: true, atom.Tr: true,
}

func (c *ctor) generateImpliedEnd(except atom.Atom) {
	for {
		cur := c.current()
		if cur == nil || !cur.isHTML() || !impliedEndAtoms[cur.a] || cur.a == except {
			return
		}
		c.pop()
	}
}

func (c *ctor) generateImpliedEndThoroughly() {
	for {
		cur := c.current()
		if cur == nil || !cur.isHTML() ||
			(!impliedEndAtoms[cur.a] && !thoroughImpliedEndAtoms[cur.a]) {
			return
		}
		c.pop()
	}
}

// closeP closes a p element in button scope.
func (c *ctor) closeP(loc markup.Location) {
	c.generateImpliedEnd(atom.P)
	if cur := c.current(); cur == nil || cur.a != atom.P {
		c.report(markup.MisnestedTag, loc, "closing misnested <p>")
	}
	c.popUntilAtom(atom.P)
}

// --- Active formatting elements --------------------------------------------

func (c *ctor) afeMarker() {
	c.afe = append(c.afe, afeEntry{})
}

// afePush adds a formatting element under the Noah's Ark clause: at most
// three identical entries (same name and attributes) since the last
// marker.
func (c *ctor) afePush(e *elem, tok htmlscan.Token) {
	identical := 0
	earliest := -1
	for i := len(c.afe) - 1; i >= 0; i-- {
		entry := c.afe[i]
		if entry.el == nil {
			break
		}
		if entry.el.name == e.name && sameAttrs(entry.el.attrs, e.attrs) {
			identical++
			earliest = i
		}
	}
	if identical >= 3 {
		c.afe = append(c.afe[:earliest], c.afe[earliest+1:]...)
	}
	c.afe = append(c.afe, afeEntry{el: e, tok: tok})
}

func sameAttrs(a, b []markup.Attr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || a[i].Value != b[i].Value {
			return false
		}
	}
	return true
}

func (c *ctor) afeRemove(target *elem) {
	for i := len(c.afe) - 1; i >= 0; i-- {
		if c.afe[i].el == target {
			c.afe = append(c.afe[:i], c.afe[i+1:]...)
			return
		}
	}
}

func (c *ctor) afeClearToMarker() {
	for len(c.afe) > 0 {
		entry := c.afe[len(c.afe)-1]
		c.afe = c.afe[:len(c.afe)-1]
		if entry.el == nil {
			return
		}
	}
}

// afeFind returns the index of the last entry for the given tag name
// after the last marker, or -1.
func (c *ctor) afeFind(a atom.Atom) int {
	for i := len(c.afe) - 1; i >= 0; i-- {
		if c.afe[i].el == nil {
			return -1
		}
		if c.afe[i].el.a == a {
			return i
		}
	}
	return -1
}

// reconstruct reopens active formatting elements that are no longer on
// the stack, cloning each (attributes preserved) and emitting its
// StartElement.
func (c *ctor) reconstruct() {
	if len(c.afe) == 0 {
		return
	}
	last := c.afe[len(c.afe)-1]
	if last.el == nil || c.onStack(last.el) {
		return
	}
	i := len(c.afe) - 1
	for i > 0 {
		prev := c.afe[i-1]
		if prev.el == nil || c.onStack(prev.el) {
			break
		}
		i--
	}
	for ; i < len(c.afe); i++ {
		entry := c.afe[i]
		clone := htmlElem(entry.el.name.Local, entry.el.attrs)
		c.push(clone, entry.tok.Loc)
		c.afe[i] = afeEntry{el: clone, tok: entry.tok}
	}
}

// --- Adoption agency -------------------------------------------------------

// adoptionAgency recovers from misnested formatting elements. A
// streaming parser cannot reparent what it already emitted, so the
// algorithm closes up to the formatting element (open elements above it
// are closed; formatting elements among them remain in the active list
// and reopen on reconstruction). The iteration bounds of the
// specification are kept.
func (c *ctor) adoptionAgency(tok htmlscan.Token) {
	a := atom.Lookup([]byte(tok.Name))
	for outer := 0; outer < 8; outer++ {
		if cur := c.current(); cur != nil && cur.isHTML() && cur.a == a {
			if c.afeFindElem(cur) < 0 {
				c.pop()
				return
			}
		}
		idx := c.afeFind(a)
		if idx < 0 {
			c.anyOtherEndTag(tok)
			return
		}
		fe := c.afe[idx].el
		if !c.onStack(fe) {
			c.report(markup.MisnestedTag, tok.Loc, "formatting element </%s> not open", tok.Name)
			c.afeRemove(fe)
			return
		}
		if !c.elemInScope(defaultScope, fe) {
			c.report(markup.UnmatchedEndTag, tok.Loc, "</%s> matches nothing in scope", tok.Name)
			return
		}
		if fe != c.current() {
			c.report(markup.MisnestedTag, tok.Loc, "misnested </%s>", tok.Name)
		}
		// Close everything above the formatting element. Formatting
		// elements keep their active-list entries and reopen later;
		// other elements are closed for good.
		for c.current() != nil && c.current() != fe {
			closed := c.pop()
			if !isFormatting(closed.a) {
				// a furthest block stays closed; its formatting context
				// is restored on the next reconstruction
				c.afeRemoveByElem(closed)
			}
		}
		c.pop() // the formatting element itself
		c.afeRemove(fe)
		return
	}
}

func (c *ctor) afeFindElem(target *elem) int {
	for i := len(c.afe) - 1; i >= 0; i-- {
		if c.afe[i].el == nil {
			return -1
		}
		if c.afe[i].el == target {
			return i
		}
	}
	return -1
}

func (c *ctor) afeRemoveByElem(target *elem) {
	for i := range c.afe {
		if c.afe[i].el == target {
			c.afe = append(c.afe[:i], c.afe[i+1:]...)
			return
		}
	}
}

var formattingAtoms = map[atom.Atom]bool{
	atom.A: true, atom.B: true, atom.Big: true, atom.Code: true,
	atom.Em: true, atom.Font: true, atom.I: true, atom.Nobr: true,
	atom.S: true, atom.Small: true, atom.Strike: true, atom.Strong: true,
	atom.Tt: true, atom.U: true,
}

func isFormatting(a atom.Atom) bool { return formattingAtoms[a] }

// --- Special elements ------------------------------------------------------

var specialAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Applet: true, atom.Area: true, atom.Article: true,
	atom.Aside: true, atom.Base: true, atom.Basefont: true, atom.Bgsound: true,
	atom.Blockquote: true, atom.Body: true, atom.Br: true, atom.Button: true,
	atom.Caption: true, atom.Center: true, atom.Col: true, atom.Colgroup: true,
	atom.Dd: true, atom.Details: true, atom.Dir: true, atom.Div: true,
	atom.Dl: true, atom.Dt: true, atom.Embed: true, atom.Fieldset: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.Frame: true, atom.Frameset: true, atom.H1: true, atom.H2: true,
	atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true, atom.Head: true,
	atom.Header: true, atom.Hgroup: true, atom.Hr: true, atom.Html: true,
	atom.Iframe: true, atom.Img: true, atom.Input: true, atom.Li: true,
	atom.Link: true, atom.Listing: true, atom.Main: true, atom.Marquee: true,
	atom.Menu: true, atom.Meta: true, atom.Nav: true, atom.Noembed: true,
	atom.Noframes: true, atom.Noscript: true, atom.Object: true, atom.Ol: true,
	atom.P: true, atom.Param: true, atom.Plaintext: true, atom.Pre: true,
	atom.Script: true, atom.Section: true, atom.Select: true, atom.Source: true,
	atom.Style: true, atom.Summary: true, atom.Table: true, atom.Tbody: true,
	atom.Td: true, atom.Template: true, atom.Textarea: true, atom.Tfoot: true,
	atom.Th: true, atom.Thead: true, atom.Title: true, atom.Tr: true,
	atom.Track: true, atom.Ul: true, atom.Wbr: true, atom.Xmp: true,
}

func (c *ctor) isSpecial(e *elem) bool {
	switch e.name.Space {
	case markup.NsHTML:
		return specialAtoms[e.a]
	case markup.NsMathML:
		return mathmlScopeNames[e.name.Local]
	case markup.NsSVG:
		return svgScopeNames[e.name.Local]
	}
	return false
}

// --- Reset the insertion mode ----------------------------------------------

func (c *ctor) resetInsertionMode() {
	for i := len(c.stack) - 1; i >= 0; i-- {
		node := c.stack[i]
		last := i == 0
		if last && c.fragment {
			node = htmlElem(c.contextTag, nil)
		}
		switch {
		case node.a == atom.Select && node.isHTML():
			c.mode = inSelectMode
			for j := i - 1; j >= 0; j-- {
				anc := c.stack[j]
				if anc.a == atom.Template && anc.isHTML() {
					break
				}
				if anc.a == atom.Table && anc.isHTML() {
					c.mode = inSelectInTableMode
					break
				}
			}
			return
		case (node.a == atom.Td || node.a == atom.Th) && node.isHTML() && !last:
			c.mode = inCellMode
			return
		case node.a == atom.Tr && node.isHTML():
			c.mode = inRowMode
			return
		case (node.a == atom.Tbody || node.a == atom.Thead || node.a == atom.Tfoot) && node.isHTML():
			c.mode = inTableBodyMode
			return
		case node.a == atom.Caption && node.isHTML():
			c.mode = inCaptionMode
			return
		case node.a == atom.Colgroup && node.isHTML():
			c.mode = inColumnGroupMode
			return
		case node.a == atom.Table && node.isHTML():
			c.mode = inTableMode
			return
		case node.a == atom.Template && node.isHTML():
			if n := len(c.templateModes); n > 0 {
				c.mode = c.templateModes[n-1]
			} else {
				c.mode = inBodyMode
			}
			return
		case node.a == atom.Head && node.isHTML() && !last:
			c.mode = inHeadMode
			return
		case node.a == atom.Body && node.isHTML():
			c.mode = inBodyMode
			return
		case node.a == atom.Frameset && node.isHTML():
			c.mode = inFramesetMode
			return
		case node.a == atom.Html && node.isHTML():
			if !c.headSeen {
				c.mode = beforeHeadMode
			} else {
				c.mode = afterHeadMode
			}
			return
		case last:
			c.mode = inBodyMode
			return
		}
	}
	c.mode = inBodyMode
}

// --- Fragment parsing ------------------------------------------------------

func (c *ctor) setupFragment(context string) {
	c.fragment = true
	c.contextTag = context
	root := htmlElem("html", nil)
	root.silent = true
	c.stack = append(c.stack, root)
	switch context {
	case "title", "textarea":
		c.z.NextIsRCDATA(context)
	case "style", "xmp", "iframe", "noembed", "noframes":
		c.z.NextIsRawText(context)
	case "noscript":
		if c.cfg.Scripting {
			c.z.NextIsRawText(context)
		}
	case "script":
		c.z.NextIsScriptData()
	case "plaintext":
		c.z.NextIsPlaintext()
	case "template":
		c.templateModes = append(c.templateModes, inTemplateMode)
	}
	c.resetInsertionMode()
}
