/*
Package entity provides incremental matching of HTML named character
references against the static reference table.

The tokenizer feeds code points one at a time; after each step the
matcher reports whether the current path is a valid terminal (with its
replacement text) and whether any longer match is still possible. Legacy
references that the HTML specification accepts without a terminating
semicolon are marked, so the tokenizer can reproduce the compatibility
rule for them.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package entity

import (
	"strings"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to 'sigil.entity'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.entity")
}

// A node of the reference trie. The trie is built once, at package
// initialization, from the generated table.
type node struct {
	children map[rune]*node
	repl     string // replacement text if terminal
	terminal bool
	legacy   bool // terminal is valid without a semicolon
}

var root *node

func init() {
	root = &node{}
	for name, repl := range table {
		insert(name, repl)
	}
	tracer().Debugf("entity trie built, %d names", len(table))
}

func insert(name, repl string) {
	n := root
	for _, r := range name {
		if n.children == nil {
			n.children = make(map[rune]*node, 2)
		}
		child := n.children[r]
		if child == nil {
			child = &node{}
			n.children[r] = child
		}
		n = child
	}
	n.terminal = true
	n.repl = repl
	n.legacy = !strings.HasSuffix(name, ";")
}

// Matcher walks the trie one code point at a time. The zero value is not
// usable; obtain one with New. A Matcher is cheap and not reusable across
// references.
type Matcher struct {
	cur *node
}

// New returns a matcher positioned at the root of the trie, i.e. just
// after a consumed '&'.
func New() *Matcher {
	return &Matcher{cur: root}
}

// Step consumes one code point. It returns false if no reference continues
// with r; the matcher is then dead and further steps also return false.
func (m *Matcher) Step(r rune) bool {
	if m.cur == nil {
		return false
	}
	m.cur = m.cur.children[r]
	return m.cur != nil
}

// CanContinue reports whether any longer match is still possible.
func (m *Matcher) CanContinue() bool {
	return m.cur != nil && len(m.cur.children) > 0
}

// Terminal reports whether the code points consumed so far form a complete
// reference name, and if so, its replacement text.
func (m *Matcher) Terminal() (string, bool) {
	if m.cur == nil || !m.cur.terminal {
		return "", false
	}
	return m.cur.repl, true
}

// Legacy reports whether the current terminal is a legacy reference,
// accepted by the HTML specification without a terminating semicolon.
func (m *Matcher) Legacy() bool {
	return m.cur != nil && m.cur.terminal && m.cur.legacy
}

// --- Numeric references ----------------------------------------------------

// windows1252Remap is the HTML specification's replacement table for
// numeric references into the C1 control range.
var windows1252Remap = map[rune]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„',
	0x85: '…', 0x86: '†', 0x87: '‡', 0x88: 'ˆ',
	0x89: '‰', 0x8A: 'Š', 0x8B: '‹', 0x8C: 'Œ',
	0x8E: 'Ž', 0x91: '‘', 0x92: '’', 0x93: '“',
	0x94: '”', 0x95: '•', 0x96: '–', 0x97: '—',
	0x98: '˜', 0x99: '™', 0x9A: 'š', 0x9B: '›',
	0x9C: 'œ', 0x9E: 'ž', 0x9F: 'Ÿ',
}

// Numeric maps the value of a numeric character reference to the code
// point to emit. ok is false for zero, for values above U+10FFFF, for
// surrogates and for the C1 values remapped through the Windows-1252
// table (the replacement is still returned and must be emitted). All
// other values, noncharacters and other control characters included,
// return ok true.
func Numeric(cp int64) (r rune, ok bool) {
	switch {
	case cp == 0, cp > 0x10FFFF:
		return '�', false
	case cp >= 0xD800 && cp <= 0xDFFF:
		return '�', false
	}
	if repl, isC1 := windows1252Remap[rune(cp)]; isC1 {
		return repl, false
	}
	return rune(cp), true
}
