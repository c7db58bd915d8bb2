/*
Package input preprocesses the decoded code-point stream for the
tokenizers. It normalizes line endings to single U+000A (CR and CR LF
both become LF), attaches a 1-based (line, column) location to every code
point, and replaces surrogate code points with U+FFFD under a diagnostic.
It emits exactly the input minus these normalizations; no other
filtering.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package input

import (
	"github.com/npillmayer/schuko/tracing"
	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
)

// tracer traces to 'sigil.input'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.input")
}

// Scalar is a code point with the location it occupies in the source.
// Tab counts as width 1; the column resets after every (normalized) LF.
type Scalar struct {
	R   rune
	Loc markup.Location
}

// Scalars chains the preprocessor onto a code-point stream.
func Scalars(src stream.Stream[rune], report markup.Report) stream.Stream[Scalar] {
	p := &prep{line: 1, col: 1, report: report}
	return stream.NewStage[rune, Scalar](src, p.step, p.flush)
}

type prep struct {
	line, col int
	sawCR     bool
	report    markup.Report
}

func (p *prep) step(r rune, emit func(Scalar)) {
	if p.sawCR {
		p.sawCR = false
		if r == '\n' {
			return // CR LF collapses to the LF already emitted
		}
	}
	if r == '\r' {
		p.sawCR = true
		r = '\n'
	}
	loc := markup.Location{Line: p.line, Col: p.col}
	if r >= 0xD800 && r <= 0xDFFF {
		p.report.Send(markup.DecodingError, loc, "surrogate code point U+%04X in input", r)
		r = '�'
	}
	emit(Scalar{R: r, Loc: loc})
	if r == '\n' {
		p.line++
		p.col = 1
	} else {
		p.col++
	}
}

func (p *prep) flush(emit func(Scalar)) {
	tracer().Debugf("input ends at %d:%d", p.line, p.col)
}
