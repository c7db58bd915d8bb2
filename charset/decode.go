package charset

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

import (
	"unicode/utf8"

	"github.com/npillmayer/sigil/markup"
	"github.com/npillmayer/sigil/stream"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Config parameterizes a decoder.
type Config struct {
	Forced string        // encoding label forced by the host; overrides detection
	XML    bool          // selects the XML detection path and fallback
	Report markup.Report // diagnostic sink
}

// Runes turns a byte-chunk stream into a code-point stream. The first
// advance triggers encoding detection on a buffered prefix of at most 1024
// bytes; everything after that is incremental decoding. Invalid input maps
// to U+FFFD with a decoding diagnostic and never stops the stream.
func Runes(src stream.Stream[[]byte], cfg Config) stream.Stream[rune] {
	d := &decoder{cfg: cfg}
	return stream.NewStage[[]byte, rune](src, d.step, d.flush)
}

type decoder struct {
	cfg     Config
	sniff   []byte
	decided bool
	name    string
	native  bool                  // decode UTF-8 by hand, for byte-exact diagnostics
	trans   transform.Transformer // non-UTF-8 decoding via x/text
	raw     []byte                // pending undecoded input bytes
	buf     []byte                // pending UTF-8 bytes (transformer output)
	line    int
	col     int
}

func (d *decoder) step(chunk []byte, emit func(rune)) {
	if !d.decided {
		d.sniff = append(d.sniff, chunk...)
		if len(d.sniff) < sniffLimit {
			return
		}
		d.decide(false, emit)
		return
	}
	d.decode(chunk, false, emit)
}

func (d *decoder) flush(emit func(rune)) {
	if !d.decided {
		d.decide(true, emit)
	}
	d.decode(nil, true, emit)
}

// decide runs detection on the sniff buffer and replays it into the
// decoding path.
func (d *decoder) decide(atEOF bool, emit func(rune)) {
	prefix := d.sniff
	if len(prefix) > sniffLimit {
		prefix = prefix[:sniffLimit]
	}
	enc, name, bomLen := Detect(prefix, d.cfg.XML)
	if d.cfg.Forced != "" {
		if fe, fn := Lookup(d.cfg.Forced); fe != nil {
			enc, name = fe, fn
		} else {
			d.cfg.Report.Send(markup.DecodingError, d.loc(), "unknown forced encoding %q", d.cfg.Forced)
		}
	}
	d.decided = true
	d.name = name
	d.line, d.col = 1, 1
	if name == "utf-8" {
		d.native = true
	} else {
		d.trans = enc.NewDecoder().Transformer
	}
	tracer().Debugf("decoding as %s (BOM %d bytes)", name, bomLen)
	data := d.sniff[bomLen:]
	d.sniff = nil
	d.decode(data, atEOF, emit)
}

func (d *decoder) decode(chunk []byte, atEOF bool, emit func(rune)) {
	d.raw = append(d.raw, chunk...)
	if d.native {
		d.buf, d.raw = append(d.buf, d.raw...), nil
	} else {
		for {
			dst := make([]byte, 4096)
			nDst, nSrc, err := d.trans.Transform(dst, d.raw, atEOF)
			d.buf = append(d.buf, dst[:nDst]...)
			d.raw = d.raw[nSrc:]
			if err == transform.ErrShortDst {
				continue
			}
			// ErrShortSrc: an incomplete sequence stays pending until the
			// next chunk arrives.
			break
		}
	}
	d.drain(atEOF, emit)
}

// drain decodes complete runes out of the UTF-8 buffer.
func (d *decoder) drain(atEOF bool, emit func(rune)) {
	for len(d.buf) > 0 {
		if !utf8.FullRune(d.buf) && !atEOF {
			return // wait for the rest of the sequence
		}
		r, size := utf8.DecodeRune(d.buf)
		if r == utf8.RuneError && size == 1 {
			d.cfg.Report.Send(markup.DecodingError, d.loc(),
				"invalid byte 0x%02X for encoding %s", d.buf[0], d.name)
			r = '�'
		} else if r == '�' && !d.native {
			// x/text decoders substitute U+FFFD for unmappable input
			d.cfg.Report.Send(markup.DecodingError, d.loc(),
				"undecodable input for encoding %s", d.name)
		}
		d.buf = d.buf[size:]
		emit(r)
		if r == '\n' {
			d.line++
			d.col = 1
		} else {
			d.col++
		}
	}
}

func (d *decoder) loc() markup.Location {
	if d.line == 0 {
		return markup.Location{Line: 1, Col: 1}
	}
	return markup.Location{Line: d.line, Col: d.col}
}

// UTF8 is the encoding used by the writers.
var UTF8 = unicode.UTF8
