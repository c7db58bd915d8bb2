/*
Package sigil provides streaming, error-recovering parsers and serializers
for HTML and XML.

The library consumes a byte source of unknown encoding and produces a lazy
sequence of signals (element-start, element-end, text, comment,
processing-instruction, doctype, xml-declaration) that represent a
left-to-right traversal of the document tree, without ever materializing
that tree. It also runs in reverse: a signal sequence is serialized to
UTF-8 bytes.

Parsing succeeds on arbitrary input, including the malformed HTML seen on
the open web, by emitting diagnostics alongside its best-effort signal
output. The pipeline is a strict left-to-right chain of lazy pull streams:

	bytes → decoder → code points → preprocessor → tokenizer → tokens
	      → tree constructor → signals

Each stage pulls items from its upstream on demand; no stage buffers more
than the minimum its specification requires. Suspension points are exactly
and only at the byte-source boundary, so synchronous hosts see inline
results and event-loop hosts may defer them (see package stream).

# Status

Work in progress.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package sigil

import (
	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to 'sigil.pipeline'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.pipeline")
}
