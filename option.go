package sigil

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

// options collects pipeline configuration; the zero value is the
// default: detect the encoding, parse a full document, scripting off,
// discard diagnostics.
type options struct {
	encoding  string
	context   string
	scripting bool
	report    Report
	prefix    func(uri string) string
}

// Option configures a parsing or writing pipeline.
type Option func(*options)

// Encoding forces an encoding by its WHATWG label, overriding detection.
func Encoding(label string) Option {
	return func(o *options) { o.encoding = label }
}

// Context selects HTML fragment parsing with the given context element
// name. The default is document parsing.
func Context(element string) Option {
	return func(o *options) { o.context = element }
}

// Scripting sets the scripting flag of the HTML parser, which decides how
// <noscript> content is handled.
func Scripting(enabled bool) Option {
	return func(o *options) { o.scripting = enabled }
}

// WithReport directs diagnostics to a sink. The default discards them.
func WithReport(r Report) Option {
	return func(o *options) { o.report = r }
}

// Prefixes installs a URI→prefix policy for the XML writer.
func Prefixes(f func(uri string) string) Option {
	return func(o *options) { o.prefix = f }
}

func gather(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
