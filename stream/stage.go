package stream

/*
License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>

*/

/*
Parsing pipelines are chains of state machines: each stage consumes one
item from its upstream, mutates private state, and emits zero or more
items downstream. Stage captures that shape once, so that the decoder,
the preprocessor, the tokenizers and the tree constructors need only
provide a step function and never deal with continuations themselves.

A stage keeps pulling from upstream until its step function has emitted at
least one item, then delivers. If the upstream suspends (asynchronous
host), the pending continuation re-enters the pump when it resumes; the
consumer's continuation fires exactly once either way.
*/

// Stage adapts a state-machine step function to the Stream contract.
// step consumes one upstream item and may emit any number of downstream
// items; flush is called exactly once when the upstream ends, for final
// emissions (EOF tokens, implied end tags). Either may be nil.
type Stage[S, T any] struct {
	src   Stream[S]
	step  func(S, func(T))
	flush func(func(T))
	queue []T
	ended bool
	err   error
}

// NewStage chains a step function onto an upstream stream.
func NewStage[S, T any](src Stream[S], step func(S, func(T)), flush func(func(T))) *Stage[S, T] {
	return &Stage[S, T]{src: src, step: step, flush: flush}
}

func (st *Stage[S, T]) emit(v T) {
	st.queue = append(st.queue, v)
}

func (st *Stage[S, T]) pop() (T, bool) {
	if len(st.queue) == 0 {
		var zero T
		return zero, false
	}
	v := st.queue[0]
	st.queue = st.queue[1:]
	return v, true
}

func (st *Stage[S, T]) Advance(onErr func(error), onEnd func(), onVal func(T)) {
	if v, ok := st.pop(); ok {
		onVal(v)
		return
	}
	if st.err != nil {
		onErr(st.err)
		return
	}
	if st.ended {
		onEnd()
		return
	}
	st.pump(onErr, onEnd, onVal)
}

// pump advances the upstream until the step function has produced output,
// the upstream ends, or an error occurs. The inCall/again flags let the
// same code serve inline continuations (loop) and deferred ones
// (re-entrant call) without ever resolving a consumer continuation twice.
func (st *Stage[S, T]) pump(onErr func(error), onEnd func(), onVal func(T)) {
	again := true
	for again {
		again = false
		inCall := true
		st.src.Advance(
			func(e error) {
				st.err = e
				onErr(e)
			},
			func() {
				if st.flush != nil {
					st.flush(st.emit)
				}
				st.ended = true
				if v, ok := st.pop(); ok {
					onVal(v)
					return
				}
				onEnd()
			},
			func(s S) {
				if st.step != nil {
					st.step(s, st.emit)
				}
				if v, ok := st.pop(); ok {
					onVal(v)
					return
				}
				if inCall {
					again = true // resolved inline, no output yet: keep pulling
				} else {
					st.pump(onErr, onEnd, onVal) // deferred resume
				}
			})
		inCall = false
	}
}
