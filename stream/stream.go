/*
Package stream implements the pull-based stream abstraction that chains
the stages of a parsing pipeline together.

A stream of element type T exposes a single operation, Advance, which,
given three continuations — on-error, on-end, on-value — invokes exactly
one of them exactly once. The one primitive expresses both synchronous and
suspending hosts: a synchronous producer resolves its continuation inline,
an event-loop producer resolves it whenever its I/O completes. The core
never picks a scheduler.

Streams are single-consumer. End-of-stream is sticky: after on-end fires
once, subsequent advances also deliver end. An error delivered via
on-error propagates downstream unchanged, and the stream is never advanced
past the error.

___________________________________________________________________________

# License

Governed by a 3-Clause BSD license. License file may be found in the root
folder of this module.

Copyright © 2017–2022 Norbert Pillmayer <norbert@pillmayer.com>
*/
package stream

import (
	"errors"

	"github.com/npillmayer/schuko/tracing"
)

// tracer traces to 'sigil.stream'.
func tracer() tracing.Trace {
	return tracing.Select("sigil.stream")
}

// ErrSuspended is returned by ToList if the producer suspended instead of
// resolving a continuation inline. ToList is a synchronous-host helper and
// cannot wait for an asynchronous resume.
var ErrSuspended = errors.New("stream suspended; synchronous consumption impossible")

// Stream is a pull stream of items of type T.
//
// Advance invokes exactly one of the three continuations exactly once,
// either inline or — for a producer waiting on I/O — later, from the
// host's completion mechanism.
type Stream[T any] interface {
	Advance(onErr func(error), onEnd func(), onVal func(T))
}

// --- Producing streams -----------------------------------------------------

// Func wraps a producer callback as a Stream. The callback has the Advance
// contract; Func additionally enforces stickiness of end and error, so
// producers need not track their own termination.
func Func[T any](produce func(onErr func(error), onEnd func(), onVal func(T))) Stream[T] {
	return &funcStream[T]{produce: produce}
}

type funcStream[T any] struct {
	produce func(func(error), func(), func(T))
	ended   bool
	err     error
}

func (f *funcStream[T]) Advance(onErr func(error), onEnd func(), onVal func(T)) {
	if f.err != nil {
		onErr(f.err)
		return
	}
	if f.ended {
		onEnd()
		return
	}
	f.produce(
		func(e error) { f.err = e; onErr(e) },
		func() { f.ended = true; onEnd() },
		onVal)
}

// Of returns a finite stream over the given items, mainly for tests.
func Of[T any](items ...T) Stream[T] {
	i := 0
	return Func(func(onErr func(error), onEnd func(), onVal func(T)) {
		if i >= len(items) {
			onEnd()
			return
		}
		v := items[i]
		i++
		onVal(v)
	})
}

// --- Combinators -----------------------------------------------------------

// Map transforms every item of a stream.
func Map[S, T any](src Stream[S], f func(S) T) Stream[T] {
	return Func(func(onErr func(error), onEnd func(), onVal func(T)) {
		src.Advance(onErr, onEnd, func(v S) { onVal(f(v)) })
	})
}

// Filter drops items not matching a predicate.
func Filter[T any](src Stream[T], keep func(T) bool) Stream[T] {
	var s Stream[T]
	s = Func(func(onErr func(error), onEnd func(), onVal func(T)) {
		src.Advance(onErr, onEnd, func(v T) {
			if keep(v) {
				onVal(v)
				return
			}
			s.Advance(onErr, onEnd, onVal)
		})
	})
	return s
}

// Concat chains streams back to back.
func Concat[T any](streams ...Stream[T]) Stream[T] {
	i := 0
	var s Stream[T]
	s = Func(func(onErr func(error), onEnd func(), onVal func(T)) {
		if i >= len(streams) {
			onEnd()
			return
		}
		streams[i].Advance(onErr, func() {
			i++
			s.Advance(onErr, onEnd, onVal)
		}, onVal)
	})
	return s
}

// ToList drains a stream into a slice. It is meant for tests and for
// synchronous hosts; it fails with ErrSuspended if the producer defers a
// continuation.
func ToList[T any](src Stream[T]) ([]T, error) {
	var out []T
	for {
		var err error
		ended, resolved := false, false
		src.Advance(
			func(e error) { resolved = true; err = e },
			func() { resolved = true; ended = true },
			func(v T) { resolved = true; out = append(out, v) })
		if !resolved {
			return out, ErrSuspended
		}
		if err != nil {
			return out, err
		}
		if ended {
			return out, nil
		}
	}
}

// --- Buffered streams ------------------------------------------------------

// Buffered decorates a stream with one-element look-ahead (Peek) and
// arbitrary push-back. Splitting a stream is done by explicit peek
// buffering; streams stay single-consumer.
type Buffered[T any] struct {
	src   Stream[T]
	buf   []T // pushed-back items, last element delivered first
	ended bool
	err   error
}

// Buffer wraps a stream for peeking and push-back.
func Buffer[T any](src Stream[T]) *Buffered[T] {
	return &Buffered[T]{src: src}
}

func (b *Buffered[T]) Advance(onErr func(error), onEnd func(), onVal func(T)) {
	if n := len(b.buf); n > 0 {
		v := b.buf[n-1]
		b.buf = b.buf[:n-1]
		onVal(v)
		return
	}
	if b.err != nil {
		onErr(b.err)
		return
	}
	if b.ended {
		onEnd()
		return
	}
	b.src.Advance(
		func(e error) { b.err = e; onErr(e) },
		func() { b.ended = true; onEnd() },
		onVal)
}

// Peek delivers the next item without consuming it. The item is kept in
// the push-back buffer and will be re-delivered by the next Advance.
func (b *Buffered[T]) Peek(onErr func(error), onEnd func(), onVal func(T)) {
	b.Advance(onErr, onEnd, func(v T) {
		b.PushBack(v)
		onVal(v)
	})
}

// PushBack inserts a previously observed value at the head of the stream.
func (b *Buffered[T]) PushBack(v T) {
	b.buf = append(b.buf, v)
}
