package stream

import (
	"errors"
	"strings"
	"testing"

	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func TestOfAndToList(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	l, err := ToList(Of(1, 2, 3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l) != 3 || l[0] != 1 || l[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", l)
	}
}

func TestEndIsSticky(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	s := Of[int]()
	for i := 0; i < 3; i++ {
		ended := false
		s.Advance(
			func(error) { t.Error("unexpected error continuation") },
			func() { ended = true },
			func(int) { t.Error("unexpected value continuation") })
		if !ended {
			t.Errorf("advance #%d after end did not deliver end", i)
		}
	}
}

func TestErrorIsSticky(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	boom := errors.New("boom")
	fired := false
	s := Func(func(onErr func(error), onEnd func(), onVal func(int)) {
		if fired {
			t.Error("producer called again past its error")
		}
		fired = true
		onErr(boom)
	})
	for i := 0; i < 2; i++ {
		var got error
		s.Advance(func(e error) { got = e }, func() {}, func(int) {})
		if got != boom {
			t.Errorf("advance #%d: expected sticky error, got %v", i, got)
		}
	}
}

func TestMapFilter(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	s := Filter(Map(Of(1, 2, 3, 4), func(n int) int { return n * 10 }),
		func(n int) bool { return n > 15 })
	l, err := ToList(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l) != 3 || l[0] != 20 {
		t.Errorf("expected [20 30 40], got %v", l)
	}
}

func TestConcat(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	l, err := ToList(Concat(Of("a"), Of[string](), Of("b", "c")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(l, "") != "abc" {
		t.Errorf("expected abc, got %v", l)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	b := Buffer(Of(7, 8))
	var peeked, got int
	b.Peek(nil, nil, func(v int) { peeked = v })
	b.Advance(nil, nil, func(v int) { got = v })
	if peeked != 7 || got != 7 {
		t.Errorf("expected peek=7 advance=7, got %d / %d", peeked, got)
	}
}

func TestPushBack(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	b := Buffer(Of(2, 3))
	b.PushBack(1)
	l, err := ToList[int](b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l) != 3 || l[0] != 1 || l[1] != 2 {
		t.Errorf("expected [1 2 3], got %v", l)
	}
}

func TestStageAggregates(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	// A stage that batches runs of equal items into counts.
	var cur rune
	count := 0
	st := NewStage[rune, int](Of('a', 'a', 'b'),
		func(r rune, emit func(int)) {
			if r == cur {
				count++
				return
			}
			if count > 0 {
				emit(count)
			}
			cur, count = r, 1
		},
		func(emit func(int)) {
			if count > 0 {
				emit(count)
			}
		})
	l, err := ToList[int](st)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(l) != 2 || l[0] != 2 || l[1] != 1 {
		t.Errorf("expected [2 1], got %v", l)
	}
}

func TestStageSuspension(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "sigil.stream")
	defer teardown()
	//
	// An upstream that suspends: it stores the continuation instead of
	// resolving it inline, as an event-loop host would.
	var resume func()
	items := []int{1, 2}
	i := 0
	src := Func(func(onErr func(error), onEnd func(), onVal func(int)) {
		if i >= len(items) {
			onEnd()
			return
		}
		v := items[i]
		i++
		resume = func() { onVal(v) }
	})
	st := NewStage[int, int](src, func(n int, emit func(int)) { emit(n * 2) }, nil)
	var got []int
	done := false
	var adv func()
	adv = func() {
		st.Advance(
			func(e error) { t.Fatalf("unexpected error: %v", e) },
			func() { done = true },
			func(v int) { got = append(got, v); adv() })
	}
	adv()
	for resume != nil && !done {
		r := resume
		resume = nil
		r()
	}
	if done != true || len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("expected [2 4] and end, got %v (done=%v)", got, done)
	}
}
