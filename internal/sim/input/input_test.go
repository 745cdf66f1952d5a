package input

import (
	"errors"
	"math"
	"sync"
	"testing"

	"corridor.ai/internal/sim/geom"
)

func TestParseTurn(t *testing.T) {
	for in, want := range map[string]TurnCommand{"": Center, "center": Center, "LEFT": Left, " right ": Right} {
		got, err := ParseTurn(in)
		if err != nil || got != want {
			t.Fatalf("ParseTurn(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseTurn("UP"); !errors.Is(err, ErrUnknownTurn) {
		t.Fatalf("expected ErrUnknownTurn, got %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cases := map[float64]float64{-1: 0, 0.25: 0.25, 3: 1, math.Inf(1): 1, math.Inf(-1): 0}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Fatalf("Sanitize(%v)=%v want %v", in, got, want)
		}
	}
	if got := Sanitize(math.NaN()); got != 0 {
		t.Fatalf("Sanitize(NaN)=%v", got)
	}
}

func TestLatest_LastWriteWins(t *testing.T) {
	l := NewLatest()
	if s := l.Load(); s.Turn != Center || s.Seq != 0 {
		t.Fatalf("zero snapshot=%+v", s)
	}
	l.Store(0.2, Left)
	l.Store(7, Right)
	s := l.Load()
	if s.Momentum != 1 || s.Turn != Right || s.Seq != 2 {
		t.Fatalf("snapshot=%+v", s)
	}
	l.Store(0.5, TurnCommand("sideways"))
	if s := l.Load(); s.Turn != Center {
		t.Fatalf("unknown command stored: %+v", s)
	}
}

func TestLatest_ConcurrentWriters(t *testing.T) {
	l := NewLatest()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				l.Store(0.5, Left)
				_ = l.Load()
			}
		}()
	}
	wg.Wait()
	if s := l.Load(); s.Seq != 800 {
		t.Fatalf("seq=%d want 800", s.Seq)
	}
}

func TestEdgeDetector(t *testing.T) {
	var e EdgeDetector
	steps := []struct {
		cmd      TurnCommand
		eligible bool
		want     bool
		dir      geom.Direction
	}{
		{Left, false, true, geom.Left}, // edge outside the zone is still an edge
		{Left, false, false, 0},
		{Left, true, true, geom.Left}, // held lean entering the zone
		{Left, true, false, 0},
		{Center, true, false, 0},
		{Right, true, true, geom.Right},
		{Left, true, true, geom.Left},
	}
	for i, st := range steps {
		dir, ok := e.Edge(st.cmd, st.eligible)
		if ok != st.want || (ok && dir != st.dir) {
			t.Fatalf("step %d: got (%s,%v) want (%s,%v)", i, dir, ok, st.dir, st.want)
		}
	}
}
