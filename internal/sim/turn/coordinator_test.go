package turn

import (
	"bytes"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/sim/zone"
)

// junctionStream returns a stream whose first spawn is a junction at start.
func junctionStream(t *testing.T, start path.Cursor) (*path.Stream, *path.Segment) {
	t.Helper()
	p := tuning.Defaults().Path
	p.SequenceLength = 1
	s := path.NewStream(p, start)
	j := s.SpawnNext(0)
	if j == nil || j.Kind != path.Junction || s.ActiveJunction() != j {
		t.Fatalf("setup: expected active junction")
	}
	return s, j
}

func newCoordinator(buf io.Writer) *Coordinator {
	if buf == nil {
		buf = io.Discard
	}
	return NewCoordinator(tuning.Defaults().Path, log.New(buf, "", 0))
}

func TestCommit_CursorRecomputation(t *testing.T) {
	cases := []struct {
		name    string
		start   path.Cursor
		dir     geom.Direction
		want    geom.Vec3
		heading geom.Heading
	}{
		{"north left", path.Cursor{Heading: geom.North}, geom.Left, geom.Vec3{X: -6.5, Z: -6.5}, geom.West},
		{"north right", path.Cursor{Heading: geom.North}, geom.Right, geom.Vec3{X: 6.5, Z: -6.5}, geom.East},
		{"east left", path.Cursor{Position: geom.Vec3{X: 100, Z: -40}, Heading: geom.East}, geom.Left, geom.Vec3{X: 106.5, Z: -46.5}, geom.North},
		{"south right", path.Cursor{Position: geom.Vec3{X: -20, Z: 60}, Heading: geom.South}, geom.Right, geom.Vec3{X: -26.5, Z: 66.5}, geom.West},
	}
	for _, tc := range cases {
		s, j := junctionStream(t, tc.start)
		c := newCoordinator(nil)
		got, err := c.Commit(7, s, tc.dir)
		if err != nil {
			t.Fatalf("%s: commit: %v", tc.name, err)
		}
		if got.Cursor.Position != tc.want || got.NewHeading != tc.heading {
			t.Fatalf("%s: cursor=%v heading=%s want %v %s", tc.name, got.Cursor.Position, got.NewHeading, tc.want, tc.heading)
		}
		if got.Junction != j || got.OldHeading != tc.start.Heading {
			t.Fatalf("%s: commit record %+v", tc.name, got)
		}
		if s.Halted() || s.SpawnCount() != 1 {
			t.Fatalf("%s: stream should resume with a fresh run", tc.name)
		}
		first := s.Segments()[len(s.Segments())-1]
		if first.Pose.Position != tc.want || first.Pose.Heading != tc.heading || first.Kind != path.Normal {
			t.Fatalf("%s: first resumed segment %+v", tc.name, first.Pose)
		}
	}
}

func TestCommit_HeadingRoundTripIsExact(t *testing.T) {
	h := geom.North
	for i := 0; i < 4; i++ {
		h = h.Turn(geom.Left)
	}
	if h != geom.North || h.Vector() != (geom.Vec3{Z: -1}) {
		t.Fatalf("four lefts: %s %v", h, h.Vector())
	}
	if v := geom.North.Turn(geom.Left).Vector(); v != (geom.Vec3{X: -1}) {
		t.Fatalf("north+left=%v want exactly (-1,0,0)", v)
	}
}

func TestCommit_NoActiveJunction(t *testing.T) {
	var buf bytes.Buffer
	c := newCoordinator(&buf)
	s := path.NewStream(tuning.Defaults().Path, path.Cursor{Heading: geom.North})
	if _, err := c.Commit(1, s, geom.Left); !errors.Is(err, ErrNoActiveJunction) {
		t.Fatalf("err=%v", err)
	}
	if err := c.Request(nil, geom.Left, zone.Flags{TurnEligible: true}); !errors.Is(err, ErrNoActiveJunction) {
		t.Fatalf("request err=%v", err)
	}
	if !strings.Contains(buf.String(), "no active junction") {
		t.Fatalf("expected log line, got %q", buf.String())
	}
	if s.Cursor().Heading != geom.North || s.Halted() {
		t.Fatalf("stream must be untouched")
	}
}

func TestUpdate_RequestThenEvent(t *testing.T) {
	s, j := junctionStream(t, path.Cursor{Heading: geom.North})
	c := newCoordinator(nil)

	if err := c.Request(j, geom.Left, zone.Flags{TurnEligible: true}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if got, _ := c.Update(1, s); got != nil {
		t.Fatalf("committed without a turn event")
	}
	c.Observe(j, &zone.TurnEvent{Junction: j, Direction: geom.Left})
	got, err := c.Update(2, s)
	if err != nil || got == nil {
		t.Fatalf("expected commit, got %+v %v", got, err)
	}
	if got.Cursor.Position != (geom.Vec3{X: -6.5, Z: -6.5}) || got.Tick != 2 {
		t.Fatalf("commit=%+v", got)
	}
	if c.Armed() {
		t.Fatalf("request should be consumed")
	}
}

func TestUpdate_EventThenRequest(t *testing.T) {
	s, j := junctionStream(t, path.Cursor{Heading: geom.North})
	c := newCoordinator(nil)

	c.Observe(j, &zone.TurnEvent{Junction: j, Direction: geom.Right})
	if got, _ := c.Update(1, s); got != nil {
		t.Fatalf("committed without a request")
	}
	_ = c.Request(j, geom.Right, zone.Flags{TurnEligible: true})
	got, _ := c.Update(2, s)
	if got == nil || got.NewHeading != geom.East {
		t.Fatalf("expected right commit, got %+v", got)
	}

	// The junction is resolved; further requests and events do nothing.
	_ = c.Request(j, geom.Right, zone.Flags{TurnEligible: true})
	c.Observe(j, &zone.TurnEvent{Junction: j, Direction: geom.Right})
	if again, _ := c.Update(3, s); again != nil {
		t.Fatalf("junction committed twice")
	}
}

func TestRequest_IgnoredOutsideEligibleZone(t *testing.T) {
	s, j := junctionStream(t, path.Cursor{Heading: geom.North})
	c := newCoordinator(nil)
	if err := c.Request(j, geom.Left, zone.Flags{}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if c.Armed() {
		t.Fatalf("armed outside the eligible zone")
	}
	c.Observe(j, &zone.TurnEvent{Junction: j, Direction: geom.Left})
	if got, _ := c.Update(1, s); got != nil {
		t.Fatalf("commit without an armed request")
	}
}

func TestUpdate_MismatchUsesGeometricDirection(t *testing.T) {
	var buf bytes.Buffer
	s, j := junctionStream(t, path.Cursor{Heading: geom.North})
	c := newCoordinator(&buf)
	_ = c.Request(j, geom.Right, zone.Flags{TurnEligible: true})
	c.Observe(j, &zone.TurnEvent{Junction: j, Direction: geom.Left})
	got, _ := c.Update(1, s)
	if got == nil || got.Direction != geom.Left || got.Requested != geom.Right {
		t.Fatalf("commit=%+v", got)
	}
	if !strings.Contains(buf.String(), "requested RIGHT but traveler took LEFT") {
		t.Fatalf("mismatch not logged: %q", buf.String())
	}
}

func TestPendingStateClearsOnJunctionChange(t *testing.T) {
	s, j := junctionStream(t, path.Cursor{Heading: geom.North})
	c := newCoordinator(nil)
	_ = c.Request(j, geom.Left, zone.Flags{TurnEligible: true})

	other := &path.Segment{Kind: path.Junction}
	c.Observe(other, &zone.TurnEvent{Junction: other, Direction: geom.Left})
	if c.Armed() {
		t.Fatalf("request for the previous junction survived")
	}
	// Back on the stream's real junction nothing is pending.
	if got, _ := c.Update(1, s); got != nil {
		t.Fatalf("stale state committed")
	}
}
