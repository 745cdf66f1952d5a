package zone

import (
	"math"
	"testing"

	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
)

func newResolver() *Resolver {
	d := tuning.Defaults()
	return NewResolver(d.Path, d.Zones)
}

func seg(kind path.Kind, x, z float64, h geom.Heading) *path.Segment {
	return &path.Segment{Kind: kind, Pose: geom.Pose{Position: geom.Vec3{X: x, Z: z}, Heading: h}}
}

func TestResolve_NormalWinsOverOverlappingJunction(t *testing.T) {
	r := newResolver()
	normal := seg(path.Normal, 1, 0, geom.North)
	junction := seg(path.Junction, 0, -20, geom.North)
	pos := geom.Vec3{X: 0.5, Z: -9}
	// Rotated enough that the junction alone would switch to its side line.
	yaw := 1.0

	for _, order := range [][]*path.Segment{{junction, normal}, {normal, junction}} {
		res := r.Resolve(order, junction, pos, yaw)
		if res.Constraint == nil {
			t.Fatalf("expected a constraint")
		}
		if res.Segment != normal {
			t.Fatalf("resolved segment kind=%s want NORMAL", res.Segment.Kind)
		}
		if *res.Constraint != (Constraint{Axis: geom.AxisX, Center: 1}) {
			t.Fatalf("constraint=%+v want NORMAL's {X,1}", *res.Constraint)
		}
		if res.Event != nil {
			t.Fatalf("overridden junction must not emit a turn")
		}
	}
	if junction.HasTurned() {
		t.Fatalf("overridden junction consumed its latch")
	}
}

func TestResolve_NoContainingSegmentLeavesNoConstraint(t *testing.T) {
	r := newResolver()
	res := r.Resolve([]*path.Segment{seg(path.Normal, 0, 0, geom.North)}, nil, geom.Vec3{X: 50}, 0)
	if res.Constraint != nil || res.Segment != nil {
		t.Fatalf("expected no constraint, got %+v", res)
	}
	if res.Flags != (Flags{}) {
		t.Fatalf("flags=%+v", res.Flags)
	}
}

func TestResolve_NormalOnWestHeadingHoldsWorldZ(t *testing.T) {
	r := newResolver()
	s := seg(path.Normal, -6.5, -6.5, geom.West)
	res := r.Resolve([]*path.Segment{s}, nil, geom.Vec3{X: -10, Z: -5}, math.Pi/2)
	if res.Constraint == nil || *res.Constraint != (Constraint{Axis: geom.AxisZ, Center: -6.5}) {
		t.Fatalf("constraint=%+v", res.Constraint)
	}
}

func TestResolve_JunctionAlignedUsesApproachCenterline(t *testing.T) {
	r := newResolver()
	j := seg(path.Junction, 3, -100, geom.North)
	res := r.Resolve([]*path.Segment{j}, j, geom.Vec3{X: 3.5, Z: -98}, 0.1)
	if res.Constraint == nil || *res.Constraint != (Constraint{Axis: geom.AxisX, Center: 3}) {
		t.Fatalf("constraint=%+v", res.Constraint)
	}
	if res.Event != nil {
		t.Fatalf("aligned traveler must not trigger a turn")
	}
}

func TestResolve_JunctionRotatedUsesSideLineAndLatchesOnce(t *testing.T) {
	r := newResolver()
	j := seg(path.Junction, 0, -100, geom.North)
	yaw := math.Pi / 2 // facing west, into the left corridor
	pos := geom.Vec3{X: -0.5, Z: -106.5}

	res := r.Resolve([]*path.Segment{j}, j, pos, yaw)
	if res.Constraint == nil || *res.Constraint != (Constraint{Axis: geom.AxisZ, Center: -106.5}) {
		t.Fatalf("constraint=%+v", res.Constraint)
	}
	if res.Event == nil || res.Event.Direction != geom.Left || res.Event.Junction != j {
		t.Fatalf("expected LEFT turn event, got %+v", res.Event)
	}
	if !j.HasTurned() {
		t.Fatalf("junction not latched")
	}

	for i := 0; i < 50; i++ {
		pos.X -= 0.2
		if res := r.Resolve([]*path.Segment{j}, j, pos, yaw); res.Event != nil {
			t.Fatalf("turn event fired again at tick %d", i)
		}
	}
}

func TestResolve_RightTurnDirection(t *testing.T) {
	r := newResolver()
	j := seg(path.Junction, 0, 0, geom.East)
	// East-facing junction: local +X is world +Z. Facing south = rotated right.
	res := r.Resolve([]*path.Segment{j}, j, geom.Vec3{X: 6.5, Z: 0.5}, math.Pi)
	if res.Event == nil || res.Event.Direction != geom.Right {
		t.Fatalf("expected RIGHT event, got %+v", res.Event)
	}
	if res.Constraint == nil || *res.Constraint != (Constraint{Axis: geom.AxisX, Center: 6.5}) {
		t.Fatalf("constraint=%+v", res.Constraint)
	}
}

func TestResolve_EventRequiresActiveJunctionAndDeadZone(t *testing.T) {
	r := newResolver()
	j := seg(path.Junction, 0, -100, geom.North)
	yaw := math.Pi / 2

	if res := r.Resolve([]*path.Segment{j}, nil, geom.Vec3{X: -2, Z: -106.5}, yaw); res.Event != nil {
		t.Fatalf("inactive junction must not emit")
	}
	if res := r.Resolve([]*path.Segment{j}, j, geom.Vec3{X: -0.05, Z: -106.5}, yaw); res.Event != nil {
		t.Fatalf("inside dead zone must not emit")
	}
	if j.HasTurned() {
		t.Fatalf("latched without an event")
	}
}

func TestFlags_BlockingNearFarWall(t *testing.T) {
	r := newResolver()
	j := seg(path.Junction, 0, -100, geom.North)
	segs := []*path.Segment{j}

	cases := []struct {
		name string
		pos  geom.Vec3
		yaw  float64
		want Flags
	}{
		{name: "approaching", pos: geom.Vec3{Z: -95}, yaw: 0, want: Flags{}},
		{name: "at wall aligned", pos: geom.Vec3{Z: -107}, yaw: 0, want: Flags{Blocked: true, TurnEligible: true}},
		{name: "at wall rotated", pos: geom.Vec3{Z: -107}, yaw: 1.2, want: Flags{TurnEligible: true}},
		{name: "down the side corridor", pos: geom.Vec3{X: -16, Z: -106.5}, yaw: math.Pi / 2, want: Flags{}},
	}
	for _, c := range cases {
		res := r.Resolve(segs, j, c.pos, c.yaw)
		if res.Flags != c.want {
			t.Fatalf("%s: flags=%+v want %+v", c.name, res.Flags, c.want)
		}
	}

	if res := r.Resolve(segs, nil, geom.Vec3{Z: -107}, 0); res.Flags != (Flags{}) {
		t.Fatalf("no active junction should clear flags, got %+v", res.Flags)
	}
}
