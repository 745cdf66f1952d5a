package geom

import (
	"fmt"
	"math"
)

// Pose is a fixed world placement: a position plus a cardinal heading.
// In the local frame -Z is forward, +X is right and +Y is up.
type Pose struct {
	Position Vec3    `json:"position"`
	Heading  Heading `json:"heading"`
}

// Axis names a horizontal coordinate axis.
type Axis int

const (
	AxisX Axis = iota
	AxisZ
)

func (a Axis) String() string {
	if a == AxisZ {
		return "Z"
	}
	return "X"
}

// Of returns the component of v along a.
func (a Axis) Of(v Vec3) float64 {
	if a == AxisZ {
		return v.Z
	}
	return v.X
}

// With returns v with its a component replaced by value.
func (a Axis) With(v Vec3, value float64) Vec3 {
	if a == AxisZ {
		v.Z = value
	} else {
		v.X = value
	}
	return v
}

// rotateQuarter rotates v about Y by q quarter turns counter-clockwise.
// Exact for every q: only sign flips and swaps.
func rotateQuarter(v Vec3, q int) Vec3 {
	switch NormalizeHeading(q) {
	case North:
		return v
	case West:
		return Vec3{X: v.Z, Y: v.Y, Z: -v.X}
	case South:
		return Vec3{X: -v.X, Y: v.Y, Z: -v.Z}
	default:
		return Vec3{X: -v.Z, Y: v.Y, Z: v.X}
	}
}

// LocalToWorld maps a point in the pose's frame to world coordinates.
func LocalToWorld(p Pose, local Vec3) Vec3 {
	return p.Position.Add(rotateQuarter(local, int(p.Heading)))
}

// WorldToLocal inverse-transforms a world point into the pose's frame:
// translate by -position, then rotate by the inverse heading.
func WorldToLocal(p Pose, world Vec3) Vec3 {
	return rotateQuarter(world.Sub(p.Position), -int(p.Heading))
}

// Compose places a child pose at a local offset of the parent, turned by
// turn quarter turns relative to the parent heading.
func Compose(parent Pose, offset Vec3, turn int) Pose {
	return Pose{
		Position: LocalToWorld(parent, offset),
		Heading:  NormalizeHeading(int(parent.Heading) + turn),
	}
}

// LocalHeadingAngle is the traveler's yaw relative to the pose, in (-π, π].
// Positive means rotated to the left of the pose's forward direction.
func LocalHeadingAngle(p Pose, travelerYaw float64) float64 {
	return NormalizeAngle(travelerYaw - p.Heading.Yaw())
}

// Bounds are half extents of a local axis-aligned box in the XZ plane.
type Bounds struct {
	HalfX float64
	HalfZ float64
}

// Contains uses strict inequalities: a point exactly on an edge is outside.
func (b Bounds) Contains(local Vec3) bool {
	return math.Abs(local.X) < b.HalfX && math.Abs(local.Z) < b.HalfZ
}

// WorldAxis reports which world axis a local axis of the pose lies along.
// It panics when the rotated axis is not world-aligned.
func WorldAxis(p Pose, local Axis) Axis {
	unit := Vec3{X: 1}
	if local == AxisZ {
		unit = Vec3{Z: 1}
	}
	d := unit.RotateY(p.Heading.Yaw())
	ax, az := math.Abs(d.X), math.Abs(d.Z)
	switch {
	case math.Abs(ax-1) < snapEpsilon && az < snapEpsilon:
		return AxisX
	case math.Abs(az-1) < snapEpsilon && ax < snapEpsilon:
		return AxisZ
	default:
		panic(fmt.Sprintf("geom: local %s axis of heading %d is not world-aligned (%v)", local, int(p.Heading), d))
	}
}

// WorldLine converts the local line "local axis coordinate == value" into the
// world axis it constrains and that axis' world coordinate.
func WorldLine(p Pose, local Axis, value float64) (Axis, float64) {
	axis := WorldAxis(p, local)
	pt := local.With(Vec3{}, value)
	return axis, axis.Of(LocalToWorld(p, pt))
}
