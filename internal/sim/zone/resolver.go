package zone

import (
	"math"

	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
)

// Constraint holds the traveler to a lateral line: Axis is the world axis
// whose coordinate is clamped, Center the line's coordinate on that axis.
type Constraint struct {
	Axis   geom.Axis `json:"axis"`
	Center float64   `json:"center"`
}

type Flags struct {
	Blocked      bool `json:"blocked"`
	TurnEligible bool `json:"turn_eligible"`
}

// TurnEvent is emitted once per junction, when the traveler has rotated into
// a side corridor and drifted past the dead zone.
type TurnEvent struct {
	Junction  *path.Segment
	Direction geom.Direction
}

// Result is recomputed from scratch every tick; nothing carries over.
type Result struct {
	Constraint *Constraint
	Segment    *path.Segment
	Flags      Flags
	Event      *TurnEvent
}

type Resolver struct {
	z        tuning.Zones
	farWall  float64
	normal   geom.Bounds
	junction geom.Bounds
}

func NewResolver(p tuning.Path, z tuning.Zones) *Resolver {
	return &Resolver{
		z:        z,
		farWall:  -p.SegmentLength / 2,
		normal:   geom.Bounds{HalfX: z.NormalHalfX, HalfZ: z.HalfZ},
		junction: geom.Bounds{HalfX: z.JunctionHalfX, HalfZ: z.HalfZ},
	}
}

// Bounds returns the local zone box for a segment kind.
func (r *Resolver) Bounds(k path.Kind) geom.Bounds {
	if k == path.Junction {
		return r.junction
	}
	return r.normal
}

// Resolve finds the segment holding the traveler and derives this tick's
// constraint and flags. A NORMAL segment always wins over a JUNCTION that
// also contains the point, so junction matches stay provisional until the
// scan ends. active is the stream's active junction (may be nil).
func (r *Resolver) Resolve(segments []*path.Segment, active *path.Segment, pos geom.Vec3, yaw float64) Result {
	var (
		res     Result
		sideX   float64
		sideway bool
	)
	for _, seg := range segments {
		local := geom.WorldToLocal(seg.Pose, pos)
		if !r.Bounds(seg.Kind).Contains(local) {
			continue
		}
		if seg.Kind == path.Normal {
			res.Constraint = r.worldConstraint(seg.Pose, geom.AxisX, 0)
			res.Segment = seg
			sideway = false
			break
		}
		if res.Constraint != nil {
			continue
		}

		res.Segment = seg
		angle := geom.LocalHeadingAngle(seg.Pose, yaw)
		if math.Abs(angle) < r.z.AlignedAngle {
			res.Constraint = r.worldConstraint(seg.Pose, geom.AxisX, 0)
			continue
		}
		res.Constraint = r.worldConstraint(seg.Pose, geom.AxisZ, -r.z.JunctionSideOffset)
		sideway, sideX = true, local.X
	}

	// The latch is only consumed once the junction has actually won the scan.
	if sideway && res.Segment == active && math.Abs(sideX) > r.z.TurnTriggerDeadZone && active.Latch() {
		dir := geom.Right
		if sideX < 0 {
			dir = geom.Left
		}
		res.Event = &TurnEvent{Junction: active, Direction: dir}
	}
	res.Flags = r.flags(active, pos, yaw)
	return res
}

func (r *Resolver) worldConstraint(p geom.Pose, local geom.Axis, value float64) *Constraint {
	axis, center := geom.WorldLine(p, local, value)
	return &Constraint{Axis: axis, Center: center}
}

// flags derives blocked/turn-eligible from the active junction's far wall.
func (r *Resolver) flags(active *path.Segment, pos geom.Vec3, yaw float64) Flags {
	if active == nil {
		return Flags{}
	}
	local := geom.WorldToLocal(active.Pose, pos)
	if math.Abs(local.Z-r.farWall) >= r.z.BlockTriggerDistance || math.Abs(local.X) >= r.z.BlockLateralRange {
		return Flags{}
	}
	if math.Abs(geom.LocalHeadingAngle(active.Pose, yaw)) < r.z.AlignedAngle {
		return Flags{Blocked: true, TurnEligible: true}
	}
	return Flags{TurnEligible: true}
}
