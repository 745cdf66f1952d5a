package motion

import (
	"math"

	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/sim/zone"
)

// snapEpsilon is where the yaw lerp gives up and lands exactly on the
// cardinal.
const snapEpsilon = 1e-4

// Traveler is the moving viewpoint. Yaw 0 faces -Z; positive yaw turns left.
type Traveler struct {
	Position geom.Vec3 `json:"position"`
	Yaw      float64   `json:"yaw"`
	Roll     float64   `json:"roll"`
	Speed    float64   `json:"speed"`
}

type Mover struct {
	m tuning.Movement
}

func NewMover(m tuning.Movement) *Mover { return &Mover{m: m} }

// Step advances the traveler by one tick. c may be nil when the traveler is
// outside every zone; then no lane assist applies.
func (mv *Mover) Step(t *Traveler, in input.Snapshot, c *zone.Constraint, f zone.Flags) {
	m := mv.m

	target := input.Sanitize(in.Momentum) * m.MaxSpeed
	if f.Blocked {
		target = 0
	}
	t.Speed += (target - t.Speed) * m.SpeedSmoothing

	if !f.Blocked {
		t.Position = t.Position.Add(geom.Forward(t.Yaw).Scale(t.Speed))
	}

	if c != nil {
		v := geom.Clamp(c.Axis.Of(t.Position), c.Center-m.DeviationMax, c.Center+m.DeviationMax)
		if t.Speed > m.MovingEpsilon {
			v += (c.Center - v) * m.CenteringStrength
		}
		t.Position = c.Axis.With(t.Position, v)
	}

	switch in.Turn {
	case input.Left:
		t.Yaw += m.TurnRate
		t.Roll = geom.Lerp(t.Roll, m.RollMax, m.RollLerp)
	case input.Right:
		t.Yaw -= m.TurnRate
		t.Roll = geom.Lerp(t.Roll, -m.RollMax, m.RollLerp)
	default:
		t.Roll = geom.Lerp(t.Roll, 0, m.RollLerp)
		snap := geom.NearestQuarter(t.Yaw)
		if math.Abs(snap-t.Yaw) < m.TurnSnapTolerance {
			t.Yaw = geom.Lerp(t.Yaw, snap, m.SnapLerp)
			if math.Abs(snap-t.Yaw) < snapEpsilon {
				t.Yaw = snap
			}
		}
	}
}
