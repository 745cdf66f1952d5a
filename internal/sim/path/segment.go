package path

import (
	"corridor.ai/internal/sim/geom"
)

type Kind int

const (
	Normal Kind = iota + 1
	Junction
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "NORMAL"
	case Junction:
		return "JUNCTION"
	default:
		return "UNKNOWN"
	}
}

// Segment is one fixed-pose unit of generated path. Its pose never changes
// after spawn; the turn latch is the only mutable field.
type Segment struct {
	Seq       uint64
	Kind      Kind
	Pose      geom.Pose
	SpawnTick uint64

	hasTurned bool
}

func (s *Segment) HasTurned() bool { return s.hasTurned }

// Latch sets the one-shot turn latch. It reports true only for the call that
// flipped it.
func (s *Segment) Latch() bool {
	if s.hasTurned {
		return false
	}
	s.hasTurned = true
	return true
}

// Listener receives segment lifecycle notifications. Mesh construction lives
// behind it.
type Listener interface {
	OnSegmentSpawned(tick uint64, s *Segment)
	OnSegmentRetired(tick uint64, s *Segment)
}

// Cursor is where the next segment will be spawned.
type Cursor struct {
	Position geom.Vec3    `json:"position"`
	Heading  geom.Heading `json:"heading"`
}
