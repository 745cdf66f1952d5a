package path

import (
	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/tuning"
)

// Stream owns the active segments and the spawn cursor.
// All methods must be called from the tick goroutine.
type Stream struct {
	segLen         float64
	renderDistance int
	sequenceLength int

	cursor     Cursor
	segments   []*Segment // oldest first
	spawnCount int
	halted     bool
	active     *Segment
	nextSeq    uint64

	listener Listener
}

func NewStream(p tuning.Path, start Cursor) *Stream {
	return &Stream{
		segLen:         p.SegmentLength,
		renderDistance: p.RenderDistance,
		sequenceLength: p.SequenceLength,
		cursor:         start,
	}
}

// SetListener installs the lifecycle listener (may be nil).
func (s *Stream) SetListener(l Listener) { s.listener = l }

func (s *Stream) Cursor() Cursor           { return s.cursor }
func (s *Stream) Halted() bool             { return s.halted }
func (s *Stream) SpawnCount() int          { return s.spawnCount }
func (s *Stream) Len() int                 { return len(s.segments) }
func (s *Stream) ActiveJunction() *Segment { return s.active }
func (s *Stream) Segments() []*Segment     { return s.segments }
func (s *Stream) SegmentLength() float64   { return s.segLen }

// SpawnNext places one segment at the cursor and advances it. Every
// sequenceLength-th spawn is a junction, after which streaming halts until a
// turn resumes it.
func (s *Stream) SpawnNext(tick uint64) *Segment {
	if s.halted {
		return nil
	}
	s.spawnCount++
	kind := Normal
	if s.spawnCount%s.sequenceLength == 0 {
		kind = Junction
	}
	s.nextSeq++
	seg := &Segment{
		Seq:       s.nextSeq,
		Kind:      kind,
		Pose:      geom.Pose{Position: s.cursor.Position, Heading: s.cursor.Heading},
		SpawnTick: tick,
	}
	s.cursor.Position = s.cursor.Position.Add(s.cursor.Heading.Vector().Scale(s.segLen))
	s.segments = append(s.segments, seg)
	if kind == Junction {
		s.active = seg
		s.halted = true
	}
	if s.listener != nil {
		s.listener.OnSegmentSpawned(tick, seg)
	}
	return seg
}

// Maintain keeps the render buffer filled ahead of the traveler and retires
// at most one stale segment per call. Nothing happens while halted at an
// unresolved fork.
func (s *Stream) Maintain(tick uint64, traveler geom.Vec3) {
	if s.halted {
		return
	}
	buffer := float64(s.renderDistance) * s.segLen
	for !s.halted && traveler.Dist(s.cursor.Position) < buffer {
		s.SpawnNext(tick)
	}

	if len(s.segments) == 0 {
		return
	}
	retire := float64(s.renderDistance+2) * s.segLen
	oldest := s.segments[0]
	if traveler.Dist(oldest.Pose.Position) <= retire {
		return
	}
	s.segments[0] = nil
	s.segments = s.segments[1:]
	if s.active == oldest {
		s.active = nil
	}
	if s.listener != nil {
		s.listener.OnSegmentRetired(tick, oldest)
	}
}

// ResumeAt moves the cursor past a resolved fork, restarts the pattern
// count and spawns the first segment of the new run.
func (s *Stream) ResumeAt(tick uint64, c Cursor) *Segment {
	s.cursor = c
	s.spawnCount = 0
	s.halted = false
	return s.SpawnNext(tick)
}
