package runner

import (
	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/turn"
)

// Path event kinds.
const (
	EventSegmentSpawned = "SEGMENT_SPAWNED"
	EventSegmentRetired = "SEGMENT_RETIRED"
	EventTurnCommitted  = "TURN_COMMITTED"
	EventTurnDropped    = "TURN_DROPPED"
)

// PathEvent is one durable record of the path's history.
type PathEvent struct {
	Tick uint64 `json:"tick"`
	Kind string `json:"kind"`

	// Segment events; for turns, the junction.
	Seq         uint64       `json:"seq,omitempty"`
	SegmentKind string       `json:"segment_kind,omitempty"`
	Pos         geom.Vec3    `json:"pos"`
	Heading     geom.Heading `json:"heading"`

	// Turn events.
	Direction  string        `json:"direction,omitempty"`
	Requested  string        `json:"requested,omitempty"`
	NewHeading *geom.Heading `json:"new_heading,omitempty"`
	Cursor     *path.Cursor  `json:"cursor,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

func segmentEvent(kind string, tick uint64, s *path.Segment) PathEvent {
	return PathEvent{
		Tick:        tick,
		Kind:        kind,
		Seq:         s.Seq,
		SegmentKind: s.Kind.String(),
		Pos:         s.Pose.Position,
		Heading:     s.Pose.Heading,
	}
}

func turnEvent(c *turn.Commit) PathEvent {
	cur, next := c.Cursor, c.NewHeading
	return PathEvent{
		Tick:        c.Tick,
		Kind:        EventTurnCommitted,
		Seq:         c.Junction.Seq,
		SegmentKind: c.Junction.Kind.String(),
		Pos:         c.Junction.Pose.Position,
		Heading:     c.OldHeading,
		Direction:   c.Direction.String(),
		Requested:   c.Requested.String(),
		NewHeading:  &next,
		Cursor:      &cur,
	}
}

// eventCollector is the stream's lifecycle listener. It buffers the tick's
// events until the runner flushes them.
type eventCollector struct {
	pending []PathEvent
	spawned []*path.Segment
	retired []*path.Segment
}

func (c *eventCollector) OnSegmentSpawned(tick uint64, s *path.Segment) {
	c.pending = append(c.pending, segmentEvent(EventSegmentSpawned, tick, s))
	c.spawned = append(c.spawned, s)
}

func (c *eventCollector) OnSegmentRetired(tick uint64, s *path.Segment) {
	c.pending = append(c.pending, segmentEvent(EventSegmentRetired, tick, s))
	c.retired = append(c.retired, s)
}

func (c *eventCollector) add(ev PathEvent) { c.pending = append(c.pending, ev) }

// take returns and clears the buffered events.
func (c *eventCollector) take() (events []PathEvent, spawned, retired []*path.Segment) {
	events, spawned, retired = c.pending, c.spawned, c.retired
	c.pending, c.spawned, c.retired = nil, nil, nil
	return events, spawned, retired
}
