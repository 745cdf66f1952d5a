package turn

import (
	"errors"
	"log"

	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/sim/zone"
)

var ErrNoActiveJunction = errors.New("turn: no active junction")

// Commit describes one resolved fork.
type Commit struct {
	Tick       uint64
	Junction   *path.Segment
	Direction  geom.Direction
	Requested  geom.Direction
	OldHeading geom.Heading
	NewHeading geom.Heading
	Cursor     path.Cursor
}

// Coordinator turns an operator turn request plus the resolver's geometric
// turn event into a committed fork. Both must refer to the stream's current
// active junction; they may arrive on different ticks in either order.
type Coordinator struct {
	segLen   float64
	segWidth float64
	logger   *log.Logger

	junction  *path.Segment // junction the pending state belongs to
	armed     bool
	requested geom.Direction
	event     *zone.TurnEvent
	done      bool
}

func NewCoordinator(p tuning.Path, logger *log.Logger) *Coordinator {
	return &Coordinator{segLen: p.SegmentLength, segWidth: p.SegmentWidth, logger: logger}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// Armed reports whether a request is waiting for its turn event.
func (c *Coordinator) Armed() bool { return c.armed }

// sync drops pending state that belongs to a junction other than active.
func (c *Coordinator) sync(active *path.Segment) {
	if c.junction == active {
		return
	}
	c.junction = active
	c.armed = false
	c.event = nil
	c.done = false
}

// Request arms a turn. Only edges should be passed in; a request outside the
// eligible zone is ignored.
func (c *Coordinator) Request(active *path.Segment, dir geom.Direction, f zone.Flags) error {
	if active == nil {
		c.logf("turn %s dropped: %v", dir, ErrNoActiveJunction)
		return ErrNoActiveJunction
	}
	c.sync(active)
	if !f.TurnEligible || c.done {
		return nil
	}
	c.armed = true
	c.requested = dir
	return nil
}

// Observe records the resolver's turn event for the active junction.
func (c *Coordinator) Observe(active *path.Segment, ev *zone.TurnEvent) {
	c.sync(active)
	if ev == nil || ev.Junction != active || c.done {
		return
	}
	c.event = ev
}

// Update commits the fork once both halves are present.
func (c *Coordinator) Update(tick uint64, s *path.Stream) (*Commit, error) {
	active := s.ActiveJunction()
	c.sync(active)
	if !c.armed || c.event == nil {
		return nil, nil
	}
	if c.requested != c.event.Direction {
		c.logf("turn at junction %d: requested %s but traveler took %s", active.Seq, c.requested, c.event.Direction)
	}
	commit, err := c.Commit(tick, s, c.event.Direction)
	if err != nil {
		return nil, err
	}
	commit.Requested = c.requested
	c.armed = false
	c.event = nil
	c.done = true
	return commit, nil
}

// Commit recomputes the spawn cursor past the active junction and resumes
// the stream in the new direction.
func (c *Coordinator) Commit(tick uint64, s *path.Stream, dir geom.Direction) (*Commit, error) {
	j := s.ActiveJunction()
	if j == nil {
		c.logf("commit %s dropped: %v", dir, ErrNoActiveJunction)
		return nil, ErrNoActiveJunction
	}
	old := s.Cursor().Heading
	next := old.Turn(dir)

	L, W := c.segLen, c.segWidth
	center := j.Pose.Position.Add(old.Vector().Scale((L - W) / 2))
	perp := geom.Up.Cross(old.Vector()).Normalize()
	side := perp.Scale(float64(dir) * (L + W) / 2)
	cursor := path.Cursor{
		Position: center.Add(side).Add(next.Vector().Scale(L)),
		Heading:  next,
	}
	s.ResumeAt(tick, cursor)

	return &Commit{
		Tick:       tick,
		Junction:   j,
		Direction:  dir,
		Requested:  dir,
		OldHeading: old,
		NewHeading: next,
		Cursor:     cursor,
	}, nil
}
