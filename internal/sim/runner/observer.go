package runner

import (
	"context"
	"encoding/json"

	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/turn"
)

// ObserverJoinRequest registers a read-only observer session that receives
// one STATE frame per tick on Out.
//
// All observer state is maintained by the runner loop goroutine.
type ObserverJoinRequest struct {
	SessionID string
	Out       chan []byte
}

type observerClient struct {
	id  string
	out chan []byte

	// needsFull forces a resync frame carrying every active segment
	// (first frame, or after a dropped frame lost spawn/retire deltas).
	needsFull bool
}

type stateReq struct {
	resp chan protocol.StateMsg
}

// RequestState asks the loop for a full STATE snapshot. Requires Run.
func (r *Runner) RequestState(ctx context.Context) (protocol.StateMsg, error) {
	req := stateReq{resp: make(chan protocol.StateMsg, 1)}
	select {
	case r.stateReq <- req:
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
	select {
	case st := <-req.resp:
		return st, nil
	case <-ctx.Done():
		return protocol.StateMsg{}, ctx.Err()
	}
}

func (r *Runner) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.Out == nil {
		return
	}
	// Replace existing session id if any.
	if old := r.observers[req.SessionID]; old != nil {
		close(old.out)
	}
	r.observers[req.SessionID] = &observerClient{id: req.SessionID, out: req.Out, needsFull: true}
}

func (r *Runner) handleObserverLeave(sessionID string) {
	c := r.observers[sessionID]
	if c == nil {
		return
	}
	close(c.out)
	delete(r.observers, sessionID)
}

func (r *Runner) closeObservers() {
	for id := range r.observers {
		r.handleObserverLeave(id)
	}
}

func (r *Runner) stepObservers(nowTick uint64, spawned, retired []*path.Segment, commit *turn.Commit) {
	if len(r.observers) == 0 {
		return
	}
	delta := r.buildState(nowTick, spawned, retired, commit, false)
	deltaBytes, err := json.Marshal(delta)
	if err != nil {
		r.logf("tick %d: marshal state: %v", nowTick, err)
		return
	}
	var fullBytes []byte
	for _, c := range r.observers {
		b := deltaBytes
		if c.needsFull {
			if fullBytes == nil {
				full := delta
				full.Resync = true
				full.Segments = r.segmentRefs()
				if fullBytes, err = json.Marshal(full); err != nil {
					continue
				}
			}
			b = fullBytes
		}
		if sendLatest(c.out, b) {
			r.observerDrops++
			c.needsFull = true
			continue
		}
		c.needsFull = false
	}
}

// buildState assembles a STATE frame. Loop goroutine or tests only; the HTTP
// layer goes through RequestState.
func (r *Runner) buildState(nowTick uint64, spawned, retired []*path.Segment, commit *turn.Commit, full bool) protocol.StateMsg {
	t := r.traveler
	c := r.stream.Cursor()
	st := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		Traveler: protocol.TravelerState{
			Pos:   segmentRefPos(t.Position),
			Yaw:   t.Yaw,
			Roll:  t.Roll,
			Speed: t.Speed,
		},
		Flags: protocol.FlagsState{
			Blocked:      r.zone.Flags.Blocked,
			TurnEligible: r.zone.Flags.TurnEligible,
		},
		Cursor: protocol.CursorRef{Pos: segmentRefPos(c.Position), Heading: c.Heading.String()},
		Halted: r.stream.Halted(),
	}
	if k := r.zone.Constraint; k != nil {
		st.Constraint = &protocol.ConstraintRef{Axis: k.Axis.String(), Center: k.Center}
	}
	if j := r.stream.ActiveJunction(); j != nil {
		st.ActiveJunction = j.Seq
	}
	for _, s := range spawned {
		st.Spawned = append(st.Spawned, segmentRef(s))
	}
	for _, s := range retired {
		st.Retired = append(st.Retired, s.Seq)
	}
	if commit != nil {
		st.Turn = &protocol.TurnRef{
			Junction:  commit.Junction.Seq,
			Direction: commit.Direction.String(),
			Heading:   commit.NewHeading.String(),
		}
	}
	if full {
		st.Resync = true
		st.Segments = r.segmentRefs()
	}
	return st
}

func (r *Runner) segmentRefs() []protocol.SegmentRef {
	segs := r.stream.Segments()
	out := make([]protocol.SegmentRef, 0, len(segs))
	for _, s := range segs {
		out = append(out, segmentRef(s))
	}
	return out
}

func segmentRef(s *path.Segment) protocol.SegmentRef {
	return protocol.SegmentRef{
		Seq:       s.Seq,
		Kind:      s.Kind.String(),
		Pos:       segmentRefPos(s.Pose.Position),
		Heading:   s.Pose.Heading.String(),
		SpawnTick: s.SpawnTick,
		Turned:    s.HasTurned(),
	}
}
