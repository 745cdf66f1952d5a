package runner

import (
	"time"

	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/turn"
)

// stepInternal runs one tick in fixed order: resolve zone, turn request and
// commit, movement, stream maintenance, then logging and observers.
func (r *Runner) stepInternal(in input.Snapshot) string {
	stepStart := time.Now()
	nowTick := r.tick.Load()

	active := r.stream.ActiveJunction()
	res := r.resolver.Resolve(r.stream.Segments(), active, r.traveler.Position, r.traveler.Yaw)
	r.zone = res

	if dir, ok := r.edges.Edge(in.Turn, res.Flags.TurnEligible); ok {
		if err := r.coord.Request(active, dir, res.Flags); err != nil {
			r.turnsDropped++
			r.events.add(PathEvent{
				Tick:      nowTick,
				Kind:      EventTurnDropped,
				Pos:       r.traveler.Position,
				Requested: dir.String(),
				Reason:    err.Error(),
			})
		}
	}
	r.coord.Observe(active, res.Event)
	var commit *turn.Commit
	if c, err := r.coord.Update(nowTick, r.stream); err != nil {
		r.logf("tick %d: turn commit: %v", nowTick, err)
	} else if c != nil {
		commit = c
		r.turns++
		r.events.add(turnEvent(c))
		r.logf("tick %d: turned %s at junction %d, heading %s", nowTick, c.Direction, c.Junction.Seq, c.NewHeading)
	}

	r.mover.Step(&r.traveler, in, res.Constraint, res.Flags)
	r.stream.Maintain(nowTick, r.traveler.Position)

	events, spawned, retired := r.events.take()
	r.spawned += uint64(len(spawned))
	r.retired += uint64(len(retired))

	digest := r.stateDigest(nowTick)
	if r.tickLogger != nil {
		if err := r.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Input: in, Events: events, Digest: digest}); err != nil {
			r.logf("tick %d: tick log: %v", nowTick, err)
		}
	}
	if r.eventSink != nil {
		for _, ev := range events {
			_ = r.eventSink.WriteEvent(ev)
		}
	}

	r.stepObservers(nowTick, spawned, retired, commit)

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	r.tick.Add(1)
	r.lastInputSeq = in.Seq
	r.publishMetrics(nowTick, stepMS)
	return digest
}
