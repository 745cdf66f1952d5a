package runner

import (
	"context"
	"time"

	"corridor.ai/internal/sim/input"
)

func (r *Runner) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(r.tune.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeObservers()
			return ctx.Err()
		case <-r.stop:
			r.closeObservers()
			return nil
		case req := <-r.observerJoin:
			r.handleObserverJoin(req)
		case id := <-r.observerLeave:
			r.handleObserverLeave(id)
		case req := <-r.stateReq:
			req.resp <- r.buildState(r.tick.Load(), nil, nil, nil, true)
		case <-ticker.C:
			r.stepInternal(r.input.Load())
		}
	}
}

func (r *Runner) Stop() { close(r.stop) }

// StepOnce advances the core by a single tick using the same ordering semantics as the server.
// It is primarily intended for deterministic replays/tests.
func (r *Runner) StepOnce(in input.Snapshot) (tick uint64, digest string) {
	tick = r.tick.Load()
	digest = r.stepInternal(in)
	return tick, digest
}

func sendLatest(ch chan []byte, b []byte) (dropped bool) {
	select {
	case ch <- b:
		return false
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
	return true
}
