package runner

import "corridor.ai/internal/sim/motion"

// Metrics is a thread-safe read-only view of key runner signals.
// It is updated from the runner loop goroutine and read from HTTP handlers/tests.
type Metrics struct {
	Tick uint64 `json:"tick"` // last stepped tick

	Traveler     motion.Traveler `json:"traveler"`
	Blocked      bool            `json:"blocked"`
	TurnEligible bool            `json:"turn_eligible"`

	Segments       int    `json:"segments"`
	SpawnCount     int    `json:"spawn_count"`
	Halted         bool   `json:"halted"`
	ActiveJunction uint64 `json:"active_junction"`
	Heading        string `json:"heading"`

	SegmentsSpawned uint64 `json:"segments_spawned_total"`
	SegmentsRetired uint64 `json:"segments_retired_total"`
	TurnsCommitted  uint64 `json:"turns_committed_total"`
	TurnsDropped    uint64 `json:"turns_dropped_total"`

	Observers     int    `json:"observers"`
	ObserverDrops uint64 `json:"observer_drops_total"`

	InputSeq uint64  `json:"input_seq"`
	StepMS   float64 `json:"step_ms"`
}

func (r *Runner) publishMetrics(tick uint64, stepMS float64) {
	var activeSeq uint64
	if j := r.stream.ActiveJunction(); j != nil {
		activeSeq = j.Seq
	}
	r.metrics.Store(Metrics{
		Tick:            tick,
		Traveler:        r.traveler,
		Blocked:         r.zone.Flags.Blocked,
		TurnEligible:    r.zone.Flags.TurnEligible,
		Segments:        r.stream.Len(),
		SpawnCount:      r.stream.SpawnCount(),
		Halted:          r.stream.Halted(),
		ActiveJunction:  activeSeq,
		Heading:         r.stream.Cursor().Heading.String(),
		SegmentsSpawned: r.spawned,
		SegmentsRetired: r.retired,
		TurnsCommitted:  r.turns,
		TurnsDropped:    r.turnsDropped,
		Observers:       len(r.observers),
		ObserverDrops:   r.observerDrops,
		InputSeq:        r.lastInputSeq,
		StepMS:          stepMS,
	})
}

func (r *Runner) Metrics() Metrics {
	if r == nil {
		return Metrics{}
	}
	v := r.metrics.Load()
	if v == nil {
		return Metrics{}
	}
	m, ok := v.(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}
