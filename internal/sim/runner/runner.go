package runner

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/geom"
	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/motion"
	"corridor.ai/internal/sim/path"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/sim/turn"
	"corridor.ai/internal/sim/zone"
)

// Runner is the single-threaded owner of the path core.
// All core state must be accessed only from the runner loop goroutine.
type Runner struct {
	tune tuning.Tuning
	log  *log.Logger

	tick atomic.Uint64

	stream   *path.Stream
	resolver *zone.Resolver
	coord    *turn.Coordinator
	mover    *motion.Mover
	edges    input.EdgeDetector

	traveler motion.Traveler
	zone     zone.Result
	events   eventCollector

	input *input.Latest

	observers     map[string]*observerClient
	observerJoin  chan ObserverJoinRequest
	observerLeave chan string
	stateReq      chan stateReq
	stop          chan struct{}

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger TickLogger
	eventSink  EventSink

	spawned       uint64
	retired       uint64
	turns         uint64
	turnsDropped  uint64
	observerDrops uint64
	lastInputSeq  uint64

	metrics atomic.Value // Metrics
}

type Config struct {
	Tuning tuning.Tuning
	Logger *log.Logger

	// Start is the first spawn cursor; the traveler starts on it facing the
	// same way. Zero value: origin, heading North.
	Start path.Cursor

	TickLogger TickLogger
	EventSink  EventSink
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type EventSink interface {
	WriteEvent(ev PathEvent) error
}

// TickLoggers fans one tick out to several loggers.
type TickLoggers []TickLogger

func (ls TickLoggers) WriteTick(entry TickLogEntry) error {
	var errs []error
	for _, l := range ls {
		if err := l.WriteTick(entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type EventSinks []EventSink

func (ss EventSinks) WriteEvent(ev PathEvent) error {
	var errs []error
	for _, s := range ss {
		if err := s.WriteEvent(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TickLogEntry is everything needed to replay one tick: the input the tick
// consumed and the digest of the state it produced.
type TickLogEntry struct {
	Tick   uint64         `json:"tick"`
	Input  input.Snapshot `json:"input"`
	Events []PathEvent    `json:"events,omitempty"`
	Digest string         `json:"digest"`
}

func New(cfg Config) (*Runner, error) {
	t := cfg.Tuning
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}

	r := &Runner{
		tune:          t,
		log:           cfg.Logger,
		resolver:      zone.NewResolver(t.Path, t.Zones),
		coord:         turn.NewCoordinator(t.Path, cfg.Logger),
		mover:         motion.NewMover(t.Movement),
		input:         input.NewLatest(),
		observers:     map[string]*observerClient{},
		observerJoin:  make(chan ObserverJoinRequest, 16),
		observerLeave: make(chan string, 16),
		stateReq:      make(chan stateReq, 4),
		stop:          make(chan struct{}),
		tickLogger:    cfg.TickLogger,
		eventSink:     cfg.EventSink,
	}
	r.stream = path.NewStream(t.Path, cfg.Start)
	r.stream.SetListener(&r.events)
	r.traveler = motion.Traveler{
		Position: cfg.Start.Position,
		Yaw:      cfg.Start.Heading.Yaw(),
	}

	// Prime the buffer; these spawns are reported with tick 0.
	r.stream.Maintain(0, r.traveler.Position)
	r.publishMetrics(0, 0)
	return r, nil
}

func (r *Runner) logf(format string, args ...any) {
	if r.log != nil {
		r.log.Printf(format, args...)
	}
}

// Input is the latest-value store operator transports write into.
func (r *Runner) Input() *input.Latest { return r.input }

func (r *Runner) Tuning() tuning.Tuning { return r.tune }

// PathParams is the geometry clients need to draw the corridor.
func (r *Runner) PathParams() protocol.PathParams {
	return protocol.PathParams{
		TickRateHz:     r.tune.TickRateHz,
		SegmentLength:  r.tune.Path.SegmentLength,
		SegmentWidth:   r.tune.Path.SegmentWidth,
		RenderDistance: r.tune.Path.RenderDistance,
		SequenceLength: r.tune.Path.SequenceLength,
	}
}

func (r *Runner) CurrentTick() uint64 { return r.tick.Load() }

func (r *Runner) ObserverJoin() chan<- ObserverJoinRequest { return r.observerJoin }
func (r *Runner) ObserverLeave() chan<- string              { return r.observerLeave }

// Traveler returns a copy of the traveler. Loop goroutine or tests only.
func (r *Runner) Traveler() motion.Traveler { return r.traveler }

// Stream exposes the segment stream. Loop goroutine or tests only.
func (r *Runner) Stream() *path.Stream { return r.stream }

// Zone returns the last tick's zone resolution. Loop goroutine or tests only.
func (r *Runner) Zone() zone.Result { return r.zone }

func segmentRefPos(v geom.Vec3) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }
