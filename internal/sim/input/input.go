package input

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"corridor.ai/internal/sim/geom"
)

type TurnCommand string

const (
	Center TurnCommand = "CENTER"
	Left   TurnCommand = "LEFT"
	Right  TurnCommand = "RIGHT"
)

var ErrUnknownTurn = errors.New("unknown turn command")

// ParseTurn accepts the three commands in any case. An empty string is CENTER.
func ParseTurn(s string) (TurnCommand, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(Center):
		return Center, nil
	case string(Left):
		return Left, nil
	case string(Right):
		return Right, nil
	default:
		return Center, fmt.Errorf("parse turn %q: %w", s, ErrUnknownTurn)
	}
}

// Direction maps LEFT/RIGHT to a fork side; CENTER has none.
func (c TurnCommand) Direction() (geom.Direction, bool) {
	switch c {
	case Left:
		return geom.Left, true
	case Right:
		return geom.Right, true
	default:
		return 0, false
	}
}

// Sanitize clamps momentum into [0,1]. NaN becomes 0.
func Sanitize(momentum float64) float64 {
	if math.IsNaN(momentum) {
		return 0
	}
	return geom.Clamp(momentum, 0, 1)
}

// Snapshot is the input read once at the start of a tick.
type Snapshot struct {
	Momentum float64     `json:"momentum"`
	Turn     TurnCommand `json:"turn"`
	Seq      uint64      `json:"seq"`
}

// Latest holds the most recent operator input. Writers overwrite; the tick
// loop reads whatever is current. There is no queue.
type Latest struct {
	mu   sync.Mutex
	snap Snapshot
}

func NewLatest() *Latest {
	return &Latest{snap: Snapshot{Turn: Center}}
}

// Store sanitizes and publishes a new value, returning its sequence number.
func (l *Latest) Store(momentum float64, turn TurnCommand) uint64 {
	if turn != Left && turn != Right {
		turn = Center
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snap = Snapshot{Momentum: Sanitize(momentum), Turn: turn, Seq: l.snap.Seq + 1}
	return l.snap.Seq
}

func (l *Latest) Load() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// EdgeDetector turns a held turn command into one-shot requests.
//
// When turn eligibility rises the previous command is reset to CENTER, so a
// lean already held while entering the zone still produces an edge.
type EdgeDetector struct {
	prev     TurnCommand
	eligible bool
}

func (e *EdgeDetector) Edge(cmd TurnCommand, eligible bool) (geom.Direction, bool) {
	if eligible && !e.eligible {
		e.prev = Center
	}
	e.eligible = eligible
	prev := e.prev
	e.prev = cmd
	if cmd == prev {
		return 0, false
	}
	return cmd.Direction()
}
