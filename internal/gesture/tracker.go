// Package gesture turns per-frame body pose landmarks into operator
// telemetry: walking momentum from shoulder bounce, a lean turn command from
// the nose position, and arm angles for the dashboard.
package gesture

import (
	"math"

	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/tuning"
)

// Landmark is one normalized pose point: X grows to the right and Y grows
// downward, both in [0,1] image space.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Frame is one pose sample. Empty Landmarks means nobody was detected.
type Frame struct {
	TimestampMS int64      `json:"t_ms"`
	Landmarks   []Landmark `json:"landmarks,omitempty"`
}

// Pose landmark indices (33-point body model).
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16

	minLandmarks = RightWrist + 1
)

const (
	StatusNoPlayer    = "NO PLAYER"
	StatusStepCenter  = "STEP CENTER"
	StatusCalibrating = "CALIBRATING"
	StatusIdle        = "IDLE"
	StatusWalking     = "WALKING"
)

// Tracker is the stateful pose pipeline. Not safe for concurrent use.
type Tracker struct {
	cfg tuning.Gesture

	calibrating bool
	calFrames   int
	maxNoise    float64
	threshold   float64

	prevY   float64
	hasPrev bool

	momentum    float64
	steps       int
	consecutive int
	walking     bool
	lastStepMS  int64
	hasStepped  bool
}

func NewTracker(cfg tuning.Gesture) *Tracker {
	return &Tracker{
		cfg:         cfg,
		calibrating: true,
		threshold:   cfg.BounceDefault,
	}
}

// Calibrated reports whether the bounce threshold has been measured.
func (t *Tracker) Calibrated() bool { return !t.calibrating }

// Threshold is the current shoulder-bounce threshold.
func (t *Tracker) Threshold() float64 { return t.threshold }

// Update consumes one frame and returns the telemetry to send for it.
func (t *Tracker) Update(f Frame) protocol.TelemetryMsg {
	msg := protocol.TelemetryMsg{
		Type:            protocol.TypeTelemetry,
		ProtocolVersion: protocol.Version,
		Status:          StatusNoPlayer,
		Turn:            string(input.Center),
	}
	defer func() {
		msg.Steps = t.steps
		msg.Momentum = round2(t.momentum)
	}()

	if len(f.Landmarks) < minLandmarks {
		return msg
	}
	lm := f.Landmarks
	noseX := lm[Nose].X

	lockL, lockR := t.cfg.ActiveLeft, t.cfg.ActiveRight
	if t.calibrating {
		lockL, lockR = t.cfg.CalibrationLeft, t.cfg.CalibrationRight
	}
	if noseX < lockL || noseX > lockR {
		msg.Status = StatusStepCenter
		return msg
	}

	shoulderY := (lm[LeftShoulder].Y + lm[RightShoulder].Y) / 2
	delta := math.Abs(shoulderY - t.prevY)

	if t.calibrating {
		t.calFrames++
		// The first locked frame has no previous sample to diff against.
		if t.hasPrev && delta > t.maxNoise {
			t.maxNoise = delta
		}
		msg.Status = StatusCalibrating
		msg.Calibration = round2(math.Min(1, float64(t.calFrames)/float64(t.cfg.CalibrationFrames)))
		if t.calFrames > t.cfg.CalibrationFrames {
			t.threshold = clamp(t.maxNoise*t.cfg.NoiseMultiplier, t.cfg.BounceMin, t.cfg.BounceMax)
			t.calibrating = false
		}
	} else {
		t.walk(f.TimestampMS, shoulderY, delta)
		msg.Status = StatusIdle
		if t.walking {
			msg.Status = StatusWalking
		}
		msg.Turn = string(t.lean(noseX))
		msg.LArm = ArmAngle(lm[LeftShoulder], lm[LeftWrist], t.cfg.ArmDeadZone)
		msg.RArm = ArmAngle(lm[RightShoulder], lm[RightWrist], t.cfg.ArmDeadZone)
		msg.LWiper = WiperAngle(lm[LeftElbow], lm[LeftWrist])
		msg.RWiper = WiperAngle(lm[RightElbow], lm[RightWrist])
	}

	t.prevY = shoulderY
	t.hasPrev = true
	return msg
}

func (t *Tracker) walk(nowMS int64, shoulderY, delta float64) {
	sinceStep := func() int64 {
		if !t.hasStepped {
			return math.MaxInt64
		}
		return nowMS - t.lastStepMS
	}
	if delta > t.threshold {
		t.momentum += t.cfg.MomentumStep
		movingDown := shoulderY > t.prevY
		if movingDown && sinceStep() > int64(t.cfg.StepCooldownMS) {
			t.steps++
			t.consecutive++
			t.lastStepMS = nowMS
			t.hasStepped = true
			if t.consecutive >= t.cfg.StartupSteps {
				t.walking = true
			}
		}
	} else {
		t.momentum *= t.cfg.MomentumDecay
		if sinceStep() > int64(t.cfg.StopTimeoutMS) {
			t.consecutive = 0
			t.walking = false
		}
	}
	t.momentum = clamp(t.momentum, 0, 1)
}

func (t *Tracker) lean(noseX float64) input.TurnCommand {
	switch {
	case noseX < t.cfg.TurnLeftTrigger:
		return input.Left
	case noseX > t.cfg.TurnRightTrigger:
		return input.Right
	default:
		return input.Center
	}
}

// ArmAngle maps how far the wrist is raised relative to the shoulder onto
// 0 (down) .. 180 (overhead). Lifts under deadZone read as 0.
func ArmAngle(shoulder, wrist Landmark, deadZone float64) int {
	lift := (shoulder.Y - wrist.Y) + 0.4
	if lift < deadZone {
		return 0
	}
	return int(clamp(lift*240, 0, 180))
}

// WiperAngle is the forearm's lateral angle in degrees: 0 straight up,
// negative toward image left, positive toward image right.
func WiperAngle(elbow, wrist Landmark) int {
	dx := wrist.X - elbow.X
	dy := wrist.Y - elbow.Y
	return int(math.Atan2(dx, -dy) * 180 / math.Pi)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
