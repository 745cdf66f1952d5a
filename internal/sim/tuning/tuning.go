package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every constant the path core and the gesture pipeline read.
// Zero fields are filled from Defaults on Load.
type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`

	TickRateHz int `yaml:"tick_rate_hz" json:"tick_rate_hz"`

	Path     Path     `yaml:"path" json:"path"`
	Zones    Zones    `yaml:"zones" json:"zones"`
	Movement Movement `yaml:"movement" json:"movement"`
	Gesture  Gesture  `yaml:"gesture" json:"gesture"`

	// Index sampling: one traveler row every N ticks.
	SampleEveryTicks int `yaml:"sample_every_ticks" json:"sample_every_ticks"`
}

type Path struct {
	SegmentLength  float64 `yaml:"segment_length" json:"segment_length"`
	SegmentWidth   float64 `yaml:"segment_width" json:"segment_width"`
	RenderDistance int     `yaml:"render_distance_segments" json:"render_distance_segments"`
	SequenceLength int     `yaml:"sequence_length" json:"sequence_length"`
}

type Zones struct {
	NormalHalfX          float64 `yaml:"normal_half_x" json:"normal_half_x"`
	JunctionHalfX        float64 `yaml:"junction_half_x" json:"junction_half_x"`
	HalfZ                float64 `yaml:"half_z" json:"half_z"`
	AlignedAngle         float64 `yaml:"aligned_angle_rad" json:"aligned_angle_rad"`
	JunctionSideOffset   float64 `yaml:"junction_side_offset" json:"junction_side_offset"`
	TurnTriggerDeadZone  float64 `yaml:"turn_trigger_dead_zone" json:"turn_trigger_dead_zone"`
	BlockTriggerDistance float64 `yaml:"block_trigger_distance" json:"block_trigger_distance"`
	BlockLateralRange    float64 `yaml:"block_lateral_range" json:"block_lateral_range"`
}

type Movement struct {
	MaxSpeed          float64 `yaml:"max_speed" json:"max_speed"`
	SpeedSmoothing    float64 `yaml:"speed_smoothing" json:"speed_smoothing"`
	DeviationMax      float64 `yaml:"deviation_max" json:"deviation_max"`
	CenteringStrength float64 `yaml:"centering_strength" json:"centering_strength"`
	MovingEpsilon     float64 `yaml:"moving_epsilon" json:"moving_epsilon"`
	TurnRate          float64 `yaml:"turn_rate" json:"turn_rate"`
	RollMax           float64 `yaml:"roll_max" json:"roll_max"`
	RollLerp          float64 `yaml:"roll_lerp" json:"roll_lerp"`
	TurnSnapTolerance float64 `yaml:"turn_snap_tolerance_rad" json:"turn_snap_tolerance_rad"`
	SnapLerp          float64 `yaml:"snap_lerp" json:"snap_lerp"`
}

// Gesture configures the operator pose -> telemetry pipeline.
type Gesture struct {
	CalibrationLeft   float64 `yaml:"calibration_left" json:"calibration_left"`
	CalibrationRight  float64 `yaml:"calibration_right" json:"calibration_right"`
	ActiveLeft        float64 `yaml:"active_left" json:"active_left"`
	ActiveRight       float64 `yaml:"active_right" json:"active_right"`
	TurnLeftTrigger   float64 `yaml:"turn_left_trigger" json:"turn_left_trigger"`
	TurnRightTrigger  float64 `yaml:"turn_right_trigger" json:"turn_right_trigger"`
	CalibrationFrames int     `yaml:"calibration_frames" json:"calibration_frames"`
	BounceDefault     float64 `yaml:"bounce_default" json:"bounce_default"`
	BounceMin         float64 `yaml:"bounce_min" json:"bounce_min"`
	BounceMax         float64 `yaml:"bounce_max" json:"bounce_max"`
	NoiseMultiplier   float64 `yaml:"noise_multiplier" json:"noise_multiplier"`
	MomentumStep      float64 `yaml:"momentum_step" json:"momentum_step"`
	MomentumDecay     float64 `yaml:"momentum_decay" json:"momentum_decay"`
	StepCooldownMS    int     `yaml:"step_cooldown_ms" json:"step_cooldown_ms"`
	StopTimeoutMS     int     `yaml:"stop_timeout_ms" json:"stop_timeout_ms"`
	StartupSteps      int     `yaml:"startup_steps" json:"startup_steps"`
	ArmDeadZone       float64 `yaml:"arm_dead_zone" json:"arm_dead_zone"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		TickRateHz:      60,
		Path: Path{
			SegmentLength:  20,
			SegmentWidth:   7,
			RenderDistance: 7,
			SequenceLength: 6,
		},
		Zones: Zones{
			NormalHalfX:          10,
			JunctionHalfX:        18,
			HalfZ:                12,
			AlignedAngle:         0.3,
			JunctionSideOffset:   6.5,
			TurnTriggerDeadZone:  0.1,
			BlockTriggerDistance: 4.0,
			BlockLateralRange:    15,
		},
		Movement: Movement{
			MaxSpeed:          0.5,
			SpeedSmoothing:    0.1,
			DeviationMax:      2.9,
			CenteringStrength: 0.03,
			MovingEpsilon:     0.01,
			TurnRate:          0.04,
			RollMax:           0.12,
			RollLerp:          0.1,
			TurnSnapTolerance: 1.0,
			SnapLerp:          0.15,
		},
		Gesture: Gesture{
			CalibrationLeft:   0.3,
			CalibrationRight:  0.7,
			ActiveLeft:        0.1,
			ActiveRight:       0.9,
			TurnLeftTrigger:   0.4,
			TurnRightTrigger:  0.6,
			CalibrationFrames: 60,
			BounceDefault:     0.003,
			BounceMin:         0.0015,
			BounceMax:         0.01,
			NoiseMultiplier:   1.5,
			MomentumStep:      0.15,
			MomentumDecay:     0.92,
			StepCooldownMS:    300,
			StopTimeoutMS:     500,
			StartupSteps:      3,
			ArmDeadZone:       0.30,
		},
		SampleEveryTicks: 30,
	}
}

// ApplyDefaults fills zero fields from Defaults.
func (t *Tuning) ApplyDefaults() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.SampleEveryTicks <= 0 {
		t.SampleEveryTicks = d.SampleEveryTicks
	}
	setF(&t.Path.SegmentLength, d.Path.SegmentLength)
	setF(&t.Path.SegmentWidth, d.Path.SegmentWidth)
	setI(&t.Path.RenderDistance, d.Path.RenderDistance)
	setI(&t.Path.SequenceLength, d.Path.SequenceLength)

	setF(&t.Zones.NormalHalfX, d.Zones.NormalHalfX)
	setF(&t.Zones.JunctionHalfX, d.Zones.JunctionHalfX)
	setF(&t.Zones.HalfZ, d.Zones.HalfZ)
	setF(&t.Zones.AlignedAngle, d.Zones.AlignedAngle)
	setF(&t.Zones.JunctionSideOffset, d.Zones.JunctionSideOffset)
	setF(&t.Zones.TurnTriggerDeadZone, d.Zones.TurnTriggerDeadZone)
	setF(&t.Zones.BlockTriggerDistance, d.Zones.BlockTriggerDistance)
	setF(&t.Zones.BlockLateralRange, d.Zones.BlockLateralRange)

	setF(&t.Movement.MaxSpeed, d.Movement.MaxSpeed)
	setF(&t.Movement.SpeedSmoothing, d.Movement.SpeedSmoothing)
	setF(&t.Movement.DeviationMax, d.Movement.DeviationMax)
	setF(&t.Movement.CenteringStrength, d.Movement.CenteringStrength)
	setF(&t.Movement.MovingEpsilon, d.Movement.MovingEpsilon)
	setF(&t.Movement.TurnRate, d.Movement.TurnRate)
	setF(&t.Movement.RollMax, d.Movement.RollMax)
	setF(&t.Movement.RollLerp, d.Movement.RollLerp)
	setF(&t.Movement.TurnSnapTolerance, d.Movement.TurnSnapTolerance)
	setF(&t.Movement.SnapLerp, d.Movement.SnapLerp)

	g := &t.Gesture
	setF(&g.CalibrationLeft, d.Gesture.CalibrationLeft)
	setF(&g.CalibrationRight, d.Gesture.CalibrationRight)
	setF(&g.ActiveLeft, d.Gesture.ActiveLeft)
	setF(&g.ActiveRight, d.Gesture.ActiveRight)
	setF(&g.TurnLeftTrigger, d.Gesture.TurnLeftTrigger)
	setF(&g.TurnRightTrigger, d.Gesture.TurnRightTrigger)
	setI(&g.CalibrationFrames, d.Gesture.CalibrationFrames)
	setF(&g.BounceDefault, d.Gesture.BounceDefault)
	setF(&g.BounceMin, d.Gesture.BounceMin)
	setF(&g.BounceMax, d.Gesture.BounceMax)
	setF(&g.NoiseMultiplier, d.Gesture.NoiseMultiplier)
	setF(&g.MomentumStep, d.Gesture.MomentumStep)
	setF(&g.MomentumDecay, d.Gesture.MomentumDecay)
	setI(&g.StepCooldownMS, d.Gesture.StepCooldownMS)
	setI(&g.StopTimeoutMS, d.Gesture.StopTimeoutMS)
	setI(&g.StartupSteps, d.Gesture.StartupSteps)
	setF(&g.ArmDeadZone, d.Gesture.ArmDeadZone)
}

func setF(p *float64, def float64) {
	if *p <= 0 {
		*p = def
	}
}

func setI(p *int, def int) {
	if *p <= 0 {
		*p = def
	}
}

// Validate rejects combinations the path geometry cannot work with.
func (t Tuning) Validate() error {
	var errs []error
	if t.Path.SegmentWidth >= t.Path.SegmentLength {
		errs = append(errs, fmt.Errorf("path.segment_width (%v) must be < segment_length (%v)", t.Path.SegmentWidth, t.Path.SegmentLength))
	}
	if t.Path.SequenceLength < 2 {
		errs = append(errs, fmt.Errorf("path.sequence_length must be >= 2, got %d", t.Path.SequenceLength))
	}
	if t.Path.RenderDistance < 1 {
		errs = append(errs, fmt.Errorf("path.render_distance_segments must be >= 1, got %d", t.Path.RenderDistance))
	}
	if t.Zones.JunctionHalfX < t.Zones.NormalHalfX {
		errs = append(errs, fmt.Errorf("zones.junction_half_x (%v) must be >= normal_half_x (%v)", t.Zones.JunctionHalfX, t.Zones.NormalHalfX))
	}
	if t.Movement.SpeedSmoothing > 1 || t.Movement.CenteringStrength > 1 || t.Movement.SnapLerp > 1 || t.Movement.RollLerp > 1 {
		errs = append(errs, errors.New("movement lerp factors must be in (0,1]"))
	}
	if t.Gesture.TurnLeftTrigger >= t.Gesture.TurnRightTrigger {
		errs = append(errs, errors.New("gesture.turn_left_trigger must be < turn_right_trigger"))
	}
	return errors.Join(errs...)
}

// Load reads a tuning.yaml, fills defaults and validates the result.
func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}
