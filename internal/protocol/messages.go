package protocol

// HELLO (operator -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	OperatorName    string `json:"operator_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> operator)
type WelcomeMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	SessionID       string     `json:"session_id"`
	PathParams      PathParams `json:"path_params"`
}

type PathParams struct {
	TickRateHz     int     `json:"tick_rate_hz"`
	SegmentLength  float64 `json:"segment_length"`
	SegmentWidth   float64 `json:"segment_width"`
	RenderDistance int     `json:"render_distance_segments"`
	SequenceLength int     `json:"sequence_length"`
}

// TELEMETRY (operator -> server). One frame of the gesture pipeline's output;
// only momentum and turn drive the path core, the rest is dashboard data.
type TelemetryMsg struct {
	Type            string  `json:"type" jsonschema:"enum=TELEMETRY"`
	ProtocolVersion string  `json:"protocol_version"`
	Seq             uint64  `json:"seq,omitempty"`
	Status          string  `json:"status,omitempty" jsonschema:"enum=NO PLAYER,enum=STEP CENTER,enum=CALIBRATING,enum=IDLE,enum=WALKING"`
	Steps           int     `json:"steps,omitempty" jsonschema:"minimum=0"`
	Momentum        float64 `json:"momentum"`
	Turn            string  `json:"turn"`
	LArm            int     `json:"l_arm,omitempty" jsonschema:"minimum=0,maximum=180"`
	RArm            int     `json:"r_arm,omitempty" jsonschema:"minimum=0,maximum=180"`
	LWiper          int     `json:"l_wiper,omitempty" jsonschema:"minimum=-180,maximum=180"`
	RWiper          int     `json:"r_wiper,omitempty" jsonschema:"minimum=-180,maximum=180"`
	Calibration     float64 `json:"calibration,omitempty" jsonschema:"minimum=0,maximum=1"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	Seq             uint64 `json:"seq,omitempty"`
}

func NewError(code, message string, seq uint64) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: message, Seq: seq}
}

// SUBSCRIBE (observer -> server). First message on the observer connection.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

// HTTP response for GET /v1/observe/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	PathParams      PathParams   `json:"path_params"`
	Segments        []SegmentRef `json:"segments"`
}

// STATE (server -> observer). Sent every tick.
type StateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`

	Traveler   TravelerState  `json:"traveler"`
	Flags      FlagsState     `json:"flags"`
	Constraint *ConstraintRef `json:"constraint,omitempty"`
	Cursor     CursorRef      `json:"cursor"`

	ActiveJunction uint64 `json:"active_junction,omitempty"`
	Halted         bool   `json:"halted"`

	Spawned []SegmentRef `json:"spawned,omitempty"`
	Retired []uint64     `json:"retired,omitempty"`
	Turn    *TurnRef     `json:"turn,omitempty"`

	// Resync frames carry the full segment list; the observer replaces its
	// copy instead of applying Spawned/Retired.
	Resync   bool         `json:"resync,omitempty"`
	Segments []SegmentRef `json:"segments,omitempty"`
}

type TravelerState struct {
	Pos   [3]float64 `json:"pos"`
	Yaw   float64    `json:"yaw"`
	Roll  float64    `json:"roll"`
	Speed float64    `json:"speed"`
}

type FlagsState struct {
	Blocked      bool `json:"blocked"`
	TurnEligible bool `json:"turn_eligible"`
}

type ConstraintRef struct {
	Axis   string  `json:"axis"`
	Center float64 `json:"center"`
}

type CursorRef struct {
	Pos     [3]float64 `json:"pos"`
	Heading string     `json:"heading"`
}

type SegmentRef struct {
	Seq       uint64     `json:"seq"`
	Kind      string     `json:"kind"`
	Pos       [3]float64 `json:"pos"`
	Heading   string     `json:"heading"`
	SpawnTick uint64     `json:"spawn_tick"`
	Turned    bool       `json:"turned,omitempty"`
}

type TurnRef struct {
	Junction  uint64 `json:"junction"`
	Direction string `json:"direction"`
	Heading   string `json:"heading"`
}
