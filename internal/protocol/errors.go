package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Telemetry frames.
	ErrBadTelemetry = "E_BAD_TELEMETRY"
	ErrUnknownTurn  = "E_UNKNOWN_TURN"

	// Session/runtime.
	ErrBusy     = "E_BUSY"
	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrBadTelemetry:    {},
	ErrUnknownTurn:     {},
	ErrBusy:            {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
