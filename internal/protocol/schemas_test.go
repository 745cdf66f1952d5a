package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"corridor.ai/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	s, err := jsonschema.CompileString("telemetry.schema.json", protocol.TelemetrySchemaJSON)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	validate := func(raw string) error {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			t.Fatalf("bad sample: %v", err)
		}
		return s.Validate(v)
	}

	if err := validate(`{
	  "type":"TELEMETRY",
	  "protocol_version":"1.0",
	  "seq":12,
	  "status":"WALKING",
	  "steps":7,
	  "momentum":0.62,
	  "turn":"LEFT",
	  "l_arm":90,
	  "r_arm":0,
	  "calibration":1.0
	}`); err != nil {
		t.Fatalf("full frame: %v", err)
	}
	if err := validate(`{"type":"TELEMETRY","protocol_version":"1.0","momentum":0,"turn":"CENTER"}`); err != nil {
		t.Fatalf("minimal frame: %v", err)
	}

	bad := map[string]string{
		"missing turn":     `{"type":"TELEMETRY","protocol_version":"1.0","momentum":0}`,
		"wrong type":       `{"type":"ACT","protocol_version":"1.0","momentum":0,"turn":"LEFT"}`,
		"momentum string":  `{"type":"TELEMETRY","protocol_version":"1.0","momentum":"fast","turn":"LEFT"}`,
		"arm out of range": `{"type":"TELEMETRY","protocol_version":"1.0","momentum":0,"turn":"LEFT","l_arm":270}`,
		"unknown status":   `{"type":"TELEMETRY","protocol_version":"1.0","momentum":0,"turn":"LEFT","status":"DANCING"}`,
	}
	for name, raw := range bad {
		if err := validate(raw); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestDecodeTelemetry(t *testing.T) {
	m, err := protocol.DecodeTelemetry([]byte(`{"type":"TELEMETRY","protocol_version":"1.0","momentum":1.7,"turn":"RIGHT","steps":3}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Range clamping belongs to the input boundary, not the schema.
	if m.Momentum != 1.7 || m.Turn != "RIGHT" || m.Steps != 3 {
		t.Fatalf("msg=%+v", m)
	}
	if _, err := protocol.DecodeTelemetry([]byte(`{"type":"TELEMETRY"`)); err == nil {
		t.Fatalf("expected error for truncated frame")
	}
	if _, err := protocol.DecodeTelemetry([]byte(`{"type":"TELEMETRY","protocol_version":"1.0","turn":"LEFT"}`)); err == nil {
		t.Fatalf("expected error for missing momentum")
	}
}

func TestDecodeBase(t *testing.T) {
	b, err := protocol.DecodeBase([]byte(`{"type":"HELLO","protocol_version":"1.0","operator_name":"op"}`))
	if err != nil || b.Type != protocol.TypeHello || b.ProtocolVersion != protocol.Version {
		t.Fatalf("base=%+v err=%v", b, err)
	}
}
