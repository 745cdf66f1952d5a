package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// TelemetrySchemaJSON is regenerated from TelemetryMsg by cmd/schemagen.
//
//go:embed schemas/telemetry.schema.json
var TelemetrySchemaJSON string

var telemetrySchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("telemetry.schema.json", TelemetrySchemaJSON)
})

// ValidateTelemetry checks a raw frame against the telemetry schema.
func ValidateTelemetry(b []byte) error {
	s, err := telemetrySchema()
	if err != nil {
		return fmt.Errorf("compile telemetry schema: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode telemetry: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("validate telemetry: %w", err)
	}
	return nil
}

// DecodeTelemetry validates and decodes one TELEMETRY frame.
func DecodeTelemetry(b []byte) (TelemetryMsg, error) {
	var m TelemetryMsg
	if err := ValidateTelemetry(b); err != nil {
		return m, err
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode telemetry: %w", err)
	}
	return m, nil
}
