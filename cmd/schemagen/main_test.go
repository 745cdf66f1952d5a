package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"corridor.ai/internal/protocol"
)

type objectShape struct {
	Properties map[string]json.RawMessage `json:"properties"`
	Required   []string                   `json:"required"`
}

type schemaShape struct {
	Defs        map[string]objectShape `json:"$defs"`
	Definitions map[string]objectShape `json:"definitions"`
}

func shapeOf(t *testing.T, b []byte) (props, required []string) {
	t.Helper()
	var s schemaShape
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("decode schema: %v", err)
	}
	def, ok := s.Defs["TelemetryMsg"]
	if !ok {
		def, ok = s.Definitions["TelemetryMsg"]
	}
	if !ok {
		t.Fatalf("no TelemetryMsg definition in %s", b)
	}
	for k := range def.Properties {
		props = append(props, k)
	}
	sort.Strings(props)
	required = append(required, def.Required...)
	sort.Strings(required)
	return props, required
}

// The embedded schema must stay in step with TelemetryMsg.
func TestGeneratedSchemaMatchesEmbedded(t *testing.T) {
	out := filepath.Join(t.TempDir(), "telemetry.schema.json")
	if err := writeSchema(out, buildSchema()); err != nil {
		t.Fatalf("write: %v", err)
	}
	generated, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	gotProps, gotReq := shapeOf(t, generated)
	wantProps, wantReq := shapeOf(t, []byte(protocol.TelemetrySchemaJSON))
	if len(gotProps) != len(wantProps) {
		t.Fatalf("properties=%v want %v", gotProps, wantProps)
	}
	for i := range gotProps {
		if gotProps[i] != wantProps[i] {
			t.Fatalf("properties=%v want %v", gotProps, wantProps)
		}
	}
	if len(gotReq) != len(wantReq) {
		t.Fatalf("required=%v want %v", gotReq, wantReq)
	}
	for i := range gotReq {
		if gotReq[i] != wantReq[i] {
			t.Fatalf("required=%v want %v", gotReq, wantReq)
		}
	}
}
