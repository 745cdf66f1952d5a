package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"corridor.ai/internal/persistence/indexdb"
	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/transport/observer"
	"corridor.ai/internal/transport/ws"
)

func newTestDeps(t *testing.T, withIndex bool) serverDeps {
	t.Helper()
	r, err := runner.New(runner.Config{Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	for i := 0; i < 5; i++ {
		r.StepOnce(input.Snapshot{Momentum: 1, Turn: input.Center})
	}
	d := serverDeps{
		RunID:       "test_run",
		Runner:      r,
		Telemetry:   ws.NewServer(r.Input(), r.PathParams(), nil),
		Observer:    observer.NewServer(r, nil),
		EnableAdmin: true,
	}
	if withIndex {
		idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "run.sqlite"), indexdb.Options{})
		if err != nil {
			t.Fatalf("index: %v", err)
		}
		t.Cleanup(func() { _ = idx.Close() })
		d.Index = idx
	}
	return d
}

func TestMux_Healthz(t *testing.T) {
	mux := newMux(newTestDeps(t, false))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != 200 || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestMux_MetricsExposition(t *testing.T) {
	mux := newMux(newTestDeps(t, true))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`corridor_tick{run="test_run"} 4`,
		`corridor_segments{run="test_run"} 6`,
		`corridor_stream_halted{run="test_run"} 1`,
		`corridor_segments_spawned_total{run="test_run"} 6`,
		"# TYPE corridor_turns_committed_total counter",
		"corridor_telemetry_frames_total",
		"corridor_index_queue_capacity",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestMux_AdminStateIsLoopbackOnly(t *testing.T) {
	mux := newMux(newTestDeps(t, false))

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != 200 {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp struct {
		RunID     string                 `json:"run_id"`
		Tick      uint64                 `json:"tick"`
		Metrics   runner.Metrics         `json:"metrics"`
		Telemetry *protocol.TelemetryMsg `json:"last_telemetry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "test_run" || resp.Tick != 5 || resp.Metrics.Segments != 6 || resp.Telemetry != nil {
		t.Fatalf("resp=%+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d", rec.Code)
	}
}

func TestMux_AdminDisabled(t *testing.T) {
	d := newTestDeps(t, false)
	d.EnableAdmin = false
	mux := newMux(d)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/state", nil)
	req.RemoteAddr = "127.0.0.1:9999"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d", rec.Code)
	}
}

func TestLoadTuning_ExplicitPathMustExist(t *testing.T) {
	if _, err := loadTuning(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Fatalf("expected error for a missing explicit tuning file")
	}
}
