package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/pprof"

	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/transport/observer"
	"corridor.ai/internal/transport/ws"
)

type serverDeps struct {
	RunID     string
	Runner    *runner.Runner
	Telemetry *ws.Server
	Observer  *observer.Server
	Index     runtimeIndex // may be nil
	Logger    *log.Logger

	EnableAdmin bool
	EnablePprof bool
}

func newMux(d serverDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, d)
	})

	if d.EnableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				RunID     string                 `json:"run_id"`
				Tick      uint64                 `json:"tick"`
				Metrics   runner.Metrics         `json:"metrics"`
				Telemetry *protocol.TelemetryMsg `json:"last_telemetry,omitempty"`
			}{
				RunID:   d.RunID,
				Tick:    d.Runner.CurrentTick(),
				Metrics: d.Runner.Metrics(),
			}
			if tm, ok := d.Telemetry.LastTelemetry(); ok {
				resp.Telemetry = &tm
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else if d.Logger != nil {
		d.Logger.Printf("admin endpoints disabled (CORRIDOR_ENABLE_ADMIN_HTTP=false)")
	}
	if d.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	mux.HandleFunc("/v1/telemetry", d.Telemetry.Handler())
	mux.HandleFunc("/v1/observe/bootstrap", d.Observer.BootstrapHandler())
	mux.HandleFunc("/v1/observe", d.Observer.WSHandler())
	return mux
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, d serverDeps) {
	m := d.Runner.Metrics()
	run := d.RunID

	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s{run=%q} %v\n", name, run, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s{run=%q} %d\n", name, run, v)
	}

	gauge("corridor_tick", "Last stepped runner tick.", m.Tick)
	gauge("corridor_traveler_speed", "Traveler speed in units per tick.", m.Traveler.Speed)
	gauge("corridor_traveler_blocked", "1 while the traveler is held at a junction wall.", boolGauge(m.Blocked))
	gauge("corridor_turn_eligible", "1 while a turn may be requested.", boolGauge(m.TurnEligible))
	gauge("corridor_segments", "Active segments in the stream.", m.Segments)
	gauge("corridor_stream_halted", "1 while spawning waits on a junction decision.", boolGauge(m.Halted))
	gauge("corridor_observers", "Connected observer sessions.", m.Observers)
	gauge("corridor_step_ms", "Last tick step duration in milliseconds.", fmt.Sprintf("%.3f", m.StepMS))
	gauge("corridor_input_seq", "Sequence of the last input the runner consumed.", m.InputSeq)

	counter("corridor_segments_spawned_total", "Segments spawned.", m.SegmentsSpawned)
	counter("corridor_segments_retired_total", "Segments retired.", m.SegmentsRetired)
	counter("corridor_turns_committed_total", "Turns committed at junctions.", m.TurnsCommitted)
	counter("corridor_turns_dropped_total", "Turn requests dropped without an active junction.", m.TurnsDropped)
	counter("corridor_observer_drops_total", "State frames dropped for slow observers.", m.ObserverDrops)

	if d.Telemetry != nil {
		s := d.Telemetry.Stats()
		gauge("corridor_telemetry_sessions", "Connected operator sessions.", s.Sessions)
		counter("corridor_telemetry_frames_total", "Accepted telemetry frames.", s.FramesTotal)
		counter("corridor_telemetry_rejected_total", "Rejected telemetry frames.", s.RejectedTotal)
	}
	if d.Index != nil {
		s := d.Index.Stats()
		gauge("corridor_index_queue_depth", "Index writer backlog.", s.QueueDepth)
		gauge("corridor_index_queue_capacity", "Index writer queue capacity.", s.QueueCapacity)
		counter("corridor_index_drop_tick_total", "Tick rows dropped by the index writer.", s.DropTickTotal)
		counter("corridor_index_drop_event_total", "Path events dropped by the index writer.", s.DropEventTotal)
		counter("corridor_index_write_err_total", "Index transactions that failed.", s.WriteErrTotal)
	}
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}
