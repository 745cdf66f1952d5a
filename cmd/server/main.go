package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	persistlog "corridor.ai/internal/persistence/log"
	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/sim/tuning"
	"corridor.ai/internal/transport/observer"
	"corridor.ai/internal/transport/ws"
)

const defaultTuningPath = "./configs/tuning.yaml"

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: "+defaultTuningPath+" if present)")
		runID      = flag.String("run", "", "run id (default: random)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := loadTuning(strings.TrimSpace(*tuningPath), logger)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = uuid.NewString()
	}
	runDir := filepath.Join(*dataDir, "runs", id)
	if _, err := os.Stat(filepath.Join(runDir, persistlog.ManifestName)); err == nil {
		logger.Fatalf("run %s already exists in %s", id, runDir)
	}
	if err := persistlog.WriteManifest(runDir, persistlog.Manifest{
		RunID:           id,
		ProtocolVersion: protocol.Version,
		StartedAt:       time.Now().UTC(),
		Tuning:          tune,
	}); err != nil {
		logger.Fatalf("write manifest: %v", err)
	}

	// Optional: read-model index backend (does not affect sim determinism).
	idx, err := openRuntimeIndex(runDir, tune, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.RecordRun(id, tune); err != nil {
			logger.Printf("index backend: record run: %v", err)
		}
	}

	tickLog := persistlog.NewTickLogger(runDir)
	eventLog := persistlog.NewEventLogger(runDir)
	defer tickLog.Close()
	defer eventLog.Close()

	tickLoggers := runner.TickLoggers{tickLog}
	sinks := runner.EventSinks{eventLog}
	if idx != nil {
		tickLoggers = append(tickLoggers, idx)
		sinks = append(sinks, idx)
	}

	r, err := runner.New(runner.Config{
		Tuning:     tune,
		Logger:     log.New(os.Stdout, "[runner] ", log.LstdFlags|log.Lmicroseconds),
		TickLogger: tickLoggers,
		EventSink:  sinks,
	})
	if err != nil {
		logger.Fatalf("runner: %v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("runner stopped: %v", err)
		}
	}()

	obs := observer.NewServer(r, logger)
	obs.AllowRemote = envBool("CORRIDOR_OBSERVER_ALLOW_REMOTE", false)

	mux := newMux(serverDeps{
		RunID:       id,
		Runner:      r,
		Telemetry:   ws.NewServer(r.Input(), r.PathParams(), logger),
		Observer:    obs,
		Index:       idx,
		Logger:      logger,
		EnableAdmin: envBool("CORRIDOR_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
		EnablePprof: envBool("CORRIDOR_ENABLE_PPROF_HTTP", false),
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("run %s: listening on %s, logs in %s", id, *addr, runDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
	cancel()
	<-runDone
	logger.Printf("run %s stopped at tick %d", id, r.CurrentTick())
}

// loadTuning reads an explicit path strictly; the default path is optional.
func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	if path != "" {
		return tuning.Load(path)
	}
	tune, err := tuning.Load(defaultTuningPath)
	if err == nil {
		return tune, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		logger.Printf("tuning not found (%s); using defaults", defaultTuningPath)
		return tuning.Defaults(), nil
	}
	return tune, err
}
