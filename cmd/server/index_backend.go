package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"corridor.ai/internal/persistence/indexdb"
	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/sim/tuning"
)

type runtimeIndex interface {
	runner.TickLogger
	runner.EventSink
	Close() error
	RecordRun(runID string, tune tuning.Tuning) error
	Stats() indexdb.Stats
}

func openRuntimeIndex(runDir string, tune tuning.Tuning, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("CORRIDOR_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		dbPath := filepath.Join(runDir, "index", "run.sqlite")
		return indexdb.OpenSQLite(dbPath, indexdb.Options{
			SampleEveryTicks: tune.SampleEveryTicks,
			QueueSize:        envInt("CORRIDOR_INDEX_QUEUE", 0),
		})
	default:
		return nil, fmt.Errorf("unsupported CORRIDOR_INDEX_BACKEND: %s", backend)
	}
}
