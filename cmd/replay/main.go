package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"

	persistlog "corridor.ai/internal/persistence/log"
	"corridor.ai/internal/sim/runner"
)

func main() {
	var (
		runDir   = flag.String("run_dir", "", "run directory containing run.json and events/")
		fromTick = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick   = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if strings.TrimSpace(*runDir) == "" {
		fmt.Fprintln(os.Stderr, "missing -run_dir")
		os.Exit(2)
	}

	checked, err := replay(*runDir, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%s ticks\n", humanize.Comma(int64(checked)))
}

var errStop = errors.New("stop")

// replay re-runs the recorded inputs against a fresh runner built from the
// manifest and compares every digest from verifyFrom on.
func replay(runDir string, verifyFrom, toTick uint64) (uint64, error) {
	m, err := persistlog.ReadManifest(runDir)
	if err != nil {
		return 0, fmt.Errorf("read manifest: %w", err)
	}
	r, err := runner.New(runner.Config{Tuning: m.Tuning, Start: m.Start})
	if err != nil {
		return 0, err
	}
	fmt.Printf("run %s: segment_length=%g width=%g sequence_length=%d\n",
		m.RunID, m.Tuning.Path.SegmentLength, m.Tuning.Path.SegmentWidth, m.Tuning.Path.SequenceLength)

	var checked uint64
	err = persistlog.ReadTickLog(runDir, func(entry runner.TickLogEntry) error {
		if toTick != 0 && entry.Tick > toTick {
			return errStop
		}
		if entry.Tick != r.CurrentTick() {
			return fmt.Errorf("tick mismatch: want=%d got=%d", r.CurrentTick(), entry.Tick)
		}
		tick, gotDigest := r.StepOnce(entry.Input)
		// Sanity check: StepOnce should have stepped the same tick.
		if tick != entry.Tick {
			return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
		}
		if tick >= verifyFrom {
			checked++
			if gotDigest != entry.Digest {
				return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return checked, err
	}
	return checked, nil
}
