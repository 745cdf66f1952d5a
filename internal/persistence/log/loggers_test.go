package log

import (
	"errors"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"corridor.ai/internal/sim/input"
	"corridor.ai/internal/sim/runner"
	"corridor.ai/internal/sim/tuning"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := ListFiles(dir, "events")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("files=%v", files)
	}
	if filepath.Base(files[0]) != "events-2026-03-01-10.jsonl.zst" || filepath.Base(files[1]) != "events-2026-03-01-11.jsonl.zst" {
		t.Fatalf("unexpected names: %v", files)
	}
}

func TestJSONLZstdWriter_ReopenAppendsFrames(t *testing.T) {
	dir := t.TempDir()
	fixed := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "x")
		w.now = fixed
		if err := w.Write(map[string]int{"n": i}); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}
	files, _ := ListFiles(dir, "x")
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}
	var lines int
	if err := ReadJSONL(files[0], func([]byte) error { lines++; return nil }); err != nil {
		t.Fatalf("read: %v", err)
	}
	if lines != 2 {
		t.Fatalf("lines=%d want 2", lines)
	}
}

func TestTickLogger_RoundTripReplays(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	el := NewEventLogger(dir)
	r, err := runner.New(runner.Config{
		Tuning:     tuning.Defaults(),
		Logger:     stdlog.New(io.Discard, "", 0),
		TickLogger: tl,
		EventSink:  el,
	})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	for i := 0; i < 120; i++ {
		r.StepOnce(input.Snapshot{Momentum: 1, Turn: input.Center})
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}
	if err := el.Close(); err != nil {
		t.Fatalf("close event log: %v", err)
	}

	replay, err := runner.New(runner.Config{Tuning: tuning.Defaults()})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	var n int
	err = ReadTickLog(dir, func(e runner.TickLogEntry) error {
		tick, digest := replay.StepOnce(e.Input)
		if tick != e.Tick || digest != e.Digest {
			t.Fatalf("mismatch at tick %d", e.Tick)
		}
		n++
		return nil
	})
	if err != nil {
		t.Fatalf("read tick log: %v", err)
	}
	if n != 120 {
		t.Fatalf("entries=%d want 120", n)
	}

	files, err := ListFiles(filepath.Join(dir, "path"), "path")
	if err != nil || len(files) != 1 {
		t.Fatalf("path files=%v err=%v", files, err)
	}
	var spawns int
	_ = ReadJSONL(files[0], func([]byte) error { spawns++; return nil })
	if spawns != 6 {
		t.Fatalf("path events=%d want the 6 primed spawns", spawns)
	}
}

func TestReadTickLog_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	for i := 0; i < 3; i++ {
		_ = tl.WriteTick(runner.TickLogEntry{Tick: uint64(i)})
	}
	_ = tl.Close()

	stop := errors.New("stop")
	var seen int
	err := ReadTickLog(dir, func(runner.TickLogEntry) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("err=%v seen=%d", err, seen)
	}
}

func TestReadTickLog_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(TickLogDir(dir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := ReadTickLog(dir, func(runner.TickLogEntry) error { return nil }); err == nil {
		t.Fatalf("expected error for empty log dir")
	}
}

func TestManifest_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	tune := tuning.Defaults()
	tune.Path.SequenceLength = 8
	in := Manifest{RunID: "r1", ProtocolVersion: "1.0", StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Tuning: tune}
	if err := WriteManifest(dir, in); err != nil {
		t.Fatalf("write: %v", err)
	}
	out, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if out.RunID != "r1" || out.Tuning != tune || !out.StartedAt.Equal(in.StartedAt) {
		t.Fatalf("manifest=%+v", out)
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestName+".tmp")); !os.IsNotExist(err) {
		t.Fatalf("tmp file left behind")
	}
}
