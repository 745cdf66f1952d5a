package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"corridor.ai/internal/sim/runner"
)

// JSONLZstdWriter appends one JSON document per line to hourly rotated
// <prefix>-YYYY-MM-DD-HH.jsonl.zst files under baseDir.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// Each open gets its own zstd frame; appending frames to an existing
	// file still decodes as one stream.
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed) under <runDir>/events.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(runDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(TickLogDir(runDir), "events")}
}

func (l *TickLogger) WriteTick(v runner.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Close() error                          { return l.w.Close() }

// TickLogDir is where NewTickLogger writes for a run directory.
func TickLogDir(runDir string) string { return filepath.Join(runDir, "events") }

// EventLogger writes spawn/retire/turn records (compressed) under <runDir>/path.
type EventLogger struct{ w *JSONLZstdWriter }

func NewEventLogger(runDir string) *EventLogger {
	return &EventLogger{w: NewJSONLZstdWriter(filepath.Join(runDir, "path"), "path")}
}

func (l *EventLogger) WriteEvent(ev runner.PathEvent) error { return l.w.Write(ev) }
func (l *EventLogger) Close() error                         { return l.w.Close() }

// ListFiles returns the <prefix>-*.jsonl.zst files in dir, oldest first.
func ListFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadJSONL decodes every line of one .jsonl.zst file into fn.
func ReadJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ReadTickLog streams every tick entry written by TickLogger under runDir,
// in file order. Returning an error from fn stops the scan.
func ReadTickLog(runDir string, fn func(runner.TickLogEntry) error) error {
	files, err := ListFiles(TickLogDir(runDir), "events")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no tick log files in %s", TickLogDir(runDir))
	}
	for _, p := range files {
		base := filepath.Base(p)
		err := ReadJSONL(p, func(line []byte) error {
			var e runner.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", base, err)
			}
			return fn(e)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
