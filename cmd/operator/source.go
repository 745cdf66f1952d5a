package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"corridor.ai/internal/gesture"
	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/input"
)

type planStep struct {
	Turn     input.TurnCommand
	Duration time.Duration
	Momentum float64
}

// parsePlan reads "center:8s,left:2s@0.5,...". Momentum defaults to 1.
func parsePlan(s string) ([]planStep, error) {
	var out []planStep
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		turnStr, rest, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("step %q: want turn:duration", part)
		}
		turn, err := input.ParseTurn(turnStr)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", part, err)
		}
		durStr, momStr, hasMom := strings.Cut(rest, "@")
		d, err := time.ParseDuration(durStr)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("step %q: bad duration", part)
		}
		mom := 1.0
		if hasMom {
			if mom, err = strconv.ParseFloat(momStr, 64); err != nil {
				return nil, fmt.Errorf("step %q: bad momentum: %w", part, err)
			}
		}
		out = append(out, planStep{Turn: turn, Duration: d, Momentum: input.Sanitize(mom)})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty plan")
	}
	return out, nil
}

// expandPlan turns steps into evenly spaced frames at rate per second.
func expandPlan(steps []planStep, rate int) ([]protocol.TelemetryMsg, []time.Duration) {
	if rate <= 0 {
		rate = 30
	}
	interval := time.Second / time.Duration(rate)
	var (
		frames  []protocol.TelemetryMsg
		spacing []time.Duration
	)
	for _, st := range steps {
		n := int(st.Duration / interval)
		for i := 0; i < n; i++ {
			frames = append(frames, protocol.TelemetryMsg{
				Type:            protocol.TypeTelemetry,
				ProtocolVersion: protocol.Version,
				Status:          gesture.StatusWalking,
				Momentum:        st.Momentum,
				Turn:            string(st.Turn),
			})
			spacing = append(spacing, interval)
		}
	}
	return frames, spacing
}

// readFrames loads one gesture.Frame per line; .zst files are decompressed.
func readFrames(path string) ([]gesture.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		r = dec
	}

	var out []gesture.Frame
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := sc.Bytes()
		if len(strings.TrimSpace(string(b))) == 0 {
			continue
		}
		var fr gesture.Frame
		if err := json.Unmarshal(b, &fr); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, fr)
	}
	return out, sc.Err()
}

// trackFrames runs recorded frames through the tracker; spacing follows the
// recorded timestamps.
func trackFrames(tr *gesture.Tracker, recorded []gesture.Frame) ([]protocol.TelemetryMsg, []time.Duration) {
	frames := make([]protocol.TelemetryMsg, 0, len(recorded))
	spacing := make([]time.Duration, 0, len(recorded))
	var prev int64
	for i, fr := range recorded {
		frames = append(frames, tr.Update(fr))
		gap := time.Duration(0)
		if i > 0 && fr.TimestampMS > prev {
			gap = time.Duration(fr.TimestampMS-prev) * time.Millisecond
		}
		spacing = append(spacing, gap)
		prev = fr.TimestampMS
	}
	return frames, spacing
}
