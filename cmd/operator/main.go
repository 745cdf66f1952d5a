package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"corridor.ai/internal/gesture"
	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/tuning"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/v1/telemetry", "telemetry ws url")
		name       = flag.String("name", "operator", "operator name")
		rate       = flag.Int("rate", 30, "frames per second for scripted plans")
		plan       = flag.String("plan", "center:8s,left:2s,center:6s,right:2s,center:4s", "scripted plan: turn:duration[@momentum],...")
		landmarks  = flag.String("landmarks", "", "recorded pose landmarks (.jsonl or .jsonl.zst); overrides -plan")
		tuningPath = flag.String("tuning", "", "tuning.yaml for the gesture thresholds (optional)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[operator] ", log.LstdFlags|log.Lmicroseconds)

	tune := tuning.Defaults()
	if p := strings.TrimSpace(*tuningPath); p != "" {
		t, err := tuning.Load(p)
		if err != nil {
			logger.Fatalf("load tuning: %v", err)
		}
		tune = t
	}

	var frames []protocol.TelemetryMsg
	var spacing []time.Duration
	if p := strings.TrimSpace(*landmarks); p != "" {
		recorded, err := readFrames(p)
		if err != nil {
			logger.Fatalf("read landmarks: %v", err)
		}
		frames, spacing = trackFrames(gesture.NewTracker(tune.Gesture), recorded)
		logger.Printf("loaded %d landmark frames from %s", len(recorded), p)
	} else {
		steps, err := parsePlan(*plan)
		if err != nil {
			logger.Fatalf("plan: %v", err)
		}
		frames, spacing = expandPlan(steps, *rate)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		OperatorName:    *name,
		MaxQueue:        8,
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	go readLoop(conn, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	for i, f := range frames {
		select {
		case <-stop:
			return
		case <-time.After(spacing[i]):
		}
		f.Seq = uint64(i + 1)
		if err := conn.WriteJSON(f); err != nil {
			logger.Printf("send TELEMETRY: %v", err)
			return
		}
	}
	logger.Printf("sent %d frames", len(frames))
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
}

func readLoop(conn *websocket.Conn, logger *log.Logger) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s tick_rate=%d segment=%gx%g", w.SessionID, w.PathParams.TickRateHz, w.PathParams.SegmentLength, w.PathParams.SegmentWidth)
		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err != nil {
				continue
			}
			logger.Printf("ERROR %s seq=%d: %s", e.Code, e.Seq, e.Message)
		}
	}
}
