package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"corridor.ai/internal/protocol"
	"corridor.ai/internal/sim/input"
)

// Server ingests operator TELEMETRY frames into the runner's latest-input
// store. Several operators may connect; the last frame written wins.
type Server struct {
	in     *input.Latest
	params protocol.PathParams
	log    *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	sessions atomic.Int64
	frames   atomic.Uint64
	rejected atomic.Uint64
	last     atomic.Value // protocol.TelemetryMsg
}

// Stats is a read-only view for /metrics.
type Stats struct {
	Sessions      int64  `json:"sessions"`
	FramesTotal   uint64 `json:"frames_total"`
	RejectedTotal uint64 `json:"rejected_total"`
}

func NewServer(in *input.Latest, params protocol.PathParams, logger *log.Logger) *Server {
	s := &Server{
		in:     in,
		params: params,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
	return s
}

func (s *Server) Stats() Stats {
	return Stats{
		Sessions:      s.sessions.Load(),
		FramesTotal:   s.frames.Load(),
		RejectedTotal: s.rejected.Load(),
	}
}

// LastTelemetry returns the most recent accepted frame, for dashboards.
func (s *Server) LastTelemetry() (protocol.TelemetryMsg, bool) {
	m, ok := s.last.Load().(protocol.TelemetryMsg)
	return m, ok
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out := s.handshake(conn)
		if sid == "" {
			return
		}
		s.sessions.Add(1)
		defer s.sessions.Add(-1)
		s.logf("operator %s connected from %s", sid, r.RemoteAddr)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			if e := s.ingest(msg); e != nil {
				s.rejected.Add(1)
				s.reply(out, *e)
			}
		}
		s.logf("operator %s disconnected", sid)
	}
}

// ingest applies one frame. A non-nil result is the ERROR to send back.
func (s *Server) ingest(msg []byte) *protocol.ErrorMsg {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		e := protocol.NewError(protocol.ErrProtoBadRequest, "invalid json", 0)
		return &e
	}
	if base.Type != protocol.TypeTelemetry {
		e := protocol.NewError(protocol.ErrProtoBadRequest, fmt.Sprintf("unexpected message type %q", base.Type), 0)
		return &e
	}
	if base.ProtocolVersion != protocol.Version {
		e := protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version", 0)
		return &e
	}
	tm, err := protocol.DecodeTelemetry(msg)
	if err != nil {
		e := protocol.NewError(protocol.ErrBadTelemetry, err.Error(), 0)
		return &e
	}
	turn, err := input.ParseTurn(tm.Turn)
	if err != nil {
		e := protocol.NewError(protocol.ErrUnknownTurn, err.Error(), tm.Seq)
		return &e
	}
	s.in.Store(tm.Momentum, turn)
	s.last.Store(tm)
	s.frames.Add(1)
	return nil
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoBadRequest, "expected HELLO", 0))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = writeJSON(conn, protocol.NewError(protocol.ErrProtoVersion, "bad protocol_version", 0))
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return "", nil
	}
	if hello.OperatorName == "" {
		hello.OperatorName = "operator"
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	sessionID = fmt.Sprintf("P%d", s.nextID.Add(1))
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		PathParams:      s.params,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	s.logf("HELLO from %q as %s", hello.OperatorName, sessionID)
	return sessionID, out
}

// reply queues an error frame without blocking the reader.
func (s *Server) reply(out chan []byte, e protocol.ErrorMsg) {
	b, err := json.Marshal(e)
	if err != nil {
		return
	}
	select {
	case out <- b:
	default:
	}
}

func (s *Server) logf(format string, args ...any) {
	if s.log != nil {
		s.log.Printf(format, args...)
	}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
