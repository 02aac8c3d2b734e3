package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

// Inbound viewer message types.
const (
	MessageTarget = "target"
	MessagePause  = "pause"
	MessageResume = "resume"
)

const maxMessageSize = 4096

// ClientMessage is what viewers send back over the socket.
type ClientMessage struct {
	Type   string           `json:"type"`
	Target *physics.Vector3 `json:"target,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(s.cfg.AllowedOrigins) == 0 {
				return true
			}
			return slices.Contains(s.cfg.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return
	}

	v := newViewer(uuid.NewString(), "websocket", s.cfg.ClientBuffer)
	logger := s.logger.With(log.String("viewer_id", v.id), log.String("remote_addr", r.RemoteAddr))
	if !s.hub.add(v) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	logger.Info("Viewer connected", log.Int("viewers", s.hub.count()))

	// reader: control messages until the peer goes away
	go func() {
		defer s.hub.remove(v)
		conn.SetReadLimit(maxMessageSize)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err = s.handleClientMessage(msg); err != nil {
				logger.Warn("Rejected viewer message", log.Error(err))
			}
		}
	}()

	// writer
	defer func() {
		s.hub.remove(v)
		_ = conn.Close()
		logger.Info("Viewer disconnected", log.Uint64("dropped_frames", v.dropped.Load()))
	}()
	for b := range v.send {
		if s.cfg.WriteTimeout > 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		}
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
}

func (s *Server) handleClientMessage(raw []byte) error {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	switch msg.Type {
	case MessageTarget:
		if msg.Target == nil {
			return fmt.Errorf("%w: target message without target", ErrInvalidMessage)
		}
		return s.targets.Set(*msg.Target)
	case MessagePause:
		if s.control != nil {
			s.control.Pause()
		}
		return nil
	case MessageResume:
		if s.control != nil {
			s.control.Resume()
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, msg.Type)
	}
}
