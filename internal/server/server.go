package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/core/systems"
)

// Controller pauses and resumes the simulation on behalf of viewers.
type Controller interface {
	Pause() bool
	Resume() bool
	Paused() bool
}

// Stats reports the per-tick systems of the running world.
type Stats interface {
	Systems() []string
	SystemMetrics(name string) (systems.Metrics, bool)
}

// Server exposes the simulation to viewers: frames and agent events go out
// over WebSocket and QUIC, targets and pause requests come back in.
type Server struct {
	cfg     config.ServerConfig
	events  bus.EventBus
	targets *simulation.TargetStore
	control Controller
	stats   Stats
	logger  log.Log

	hub      *hub
	frameSub bus.Subscription
	agentSub bus.Subscription
	observer *deliveryObserver

	// digest of the last broadcast frame, for duplicate suppression
	lastDigest atomic.Uint64
	hasDigest  atomic.Bool
	lastTick   atomic.Uint64

	mu       sync.Mutex
	running  atomic.Bool
	httpSrv  *http.Server
	httpLn   net.Listener
	quicLn   *quic.Listener
	quicConn sync.Map // *quic.Conn -> struct{}
	workers  sync.WaitGroup
	cancel   context.CancelFunc
}

// New creates a server. control may be nil, in which case pause requests are
// ignored; stats may be nil, in which case /healthz omits system timings.
func New(
	cfg config.ServerConfig,
	eb bus.EventBus,
	targets *simulation.TargetStore,
	control Controller,
	stats Stats,
	logger log.Log,
) *Server {
	if logger == nil {
		logger = log.Provide()
	}
	s := &Server{
		cfg:     cfg,
		events:  eb,
		targets: targets,
		control:  control,
		stats:    stats,
		logger:   logger.With(log.String("component", "server")),
		hub:      newHub(),
		observer: &deliveryObserver{},
	}

	s.logger.Info("Server created",
		log.String("http_addr", cfg.HTTPAddr),
		log.Bool("quic", cfg.QUIC.Enabled),
		log.Int("client_buffer", cfg.ClientBuffer))

	return s
}

// Start subscribes to frames and begins listening. It returns once the
// listeners are bound.
func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.start(ctx); err != nil {
		s.running.Store(false)
		_ = s.shutdownLocked(context.Background())
		return err
	}
	return nil
}

func (s *Server) start(ctx context.Context) error {
	s.hub.reopen()
	s.hasDigest.Store(false)

	s.events.AddObserver(s.observer)

	var err error
	if s.frameSub, err = s.events.SubscribeTopic(simulation.TopicFrames, simulation.EventFrame, s.onFrame); err != nil {
		return err
	}
	if s.agentSub, err = s.events.SubscribeTopic(simulation.TopicAgents, bus.Wildcard, s.onAgentEvent); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		s.logger.Error("Failed to create listener", log.String("addr", s.cfg.HTTPAddr), log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}
	s.httpLn = ln
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.httpSrv = srv

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))

	if s.cfg.QUIC.Enabled {
		qctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.cancel = cancel
		if err = s.startQUIC(qctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop closes listeners and disconnects every viewer.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.shutdownLocked(ctx)
	s.logger.Info("Server stopped")
	return err
}

func (s *Server) shutdownLocked(ctx context.Context) error {
	var errs error

	for _, sub := range []*bus.Subscription{&s.frameSub, &s.agentSub} {
		if *sub != nil {
			errs = errors.Join(errs, s.events.Unsubscribe(*sub))
			*sub = nil
		}
	}
	s.events.RemoveObserver(s.observer)
	s.hub.closeAll()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.quicLn != nil {
		errs = errors.Join(errs, s.quicLn.Close())
		s.quicLn = nil
	}
	s.quicConn.Range(func(key, _ any) bool {
		_ = key.(*quic.Conn).CloseWithError(0, "server shutting down")
		return true
	})

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = errors.Join(errs, err)
			_ = s.httpSrv.Close()
		}
		s.httpSrv = nil
	}

	s.workers.Wait()
	return errs
}

// Addr is the bound HTTP address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpLn == nil {
		return nil
	}
	return s.httpLn.Addr()
}

// QUICAddr is the bound QUIC address, or nil when QUIC is off.
func (s *Server) QUICAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quicLn == nil {
		return nil
	}
	return s.quicLn.Addr()
}

// Viewers is the number of connected frame subscribers.
func (s *Server) Viewers() int { return s.hub.count() }

// onFrame encodes a frame once and fans it out. A frame identical to the
// previous one, tick aside, is not sent again.
func (s *Server) onFrame(ev bus.Event) error {
	frame, ok := ev.Data().(simulation.Frame)
	if !ok {
		return fmt.Errorf("%w: frame event carries %T", ErrInvalidMessage, ev.Data())
	}
	s.lastTick.Store(frame.Tick)

	digest := frame.Digest()
	if s.hasDigest.Load() && s.lastDigest.Load() == digest {
		return nil
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	s.lastDigest.Store(digest)
	s.hasDigest.Store(true)
	s.hub.broadcast(payload)
	return nil
}

// AgentMessage tells viewers an agent arrived or departed. Frames carry no
// type field, which is how viewers tell the two apart.
type AgentMessage struct {
	Type  string                `json:"type"`
	Tick  uint64                `json:"tick"`
	Agent simulation.AgentState `json:"agent"`
}

// onAgentEvent forwards arrivals and departures. They are not replayed to
// viewers that join later.
func (s *Server) onAgentEvent(ev bus.Event) error {
	data, ok := ev.Data().(simulation.ArrivalEvent)
	if !ok {
		return fmt.Errorf("%w: agent event carries %T", ErrInvalidMessage, ev.Data())
	}
	payload, err := json.Marshal(AgentMessage{Type: ev.Type(), Tick: data.Tick, Agent: data.Agent})
	if err != nil {
		return err
	}
	s.hub.notify(payload)
	return nil
}

// DecodeViewerMessage splits what a viewer receives into a frame or an agent
// event. Exactly one of the two is non-nil on success.
func DecodeViewerMessage(b []byte) (*simulation.Frame, *AgentMessage, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if head.Type != "" {
		var m AgentMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
		return nil, &m, nil
	}
	var f simulation.Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return &f, nil, nil
}

// deliveryObserver keeps the bus counting while the server runs and tracks
// how long frame fan-out takes.
type deliveryObserver struct {
	last atomic.Int64
	max  atomic.Int64
}

func (o *deliveryObserver) OnPublish(string, string, bus.Event) {}

func (o *deliveryObserver) OnDelivered(topic, _ string, _ int, _ error, elapsed time.Duration) {
	if topic != simulation.TopicFrames {
		return
	}
	o.last.Store(int64(elapsed))
	for {
		cur := o.max.Load()
		if int64(elapsed) <= cur || o.max.CompareAndSwap(cur, int64(elapsed)) {
			return
		}
	}
}
