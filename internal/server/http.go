package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

// Health is the body of GET /healthz.
type Health struct {
	Status  string         `json:"status"`
	Tick    uint64         `json:"tick"`
	Paused  bool           `json:"paused"`
	Viewers int            `json:"viewers"`
	Bus     BusHealth      `json:"bus"`
	Systems []SystemHealth `json:"systems,omitempty"`
}

// BusHealth counts deliveries since the server started. Fan-out times cover
// frame events only.
type BusHealth struct {
	Published   uint64        `json:"published"`
	Delivered   uint64        `json:"delivered"`
	Errors      uint64        `json:"errors"`
	Subscribers uint64        `json:"subscribers"`
	Topics      []TopicHealth `json:"topics"`
	LastFanout  time.Duration `json:"last_fanout_ns"`
	MaxFanout   time.Duration `json:"max_fanout_ns"`
}

type TopicHealth struct {
	Name        string `json:"name"`
	EventTypes  int    `json:"event_types"`
	Subscribers int    `json:"subscribers"`
}

// SystemHealth is one per-tick system's timings, in execution order.
type SystemHealth struct {
	Name      string        `json:"name"`
	Runs      uint64        `json:"runs"`
	Errors    uint64        `json:"errors"`
	Average   time.Duration `json:"avg_ns"`
	Max       time.Duration `json:"max_ns"`
	LastError string        `json:"last_error,omitempty"`
}

// Handler routes /ws, /target and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/target", s.handleTarget)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleTarget(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.targets.Get())
	case http.MethodPost:
		var target physics.Vector3
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageSize))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&target); err != nil {
			http.Error(w, ErrInvalidMessage.Error(), http.StatusBadRequest)
			return
		}
		if err := s.targets.Set(target); err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, simulation.ErrInvalidTarget) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		s.logger.Debug("Target moved", log.Stringer("target", target))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Health())
}

// Health snapshots what /healthz reports.
func (s *Server) Health() Health {
	m := s.events.Metrics()
	h := Health{
		Status:  "ok",
		Tick:    s.lastTick.Load(),
		Paused:  s.control != nil && s.control.Paused(),
		Viewers: s.hub.count(),
		Bus: BusHealth{
			Published:   m.Published,
			Delivered:   m.DeliveredHandlers,
			Errors:      m.Errors,
			Subscribers: m.SubscribersActive,
			LastFanout:  time.Duration(s.observer.last.Load()),
			MaxFanout:   time.Duration(s.observer.max.Load()),
		},
	}
	for _, t := range s.events.Topics() {
		h.Bus.Topics = append(h.Bus.Topics, TopicHealth{Name: t.Name, EventTypes: t.EventTypes, Subscribers: t.Subs})
	}

	if s.stats == nil {
		return h
	}
	for _, name := range s.stats.Systems() {
		sm, ok := s.stats.SystemMetrics(name)
		if !ok {
			continue
		}
		sh := SystemHealth{
			Name:    name,
			Runs:    sm.ExecutionCount,
			Errors:  sm.ErrorCount,
			Average: sm.AverageExecutionTime,
			Max:     sm.MaxExecutionTime,
		}
		if sm.LastError != nil {
			sh.LastError = sm.LastError.Error()
		}
		h.Systems = append(h.Systems, sh)
	}
	return h
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
