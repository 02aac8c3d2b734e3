package simulation

import (
	"context"
	"runtime"

	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/systems"
	"github.com/zeusync/boids/pkg/concurrent"
)

const (
	SteeringSystemName = "steering"
	ArrivalSystemName  = "arrival"
)

// Bus topics and event types raised by the world.
const (
	TopicAgents = "agents"

	EventArrived  = "agent.arrived"
	EventDeparted = "agent.departed"
)

// ArrivalEvent is the payload of EventArrived and EventDeparted.
type ArrivalEvent struct {
	Tick  uint64     `json:"tick"`
	Agent AgentState `json:"agent"`
}

// SteeringSystem applies each agent's behavior toward the world target and
// integrates one tick. Agents are independent, so past the threshold they
// are updated on a bounded worker pool.
type SteeringSystem struct {
	workers   int
	threshold int
}

func NewSteeringSystem(workers, threshold int) *SteeringSystem {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &SteeringSystem{workers: workers, threshold: threshold}
}

func (s *SteeringSystem) Name() string               { return SteeringSystemName }
func (s *SteeringSystem) Priority() systems.Priority { return systems.PriorityHigh }

func (s *SteeringSystem) Update(ctx context.Context, _ uint64, w *World) error {
	target := w.target
	step := func(_ context.Context, e *entry) error {
		e.heading = e.behavior.Apply(e.agent, target)
		e.agent.Advance()
		return nil
	}

	if s.threshold > 0 && len(w.entries) >= s.threshold && s.workers > 1 {
		return concurrent.ForEach(ctx, w.entries, s.workers, step)
	}
	return concurrent.ForEachSerial(ctx, w.entries, step)
}

// ArrivalSystem tracks which agents sit inside their arrival radius and
// queues an event on every change; the world publishes them after the step.
type ArrivalSystem struct {
	logger log.Log
}

func NewArrivalSystem(logger log.Log) *ArrivalSystem {
	return &ArrivalSystem{logger: logger}
}

func (s *ArrivalSystem) Name() string               { return ArrivalSystemName }
func (s *ArrivalSystem) Priority() systems.Priority { return systems.PriorityNormal }

func (s *ArrivalSystem) Update(_ context.Context, tick uint64, w *World) error {
	for _, e := range w.entries {
		arrived := e.agent.Location().Distance(w.target) <= e.agent.Radius()
		if arrived == e.arrived {
			continue
		}
		e.arrived = arrived

		typ := EventDeparted
		if arrived {
			typ = EventArrived
		}
		s.logger.Debug("Agent arrival changed",
			log.String("name", e.name),
			log.Bool("arrived", arrived),
			log.Uint64("tick", tick))
		w.pending = append(w.pending, bus.NewEvent(typ, ArrivalSystemName, ArrivalEvent{Tick: tick, Agent: e.state()}))
	}
	return nil
}
