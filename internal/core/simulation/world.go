package simulation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/systems"
	"github.com/zeusync/boids/internal/core/systems/physics"
	"github.com/zeusync/boids/internal/core/systems/steering"
)

// AgentDef describes an agent to spawn.
type AgentDef struct {
	Name     string
	Behavior steering.Behavior
	Location physics.Vector3
	MaxForce float64
	MaxSpeed float64
	Radius   float64
}

type entry struct {
	id       AgentID
	name     string
	behavior steering.Behavior
	agent    *steering.Agent
	heading  physics.Vector3
	arrived  bool
}

func (e *entry) state() AgentState {
	return AgentState{
		ID:       e.id,
		Name:     e.name,
		Behavior: e.behavior,
		Location: e.agent.Location(),
		Velocity: e.agent.Velocity(),
		Heading:  e.heading,
		Radius:   e.agent.Radius(),
		Arrived:  e.arrived,
	}
}

// World owns every agent and advances them one tick at a time. Each agent's
// kinematic state is touched only by the systems run from Step.
type World struct {
	mu      sync.RWMutex
	entries []*entry
	index   map[AgentID]*entry

	tick   uint64
	target physics.Vector3

	runner *systems.Runner[*World]
	events bus.EventBus
	logger log.Log

	// filled by systems during a step, published once the lock is released
	pending []bus.Event
}

// Options tunes how the steering system schedules agent updates.
type Options struct {
	Workers           int
	ParallelThreshold int
}

// NewWorld builds an empty world with the steering and arrival systems
// registered. Arrival events are published on eb under TopicAgents; a nil
// bus gets a private one.
func NewWorld(eb bus.EventBus, logger log.Log, opts Options) *World {
	if eb == nil {
		eb = bus.New()
	}
	if logger == nil {
		logger = log.Provide()
	}

	w := &World{
		index:  make(map[AgentID]*entry),
		runner: systems.NewRunner[*World](),
		events: eb,
		logger: logger.With(log.String("component", "world")),
	}
	// names are unique, registration cannot fail
	_ = w.runner.Register(NewSteeringSystem(opts.Workers, opts.ParallelThreshold))
	_ = w.runner.Register(NewArrivalSystem(w.logger))
	return w
}

// NewWorldFromConfig builds a world and spawns the configured scene.
func NewWorldFromConfig(cfg config.SimulationConfig, eb bus.EventBus, logger log.Log) (*World, error) {
	w := NewWorld(eb, logger, Options{Workers: cfg.Workers, ParallelThreshold: cfg.ParallelThreshold})
	w.target = cfg.Target

	for _, ac := range cfg.Agents {
		behavior, err := steering.ParseBehavior(ac.Behavior)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", ac.Name, err)
		}
		if _, err = w.Spawn(AgentDef{
			Name:     ac.Name,
			Behavior: behavior,
			Location: ac.Location,
			MaxForce: ac.MaxForce,
			MaxSpeed: ac.MaxSpeed,
			Radius:   ac.Radius,
		}); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// Spawn adds an agent and returns its id. A zero radius means
// steering.DefaultRadius.
func (w *World) Spawn(def AgentDef) (AgentID, error) {
	radius := def.Radius
	if radius == 0 {
		radius = steering.DefaultRadius
	}
	agent, err := steering.NewAgent(def.Location, def.MaxForce, def.MaxSpeed, steering.WithRadius(radius))
	if err != nil {
		return uuid.Nil, fmt.Errorf("spawn %s: %w", def.Name, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range w.entries {
		if e.name == def.Name {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, def.Name)
		}
	}

	e := &entry{
		id:       uuid.New(),
		name:     def.Name,
		behavior: def.Behavior,
		agent:    agent,
	}
	w.entries = append(w.entries, e)
	w.index[e.id] = e

	w.logger.Info("Agent spawned",
		log.String("agent_id", e.id.String()),
		log.String("name", e.name),
		log.Stringer("behavior", e.behavior),
		log.Float64("max_force", def.MaxForce),
		log.Float64("max_speed", def.MaxSpeed))
	return e.id, nil
}

// Remove drops an agent from the world.
func (w *World) Remove(id AgentID) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	e, ok := w.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	delete(w.index, id)
	for i, cur := range w.entries {
		if cur == e {
			w.entries = append(w.entries[:i], w.entries[i+1:]...)
			break
		}
	}
	w.logger.Info("Agent removed", log.String("agent_id", id.String()), log.String("name", e.name))
	return nil
}

// Get returns the current state of one agent.
func (w *World) Get(id AgentID) (AgentState, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.index[id]
	if !ok {
		return AgentState{}, fmt.Errorf("%w: %s", ErrAgentNotFound, id)
	}
	return e.state(), nil
}

// Agents returns every agent's state in spawn order.
func (w *World) Agents() []AgentState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.statesLocked()
}

func (w *World) statesLocked() []AgentState {
	out := make([]AgentState, len(w.entries))
	for i, e := range w.entries {
		out[i] = e.state()
	}
	return out
}

// Tick is the number of completed steps.
func (w *World) Tick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// Target is the target used by the last step, or the configured initial one.
func (w *World) Target() physics.Vector3 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.target
}

// Step runs one tick against target: every system in priority order, then a
// frame of the result. Events raised during the tick are published after the
// world is unlocked, so handlers may read the world. A context already done
// leaves the world untouched.
func (w *World) Step(ctx context.Context, target physics.Vector3) (Frame, error) {
	if !target.IsFinite() {
		return Frame{}, fmt.Errorf("%w: %v", ErrInvalidTarget, target)
	}

	w.mu.Lock()
	if err := ctx.Err(); err != nil {
		w.mu.Unlock()
		return Frame{}, fmt.Errorf("tick %d: %w", w.tick+1, err)
	}
	w.tick++
	w.target = target
	err := w.runner.Run(ctx, w.tick, w)
	frame := Frame{
		Tick:   w.tick,
		Target: target,
		Agents: w.statesLocked(),
	}
	pending := w.pending
	w.pending = nil
	w.mu.Unlock()

	if err != nil {
		return Frame{}, fmt.Errorf("tick %d: %w", frame.Tick, err)
	}

	for _, ev := range pending {
		if perr := w.events.PublishToTopic(TopicAgents, ev); perr != nil {
			w.logger.Warn("Agent event handler failed",
				log.String("event", ev.Type()),
				log.Uint64("tick", frame.Tick),
				log.Error(perr))
		}
	}
	return frame, nil
}

// SystemMetrics exposes per-system timings.
func (w *World) SystemMetrics(name string) (systems.Metrics, bool) {
	return w.runner.Metrics(name)
}

// Systems lists the per-tick systems in execution order.
func (w *World) Systems() []string { return w.runner.Names() }
