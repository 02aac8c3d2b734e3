package simulation

import (
	"fmt"
	"math"
	"sync"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

// TargetProvider supplies the point every agent steers toward on a tick.
type TargetProvider interface {
	Target(tick uint64) physics.Vector3
}

// StaticTarget never moves.
type StaticTarget physics.Vector3

func (s StaticTarget) Target(uint64) physics.Vector3 { return physics.Vector3(s) }

// TargetStore holds a target set from outside the simulation loop, such as a
// viewer's pointer.
type TargetStore struct {
	mu     sync.RWMutex
	target physics.Vector3
}

func NewTargetStore(initial physics.Vector3) *TargetStore {
	return &TargetStore{target: initial}
}

func (s *TargetStore) Set(v physics.Vector3) error {
	if !v.IsFinite() {
		return fmt.Errorf("%w: %v", ErrInvalidTarget, v)
	}
	s.mu.Lock()
	s.target = v
	s.mu.Unlock()
	return nil
}

func (s *TargetStore) Get() physics.Vector3 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.target
}

func (s *TargetStore) Target(uint64) physics.Vector3 { return s.Get() }

// OrbitTarget circles Center in the XY plane, completing one lap every
// Period ticks. A zero period pins it to Center.
type OrbitTarget struct {
	Center physics.Vector3
	Radius float64
	Period uint64
}

func (o OrbitTarget) Target(tick uint64) physics.Vector3 {
	if o.Period == 0 {
		return o.Center
	}
	angle := 2 * math.Pi * float64(tick%o.Period) / float64(o.Period)
	return o.Center.Add(physics.Vec3(o.Radius*math.Cos(angle), o.Radius*math.Sin(angle), 0))
}

// NewTargetProvider picks the provider configured for headless runs.
func NewTargetProvider(cfg config.SimulationConfig) TargetProvider {
	if cfg.Orbit.Enabled {
		return OrbitTarget{Center: cfg.Orbit.Center, Radius: cfg.Orbit.Radius, Period: cfg.Orbit.Period}
	}
	return StaticTarget(cfg.Target)
}
