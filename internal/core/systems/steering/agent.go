// Package steering implements force-limited seek and arrive steering for
// point agents. An agent accumulates steering force during a tick and
// integrates it with Advance; nothing here knows about rendering or time.
package steering

import (
	"fmt"
	"math"

	"github.com/zeusync/boids/internal/core/systems/physics"
)

const (
	// DeadZone is the distance at or below which an agent is considered to be
	// at its target and receives no steering force.
	DeadZone = 1.0
	// SlowingRadius is the distance inside which Arrive ramps the desired
	// speed down linearly to zero.
	SlowingRadius = 100.0
	// DefaultRadius is the collision radius given to agents without WithRadius.
	DefaultRadius = 2.0
)

// Agent is one autonomous body. Velocity and acceleration are per tick: Advance
// is a fixed step of exactly one tick.
type Agent struct {
	location     physics.Vector3
	velocity     physics.Vector3
	acceleration physics.Vector3

	radius   float64
	maxForce float64
	maxSpeed float64
}

// Option configures an Agent at construction.
type Option func(*options)

type options struct {
	radius   float64
	velocity physics.Vector3
	relaxed  bool
}

// WithRadius overrides DefaultRadius.
func WithRadius(r float64) Option {
	return func(o *options) { o.radius = r }
}

// WithVelocity sets the starting velocity. It is clamped to maxSpeed.
func WithVelocity(v physics.Vector3) Option {
	return func(o *options) { o.velocity = v }
}

// WithRelaxedValidation accepts any maxForce/maxSpeed, including negative
// ones. Negative limits make every clamp flip direction; use only to replay
// scenes recorded without validation.
func WithRelaxedValidation() Option {
	return func(o *options) { o.relaxed = true }
}

// NewAgent creates an agent at location with the given force and speed limits.
func NewAgent(location physics.Vector3, maxForce, maxSpeed float64, opts ...Option) (*Agent, error) {
	o := options{radius: DefaultRadius}
	for _, opt := range opts {
		opt(&o)
	}

	if !o.relaxed {
		if err := validateLimit("maxForce", maxForce); err != nil {
			return nil, err
		}
		if err := validateLimit("maxSpeed", maxSpeed); err != nil {
			return nil, err
		}
		if err := validateLimit("radius", o.radius); err != nil {
			return nil, err
		}
		if !location.IsFinite() {
			return nil, fmt.Errorf("%w: location %v is not finite", ErrInvalidParameter, location)
		}
		if !o.velocity.IsFinite() {
			return nil, fmt.Errorf("%w: velocity %v is not finite", ErrInvalidParameter, o.velocity)
		}
	}

	a := &Agent{
		location: location,
		velocity: o.velocity,
		radius:   o.radius,
		maxForce: maxForce,
		maxSpeed: maxSpeed,
	}
	a.velocity = a.velocity.Limit(a.maxSpeed)
	return a, nil
}

func validateLimit(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidParameter, name, v)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must be >= 0, got %v", ErrInvalidParameter, name, v)
	}
	return nil
}

func (a *Agent) Location() physics.Vector3     { return a.location }
func (a *Agent) Velocity() physics.Vector3     { return a.velocity }
func (a *Agent) Acceleration() physics.Vector3 { return a.acceleration }
func (a *Agent) Radius() float64               { return a.radius }
func (a *Agent) MaxForce() float64             { return a.maxForce }
func (a *Agent) MaxSpeed() float64             { return a.maxSpeed }

// State is a read-only copy of an agent's kinematics.
type State struct {
	Location     physics.Vector3 `json:"location"`
	Velocity     physics.Vector3 `json:"velocity"`
	Acceleration physics.Vector3 `json:"acceleration"`
	Radius       float64         `json:"radius"`
	MaxForce     float64         `json:"max_force"`
	MaxSpeed     float64         `json:"max_speed"`
}

// Snapshot copies the agent's current state.
func (a *Agent) Snapshot() State {
	return State{
		Location:     a.location,
		Velocity:     a.velocity,
		Acceleration: a.acceleration,
		Radius:       a.radius,
		MaxForce:     a.maxForce,
		MaxSpeed:     a.maxSpeed,
	}
}

// DesiredVelocity is the velocity the agent would like to have to reach
// target: full speed toward it, or, when slowDown is set and the target is
// inside SlowingRadius, a speed proportional to the remaining distance. It is
// zero inside DeadZone.
func (a *Agent) DesiredVelocity(target physics.Vector3, slowDown bool) physics.Vector3 {
	desired := target.Sub(a.location)
	distance := desired.Magnitude()
	if distance <= DeadZone {
		return physics.Zero
	}

	desired = desired.Normalize()
	if slowDown && distance < SlowingRadius {
		return desired.Scale(a.maxSpeed * (distance / SlowingRadius))
	}
	return desired.Scale(a.maxSpeed)
}

// SteeringForce returns the force that moves the current velocity toward the
// desired velocity, limited to maxForce. Seek and Arrive both go through here
// and differ only in slowDown.
func (a *Agent) SteeringForce(target physics.Vector3, slowDown bool) physics.Vector3 {
	if a.location.Distance(target) <= DeadZone {
		return physics.Zero
	}

	return a.DesiredVelocity(target, slowDown).Sub(a.velocity).Limit(a.maxForce)
}

// Heading is the unit vector from the agent toward target, or zero when the
// two coincide. Renderers use it as the facing direction.
func (a *Agent) Heading(target physics.Vector3) physics.Vector3 {
	return target.Sub(a.location).Normalize()
}

// ApplyForce adds f to this tick's accumulated acceleration.
func (a *Agent) ApplyForce(f physics.Vector3) {
	a.acceleration = a.acceleration.Add(f)
}

// Seek accumulates a full-speed steering force toward target and returns the
// heading toward it.
func (a *Agent) Seek(target physics.Vector3) physics.Vector3 {
	a.ApplyForce(a.SteeringForce(target, false))
	return a.Heading(target)
}

// Arrive is Seek with deceleration inside SlowingRadius.
func (a *Agent) Arrive(target physics.Vector3) physics.Vector3 {
	a.ApplyForce(a.SteeringForce(target, true))
	return a.Heading(target)
}

// Advance integrates one tick: velocity picks up the accumulated force and is
// capped at maxSpeed, location moves by velocity, acceleration resets.
func (a *Agent) Advance() {
	a.velocity = a.velocity.Add(a.acceleration).Limit(a.maxSpeed)
	a.location = a.location.Add(a.velocity)
	a.acceleration = physics.Zero
}
