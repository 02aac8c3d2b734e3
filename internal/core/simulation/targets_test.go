package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

func posInf() float64 { return math.Inf(1) }

func TestStaticTarget(t *testing.T) {
	s := StaticTarget(physics.Vec3(1, 2, 3))
	assert.Equal(t, physics.Vec3(1, 2, 3), s.Target(0))
	assert.Equal(t, physics.Vec3(1, 2, 3), s.Target(1000))
}

func TestTargetStore(t *testing.T) {
	s := NewTargetStore(physics.Vec3(1, 0, 0))
	assert.Equal(t, physics.Vec3(1, 0, 0), s.Target(1))

	require.NoError(t, s.Set(physics.Vec3(-4, 5, 6)))
	assert.Equal(t, physics.Vec3(-4, 5, 6), s.Get())

	err := s.Set(physics.Vec3(math.NaN(), 0, 0))
	assert.ErrorIs(t, err, ErrInvalidTarget)
	assert.Equal(t, physics.Vec3(-4, 5, 6), s.Get())
}

func TestOrbitTarget(t *testing.T) {
	o := OrbitTarget{Center: physics.Vec3(10, 10, 5), Radius: 4, Period: 100}

	assert.True(t, o.Target(0).ApproxEqual(physics.Vec3(14, 10, 5), 1e-9))
	assert.True(t, o.Target(25).ApproxEqual(physics.Vec3(10, 14, 5), 1e-9))
	assert.True(t, o.Target(50).ApproxEqual(physics.Vec3(6, 10, 5), 1e-9))
	assert.True(t, o.Target(100).ApproxEqual(o.Target(0), 1e-9))

	for tick := uint64(0); tick < 100; tick += 7 {
		assert.InDelta(t, 4.0, o.Target(tick).Distance(o.Center), 1e-9)
	}

	pinned := OrbitTarget{Center: physics.Vec3(1, 1, 1), Radius: 4}
	assert.Equal(t, physics.Vec3(1, 1, 1), pinned.Target(42))
}

func TestNewTargetProvider(t *testing.T) {
	cfg := config.Default().Simulation
	cfg.Target = physics.Vec3(3, 3, 3)

	cfg.Orbit.Enabled = false
	assert.Equal(t, StaticTarget(physics.Vec3(3, 3, 3)), NewTargetProvider(cfg))

	cfg.Orbit.Enabled = true
	orbit, ok := NewTargetProvider(cfg).(OrbitTarget)
	require.True(t, ok)
	assert.Equal(t, cfg.Orbit.Radius, orbit.Radius)
	assert.Equal(t, cfg.Orbit.Period, orbit.Period)
}
