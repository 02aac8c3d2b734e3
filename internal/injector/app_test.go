package injector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/core/systems/physics"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Log.Level = "silent"
	cfg.Simulation.TickInterval = time.Millisecond
	cfg.Simulation.MaxTicks = 5
	cfg.Server.HTTPAddr = "127.0.0.1:0"
	cfg.Server.Enabled = false
	return cfg
}

func TestInitializeAppRunsToTickLimit(t *testing.T) {
	app, cleanup, err := InitializeApp(testConfig())
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, app.Run(ctx))
	assert.Equal(t, uint64(5), app.World.Tick())
	assert.Len(t, app.World.Agents(), 2)
}

func TestInitializeAppWithServer(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Enabled = true
	cfg.Simulation.MaxTicks = 0

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool { return app.Server.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return app.World.Tick() > 3 }, 2*time.Second, 5*time.Millisecond)

	health := app.Server.Health()
	require.Len(t, health.Systems, 2)
	assert.Equal(t, simulation.SteeringSystemName, health.Systems[0].Name)
	assert.Greater(t, health.Systems[0].Runs, uint64(3))
	assert.NotZero(t, health.Bus.Published)
	cancel()

	select {
	case err = <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestInitializeAppRejectsBadLogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Level = "loud"

	_, _, err := InitializeApp(cfg)
	assert.Error(t, err)
}

func TestProvideTargetProvider(t *testing.T) {
	cfg := testConfig()
	store := ProvideTargetStore(cfg)

	cfg.Simulation.Orbit.Enabled = false
	assert.Same(t, store, ProvideTargetProvider(cfg, store))

	cfg.Simulation.Orbit.Enabled = true
	_, ok := ProvideTargetProvider(cfg, store).(simulation.OrbitTarget)
	assert.True(t, ok)
}

func TestProvideTickerRejectsZeroInterval(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.TickInterval = 0

	_, _, err := ProvideTicker(cfg)
	assert.ErrorIs(t, err, simulation.ErrInvalidTicker)
}

func TestProvideWorldUsesConfiguredTarget(t *testing.T) {
	cfg := testConfig()
	cfg.Simulation.Target = physics.Vec3(1, 2, 3)

	logger, err := ProvideLogger(cfg)
	require.NoError(t, err)
	w, err := ProvideWorld(cfg, ProvideEventBus(), logger)
	require.NoError(t, err)
	assert.Equal(t, physics.Vec3(1, 2, 3), w.Target())
}
