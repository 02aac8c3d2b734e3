package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/server"
)

// ProviderSet builds everything the serve command needs from a Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	wire.Bind(new(log.Log), new(*log.Logger)),
	ProvideEventBus,
	ProvideWorld,
	ProvideTargetStore,
	ProvideTargetProvider,
	ProvideTicker,
	wire.Bind(new(simulation.TickSource), new(*simulation.Ticker)),
	ProvideDriver,
	wire.Bind(new(server.Controller), new(*simulation.Driver)),
	ProvideServer,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	return log.New(level, log.WithEncoding(cfg.Log.Encoding)), nil
}

func ProvideEventBus() bus.EventBus {
	return bus.New()
}

func ProvideWorld(cfg *config.Config, eb bus.EventBus, logger log.Log) (*simulation.World, error) {
	return simulation.NewWorldFromConfig(cfg.Simulation, eb, logger)
}

func ProvideTargetStore(cfg *config.Config) *simulation.TargetStore {
	return simulation.NewTargetStore(cfg.Simulation.Target)
}

// ProvideTargetProvider lets viewers steer unless a scripted orbit is
// configured.
func ProvideTargetProvider(cfg *config.Config, store *simulation.TargetStore) simulation.TargetProvider {
	if cfg.Simulation.Orbit.Enabled {
		return simulation.NewTargetProvider(cfg.Simulation)
	}
	return store
}

func ProvideTicker(cfg *config.Config) (*simulation.Ticker, func(), error) {
	t, err := simulation.NewTicker(cfg.Simulation.TickInterval)
	if err != nil {
		return nil, nil, err
	}
	return t, t.Stop, nil
}

func ProvideDriver(
	cfg *config.Config,
	world *simulation.World,
	ticks simulation.TickSource,
	targets simulation.TargetProvider,
	eb bus.EventBus,
	logger log.Log,
) *simulation.Driver {
	return simulation.NewDriver(world, ticks, targets, logger,
		simulation.WithSinks(simulation.NewBusSink(eb, "driver")),
		simulation.WithMaxTicks(cfg.Simulation.MaxTicks))
}

func ProvideServer(
	cfg *config.Config,
	eb bus.EventBus,
	store *simulation.TargetStore,
	control server.Controller,
	world *simulation.World,
	logger log.Log,
) *server.Server {
	return server.New(cfg.Server, eb, store, control, world, logger)
}
