package injector

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/simulation"
	"github.com/zeusync/boids/internal/server"
)

const shutdownTimeout = 5 * time.Second

// App is the wired simulation service.
type App struct {
	Config *config.Config
	Logger *log.Logger
	Events bus.EventBus
	World  *simulation.World
	Driver *simulation.Driver
	Server *server.Server
}

// Run drives the simulation, and serves viewers when the server is enabled,
// until ctx ends or the tick limit is reached.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	// the driver finishing on its own ends the whole app
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.Config.Server.Enabled {
		if err := a.Server.Start(runCtx); err != nil {
			return err
		}
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.Server.Stop(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer stop()
		return a.Driver.Run(runCtx)
	})

	err := g.Wait()
	if syncErr := a.Logger.Sync(); syncErr != nil {
		a.Logger.Debug("Logger sync failed", log.Error(syncErr))
	}
	return err
}
