package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/boids/internal/core/observability/log"
)

// Driver steps a world once per tick from its source and hands each frame to
// the sinks.
type Driver struct {
	world    *World
	ticks    TickSource
	targets  TargetProvider
	sinks    []FrameSink
	maxTicks uint64
	logger   log.Log
}

type DriverOption func(*Driver)

func WithSinks(sinks ...FrameSink) DriverOption {
	return func(d *Driver) { d.sinks = append(d.sinks, sinks...) }
}

// WithMaxTicks stops the driver after n steps; zero runs until cancelled.
func WithMaxTicks(n uint64) DriverOption {
	return func(d *Driver) { d.maxTicks = n }
}

func NewDriver(world *World, ticks TickSource, targets TargetProvider, logger log.Log, opts ...DriverOption) *Driver {
	if logger == nil {
		logger = log.Provide()
	}
	d := &Driver{
		world:   world,
		ticks:   ticks,
		targets: targets,
		logger:  logger.With(log.String("component", "driver")),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run blocks until ctx is cancelled, the tick limit is reached or the tick
// source closes. Cancellation and the tick limit are a clean stop and return
// nil; a closed source returns ErrTickSourceClosed.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("Simulation started",
		log.Int("agents", len(d.world.Agents())),
		log.Uint64("max_ticks", d.maxTicks))

	started := time.Now()
	var steps uint64
	defer func() {
		d.logger.Info("Simulation stopped",
			log.Uint64("steps", steps),
			log.Uint64("tick", d.world.Tick()),
			log.Duration("elapsed", time.Since(started)))
	}()

	for {
		if d.maxTicks > 0 && steps >= d.maxTicks {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-d.ticks.Ticks():
			if !ok {
				return ErrTickSourceClosed
			}
		}

		target := d.targets.Target(d.world.Tick() + 1)
		frame, err := d.world.Step(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			d.logger.Error("Simulation step failed", log.Uint64("tick", d.world.Tick()), log.Error(err))
			return err
		}
		steps++

		for _, sink := range d.sinks {
			if err = sink.Consume(ctx, frame); err != nil {
				d.logger.Error("Frame sink failed", log.Uint64("tick", frame.Tick), log.Error(err))
				return fmt.Errorf("frame %d: %w", frame.Tick, err)
			}
		}

		if frame.Tick%600 == 0 {
			d.logger.Debug("Simulation progress",
				log.Uint64("tick", frame.Tick),
				log.Stringer("target", frame.Target))
		}
	}
}

// Pause suspends the tick source, if it supports it. It reports whether the
// request had any effect.
func (d *Driver) Pause() bool {
	p, ok := d.ticks.(Pauser)
	if ok {
		p.Pause()
		d.logger.Info("Simulation paused", log.Uint64("tick", d.world.Tick()))
	}
	return ok
}

func (d *Driver) Resume() bool {
	p, ok := d.ticks.(Pauser)
	if ok {
		p.Resume()
		d.logger.Info("Simulation resumed", log.Uint64("tick", d.world.Tick()))
	}
	return ok
}

func (d *Driver) Paused() bool {
	p, ok := d.ticks.(Pauser)
	return ok && p.Paused()
}

func (d *Driver) World() *World { return d.world }
