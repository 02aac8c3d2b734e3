package systems

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var ErrSystemExists = errors.New("system already registered")

// System is one stage of the per-tick pipeline over a world of type W.
type System[W any] interface {
	Name() string
	Priority() Priority
	Update(ctx context.Context, tick uint64, world W) error
}

// Priority defines execution order; higher runs first.
type Priority uint16

const (
	PriorityLowest  Priority = 100
	PriorityLow     Priority = 500
	PriorityNormal  Priority = 600
	PriorityHigh    Priority = 1000
	PriorityHighest Priority = 1300
)

// Metrics provides runtime metrics for a system
type Metrics struct {
	ExecutionCount       uint64
	TotalExecutionTime   time.Duration
	AverageExecutionTime time.Duration
	MaxExecutionTime     time.Duration
	MinExecutionTime     time.Duration
	ErrorCount           uint64
	LastError            error
	LastExecutionTime    time.Time
}

func (m *Metrics) record(start time.Time, elapsed time.Duration, err error) {
	m.ExecutionCount++
	m.TotalExecutionTime += elapsed
	m.AverageExecutionTime = m.TotalExecutionTime / time.Duration(m.ExecutionCount)
	if elapsed > m.MaxExecutionTime {
		m.MaxExecutionTime = elapsed
	}
	if m.ExecutionCount == 1 || elapsed < m.MinExecutionTime {
		m.MinExecutionTime = elapsed
	}
	if err != nil {
		m.ErrorCount++
		m.LastError = err
	}
	m.LastExecutionTime = start
}

type registered[W any] struct {
	system  System[W]
	order   int
	metrics Metrics
}

// Runner executes registered systems in priority order. Systems with equal
// priority run in registration order.
type Runner[W any] struct {
	mu      sync.Mutex
	systems []*registered[W]
	seq     int
	clock   func() time.Time
}

func NewRunner[W any]() *Runner[W] {
	return &Runner[W]{clock: time.Now}
}

func (r *Runner[W]) Register(s System[W]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.systems {
		if reg.system.Name() == s.Name() {
			return fmt.Errorf("%w: %s", ErrSystemExists, s.Name())
		}
	}
	r.seq++
	r.systems = append(r.systems, &registered[W]{system: s, order: r.seq})
	sort.SliceStable(r.systems, func(i, j int) bool {
		if r.systems[i].system.Priority() != r.systems[j].system.Priority() {
			return r.systems[i].system.Priority() > r.systems[j].system.Priority()
		}
		return r.systems[i].order < r.systems[j].order
	})
	return nil
}

// Names lists systems in execution order.
func (r *Runner[W]) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, len(r.systems))
	for i, reg := range r.systems {
		names[i] = reg.system.Name()
	}
	return names
}

// Run executes every system once for tick. It stops at the first
// failing system so later stages never see a half-updated world.
func (r *Runner[W]) Run(ctx context.Context, tick uint64, world W) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.systems {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := r.clock()
		err := reg.system.Update(ctx, tick, world)
		reg.metrics.record(start, r.clock().Sub(start), err)
		if err != nil {
			return fmt.Errorf("system %s: %w", reg.system.Name(), err)
		}
	}
	return nil
}

func (r *Runner[W]) Metrics(name string) (Metrics, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reg := range r.systems {
		if reg.system.Name() == name {
			return reg.metrics, true
		}
	}
	return Metrics{}, false
}
