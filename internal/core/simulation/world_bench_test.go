package simulation

import (
	"context"
	"fmt"
	"testing"

	"github.com/zeusync/boids/internal/core/events/bus"
	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/systems/physics"
	"github.com/zeusync/boids/internal/core/systems/steering"
)

func benchmarkStep(b *testing.B, agents int, opts Options) {
	w := NewWorld(bus.New(), log.Nop(), opts)
	for i := 0; i < agents; i++ {
		_, err := w.Spawn(AgentDef{
			Name:     fmt.Sprintf("agent-%d", i),
			Behavior: steering.Behavior(i % 2),
			Location: physics.Vec3(float64(i), float64(-i), 0),
			MaxForce: 4,
			MaxSpeed: 1,
		})
		if err != nil {
			b.Fatal(err)
		}
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := w.Step(ctx, physics.Vec3(float64(i%200), 0, 0)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkWorldStepSerial(b *testing.B) {
	benchmarkStep(b, 1024, Options{Workers: 1})
}

func BenchmarkWorldStepParallel(b *testing.B) {
	benchmarkStep(b, 1024, Options{Workers: 8, ParallelThreshold: 64})
}
