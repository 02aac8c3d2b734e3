package simulation

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/zeusync/boids/internal/core/systems/physics"
	"github.com/zeusync/boids/internal/core/systems/steering"
)

// AgentID identifies an agent for the lifetime of a world.
type AgentID = uuid.UUID

// AgentState is what collaborators see of an agent after a tick.
type AgentState struct {
	ID       AgentID           `json:"id"`
	Name     string            `json:"name"`
	Behavior steering.Behavior `json:"behavior"`
	Location physics.Vector3   `json:"location"`
	Velocity physics.Vector3   `json:"velocity"`
	// Heading is the unit facing toward the target used this tick.
	Heading physics.Vector3 `json:"heading"`
	Radius  float64         `json:"radius"`
	Arrived bool            `json:"arrived"`
}

// Frame is the world after one tick.
type Frame struct {
	Tick   uint64          `json:"tick"`
	Target physics.Vector3 `json:"target"`
	Agents []AgentState    `json:"agents"`
}

// Digest hashes everything but the tick number, so two frames of a world at
// rest hash equal.
func (f Frame) Digest() uint64 {
	d := xxhash.New()
	buf := make([]byte, 0, 128)

	buf = appendVector(buf, f.Target)
	for _, a := range f.Agents {
		buf = append(buf, a.ID[:]...)
		buf = append(buf, byte(a.Behavior))
		buf = appendVector(buf, a.Location)
		buf = appendVector(buf, a.Velocity)
		buf = appendVector(buf, a.Heading)
		if a.Arrived {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
		_, _ = d.Write(buf)
		buf = buf[:0]
	}
	_, _ = d.Write(buf)
	return d.Sum64()
}

func appendVector(buf []byte, v physics.Vector3) []byte {
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.X))
	buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Y))
	return binary.LittleEndian.AppendUint64(buf, math.Float64bits(v.Z))
}

// Agent returns the state for name, if present.
func (f Frame) Agent(name string) (AgentState, bool) {
	for _, a := range f.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentState{}, false
}
