package config

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeusync/boids/internal/core/observability/log"
	"github.com/zeusync/boids/internal/core/systems/physics"
	"github.com/zeusync/boids/internal/core/systems/steering"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the full application configuration.
type Config struct {
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation" mapstructure:"simulation"`
	Server     ServerConfig     `json:"server" yaml:"server" mapstructure:"server"`
}

type LogConfig struct {
	Level    string `json:"level" yaml:"level" mapstructure:"level"`
	Encoding string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`
}

// SimulationConfig describes the scene and the tick loop.
type SimulationConfig struct {
	TickInterval time.Duration `json:"tick_interval" yaml:"tick_interval" mapstructure:"tick_interval"`
	// MaxTicks stops the loop after that many ticks; 0 runs until cancelled.
	MaxTicks uint64 `json:"max_ticks,omitempty" yaml:"max_ticks,omitempty" mapstructure:"max_ticks"`
	// Workers bounds parallel agent updates; 0 means one goroutine per agent.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`
	// ParallelThreshold is the agent count from which updates fan out.
	ParallelThreshold int             `json:"parallel_threshold" yaml:"parallel_threshold" mapstructure:"parallel_threshold"`
	Target            physics.Vector3 `json:"target" yaml:"target" mapstructure:"target"`
	Orbit             OrbitConfig     `json:"orbit" yaml:"orbit" mapstructure:"orbit"`
	Agents            []AgentConfig   `json:"agents" yaml:"agents" mapstructure:"agents"`
}

// OrbitConfig scripts a target that circles Center; used when no viewer
// drives the target.
type OrbitConfig struct {
	Enabled bool            `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Center  physics.Vector3 `json:"center" yaml:"center" mapstructure:"center"`
	Radius  float64         `json:"radius" yaml:"radius" mapstructure:"radius"`
	// Period is the number of ticks for one full revolution.
	Period uint64 `json:"period" yaml:"period" mapstructure:"period"`
}

type AgentConfig struct {
	Name     string          `json:"name" yaml:"name" mapstructure:"name"`
	Behavior string          `json:"behavior" yaml:"behavior" mapstructure:"behavior"`
	Location physics.Vector3 `json:"location" yaml:"location" mapstructure:"location"`
	MaxForce float64         `json:"max_force" yaml:"max_force" mapstructure:"max_force"`
	MaxSpeed float64         `json:"max_speed" yaml:"max_speed" mapstructure:"max_speed"`
	Radius   float64         `json:"radius,omitempty" yaml:"radius,omitempty" mapstructure:"radius"`
}

type ServerConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	HTTPAddr string `json:"http_addr" yaml:"http_addr" mapstructure:"http_addr"`
	// ClientBuffer is the per-viewer frame queue; full queues drop frames.
	ClientBuffer int           `json:"client_buffer" yaml:"client_buffer" mapstructure:"client_buffer"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`
	// AllowedOrigins restricts WebSocket upgrades; empty allows any origin.
	AllowedOrigins []string   `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" mapstructure:"allowed_origins"`
	QUIC           QUICConfig `json:"quic" yaml:"quic" mapstructure:"quic"`
}

type QUICConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" yaml:"addr" mapstructure:"addr"`
	// CertFile and KeyFile select a certificate; both empty means self-signed.
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty" mapstructure:"cert_file"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty" mapstructure:"key_file"`
}

// Default reproduces the two-boid demo: a slow seeker and a fast arriver
// chasing a target at the origin.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		Simulation: SimulationConfig{
			TickInterval:      16 * time.Millisecond,
			Workers:           4,
			ParallelThreshold: 64,
			Orbit: OrbitConfig{
				Radius: 40,
				Period: 600,
			},
			Agents: []AgentConfig{
				{Name: "red", Behavior: "seek", MaxForce: 4.0, MaxSpeed: 0.1, Radius: steering.DefaultRadius},
				{Name: "blue", Behavior: "arrive", MaxForce: 4.0, MaxSpeed: 1.0, Radius: steering.DefaultRadius},
			},
		},
		Server: ServerConfig{
			Enabled:      true,
			HTTPAddr:     "127.0.0.1:8080",
			ClientBuffer: 64,
			WriteTimeout: 5 * time.Second,
			QUIC: QUICConfig{
				Addr: "127.0.0.1:8443",
			},
		},
	}
}

// Validate reports every problem at once, each wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		fail("log.encoding must be json or console, got %q", c.Log.Encoding)
	}

	sim := c.Simulation
	if sim.TickInterval <= 0 {
		fail("simulation.tick_interval must be positive, got %v", sim.TickInterval)
	}
	if sim.Workers < 0 {
		fail("simulation.workers must be >= 0, got %d", sim.Workers)
	}
	if sim.ParallelThreshold < 0 {
		fail("simulation.parallel_threshold must be >= 0, got %d", sim.ParallelThreshold)
	}
	if !sim.Target.IsFinite() {
		fail("simulation.target must be finite")
	}
	if sim.Orbit.Enabled {
		if sim.Orbit.Period == 0 {
			fail("simulation.orbit.period must be positive")
		}
		if sim.Orbit.Radius < 0 || math.IsNaN(sim.Orbit.Radius) {
			fail("simulation.orbit.radius must be >= 0")
		}
	}
	if len(sim.Agents) == 0 {
		fail("simulation.agents must not be empty")
	}
	seen := make(map[string]struct{}, len(sim.Agents))
	for i, a := range sim.Agents {
		if err := a.Validate(); err != nil {
			fail("simulation.agents[%d]: %v", i, err)
		}
		if _, dup := seen[a.Name]; dup {
			fail("simulation.agents[%d]: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = struct{}{}
	}

	if c.Server.Enabled {
		if c.Server.HTTPAddr == "" {
			fail("server.http_addr is required")
		}
		if c.Server.ClientBuffer <= 0 {
			fail("server.client_buffer must be positive")
		}
		if c.Server.WriteTimeout <= 0 {
			fail("server.write_timeout must be positive")
		}
		q := c.Server.QUIC
		if q.Enabled && q.Addr == "" {
			fail("server.quic.addr is required when quic is enabled")
		}
		if (q.CertFile == "") != (q.KeyFile == "") {
			fail("server.quic cert_file and key_file must be set together")
		}
	}

	return errors.Join(errs...)
}

// Validate checks one agent entry.
func (a AgentConfig) Validate() error {
	if a.Name == "" {
		return errors.New("name is required")
	}
	if _, err := steering.ParseBehavior(a.Behavior); err != nil {
		return err
	}
	if !a.Location.IsFinite() {
		return errors.New("location must be finite")
	}
	for name, v := range map[string]float64{"max_force": a.MaxForce, "max_speed": a.MaxSpeed, "radius": a.Radius} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be a finite value >= 0, got %v", name, v)
		}
	}
	return nil
}
