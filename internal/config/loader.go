package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoadFile decodes a file over Default and validates the result. The
// decoder is picked by extension (.json, otherwise YAML).
func LoadFile(path string) (*Config, error) {
	c := Default()
	if err := decodeFile(path, c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeFile(path string, c *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return decodeJSON(f, c)
	}
	return decodeYAML(f, c)
}

// decodeYAML rejects unknown keys. yaml.v3 builds sequences afresh, so a
// configured scene replaces the one already in c.
func decodeYAML(r io.Reader, c *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return fmt.Errorf("decode yaml config: %w", err)
	}
	return nil
}

// decodeJSON rejects unknown keys. encoding/json decodes array elements into
// the existing backing array, so a configured scene is cleared first.
func decodeJSON(r io.Reader, c *Config) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read json config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var scene struct {
		Simulation struct {
			Agents json.RawMessage `json:"agents"`
		} `json:"simulation"`
	}
	if err = json.Unmarshal(data, &scene); err != nil {
		return fmt.Errorf("decode json config: %w", err)
	}
	if scene.Simulation.Agents != nil {
		c.Simulation.Agents = nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err = dec.Decode(c); err != nil {
		return fmt.Errorf("decode json config: %w", err)
	}
	return nil
}

// EnvPrefix prefixes environment overrides, e.g. BOIDS_SERVER_HTTP_ADDR.
const EnvPrefix = "BOIDS"

// NewViper returns a viper instance preloaded with defaults for every scalar
// key, so environment variables and bound flags can override them.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.encoding", c.Log.Encoding)
	v.SetDefault("simulation.tick_interval", c.Simulation.TickInterval)
	v.SetDefault("simulation.max_ticks", c.Simulation.MaxTicks)
	v.SetDefault("simulation.workers", c.Simulation.Workers)
	v.SetDefault("simulation.parallel_threshold", c.Simulation.ParallelThreshold)
	v.SetDefault("simulation.orbit.enabled", c.Simulation.Orbit.Enabled)
	v.SetDefault("simulation.orbit.radius", c.Simulation.Orbit.Radius)
	v.SetDefault("simulation.orbit.period", c.Simulation.Orbit.Period)
	v.SetDefault("server.enabled", c.Server.Enabled)
	v.SetDefault("server.http_addr", c.Server.HTTPAddr)
	v.SetDefault("server.client_buffer", c.Server.ClientBuffer)
	v.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	v.SetDefault("server.quic.enabled", c.Server.QUIC.Enabled)
	v.SetDefault("server.quic.addr", c.Server.QUIC.Addr)
}

// FromViper is Load over Default.
func FromViper(v *viper.Viper) (*Config, error) {
	return Load(v, Default())
}

// Load decodes the config file set on v (if any) strictly over base, then
// applies env and flag overrides from v and validates. Keys v does not know
// are rejected in every layer.
func Load(v *viper.Viper, base *Config) (*Config, error) {
	c := base
	if path := v.ConfigFileUsed(); path != "" {
		if err := decodeFile(path, c); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	// file values become the floor that env and changed flags override
	setDefaults(v, c)
	if err := v.UnmarshalExact(c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}
