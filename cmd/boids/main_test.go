package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/boids/internal/config"
	"github.com/zeusync/boids/internal/core/simulation"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeFrames(t *testing.T, out string) []simulation.Frame {
	t.Helper()
	var frames []simulation.Frame
	sc := bufio.NewScanner(bytes.NewBufferString(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var f simulation.Frame
		require.NoError(t, json.Unmarshal(sc.Bytes(), &f))
		frames = append(frames, f)
	}
	require.NoError(t, sc.Err())
	return frames
}

func TestSimulatePrintsOneFramePerTick(t *testing.T) {
	out, err := runCmd(t, "simulate", "--ticks", "25", "--log-level", "silent")
	require.NoError(t, err)

	frames := decodeFrames(t, out)
	require.Len(t, frames, 25)
	assert.Equal(t, uint64(1), frames[0].Tick)
	assert.Equal(t, uint64(25), frames[24].Tick)

	last := frames[24]
	red, ok := last.Agent("red")
	require.True(t, ok)
	blue, ok := last.Agent("blue")
	require.True(t, ok)
	assert.LessOrEqual(t, red.Velocity.Magnitude(), 0.1+1e-9)
	assert.LessOrEqual(t, blue.Velocity.Magnitude(), 1.0+1e-9)
	assert.Greater(t, blue.Location.Magnitude(), red.Location.Magnitude(), "the faster agent covers more ground")
}

func TestSimulateWithoutOrbitStaysPut(t *testing.T) {
	out, err := runCmd(t, "simulate", "--ticks", "3", "--orbit=false", "--log-level", "silent")
	require.NoError(t, err)

	for _, f := range decodeFrames(t, out) {
		for _, a := range f.Agents {
			assert.True(t, a.Location.IsZero(), a.Name)
			assert.True(t, a.Arrived, a.Name)
		}
	}
}

func TestSimulateReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: silent
simulation:
  target: {x: 30, y: 0, z: 0}
  orbit:
    enabled: false
  agents:
    - name: green
      behavior: arrive
      max_force: 2
      max_speed: 3
`), 0o600))

	out, err := runCmd(t, "simulate", "--config", path, "--ticks", "2")
	require.NoError(t, err)

	frames := decodeFrames(t, out)
	require.Len(t, frames, 2)
	require.Len(t, frames[1].Agents, 1)
	assert.Equal(t, "green", frames[1].Agents[0].Name)
	assert.Greater(t, frames[1].Agents[0].Location.X, 0.0)
}

func TestConfigFileRejectsMisspelledKeys(t *testing.T) {
	dir := t.TempDir()
	for name, doc := range map[string]string{
		"scene.yaml": "simulation:\n  tick_intervall: 20ms\n",
		"scene.json": `{"simulation":{"agents":[{"name":"green","behavior":"arrive","max_sped":3}]}}`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

		out, err := runCmd(t, "simulate", "--config", path, "--ticks", "1", "--log-level", "silent")
		assert.Error(t, err, name)
		assert.Empty(t, out, name)
	}
}

func TestCheckPrintsResolvedConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"simulation":{"workers":3}}`), 0o600))

	out, err := runCmd(t, "check", path)
	require.NoError(t, err)

	resolved := filepath.Join(dir, "resolved.yaml")
	require.NoError(t, os.WriteFile(resolved, []byte(out), 0o600))
	c, err := config.LoadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Simulation.Workers)
	assert.Equal(t, config.Default().Simulation.Agents, c.Simulation.Agents)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server:\n  http_adr: :9000\n"), 0o600))
	_, err = runCmd(t, "check", bad)
	assert.Error(t, err)
}

func TestSimulateRejectsZeroTicks(t *testing.T) {
	_, err := runCmd(t, "simulate", "--ticks", "0", "--log-level", "silent")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runCmd(t, "simulate", "--ticks", "1", "--log-level", "chatty")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
