package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sizeloop/sizeloop/internal/orchestrator"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "ngspice", cfg.NgSpiceBin)
	assert.Equal(t, 30, cfg.IterationTimeoutSeconds)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, []string{"out"}, cfg.Signals)
	require.NotEmpty(t, cfg.ToolChain.ToolCalls)
	assert.Equal(t, orchestrator.OpACSimulation, cfg.ToolChain.ToolCalls[0].Name)
}

func TestValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.NetlistPath = "amp.cir"
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing netlist", func(c *Config) { c.NetlistPath = "" }},
		{"missing run dir", func(c *Config) { c.RunDir = "" }},
		{"missing ngspice bin", func(c *Config) { c.NgSpiceBin = "" }},
		{"zero sim timeout", func(c *Config) { c.SimTimeoutSeconds = 0 }},
		{"zero iteration timeout", func(c *Config) { c.IterationTimeoutSeconds = 0 }},
		{"zero max iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"empty tool chain", func(c *Config) { c.ToolChain.ToolCalls = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `netlist_path: amp.cir
run_dir: /tmp/siz
max_iterations: 12
targets:
  ac_gain_db: 60
  unity_bandwidth_hz: 1e6
signals: [out, vout2]
tool_chain:
  tool_calls:
    - name: transient_simulation
    - name: tran_gain
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "amp.cir", cfg.NetlistPath)
	assert.Equal(t, "/tmp/siz", cfg.RunDir)
	assert.Equal(t, 12, cfg.MaxIterations)
	assert.Equal(t, 60.0, cfg.Targets["ac_gain_db"])
	assert.Equal(t, 1e6, cfg.Targets["unity_bandwidth_hz"])
	assert.Equal(t, []string{"out", "vout2"}, cfg.Signals)
	require.Len(t, cfg.ToolChain.ToolCalls, 2)
	assert.Equal(t, "transient_simulation", cfg.ToolChain.ToolCalls[0].Name)

	// Untouched fields keep their defaults.
	assert.Equal(t, "ngspice", cfg.NgSpiceBin)
	assert.Equal(t, 30, cfg.IterationTimeoutSeconds)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("netlist_path: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SIZELOOP_NETLIST", "env.cir")
	t.Setenv("SIZELOOP_MAX_ITERATIONS", "3")
	t.Setenv("SIZELOOP_MOCK_ADVISOR", "true")
	t.Setenv("SIZELOOP_SIGNALS", "vout, vfb")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "env.cir", cfg.NetlistPath)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.True(t, cfg.MockAdvisor)
	assert.Equal(t, []string{"vout", "vfb"}, cfg.Signals)
}

func TestEnvOverridesBeatYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("netlist_path: file.cir\n"), 0644))
	t.Setenv("SIZELOOP_NETLIST", "env.cir")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env.cir", cfg.NetlistPath)
}

func TestEnvInvalidInt(t *testing.T) {
	t.Setenv("SIZELOOP_MAX_ITERATIONS", "many")

	_, err := Load("")
	assert.Error(t, err)
}

func TestTimeoutAccessors(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "5m0s", cfg.SimTimeout().String())
	assert.Equal(t, "30s", cfg.IterationTimeout().String())
}
