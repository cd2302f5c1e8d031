// Package config holds the run configuration for the sizing loop: input
// netlist, working directory, simulator settings, advisor settings, and
// optimization targets. Values come from defaults, an optional YAML file,
// and SIZELOOP_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sizeloop/sizeloop/internal/orchestrator"
)

// Config is the top-level run configuration.
type Config struct {
	// NetlistPath is the source netlist to optimize.
	NetlistPath string `yaml:"netlist_path"`

	// RunDir is the directory for simulation output and iteration artifacts.
	RunDir string `yaml:"run_dir"`

	// ApplyPath, when set, receives the winning netlist in place (with a
	// timestamped backup). Empty disables apply.
	ApplyPath string `yaml:"apply_path"`

	// NgSpiceBin is the ngspice executable name or path.
	NgSpiceBin string `yaml:"ngspice_bin"`

	// SimTimeoutSeconds bounds a single ngspice invocation.
	SimTimeoutSeconds int `yaml:"sim_timeout_seconds"`

	// IterationTimeoutSeconds bounds one full optimization iteration.
	IterationTimeoutSeconds int `yaml:"iteration_timeout_seconds"`

	// MaxIterations is the number of advisor-driven iterations to run.
	MaxIterations int `yaml:"max_iterations"`

	// Signals are the output node names measured by the simulation plan.
	Signals []string `yaml:"signals"`

	// Targets are metric goals passed to the advisor, e.g. ac_gain_db: 60.
	Targets map[string]float64 `yaml:"targets"`

	// ToolChain is the simulation plan evaluated for every candidate.
	ToolChain orchestrator.ToolChain `yaml:"tool_chain"`

	// Model is the advisor model ID. Empty selects the default.
	Model string `yaml:"model"`

	// MockAdvisor replaces the LLM advisor with the deterministic mock.
	MockAdvisor bool `yaml:"mock_advisor"`

	// AdvisorRPS rate-limits advisor calls. Zero disables limiting.
	AdvisorRPS float64 `yaml:"advisor_rps"`

	// HistoryDB is the SQLite run-history path. Empty disables history.
	HistoryDB string `yaml:"history_db"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		RunDir:                  "sizeloop_run",
		NgSpiceBin:              "ngspice",
		SimTimeoutSeconds:       300,
		IterationTimeoutSeconds: 30,
		MaxIterations:           5,
		Signals:                 []string{"out"},
		Targets:                 map[string]float64{},
		ToolChain: orchestrator.ToolChain{
			ToolCalls: []orchestrator.ToolCall{
				{Name: orchestrator.OpACSimulation},
				{Name: orchestrator.MetricACGain},
				{Name: orchestrator.MetricUnityBandwidth},
			},
		},
	}
}

// SimTimeout returns the simulator timeout as a duration.
func (c Config) SimTimeout() time.Duration {
	return time.Duration(c.SimTimeoutSeconds) * time.Second
}

// IterationTimeout returns the per-iteration timeout as a duration.
func (c Config) IterationTimeout() time.Duration {
	return time.Duration(c.IterationTimeoutSeconds) * time.Second
}

// Validate checks the configuration for values that cannot work.
func (c Config) Validate() error {
	if c.NetlistPath == "" {
		return fmt.Errorf("netlist_path is required")
	}
	if c.RunDir == "" {
		return fmt.Errorf("run_dir is required")
	}
	if c.NgSpiceBin == "" {
		return fmt.Errorf("ngspice_bin is required")
	}
	if c.SimTimeoutSeconds < 1 {
		return fmt.Errorf("sim_timeout_seconds must be at least 1 (got %d)", c.SimTimeoutSeconds)
	}
	if c.IterationTimeoutSeconds < 1 {
		return fmt.Errorf("iteration_timeout_seconds must be at least 1 (got %d)", c.IterationTimeoutSeconds)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1 (got %d)", c.MaxIterations)
	}
	if len(c.ToolChain.ToolCalls) == 0 {
		return fmt.Errorf("tool_chain must contain at least one call")
	}
	return nil
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays SIZELOOP_* environment variables onto the config.
func (c *Config) applyEnv() error {
	if err := parseEnvString("SIZELOOP_NETLIST", &c.NetlistPath); err != nil {
		return err
	}
	if err := parseEnvString("SIZELOOP_RUN_DIR", &c.RunDir); err != nil {
		return err
	}
	if err := parseEnvString("SIZELOOP_APPLY_PATH", &c.ApplyPath); err != nil {
		return err
	}
	if err := parseEnvString("SIZELOOP_NGSPICE_BIN", &c.NgSpiceBin); err != nil {
		return err
	}
	if err := parseEnvInt("SIZELOOP_SIM_TIMEOUT_SECONDS", &c.SimTimeoutSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("SIZELOOP_ITERATION_TIMEOUT_SECONDS", &c.IterationTimeoutSeconds); err != nil {
		return err
	}
	if err := parseEnvInt("SIZELOOP_MAX_ITERATIONS", &c.MaxIterations); err != nil {
		return err
	}
	if err := parseEnvString("SIZELOOP_MODEL", &c.Model); err != nil {
		return err
	}
	if err := parseEnvBool("SIZELOOP_MOCK_ADVISOR", &c.MockAdvisor); err != nil {
		return err
	}
	if err := parseEnvString("SIZELOOP_HISTORY_DB", &c.HistoryDB); err != nil {
		return err
	}
	if err := parseEnvStrings("SIZELOOP_SIGNALS", &c.Signals); err != nil {
		return err
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}

// parseEnvStrings parses a comma-separated list from an environment variable
func parseEnvStrings(key string, dest *[]string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("invalid value for %s: no entries", key)
	}
	*dest = out
	return nil
}
