package orchestrator

import "strings"

// ToolCall names one requested operation. Matching is case-insensitive and
// unrecognized names are skipped, so chains written for newer versions of
// the tool degrade gracefully on older ones.
type ToolCall struct {
	Name string         `json:"name" yaml:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// ToolChain is an ordered list of operations for one evaluation. Order
// encodes the build-then-run-then-analyze dependency.
type ToolChain struct {
	ToolCalls []ToolCall `json:"tool_calls" yaml:"tool_calls"`
}

// Operation names recognized in a tool chain.
const (
	OpACSimulation   = "ac_simulation"
	OpTranSimulation = "transient_simulation"
	OpDCSimulation   = "dc_simulation"
	OpRunSimulator   = "run_simulator"

	MetricACGain         = "ac_gain"
	MetricBandwidth      = "bandwidth"
	MetricUnityBandwidth = "unity_bandwidth"
	MetricPhaseMargin    = "phase_margin"
	MetricTranGain       = "tran_gain"
)

// normalizeName lowercases a tool-call name and folds the transient
// simulation aliases onto one canonical spelling.
func normalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "tran_simulation", "transient":
		return OpTranSimulation
	case "run_ngspice":
		// legacy spelling from older chain files
		return OpRunSimulator
	}
	return n
}
