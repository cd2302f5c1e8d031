// Package sim wraps the external circuit simulator process.
//
// The simulator is a black box: it consumes a netlist file, writes waveform
// tables via wrdata into its working directory, and prints the operating
// point to stdout/stderr. This package owns process lifecycle (bounded
// execution, process-group kill on cancellation) and the op.txt / bias
// summary artifacts; metric extraction lives in internal/waveform.
package sim

import (
	"context"
)

// Result captures one simulator invocation. A failed run is a normal
// outcome, not an error: evaluation degrades to zeroed metrics.
type Result struct {
	Success bool
	Stdout  string
	Stderr  string

	// OpLogPath is the file holding the combined stdout/stderr text the
	// bias-margin parser consumes.
	OpLogPath string
}

// Simulator runs a netlist and deposits output files into a working
// directory.
type Simulator interface {
	// Run executes the simulator on netlistText inside dir. The context
	// bounds execution; on cancellation the underlying process group is
	// killed so no orphan simulator survives a timed-out iteration.
	Run(ctx context.Context, dir, netlistText string) (*Result, error)
}
