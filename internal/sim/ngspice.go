package sim

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sizeloop/sizeloop/internal/runfiles"
	"github.com/sizeloop/sizeloop/internal/waveform"
)

// Output artifact names within a run directory.
const (
	NetlistFileName     = "netlist_batch.cir"
	OpLogFileName       = "op.txt"
	BiasSummaryFileName = "vgscheck_summary.json"
	BiasReportFileName  = "vgscheck.txt"
)

// NgSpice executes ngspice in batch mode.
type NgSpice struct {
	Bin     string        // ngspice binary (default "ngspice")
	Timeout time.Duration // per-invocation ceiling (default 5m)
}

var _ Simulator = (*NgSpice)(nil)

// NewNgSpice returns an NgSpice runner with defaults filled in.
func NewNgSpice(bin string, timeout time.Duration) *NgSpice {
	if bin == "" {
		bin = "ngspice"
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &NgSpice{Bin: bin, Timeout: timeout}
}

// Run writes the netlist into dir, execs `ngspice -b` with dir as working
// directory (so wrdata outputs land there), and persists op.txt plus the
// bias-margin summary artifacts.
//
// The process runs in its own process group and the group is killed when
// the context is canceled, so a controller timeout cannot leak a running
// simulator.
func (n *NgSpice) Run(ctx context.Context, dir, netlistText string) (*Result, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	cirPath, err := filepath.Abs(filepath.Join(dir, NetlistFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve netlist path: %w", err)
	}
	if err := runfiles.WriteString(cirPath, netlistText); err != nil {
		return nil, fmt.Errorf("failed to write netlist: %w", err)
	}

	opPath := filepath.Join(dir, OpLogFileName)

	runCtx, cancel := context.WithTimeout(ctx, n.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, n.Bin, "-b", cirPath)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		// negative pid signals the whole group
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	combined := stdout.String() + "\n" + stderr.String()
	if runErr != nil && strings.TrimSpace(combined) == "" {
		combined = fmt.Sprintf("error running %s: %v", n.Bin, runErr)
	}
	if err := runfiles.WriteString(opPath, combined); err != nil {
		slog.Warn("failed to persist op log", "path", opPath, "error", err)
	}

	n.writeBiasSummary(dir, combined)

	res := &Result{
		Success:   runErr == nil,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		OpLogPath: opPath,
	}
	if runErr != nil {
		slog.Debug("simulator run failed", "bin", n.Bin, "error", runErr)
	}
	return res, nil
}

// writeBiasSummary extracts device bias margins from the op log and writes
// the vgscheck artifacts: a JSON summary of every device, and a short text
// report listing only devices with negative margin. Best-effort.
func (n *NgSpice) writeBiasSummary(dir, opText string) {
	biases := waveform.ParseBiasLog(opText)

	type entry struct {
		Name   string  `json:"name"`
		VGS    float64 `json:"vgs"`
		VTH    float64 `json:"vth"`
		Margin float64 `json:"margin"`
	}
	summary := make([]entry, 0, len(biases))
	for _, b := range biases {
		summary = append(summary, entry{Name: b.Name, VGS: b.VGS, VTH: b.VTH, Margin: b.Margin()})
	}
	if err := runfiles.WriteJSON(filepath.Join(dir, BiasSummaryFileName), summary); err != nil {
		slog.Debug("failed to write bias summary", "error", err)
	}

	var lines []string
	for _, e := range summary {
		if e.Margin < 0 {
			lines = append(lines, fmt.Sprintf("%s: vgs=%g, vth=%g, margin=%g", e.Name, e.VGS, e.VTH, e.Margin))
		}
	}
	report := "No values found where vgs - vth < 0."
	if len(lines) > 0 {
		report = strings.Join(lines, "\n")
	}
	if err := runfiles.WriteString(filepath.Join(dir, BiasReportFileName), report); err != nil {
		slog.Debug("failed to write bias report", "error", err)
	}
}
