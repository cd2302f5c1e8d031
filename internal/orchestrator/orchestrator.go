// Package orchestrator evaluates candidate netlists: it builds per-analysis
// netlist variants, runs the simulator, extracts metrics and ranks multiple
// candidates by score.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/sizeloop/sizeloop/internal/netlist"
	"github.com/sizeloop/sizeloop/internal/runfiles"
	"github.com/sizeloop/sizeloop/internal/sim"
	"github.com/sizeloop/sizeloop/internal/waveform"
)

// BiasEntry is one device's bias summary inside an Outcome.
type BiasEntry struct {
	Name   string  `json:"name"`
	VGS    float64 `json:"vgs"`
	VTH    float64 `json:"vth"`
	Margin float64 `json:"margin"`
}

// Outcome is the result of evaluating one netlist against a tool chain.
// Outcomes are never mutated after scoring.
type Outcome struct {
	VariantIndex int                `json:"variant_index"`
	Success      bool               `json:"success"`
	StdoutLen    int                `json:"stdout_len"`
	Metrics      map[string]float64 `json:"metrics"`
	Errors       map[string]string  `json:"errors,omitempty"` // err_<metric> -> reason
	BiasSummary  []BiasEntry        `json:"vgs_summary"`
	Score        float64            `json:"score"`
	Error        string             `json:"error,omitempty"` // set when the whole evaluation failed
}

// RankResult reports the winning variant of an Optimize call.
type RankResult struct {
	BestIndex int        `json:"best_index"`
	Best      *Outcome   `json:"best_result"`
	All       []*Outcome `json:"all_results"`
}

// Scorer reduces an Outcome to a scalar for ranking. It must be a pure
// function of the outcome.
type Scorer func(*Outcome) float64

// DefaultScorer prefers AC gain, falls back to discounted transient gain,
// and adds a small bonus for unity-gain bandwidth.
func DefaultScorer(out *Outcome) float64 {
	score := 0.0
	if v, ok := out.Metrics[MetricACGainDB]; ok {
		score = v
	} else if v, ok := out.Metrics[MetricTranGainDB]; ok {
		score = 0.9 * v
	}
	if v, ok := out.Metrics[MetricUnityBandwidthHz]; ok {
		score += 0.001 * (v / 1e6)
	}
	return score
}

// Metric keys used in Outcome.Metrics.
const (
	MetricACGainDB         = "ac_gain_db"
	MetricBandwidthHz      = "bandwidth_hz"
	MetricUnityBandwidthHz = "unity_bandwidth_hz"
	MetricPhaseMarginDeg   = "phase_margin_deg"
	MetricTranGainDB       = "tran_gain_db"
)

// Orchestrator evaluates netlists inside a run directory. It holds no state
// across calls beyond its configuration.
type Orchestrator struct {
	sim     sim.Simulator
	runDir  string
	signals []string
	scorer  Scorer
}

// Config configures New.
type Config struct {
	Simulator sim.Simulator
	RunDir    string
	Signals   []string // nodes passed to wrdata (default ["out"])
	Scorer    Scorer   // default DefaultScorer
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Simulator == nil {
		return nil, fmt.Errorf("simulator is required")
	}
	if cfg.RunDir == "" {
		return nil, fmt.Errorf("run directory is required")
	}
	signals := cfg.Signals
	if len(signals) == 0 {
		signals = []string{"out"}
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = DefaultScorer
	}
	return &Orchestrator{
		sim:     cfg.Simulator,
		runDir:  cfg.RunDir,
		signals: signals,
		scorer:  scorer,
	}, nil
}

// RunOnce evaluates one netlist against the tool chain in the orchestrator's
// run directory.
func (o *Orchestrator) RunOnce(ctx context.Context, netlistText string, chain ToolChain) (*Outcome, error) {
	return o.runOnceIn(ctx, o.runDir, netlistText, chain)
}

// runOnceIn is RunOnce targeting an explicit directory, used for isolated
// per-variant evaluation during ranking.
//
// Two passes over the chain: pass 1 appends a measurement control block per
// recognized analysis type (builders strip prior blocks first, so repeated
// evaluation is idempotent); pass 2 runs the simulator exactly once, then
// computes each requested metric, recording per-metric failures as
// err_<name> instead of aborting.
func (o *Orchestrator) runOnceIn(ctx context.Context, dir, netlistText string, chain ToolChain) (*Outcome, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evaluation directory: %w", err)
	}

	built := netlistText
	var err error
	for _, call := range chain.ToolCalls {
		switch normalizeName(call.Name) {
		case OpACSimulation:
			built, err = netlist.BuildAC(built, o.signals, "")
		case OpTranSimulation:
			built, err = netlist.BuildTran(built, o.signals, "")
		case OpDCSimulation:
			built, err = netlist.BuildDC(built, o.signals, "")
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build %s netlist: %w", call.Name, err)
		}
	}

	// The simulator runs exactly once per evaluation whether or not the
	// chain says so explicitly; an explicit run_simulator entry only
	// documents intent.
	res, err := o.sim.Run(ctx, dir, built)
	if err != nil {
		return nil, fmt.Errorf("simulator invocation failed: %w", err)
	}

	out := &Outcome{
		Success:   res.Success,
		StdoutLen: len(res.Stdout),
		Metrics:   map[string]float64{},
		Errors:    map[string]string{},
	}

	opText := runfiles.ReadFileOr(res.OpLogPath, "")
	for _, b := range waveform.ParseBiasLog(opText) {
		out.BiasSummary = append(out.BiasSummary, BiasEntry{
			Name: b.Name, VGS: b.VGS, VTH: b.VTH, Margin: b.Margin(),
		})
	}

	for _, call := range chain.ToolCalls {
		o.computeMetric(dir, normalizeName(call.Name), out)
	}
	if len(out.Errors) == 0 {
		out.Errors = nil
	}

	out.Score = o.scorer(out)

	if err := runfiles.WriteJSON(filepath.Join(dir, "run_summary.json"), out); err != nil {
		slog.Debug("failed to persist run summary", "dir", dir, "error", err)
	}
	return out, nil
}

// computeMetric evaluates one metric name against its output file. A
// missing output file is recorded under err_<name>; degenerate file content
// degrades to 0 inside the waveform package.
func (o *Orchestrator) computeMetric(dir, name string, out *Outcome) {
	var (
		key     string
		srcFile string
		compute func(string) float64
	)

	switch name {
	case MetricACGain:
		key, srcFile, compute = MetricACGainDB, netlist.ACOutFile, waveform.ACGainDB
	case MetricBandwidth:
		key, srcFile, compute = MetricBandwidthHz, netlist.ACOutFile, waveform.BandwidthHz
	case MetricUnityBandwidth:
		key, srcFile, compute = MetricUnityBandwidthHz, netlist.ACOutFile, waveform.UnityBandwidthHz
	case MetricPhaseMargin:
		key, srcFile, compute = MetricPhaseMarginDeg, netlist.ACOutFile, waveform.PhaseMarginDeg
	case MetricTranGain:
		key, srcFile, compute = MetricTranGainDB, netlist.TranOutFile, func(p string) float64 {
			return waveform.TranGainDB(p, 0)
		}
	default:
		return
	}

	path := filepath.Join(dir, srcFile)
	if _, err := os.Stat(path); err != nil {
		out.Errors["err_"+name] = fmt.Sprintf("output file missing: %s", srcFile)
		return
	}
	out.Metrics[key] = compute(path)
}

// Optimize evaluates every variant in its own variant_<i> subdirectory and
// returns the one with the strictly highest score. Comparison uses >, so
// the earliest variant wins ties. A variant whose evaluation errors gets a
// failed zero-score outcome instead of aborting the batch.
//
// Variants share no mutable state and run concurrently.
func (o *Orchestrator) Optimize(ctx context.Context, variants []string, chain ToolChain) (*RankResult, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("no variants to evaluate")
	}

	all := make([]*Outcome, len(variants))
	var g errgroup.Group
	for i, v := range variants {
		g.Go(func() error {
			dir := filepath.Join(o.runDir, fmt.Sprintf("variant_%d", i))
			out, err := o.runOnceIn(ctx, dir, v, chain)
			if err != nil {
				slog.Warn("variant evaluation failed", "variant", i, "error", err)
				out = &Outcome{Success: false, Error: err.Error(), Metrics: map[string]float64{}}
			}
			out.VariantIndex = i
			all[i] = out
			return nil
		})
	}
	_ = g.Wait() // goroutines record failures in their outcomes

	bestIdx := 0
	bestScore := math.Inf(-1)
	for i, out := range all {
		if out.Score > bestScore {
			bestIdx, bestScore = i, out.Score
		}
	}

	return &RankResult{BestIndex: bestIdx, Best: all[bestIdx], All: all}, nil
}
