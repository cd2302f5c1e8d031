// Package optimizer drives the advisor-in-the-loop sizing run: measure the
// current netlist, ask the advisor to analyze and propose edits, evaluate
// the proposed netlist against the original, keep the winner, repeat.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sizeloop/sizeloop/internal/advisor"
	"github.com/sizeloop/sizeloop/internal/history"
	"github.com/sizeloop/sizeloop/internal/netlist"
	"github.com/sizeloop/sizeloop/internal/orchestrator"
	"github.com/sizeloop/sizeloop/internal/report"
	"github.com/sizeloop/sizeloop/internal/runfiles"
)

// DefaultIterationTimeout bounds one full iteration unless configured.
const DefaultIterationTimeout = 30 * time.Second

// Artifact names written into each iteration_<n> directory.
const (
	MetricsFileName       = "metrics.json"
	AnalysisFileName      = "analysis.json"
	OptimizeFileName      = "optimize.json"
	SizingFileName        = "sizing.json"
	PatchedNetlistName    = "patched_netlist.cir"
	OrchestratorFileName  = "orchestrator.json"
	AppliedBackupFileName = "applied_backup.txt"
	FinalReportName       = "final_report.json"
)

// IterationResult is one history entry. Fields are nil for stages the
// iteration never reached.
type IterationResult struct {
	Iteration        int                      `json:"iteration"`
	Metrics          *orchestrator.Outcome    `json:"metrics,omitempty"`
	MetricsError     string                   `json:"metrics_error,omitempty"`
	Analysis         *advisor.Analysis        `json:"analysis,omitempty"`
	Optimize         *advisor.ChangeSet       `json:"optimize,omitempty"`
	Sizing           *advisor.Sizing          `json:"sizing,omitempty"`
	OrchestratorBest *orchestrator.RankResult `json:"orchestrator_best"`
	Error            string                   `json:"error,omitempty"`
}

// FinalReport is the run-level summary persisted as final_report.json.
type FinalReport struct {
	BestNetlist string                `json:"best_netlist"`
	BestResult  *orchestrator.Outcome `json:"best_result,omitempty"`
	History     []*IterationResult    `json:"history,omitempty"`
}

// Config configures New.
type Config struct {
	Orchestrator *orchestrator.Orchestrator
	Advisor      advisor.Advisor
	ToolChain    orchestrator.ToolChain
	Targets      map[string]float64

	// BaseNetlist is the starting netlist text.
	BaseNetlist string

	// RunDir receives iteration artifacts, the metrics CSV, and the final
	// report.
	RunDir string

	// ApplyPath, when non-empty, receives each accepted netlist in place
	// with a timestamped backup.
	ApplyPath string

	// IterationTimeout bounds one iteration (default 30s).
	IterationTimeout time.Duration

	// History, when non-nil, receives per-iteration rows. Writes are
	// best-effort.
	History *history.Store
	RunID   string
}

// Optimizer runs the iteration loop. Iterations are strictly sequential:
// each uses the previous iteration's accepted netlist as its base.
type Optimizer struct {
	orch        *orchestrator.Orchestrator
	adv         advisor.Advisor
	chain       orchestrator.ToolChain
	targets     map[string]float64
	runDir      string
	applyPath   string
	iterTimeout time.Duration
	hist        *history.Store
	runID       string

	bestNetlist string
	bestOutcome *orchestrator.Outcome
	results     []*IterationResult
}

// New creates an Optimizer.
func New(cfg Config) (*Optimizer, error) {
	if cfg.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if cfg.Advisor == nil {
		return nil, fmt.Errorf("advisor is required")
	}
	if cfg.BaseNetlist == "" {
		return nil, fmt.Errorf("base netlist is required")
	}
	if cfg.RunDir == "" {
		return nil, fmt.Errorf("run directory is required")
	}
	timeout := cfg.IterationTimeout
	if timeout <= 0 {
		timeout = DefaultIterationTimeout
	}
	return &Optimizer{
		orch:        cfg.Orchestrator,
		adv:         cfg.Advisor,
		chain:       cfg.ToolChain,
		targets:     cfg.Targets,
		runDir:      cfg.RunDir,
		applyPath:   cfg.ApplyPath,
		iterTimeout: timeout,
		hist:        cfg.History,
		runID:       cfg.RunID,
		bestNetlist: cfg.BaseNetlist,
	}, nil
}

// Run executes up to maxIters iterations and writes the final report. The
// report is always produced, even when the run aborts early; the returned
// error reflects only a caller cancellation.
func (o *Optimizer) Run(ctx context.Context, maxIters int) (*FinalReport, error) {
	slog.Info("starting optimization run", "max_iterations", maxIters, "run_dir", o.runDir)

	for i := 1; i <= maxIters; i++ {
		out := o.runIterationWithTimeout(ctx, i)
		o.results = append(o.results, out.result)
		if !out.fatal {
			o.commit(out)
		}
		o.recordHistory(ctx, out.result)

		if out.result.Error != "" {
			slog.Warn("iteration ended with error", "iteration", i, "error", out.result.Error)
		} else {
			slog.Info("iteration complete", "iteration", i)
		}

		if out.fatal {
			slog.Error("aborting run", "iteration", i, "error", out.result.Error)
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	rep := o.writeFinalReport()
	if o.hist != nil && o.runID != "" {
		score := 0.0
		if rep.BestResult != nil {
			score = rep.BestResult.Score
		}
		if err := o.hist.CompleteRun(ctx, o.runID, score); err != nil {
			slog.Warn("failed to complete history record", "error", err)
		}
	}
	return rep, ctx.Err()
}

// iterOutcome carries one iteration's history entry plus the state changes
// the controller commits after the iteration finishes in time. The body
// never touches Optimizer fields itself, so an abandoned post-timeout
// goroutine cannot race the final report.
type iterOutcome struct {
	result   *IterationResult
	accepted string // netlist to carry forward; empty keeps the current best
	best     *orchestrator.Outcome
	fatal    bool
}

// runIterationWithTimeout runs one iteration body on its own goroutine and
// waits up to the iteration timeout. The body receives a context that is
// cancelled on timeout, which propagates down to the simulator process.
// A fatal outcome aborts the whole run; a timed-out iteration's accept is
// discarded even when the body managed to finish.
func (o *Optimizer) runIterationWithTimeout(ctx context.Context, iteration int) iterOutcome {
	iterCtx, cancel := context.WithTimeout(ctx, o.iterTimeout)
	defer cancel()

	done := make(chan iterOutcome, 1)
	go func() {
		done <- o.runIteration(iterCtx, iteration)
	}()

	timedOut := func() bool {
		return errors.Is(iterCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	}

	select {
	case out := <-done:
		if timedOut() {
			out.result.Error = "timeout"
			return iterOutcome{result: out.result, fatal: true}
		}
		return out
	case <-iterCtx.Done():
		// Give the body a moment to observe cancellation and report.
		select {
		case out := <-done:
			if timedOut() || out.result.Error == "" {
				out.result.Error = "timeout"
			}
			return iterOutcome{result: out.result, fatal: true}
		case <-time.After(2 * time.Second):
			return iterOutcome{
				result: &IterationResult{Iteration: iteration, Error: "timeout"},
				fatal:  true,
			}
		}
	}
}

// commit applies an in-time iteration's accepted netlist and best outcome,
// then updates the run-level accumulators (best-effort).
func (o *Optimizer) commit(out iterOutcome) {
	if out.accepted != "" {
		o.bestNetlist = out.accepted
	}
	if out.best != nil {
		o.bestOutcome = out.best
	}

	rank := out.result.OrchestratorBest
	if rank == nil {
		return
	}
	row := map[string]float64{}
	for k, v := range rank.Best.Metrics {
		row[k] = v
	}
	row["score"] = rank.Best.Score
	if _, err := report.AppendMetricsCSV(o.runDir, out.result.Iteration, row); err != nil {
		slog.Warn("failed to append metrics row", "iteration", out.result.Iteration, "error", err)
	}
	if _, err := report.RenderReport(o.runDir); err != nil {
		slog.Warn("failed to render report plot", "iteration", out.result.Iteration, "error", err)
	}
}

// runIteration is the iteration state machine. A validation failure records
// its tag and stops the iteration without aborting the run. Advisor
// transport failures and filesystem errors are fatal: a dead advisory
// service would fail every remaining iteration the same way.
func (o *Optimizer) runIteration(ctx context.Context, iteration int) iterOutcome {
	result := &IterationResult{Iteration: iteration}
	base := o.bestNetlist

	iterDir := filepath.Join(o.runDir, fmt.Sprintf("iteration_%d", iteration))
	if err := os.MkdirAll(iterDir, 0755); err != nil {
		result.Error = fmt.Sprintf("failed to create iteration directory: %v", err)
		return iterOutcome{result: result, fatal: true}
	}

	// 1. Baseline measurement. A failed measurement degrades to an error
	// record and the iteration continues with whatever the advisor can do.
	var metricsPayload any
	outcome, err := o.orch.RunOnce(ctx, base, o.chain)
	if err != nil {
		result.MetricsError = err.Error()
		metricsPayload = map[string]string{"error": err.Error()}
		slog.Warn("baseline measurement failed", "iteration", iteration, "error", err)
	} else {
		result.Metrics = outcome
		metricsPayload = outcome.Metrics
	}
	o.persist(iterDir, MetricsFileName, metricsPayload)

	// 2. Analysis.
	rawAnalysis, err := o.adv.Call(ctx, advisor.StageAnalysis, map[string]any{
		"metrics": metricsPayload,
		"targets": o.targets,
	})
	if err != nil {
		result.Error = fmt.Sprintf("advisor analysis call failed: %v", err)
		return iterOutcome{result: result, fatal: true}
	}
	analysis, err := advisor.DecodeAnalysis(rawAnalysis)
	if err != nil {
		result.Error = fmt.Sprintf("analysis_validation_failed: %v", err)
		o.persist(iterDir, AnalysisFileName, invalidPayload(err, rawAnalysis))
		return iterOutcome{result: result}
	}
	result.Analysis = analysis
	o.persist(iterDir, AnalysisFileName, analysis)

	// 3. Change proposal.
	rawOptimize, err := o.adv.Call(ctx, advisor.StageOptimize, map[string]any{
		"analysis": analysis,
		"targets":  o.targets,
	})
	if err != nil {
		result.Error = fmt.Sprintf("advisor optimize call failed: %v", err)
		return iterOutcome{result: result, fatal: true}
	}
	changes, err := advisor.DecodeOptimize(rawOptimize)
	if err != nil {
		result.Error = fmt.Sprintf("optimize_validation_failed: %v", err)
		o.persist(iterDir, OptimizeFileName, invalidPayload(err, rawOptimize))
		return iterOutcome{result: result}
	}
	result.Optimize = changes
	o.persist(iterDir, OptimizeFileName, changes)

	// 4. Concrete edit.
	rawSizing, err := o.adv.Call(ctx, advisor.StageSizing, map[string]any{
		"base_netlist": base,
		"changes":      changes.Changes,
	})
	if err != nil {
		result.Error = fmt.Sprintf("advisor sizing call failed: %v", err)
		return iterOutcome{result: result, fatal: true}
	}
	sizing, err := advisor.DecodeSizing(rawSizing)
	if err != nil {
		result.Error = fmt.Sprintf("sizing_validation_failed: %v", err)
		o.persist(iterDir, SizingFileName, invalidPayload(err, rawSizing))
		return iterOutcome{result: result}
	}
	result.Sizing = sizing
	o.persist(iterDir, SizingFileName, sizing)

	if sizing.NetlistText == "" {
		// The advisor declined to produce an edit. No comparison possible;
		// the current best carries forward.
		slog.Info("sizing produced no netlist, keeping current best", "iteration", iteration)
		return iterOutcome{result: result}
	}
	if err := runfiles.WriteString(filepath.Join(iterDir, PatchedNetlistName), sizing.NetlistText); err != nil {
		slog.Warn("failed to persist patched netlist", "iteration", iteration, "error", err)
	}

	// 5. Optional apply to the configured target file.
	var appliedBackup string
	if o.applyPath != "" {
		if ok, reason := netlist.ValidateSyntax(sizing.NetlistText); !ok {
			result.Error = fmt.Sprintf("apply_error: %s", reason)
			return iterOutcome{result: result}
		}
		backup, _, err := netlist.Apply(o.applyPath, sizing.NetlistText)
		if err != nil {
			result.Error = fmt.Sprintf("apply_error: %v", err)
			return iterOutcome{result: result}
		}
		appliedBackup = backup
		if err := runfiles.WriteString(filepath.Join(iterDir, AppliedBackupFileName), backup); err != nil {
			slog.Warn("failed to record backup path", "iteration", iteration, "error", err)
		}
	}

	// 6. Compare original against patched. Step 7, the run-level
	// accumulators, happens in commit on the controller goroutine.
	rank, err := o.orch.Optimize(ctx, []string{base, sizing.NetlistText}, o.chain)
	if err != nil {
		result.Error = fmt.Sprintf("ranking failed: %v", err)
		return iterOutcome{result: result, fatal: true}
	}
	result.OrchestratorBest = rank
	o.persist(iterDir, OrchestratorFileName, rank)

	out := iterOutcome{result: result, best: rank.Best}
	if rank.BestIndex == 1 {
		out.accepted = sizing.NetlistText
		slog.Info("patched netlist accepted", "iteration", iteration, "score", rank.Best.Score)
	} else {
		slog.Info("original netlist retained", "iteration", iteration, "score", rank.Best.Score)
		if appliedBackup != "" {
			if err := netlist.Revert(o.applyPath, appliedBackup); err != nil {
				slog.Warn("failed to revert applied netlist", "iteration", iteration, "error", err)
			}
		}
	}
	return out
}

// writeFinalReport persists final_report.json, degrading to a minimal
// best-netlist-only document when full serialization fails.
func (o *Optimizer) writeFinalReport() *FinalReport {
	rep := &FinalReport{
		BestNetlist: o.bestNetlist,
		BestResult:  o.bestOutcome,
		History:     o.results,
	}
	path := filepath.Join(o.runDir, FinalReportName)
	if err := runfiles.WriteJSON(path, rep); err != nil {
		slog.Warn("failed to write final report, falling back to minimal", "error", err)
		minimal := map[string]string{"best_netlist": o.bestNetlist}
		if err := runfiles.WriteJSON(path, minimal); err != nil {
			slog.Error("failed to write minimal final report", "error", err)
		}
	}
	return rep
}

// recordHistory mirrors one iteration into the SQLite history store.
func (o *Optimizer) recordHistory(ctx context.Context, r *IterationResult) {
	if o.hist == nil || o.runID == "" {
		return
	}
	score := 0.0
	var bestIndex *int
	if r.OrchestratorBest != nil {
		score = r.OrchestratorBest.Best.Score
		idx := r.OrchestratorBest.BestIndex
		bestIndex = &idx
	}
	if err := o.hist.RecordIteration(ctx, o.runID, r.Iteration, r.Error, score, bestIndex); err != nil {
		slog.Warn("failed to record iteration history", "iteration", r.Iteration, "error", err)
	}
}

// persist writes an iteration artifact, logging rather than failing.
func (o *Optimizer) persist(dir, name string, v any) {
	if err := runfiles.WriteJSON(filepath.Join(dir, name), v); err != nil {
		slog.Warn("failed to persist artifact", "artifact", name, "error", err)
	}
}

func invalidPayload(err error, raw string) map[string]string {
	return map[string]string{"invalid": err.Error(), "raw": raw}
}
