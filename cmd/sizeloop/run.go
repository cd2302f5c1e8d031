package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sizeloop/sizeloop/internal/advisor"
	"github.com/sizeloop/sizeloop/internal/config"
	"github.com/sizeloop/sizeloop/internal/history"
	"github.com/sizeloop/sizeloop/internal/optimizer"
	"github.com/sizeloop/sizeloop/internal/orchestrator"
	"github.com/sizeloop/sizeloop/internal/sim"
)

var (
	runNetlist string
	runDir     string
	runIters   int
	runApply   string
	runMock    bool
	runModel   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full optimization loop on a netlist",
	Long: `Run up to N advisor-driven iterations: measure the netlist, request
an analysis and a concrete sizing edit, evaluate the edited netlist against
the original, and carry the winner into the next iteration. Artifacts land
in the run directory; a final report is always written.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		// Flags override file and environment.
		if runNetlist != "" {
			cfg.NetlistPath = runNetlist
		}
		if runDir != "" {
			cfg.RunDir = runDir
		}
		if runIters > 0 {
			cfg.MaxIterations = runIters
		}
		if runApply != "" {
			cfg.ApplyPath = runApply
		}
		if runMock {
			cfg.MockAdvisor = true
		}
		if runModel != "" {
			cfg.Model = runModel
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			os.Exit(1)
		}

		baseNetlist, err := os.ReadFile(cfg.NetlistPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read netlist: %v\n", err)
			os.Exit(1)
		}

		adv, err := buildAdvisor(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		orch, err := orchestrator.New(orchestrator.Config{
			Simulator: sim.NewNgSpice(cfg.NgSpiceBin, cfg.SimTimeout()),
			RunDir:    cfg.RunDir,
			Signals:   cfg.Signals,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runID := uuid.New().String()
		var store *history.Store
		if cfg.HistoryDB != "" {
			store, err = history.New(cfg.HistoryDB)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: history disabled: %v\n", err)
			} else {
				defer func() { _ = store.Close() }()
				if err := store.CreateRun(ctx, runID, cfg.RunDir, cfg.NetlistPath); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to register run: %v\n", err)
				}
			}
		}

		opt, err := optimizer.New(optimizer.Config{
			Orchestrator:     orch,
			Advisor:          adv,
			ToolChain:        cfg.ToolChain,
			Targets:          cfg.Targets,
			BaseNetlist:      string(baseNetlist),
			RunDir:           cfg.RunDir,
			ApplyPath:        cfg.ApplyPath,
			IterationTimeout: cfg.IterationTimeout(),
			History:          store,
			RunID:            runID,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n", cyan("=== sizeloop run ==="))
		fmt.Printf("Netlist:    %s\n", cfg.NetlistPath)
		fmt.Printf("Run dir:    %s\n", cfg.RunDir)
		fmt.Printf("Iterations: %d\n", cfg.MaxIterations)
		fmt.Printf("Run ID:     %s\n\n", runID)

		rep, err := opt.Run(ctx, cfg.MaxIterations)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Run interrupted: %v\n", err)
		}

		printRunSummary(rep, cfg.RunDir)
	},
}

func buildAdvisor(cfg config.Config) (advisor.Advisor, error) {
	if cfg.MockAdvisor {
		return &advisor.Mock{}, nil
	}
	return advisor.NewClaude(advisor.ClaudeConfig{
		Model: cfg.Model,
		RPS:   cfg.AdvisorRPS,
	})
}

func printRunSummary(rep *optimizer.FinalReport, dir string) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println()
	failed := 0
	for _, it := range rep.History {
		if it.Error != "" {
			failed++
			fmt.Printf("  iteration %d: %s\n", it.Iteration, red(it.Error))
		} else if it.OrchestratorBest != nil {
			fmt.Printf("  iteration %d: score %.3f (variant %d)\n",
				it.Iteration, it.OrchestratorBest.Best.Score, it.OrchestratorBest.BestIndex)
		} else {
			fmt.Printf("  iteration %d: no comparison\n", it.Iteration)
		}
	}
	fmt.Println()
	if rep.BestResult != nil {
		fmt.Printf("%s best score %.3f\n", green("✓"), rep.BestResult.Score)
	}
	if failed > 0 {
		fmt.Printf("%d of %d iterations ended with errors\n", failed, len(rep.History))
	}
	fmt.Printf("Report: %s\n", filepath.Join(dir, optimizer.FinalReportName))
}

func init() {
	runCmd.Flags().StringVarP(&runNetlist, "netlist", "n", "", "netlist file to optimize")
	runCmd.Flags().StringVarP(&runDir, "run-dir", "d", "", "directory for run artifacts")
	runCmd.Flags().IntVarP(&runIters, "iters", "i", 0, "number of iterations")
	runCmd.Flags().StringVar(&runApply, "apply", "", "apply the accepted netlist to this file in place")
	runCmd.Flags().BoolVar(&runMock, "mock", false, "use the deterministic mock advisor")
	runCmd.Flags().StringVar(&runModel, "model", "", "advisor model ID")
	rootCmd.AddCommand(runCmd)
}
