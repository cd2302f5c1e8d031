package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sizeloop/sizeloop/internal/config"
	"github.com/sizeloop/sizeloop/internal/orchestrator"
	"github.com/sizeloop/sizeloop/internal/sim"
)

var measureCmd = &cobra.Command{
	Use:   "measure <netlist>",
	Short: "Evaluate a netlist once and print its metrics",
	Long: `Run the configured tool chain on a single netlist and print the
extracted metrics, the bias summary, and the score. No advisor is involved.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read netlist: %v\n", err)
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

		out, err := orch.RunOnce(ctx, string(text), cfg.ToolChain)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: evaluation failed: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		fmt.Printf("%s\n", cyan("=== metrics ==="))

		keys := make([]string, 0, len(out.Metrics))
		for k := range out.Metrics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-22s %g\n", k, out.Metrics[k])
		}
		for name, reason := range out.Errors {
			fmt.Printf("  %-22s %s\n", name, color.RedString(reason))
		}

		if len(out.BiasSummary) > 0 {
			fmt.Printf("\n%s\n", cyan("=== bias margins ==="))
			for _, b := range out.BiasSummary {
				line := fmt.Sprintf("  %-12s vgs=%.4f vth=%.4f margin=%.4f", b.Name, b.VGS, b.VTH, b.Margin)
				if b.Margin < 0 {
					fmt.Println(color.RedString(line))
				} else {
					fmt.Println(line)
				}
			}
		}

		fmt.Printf("\nScore: %.3f\n", out.Score)
		if !out.Success {
			fmt.Println(color.YellowString("Simulation reported failure; metrics may be degraded"))
		}
	},
}

func init() {
	rootCmd.AddCommand(measureCmd)
}
