// sizeloop is an advisor-driven analog circuit sizing tool. It measures a
// netlist with ngspice, asks an LLM advisor for sizing edits, and keeps
// whichever circuit scores better, iterating until the budget runs out.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sizeloop",
	Short: "Advisor-driven analog circuit sizing",
	Long: `sizeloop drives an LLM-in-the-loop optimization of a SPICE netlist:
measure with ngspice, ask the advisor to analyze and propose edits,
evaluate the proposed netlist against the original, keep the winner.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
