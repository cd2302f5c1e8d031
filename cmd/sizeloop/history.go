package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sizeloop/sizeloop/internal/config"
	"github.com/sizeloop/sizeloop/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List recorded runs, or show one run's iterations",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cfg.HistoryDB == "" {
			fmt.Println("History is disabled (no history_db configured)")
			return
		}

		store, err := history.New(cfg.HistoryDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open history: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.Close() }()

		ctx := context.Background()
		if len(args) == 1 {
			showIterations(ctx, store, args[0])
			return
		}
		listRuns(ctx, store)
	},
}

func listRuns(ctx context.Context, store *history.Store) {
	runs, err := store.ListRuns(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded")
		return
	}

	for _, r := range runs {
		status := color.YellowString("running")
		score := ""
		if r.CompletedAt != nil {
			status = color.GreenString("done")
		}
		if r.BestScore != nil {
			score = fmt.Sprintf("  best %.3f", *r.BestScore)
		}
		fmt.Printf("%s  %s  %s  %s%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), status, r.NetlistPath, score)
	}
}

func showIterations(ctx context.Context, store *history.Store, runID string) {
	iters, err := store.GetIterations(ctx, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(iters) == 0 {
		fmt.Printf("No iterations recorded for run %s\n", runID)
		return
	}

	for _, it := range iters {
		if it.Error != "" {
			fmt.Printf("  %d: %s\n", it.Iteration, color.RedString(it.Error))
			continue
		}
		variant := "-"
		if it.BestIndex != nil {
			variant = fmt.Sprintf("variant %d", *it.BestIndex)
		}
		fmt.Printf("  %d: score %.3f (%s)\n", it.Iteration, it.Score, variant)
	}
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
