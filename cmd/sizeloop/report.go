package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sizeloop/sizeloop/internal/config"
	"github.com/sizeloop/sizeloop/internal/report"
)

var reportDir string

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Regenerate the metrics plot for a run directory",
	Long: `Rebuild the multi-panel metrics-vs-iteration plot from a run
directory's metrics.csv accumulator.`,
	Run: func(cmd *cobra.Command, args []string) {
		dir := reportDir
		if dir == "" {
			cfg, err := config.Load(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			dir = cfg.RunDir
		}

		path, err := report.RenderReport(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to render report: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s wrote %s\n", color.GreenString("✓"), path)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportDir, "run-dir", "d", "", "run directory (default from config)")
	rootCmd.AddCommand(reportCmd)
}
