package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sizeloop/sizeloop/internal/netlist"
)

var validateCmd = &cobra.Command{
	Use:   "validate <netlist>",
	Short: "Check a netlist file for structural problems",
	Long: `Run the pre-apply syntax checks on a netlist file: minimum length,
matched .control/.endc pairs, and a .end terminator. Exits non-zero when
the file would be rejected.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := os.ReadFile(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if ok, reason := netlist.ValidateSyntax(string(text)); !ok {
			fmt.Printf("%s %s: %s\n", color.RedString("✗"), args[0], reason)
			os.Exit(1)
		}
		fmt.Printf("%s %s\n", color.GreenString("✓"), args[0])
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
