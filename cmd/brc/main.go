// Package main provides the entry point for the brc CLI tool.
package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/LetzteFee/1brc/cmd/brc/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "brc",
		Short: "brc - parallel min/mean/max aggregation of name;value records",
		Long: `brc aggregates large "name;value" files with a pool of parallel workers.

Commands:
  run       Aggregate a file and print { name=min/mean/max, ... }
  version   Show build information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewRunCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	err := rootCmd.Execute()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
