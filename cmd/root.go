package cmd

import (
	"log/slog"
	"os"

	"github.com/pratikwayal01/bore-interactive-inputs/cmd/collect"
	"github.com/pratikwayal01/bore-interactive-inputs/cmd/outputs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bore-inputs",
	Short: "Collect interactive inputs mid-workflow through a bore tunnel",
	Long:  "Collect interactive inputs mid-workflow through a bore tunnel",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		slog.Error("Fail to execute", "error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(collect.Cmd)
	rootCmd.AddCommand(outputs.Cmd)
}
