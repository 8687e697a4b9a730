package outputs

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pratikwayal01/bore-interactive-inputs/internal/outputs"
	"github.com/spf13/cobra"
)

var resultsFile string

// Cmd replays a staged results file into GITHUB_OUTPUT so a composite
// action step can bubble the values up to the caller workflow.
var Cmd = &cobra.Command{
	Use:   "outputs",
	Short: "Append staged results to GITHUB_OUTPUT",
	Long:  "Append staged results to GITHUB_OUTPUT",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("GITHUB_OUTPUT") == "" {
			return fmt.Errorf("GITHUB_OUTPUT env var is not set")
		}

		values, err := outputs.LoadResults(resultsFile)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("results file not found, form was not submitted: %s", resultsFile)
			}
			return err
		}

		if err := outputs.AppendGitHubOutput(values); err != nil {
			return err
		}

		slog.Info("Outputs set", "count", len(values), "from", resultsFile)
		return nil
	},
}

func init() {
	Cmd.Flags().StringVar(&resultsFile, "results", outputs.DefaultResultsFile, "Staged results file written by collect")
}
