package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tally/internal/harness"
)

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scenario <path>...",
		Short: "Run scenario files",
		Long: `Run YAML scenarios against a fresh in-memory engine. Each path is a
scenario file or a directory of them. Scenarios never touch the database.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing paths, etc.)

Examples:
  tally scenario testdata/scenarios
  tally scenario perfect_week.yaml --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(rootOpts, args, cmd)
		},
	}
}

func runScenarios(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	formatter.VerboseLog("Running scenarios: %s", strings.Join(paths, ", "))

	result, err := harness.RunSuite(cmd.Context(), paths)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return WrapExitError(ExitCommandError, "scenario path not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to load scenarios", err)
	}

	if err := formatter.Render(result, func(w io.Writer) {
		printSuite(w, result)
	}); err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.TotalScenarios))
	}
	return nil
}

func printSuite(w io.Writer, result *harness.SuiteResult) {
	for _, f := range result.Failures {
		name := f.Scenario
		if name == "" {
			name = f.ScenarioPath
		}
		fmt.Fprintf(w, "FAIL %s (%s)\n", name, f.ScenarioPath)
		for _, e := range f.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(w, "\n%d scenarios: %d passed, %d failed\n", result.TotalScenarios, result.Passed, result.Failed)
}
