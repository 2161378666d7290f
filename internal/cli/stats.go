package cli

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/stats"
)

// statsCommand creates the stats command, which rebuilds the report from
// the artifacts of an earlier inspection without running any tool.
func (c *CLI) statsCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats <work-dir>",
		Short: "Print the report of an earlier inspection",
		Long: `Recompute the statistics from packages.txt, orphans.txt and
undocumented.txt in a work directory written by "fossensics inspect".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.Context(), cmd.OutOrStdout(), args[0], jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print statistics as JSON")

	return cmd
}

func runStats(ctx context.Context, out io.Writer, workDir string, jsonOut bool) error {
	if err := errors.ValidateDirectory(workDir, "work directory"); err != nil {
		return err
	}

	prog := newProgress(loggerFromContext(ctx))
	st, err := stats.Compute(workDir)
	if err != nil {
		return err
	}
	prog.done("Computed statistics")

	if jsonOut {
		return writeJSON(out, st)
	}
	printReport(out, st)
	return nil
}
