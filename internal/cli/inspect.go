package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fossensics/fossensics/pkg/artifact"
	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/observability"
	"github.com/fossensics/fossensics/pkg/pipeline"
	"github.com/fossensics/fossensics/pkg/stats"
)

// inspectCommand creates the inspect command, which runs the full pipeline.
func (c *CLI) inspectCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "inspect <build-dir> [work-dir]",
		Short: "Inspect a Buildroot build and report orphans and undocumented packages",
		Long: `Inspect a completed Buildroot build.

build-dir is the Buildroot output directory: the one holding target/, build/
and host/. Every artifact of the inspection is written to work-dir
(default "` + defaultWorkDir + `"), which is created if needed and
overwritten on every run.

The external tools grissom-scan, grissom-deps, grissom-origin and
grissom-legal-info must be installed; their names can be changed in the
configuration file.`,
		Example: `  fossensics inspect ~/buildroot/output
  fossensics inspect ~/buildroot/output /tmp/audit --json`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := defaultWorkDir
			if len(args) == 2 {
				workDir = args[1]
			}
			return c.runInspect(cmd.Context(), cmd.OutOrStdout(), args[0], workDir, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print statistics as JSON")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, out io.Writer, buildDir, workDir string, jsonOut bool) error {
	logger := loggerFromContext(ctx)

	if err := errors.ValidateDirectory(buildDir, "build directory"); err != nil {
		return err
	}

	in, err := pipeline.New(buildDir,
		pipeline.WithLogger(logger),
		pipeline.WithTools(c.Config.Tools),
		pipeline.WithInvoker(c.invoker))
	if err != nil {
		return err
	}
	logger.Debug("inspecting", "build", buildDir, "work", workDir, "strip", in.StripCommand())

	var spinner *Spinner
	if c.showSpinner() {
		spinner = newSpinner(ctx, os.Stderr, stageMessage(pipeline.StageCollectProgs))
		observability.SetPipelineHooks(spinnerHooks{spinner: spinner})
		defer observability.Reset()
		spinner.Start()
	}

	res, err := in.Inspect(ctx, workDir)
	if err != nil {
		if spinner != nil {
			spinner.StopWithError("Inspection failed")
		}
		return err
	}
	if spinner != nil {
		spinner.StopWithSuccess(fmt.Sprintf("Inspected %s", buildDir))
	}

	if jsonOut {
		return writeJSON(out, res.Statistics)
	}

	printInfo(out, "Artifacts written to")
	printFile(out, res.Destination)
	fmt.Fprintln(out)
	printReport(out, res.Statistics)
	fmt.Fprintln(out)
	printProblems(out, res.Destination, res.Statistics)
	printNextStep(out, "Browse packages", appName+" browse "+res.Destination)
	return nil
}

// printProblems points at the artifacts listing orphans and undocumented
// packages, if any.
func printProblems(out io.Writer, dir string, st *stats.Statistics) {
	if st.Orphans > 0 {
		printWarning(out, "%d program(s) could not be traced to a package", st.Orphans)
		printDetail(out, "see %s", artifact.Path(dir, artifact.Orphans))
	}
	if st.Undocumented > 0 {
		printWarning(out, "%d package(s) have no legal information", st.Undocumented)
		printDetail(out, "see %s", artifact.Path(dir, artifact.Undocumented))
	}
}

// showSpinner reports whether progress should be animated: only on a
// terminal and not while debug logs are interleaved.
func (c *CLI) showSpinner() bool {
	if c.verbose {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
