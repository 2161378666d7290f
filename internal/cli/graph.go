package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fossensics/fossensics/pkg/artifact"
	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/origin"
	"github.com/fossensics/fossensics/pkg/render"
)

// graphOptions holds the flags of the graph command.
type graphOptions struct {
	output   string
	format   string
	detailed bool
}

// graphCommand creates the graph command, which draws which package
// installed which program.
func (c *CLI) graphCommand() *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph <work-dir>",
		Short: "Draw the package to program graph of an inspection",
		Long: `Draw the packages.txt of a work directory as a graph with an arrow from
every package to each program it installed.

The dot format prints Graphviz source; svg lays the graph out with an
embedded Graphviz, no dot binary is needed.`,
		Example: `  fossensics graph fossensics-report | dot -Tpng > packages.png
  fossensics graph fossensics-report --format svg -o packages.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", string(render.FormatDOT), "output format: dot, svg")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show program counts in package labels")

	return cmd
}

func runGraph(ctx context.Context, out io.Writer, workDir string, opts graphOptions) error {
	logger := loggerFromContext(ctx)

	format, err := render.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	pkgs, err := readPackages(workDir)
	if err != nil {
		return err
	}
	logger.Debug("read package records", "records", len(pkgs))

	dot := render.ToDOT(pkgs, render.Options{Detailed: opts.detailed})
	data, err := render.Render(ctx, dot, format)
	if err != nil {
		return err
	}

	if opts.output == "" {
		_, err := out.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write %s", opts.output)
	}
	printSuccess(out, "Wrote %s graph", format)
	printFile(out, opts.output)
	return nil
}

// readPackages loads the package records of a work directory.
func readPackages(workDir string) (pkgs []origin.Package, err error) {
	if err := errors.ValidateDirectory(workDir, "work directory"); err != nil {
		return nil, err
	}
	f, err := artifact.Open(workDir, artifact.Packages)
	if err != nil {
		return nil, err
	}
	defer artifact.Close(f, &err)

	pkgs, err = origin.ReadPackages(f)
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}
