package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/fossensics/fossensics/pkg/artifact"
	"github.com/fossensics/fossensics/pkg/errors"
	"github.com/fossensics/fossensics/pkg/observability"
	"github.com/fossensics/fossensics/pkg/origin"
	"github.com/fossensics/fossensics/pkg/toolexec"
)

// failurePolicy says what a non-zero tool exit means for a stage.
type failurePolicy int

const (
	// exitFatal aborts the pipeline on a non-zero exit.
	exitFatal failurePolicy = iota
	// exitTolerated logs a non-zero exit and keeps the tool's output.
	exitTolerated
)

// stdinMarker tells a tool to read its input list from standard input.
const stdinMarker = "-"

// invoke runs a tool and applies policy to its exit status. A tool that
// cannot be run at all is always fatal.
func (in *Inspector) invoke(ctx context.Context, inv toolexec.Invocation, policy failurePolicy) error {
	hooks := observability.Tools()
	hooks.OnToolStart(ctx, inv.Name, inv.Args)
	in.logger.Debug("running tool", "cmd", inv.String())

	res, err := in.invoker.Invoke(ctx, inv)
	if err != nil {
		hooks.OnToolError(ctx, inv.Name, err)
		return errors.Wrap(errors.ErrCodeToolFailed, err, "run %s", inv.Name)
	}
	hooks.OnToolExit(ctx, inv.Name, int(res.ExitCode), res.Duration)

	if res.Success() {
		return nil
	}
	if policy == exitFatal {
		return errors.Wrap(errors.ErrCodeToolFailed,
			&errors.ExitError{Tool: inv.Name, ExitCode: int(res.ExitCode)}, "run %s", inv.Name)
	}
	in.logger.Warn("tool exited with non-zero status, keeping its output",
		"tool", inv.Name, "status", res.ExitCode)
	return nil
}

// collectProgs lists the programs of the root filesystem into progs.txt.
func (in *Inspector) collectProgs(ctx context.Context, dest string) (err error) {
	out, err := artifact.Create(dest, artifact.Programs)
	if err != nil {
		return err
	}
	defer artifact.Close(out, &err)

	return in.invoke(ctx, toolexec.Invocation{
		Name:   in.tools.Scanner,
		Args:   []string{in.tree.RootDir},
		Stdout: out,
		Stderr: in.stderr,
	}, exitFatal)
}

// collectDeps lists the shared library dependencies of every program
// into deps.txt. No later stage reads it.
func (in *Inspector) collectDeps(ctx context.Context, dest string) (err error) {
	progs, err := artifact.Open(dest, artifact.Programs)
	if err != nil {
		return err
	}
	defer artifact.Close(progs, &err)

	out, err := artifact.Create(dest, artifact.Deps)
	if err != nil {
		return err
	}
	defer artifact.Close(out, &err)

	var args []string
	for _, dir := range in.tree.LibDirs() {
		args = append(args, "-L", dir)
	}
	args = append(args, "-D", "-f", "simple", stdinMarker)

	return in.invoke(ctx, toolexec.Invocation{
		Name:   in.tools.Deps,
		Args:   args,
		Stdin:  progs,
		Stdout: out,
		Stderr: in.stderr,
	}, exitFatal)
}

// collectOrigins traces every program to its build directory. Traced
// programs go to origins.txt, the resolver's diagnostics for untraceable
// ones to orphans.txt.
func (in *Inspector) collectOrigins(ctx context.Context, dest string) (err error) {
	progs, err := artifact.Open(dest, artifact.Programs)
	if err != nil {
		return err
	}
	defer artifact.Close(progs, &err)

	out, err := artifact.Create(dest, artifact.Origins)
	if err != nil {
		return err
	}
	defer artifact.Close(out, &err)

	orphans, err := artifact.Create(dest, artifact.Orphans)
	if err != nil {
		return err
	}
	defer artifact.Close(orphans, &err)

	return in.invoke(ctx, toolexec.Invocation{
		Name: in.tools.Origin,
		Args: []string{
			"-Q",
			"-I", in.tree.BuildSubdir,
			"-S", in.stripCmd,
			stdinMarker,
		},
		Stdin:  progs,
		Stdout: out,
		Stderr: orphans,
	}, exitTolerated)
}

// refineOrigins rewrites origins.txt into packages.txt.
func (in *Inspector) refineOrigins(_ context.Context, dest string) (err error) {
	origins, err := artifact.Open(dest, artifact.Origins)
	if err != nil {
		return err
	}
	defer artifact.Close(origins, &err)

	out, err := artifact.Create(dest, artifact.Packages)
	if err != nil {
		return err
	}
	defer artifact.Close(out, &err)

	n, err := origin.Refine(origins, out, in.tree.BuildSubdir)
	if err != nil {
		return fmt.Errorf("%s: %w", artifact.Origins, err)
	}
	in.logger.Debug("attributed programs to packages", "records", n)
	return nil
}

// collectLicenses queries legal information for every package named in
// packages.txt. The query input, one "<name>%" pattern per unique package
// in sorted order, lives in a scratch file removed once the tool exits.
func (in *Inspector) collectLicenses(ctx context.Context, dest string) (err error) {
	names, err := uniquePackages(dest)
	if err != nil {
		return err
	}

	query, err := os.CreateTemp("", "fossensics-query-*.txt")
	if err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "create license query")
	}
	defer os.Remove(query.Name())
	defer query.Close()

	w := bufio.NewWriter(query)
	for _, name := range names {
		fmt.Fprintf(w, "%s%%\n", name)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "write license query")
	}
	if _, err := query.Seek(0, 0); err != nil {
		return errors.Wrap(errors.ErrCodeIO, err, "rewind license query")
	}

	out, err := artifact.Create(dest, artifact.Licenses)
	if err != nil {
		return err
	}
	defer artifact.Close(out, &err)

	undocs, err := artifact.Create(dest, artifact.Undocumented)
	if err != nil {
		return err
	}
	defer artifact.Close(undocs, &err)

	in.logger.Debug("querying legal information", "packages", len(names))
	return in.invoke(ctx, toolexec.Invocation{
		Name:   in.tools.Legal,
		Args:   []string{"query", stdinMarker},
		Stdin:  query,
		Stdout: out,
		Stderr: undocs,
	}, exitTolerated)
}

// uniquePackages returns the sorted set of package names in packages.txt,
// taking the first field of each non-blank line.
func uniquePackages(dest string) (names []string, err error) {
	f, err := artifact.Open(dest, artifact.Packages)
	if err != nil {
		return nil, err
	}
	defer artifact.Close(f, &err)

	set := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		set[fields[0]] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeIO, err, "read %s", artifact.Packages)
	}
	return slices.Sorted(maps.Keys(set)), nil
}
