// Package pipeline implements the fossensics inspection pipeline.
//
// An [Inspector] walks a completed Buildroot build through five stages and
// a final aggregation, each stage reading the artifact written by the
// previous one:
//
//  1. collect_progs: list the programs of the root filesystem (progs.txt)
//  2. collect_deps: list their shared library dependencies (deps.txt)
//  3. collect_origins: trace each program to its build directory
//     (origins.txt, orphans.txt)
//  4. refine_origins: turn build directories into package names
//     (packages.txt)
//  5. collect_licenses: query legal information for every package
//     (licenses.txt, undocumented.txt)
//  6. compute_stats: aggregate packages.txt, orphans.txt and
//     undocumented.txt into [stats.Statistics]
//
// A non-zero exit of the program scanner or the dependency lister aborts
// the run. The origin resolver and the legal information tool report
// missing data on their error stream and may exit non-zero; the pipeline
// keeps going with whatever they wrote.
//
// # Usage
//
//	in, err := pipeline.New("/home/user/buildroot/output", pipeline.WithLogger(logger))
//	if err != nil {
//	    return err // TOOL_NOT_FOUND: no *-strip in host/usr/bin
//	}
//	res, err := in.Inspect(ctx, "fossensics-report")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Statistics.Programs)
package pipeline

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fossensics/fossensics/pkg/buildtree"
	"github.com/fossensics/fossensics/pkg/config"
	"github.com/fossensics/fossensics/pkg/stats"
	"github.com/fossensics/fossensics/pkg/toolexec"
)

// Stage names, in execution order.
const (
	StageCollectProgs    = "collect_progs"
	StageCollectDeps     = "collect_deps"
	StageCollectOrigins  = "collect_origins"
	StageRefineOrigins   = "refine_origins"
	StageCollectLicenses = "collect_licenses"
	StageComputeStats    = "compute_stats"
)

// Stages lists every stage name in execution order.
var Stages = []string{
	StageCollectProgs,
	StageCollectDeps,
	StageCollectOrigins,
	StageRefineOrigins,
	StageCollectLicenses,
	StageComputeStats,
}

// Result contains the outputs of an inspection.
type Result struct {
	// Destination is the directory holding the artifacts.
	Destination string

	// Statistics aggregates the artifacts.
	Statistics *stats.Statistics

	// Timings holds the duration of each stage, in execution order.
	Timings []StageTiming
}

// StageTiming is the wall-clock duration of one stage.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithInvoker sets the invoker used to run external tools.
// The default runs local processes.
func WithInvoker(inv toolexec.Invoker) Option {
	return func(in *Inspector) {
		if inv != nil {
			in.invoker = inv
		}
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(in *Inspector) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithTools overrides the external tool names. Empty names keep defaults.
func WithTools(t config.Tools) Option {
	return func(in *Inspector) {
		if t.Scanner != "" {
			in.tools.Scanner = t.Scanner
		}
		if t.Deps != "" {
			in.tools.Deps = t.Deps
		}
		if t.Origin != "" {
			in.tools.Origin = t.Origin
		}
		if t.Legal != "" {
			in.tools.Legal = t.Legal
		}
	}
}

// WithStderr sets where the program scanner and the dependency lister
// write their diagnostics. The default is os.Stderr.
func WithStderr(w io.Writer) Option {
	return func(in *Inspector) {
		in.stderr = w
	}
}

// Inspector runs the inspection pipeline over one build tree.
//
// All fields are fixed at construction. An Inspector holds no state
// between runs, but concurrent runs against the same destination
// directory overwrite each other's artifacts.
type Inspector struct {
	tree     buildtree.BuildTree
	stripCmd string
	tools    config.Tools
	invoker  toolexec.Invoker
	logger   *log.Logger
	stderr   io.Writer
}

// New creates an Inspector for the build directory buildDir.
//
// The toolchain's strip program is located immediately; if it cannot be
// found New returns a TOOL_NOT_FOUND error and no inspection is possible.
func New(buildDir string, opts ...Option) (*Inspector, error) {
	tree := buildtree.New(buildDir)
	strip, err := buildtree.FindStrip(tree)
	if err != nil {
		return nil, err
	}

	in := &Inspector{
		tree:     tree,
		stripCmd: buildtree.StripCommand(strip),
		tools:    config.Default().Tools,
		invoker:  toolexec.ExecInvoker{},
		logger:   log.Default(),
		stderr:   os.Stderr,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger.Debug("found strip program", "path", strip)
	return in, nil
}

// BuildTree returns the build tree being inspected.
func (in *Inspector) BuildTree() buildtree.BuildTree {
	return in.tree
}

// StripCommand returns the strip command handed to the origin resolver.
func (in *Inspector) StripCommand() string {
	return in.stripCmd
}

// Tools returns the external tool names in use.
func (in *Inspector) Tools() config.Tools {
	return in.tools
}
