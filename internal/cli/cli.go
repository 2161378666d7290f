// Package cli implements the fossensics command-line interface.
//
// # Commands
//
//   - inspect: run the inspection pipeline over a Buildroot build and print
//     the report
//   - stats: recompute the report from an existing work directory
//   - graph: draw the package -> program graph of a work directory
//   - browse: explore a work directory's packages interactively
//   - completion: generate shell completion scripts
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// is passed through context.Context; see withLogger and loggerFromContext.
package cli

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fossensics/fossensics/pkg/buildinfo"
	"github.com/fossensics/fossensics/pkg/config"
	"github.com/fossensics/fossensics/pkg/toolexec"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "fossensics"

	// defaultWorkDir receives the artifacts when inspect is given no work
	// directory.
	defaultWorkDir = "fossensics-report"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any subcommand runs.
	Config config.Config

	configPath string
	verbose    bool

	// invoker runs external tools; nil runs local processes.
	invoker toolexec.Invoker
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "fossensics audits the programs and licenses of a Buildroot build",
		Long: `fossensics correlates every program installed in a Buildroot root filesystem
with the package that built it and with that package's legal information,
then reports orphan programs and undocumented packages.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "configuration file (default ~/.config/fossensics/config.toml)")

	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.statsCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup loads the configuration and attaches the logger to the command
// context. --verbose wins over the configured level.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.Config = cfg

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = LogInfo
	}
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)
	c.Logger.Debug("loaded configuration", "level", level, "tools", cfg.Tools)

	cmd.SetContext(withLogger(cmd.Context(), c.Logger))
	return nil
}
