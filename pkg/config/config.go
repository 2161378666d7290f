// Package config loads the optional fossensics configuration file.
//
// The file is TOML and only names the external tools and the default log
// level; the build-tree layout and the strip flags are fixed.
//
//	[tools]
//	scanner = "grissom-scan"
//	deps    = "grissom-deps"
//	origin  = "grissom-origin"
//	legal   = "grissom-legal-info"
//
//	[log]
//	level = "info"
//
// Environment variables override the file.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/fossensics/fossensics/pkg/errors"
)

const appName = "fossensics"

// Environment variables overriding the configuration file.
const (
	EnvLogLevel = "FOSSENSICS_LOG_LEVEL"
	EnvScanner  = "FOSSENSICS_SCANNER"
	EnvDeps     = "FOSSENSICS_DEPS"
	EnvOrigin   = "FOSSENSICS_ORIGIN"
	EnvLegal    = "FOSSENSICS_LEGAL"
)

// Default tool names, looked up in $PATH.
const (
	DefaultScanner = "grissom-scan"
	DefaultDeps    = "grissom-deps"
	DefaultOrigin  = "grissom-origin"
	DefaultLegal   = "grissom-legal-info"
)

// Tools names the external analysis tools.
type Tools struct {
	Scanner string `toml:"scanner"` // lists programs of a root filesystem
	Deps    string `toml:"deps"`    // lists shared library dependencies
	Origin  string `toml:"origin"`  // traces programs to their build directory
	Legal   string `toml:"legal"`   // queries package legal information
}

// Log configures the default logger.
type Log struct {
	Level string `toml:"level"`
}

// Config is the full configuration.
type Config struct {
	Tools Tools `toml:"tools"`
	Log   Log   `toml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Tools: Tools{
			Scanner: DefaultScanner,
			Deps:    DefaultDeps,
			Origin:  DefaultOrigin,
			Legal:   DefaultLegal,
		},
		Log: Log{Level: "info"},
	}
}

// DefaultPath returns the configuration file path using the XDG standard
// (~/.config/fossensics/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the configuration file at path on top of the defaults, then
// applies environment overrides.
//
// An empty path selects [DefaultPath], which may be absent. An explicit
// path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !explicit && os.IsNotExist(err) {
				cfg = Default()
			} else {
				return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "load %s", path)
			}
		}
	}

	cfg.ApplyEnv(os.Getenv)
	cfg.fillDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables read with getenv.
// Empty values are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Log.Level, EnvLogLevel)
	set(&c.Tools.Scanner, EnvScanner)
	set(&c.Tools.Deps, EnvDeps)
	set(&c.Tools.Origin, EnvOrigin)
	set(&c.Tools.Legal, EnvLegal)
}

// fillDefaults restores defaults for fields a file explicitly blanked.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Tools.Scanner == "" {
		c.Tools.Scanner = def.Tools.Scanner
	}
	if c.Tools.Deps == "" {
		c.Tools.Deps = def.Tools.Deps
	}
	if c.Tools.Origin == "" {
		c.Tools.Origin = def.Tools.Origin
	}
	if c.Tools.Legal == "" {
		c.Tools.Legal = def.Tools.Legal
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate checks tool names and the log level.
func (c Config) Validate() error {
	for _, name := range []string{c.Tools.Scanner, c.Tools.Deps, c.Tools.Origin, c.Tools.Legal} {
		if err := errors.ValidateToolName(name); err != nil {
			return err
		}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return errors.New(errors.ErrCodeInvalidConfig, "unknown log level %q", c.Log.Level)
	}
	return nil
}
