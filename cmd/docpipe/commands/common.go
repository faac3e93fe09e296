package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

// stdout receives user-facing command output.
var stdout io.Writer = os.Stdout

// Global is passed to every subcommand's Run.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"docpipe.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Fetch   FetchCmd   `cmd:"" help:"Stage documentation from a GitHub release, a branch or a local directory"`
	Build   BuildCmd   `cmd:"" help:"Compile every staged version into the generator project and build the site"`
	Preview PreviewCmd `cmd:"" help:"Compile a local docs directory as the current version and recompile on change"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; sets up logging from the flags and environment.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	cfg := config.LoggingConfig{
		Level:  config.NormalizeLogLevel(os.Getenv(config.EnvLogLevel)),
		Format: config.NormalizeLogFormat(os.Getenv(config.EnvLogFormat)),
	}
	c.setLogger(g, cfg)
	return nil
}

// loadConfig reads the configuration file (defaults when absent) and
// reconfigures logging from it.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(c.Config)
	if err != nil {
		return nil, err
	}
	c.setLogger(g, cfg.Logging)
	return cfg, nil
}

func (c *CLI) setLogger(g *Global, lc config.LoggingConfig) {
	level := lc.Level.Slog()
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = newLogger(os.Stderr, level, lc.Format)
	slog.SetDefault(g.Logger)
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
