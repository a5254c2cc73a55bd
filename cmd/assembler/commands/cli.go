// Package commands implements the assembler command line.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/scriptassembler/internal/config"
)

// Global is shared state passed to every command.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"assembler.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Assemble templates from a units file"`
	Watch   WatchCmd   `cmd:"" help:"Rebuild whenever a template, the units file or a source file changes"`
	Graph   GraphCmd   `cmd:"" help:"Print the unit reference levels of a units file"`
	History HistoryCmd `cmd:"" help:"List recent sessions from the journal"`
	Init    InitCmd    `cmd:"" help:"Initialize a new configuration file"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	setLogger(parseLogLevel(c.Verbose), config.LogFormatText)
	return nil
}

// parseLogLevel honours -v first, then ASSEMBLER_LOG_LEVEL.
func parseLogLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	if raw := os.Getenv("ASSEMBLER_LOG_LEVEL"); raw != "" {
		return config.NormalizeLogLevel(raw).SlogLevel()
	}
	return slog.LevelInfo
}

func setLogger(level slog.Level, format config.LogFormat) {
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if format == config.LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
