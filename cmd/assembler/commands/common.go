package commands

import (
	"log/slog"
	"os"

	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
)

// loadConfig reads the configuration named by root. A missing file at the
// default location yields the built-in defaults.
func loadConfig(root *CLI) (*config.Config, error) {
	if _, err := os.Stat(root.Config); os.IsNotExist(err) && root.Config == defaultConfigPath {
		slog.Debug("No configuration file, using defaults", logfields.Path(root.Config))
		return config.Default(), nil
	}
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	applyLogging(cfg, root.Verbose)
	return cfg, nil
}

// applyLogging switches to the configured level and format. Explicit -v and
// ASSEMBLER_LOG_LEVEL take precedence over the file.
func applyLogging(cfg *config.Config, verbose bool) {
	level := parseLogLevel(verbose)
	if !verbose && os.Getenv("ASSEMBLER_LOG_LEVEL") == "" && cfg.Logging.Level != "" {
		level = cfg.Logging.Level.SlogLevel()
	}
	setLogger(level, cfg.Logging.Format)
}

const defaultConfigPath = "assembler.yaml"
