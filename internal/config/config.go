// Package config loads the assembler configuration: target framework, package policy,
// build options and logging.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// Config is the root configuration document.
type Config struct {
	Version string `yaml:"version"`

	// TargetFramework selects the target in the package lock files (e.g. "net462").
	TargetFramework string `yaml:"target_framework"`
	// PackagesRoot is the global package folder that resolved package files live under.
	PackagesRoot string `yaml:"packages_root"`
	// DllImportDirectory prefixes package imports in automation scripts.
	DllImportDirectory string `yaml:"dll_import_directory"`
	// ProtocolScriptsDirectory prefixes custom library references in automation scripts.
	ProtocolScriptsDirectory string `yaml:"protocol_scripts_directory"`

	Policy  PolicyConfig  `yaml:"policy"`
	Build   BuildConfig   `yaml:"build"`
	Logging LoggingConfig `yaml:"logging"`
}

// BuildConfig controls a build session.
type BuildConfig struct {
	// Concurrency bounds the number of units resolved in parallel within one level.
	Concurrency int    `yaml:"concurrency"`
	OutputDir   string `yaml:"output_dir"`
	// JournalPath is the SQLite session journal; empty disables journaling.
	JournalPath string `yaml:"journal_path,omitempty"`
	// MetricsFile receives a Prometheus text exposition after each session.
	MetricsFile string `yaml:"metrics_file,omitempty"`
	// Debounce is the quiet period of the watch command (Go duration).
	Debounce string `yaml:"debounce,omitempty"`
}

// LoggingConfig selects level and handler format.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates a configuration file.
func Load(configPath string) (*Config, error) {
	// .env files are optional.
	_ = loadEnvFile()

	// #nosec G304 -- path is supplied by the operator.
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes. Environment variables are expanded
// before unmarshalling.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return errors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Build.JournalPath = ".assembler/journal.db"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
