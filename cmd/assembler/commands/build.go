package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/scriptassembler/internal/assembler"
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/journal"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
	"git.home.luguber.info/inful/scriptassembler/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Units       string   `short:"u" name:"units" required:"" type:"existingfile" help:"Units file listing the compiled build units"`
	Templates   []string `arg:"" name:"template" type:"existingfile" help:"Protocol or automation script templates"`
	Output      string   `short:"o" name:"output" help:"Output directory for assembled documents (overrides build.output_dir)"`
	Journal     string   `name:"journal" help:"Session journal database (overrides build.journal_path)"`
	MetricsFile string   `name:"metrics-file" help:"Write Prometheus metrics in text format to this file (overrides build.metrics_file)"`
	Concurrency int      `short:"j" name:"concurrency" help:"Units resolved in parallel per level (overrides build.concurrency)"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	b.apply(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, err := RunBuild(ctx, cfg, b.Units, b.Templates)
	if err != nil {
		fmt.Println("Build failed")
		return err
	}
	for _, p := range report.Paths {
		fmt.Println(p)
	}
	fmt.Printf("Build completed successfully: %d artifact(s)\n", len(report.Paths))
	return nil
}

// apply copies command-line overrides into cfg.
func (b *BuildCmd) apply(cfg *config.Config) {
	if b.Output != "" {
		cfg.Build.OutputDir = b.Output
	}
	if b.Journal != "" {
		cfg.Build.JournalPath = b.Journal
	}
	if b.MetricsFile != "" {
		cfg.Build.MetricsFile = b.MetricsFile
	}
	if b.Concurrency > 0 {
		cfg.Build.Concurrency = b.Concurrency
	}
}

// BuildReport describes a finished build.
type BuildReport struct {
	SessionID string
	Artifacts map[string]*assembler.Artifact
	Paths     []string
}

// RunBuild loads units and templates, runs one session and writes its
// artifacts to cfg.Build.OutputDir.
func RunBuild(ctx context.Context, cfg *config.Config, unitsFile string, templatePaths []string) (*BuildReport, error) {
	units, err := buildunit.LoadFile(unitsFile)
	if err != nil {
		return nil, err
	}
	templates := make([]*assembler.Template, 0, len(templatePaths))
	for _, p := range templatePaths {
		t, err := assembler.LoadTemplate(p, cfg)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	opts := assembler.Options{Config: cfg}

	var recorder *metrics.PrometheusRecorder
	if cfg.Build.MetricsFile != "" {
		recorder = metrics.NewPrometheusRecorder(nil)
		opts.Recorder = recorder
	}

	if cfg.Build.JournalPath != "" {
		store, err := journal.Open(cfg.Build.JournalPath)
		if err != nil {
			// The journal is informational; a build never fails on it.
			slog.Warn("Session journal unavailable", logfields.Path(cfg.Build.JournalPath), logfields.Error(err))
		} else {
			defer func() {
				if err := store.Close(); err != nil {
					slog.Warn("Failed to close session journal", logfields.Error(err))
				}
			}()
			opts.Journal = store
		}
	}

	session := assembler.NewSession(opts)
	artifacts, buildErr := session.Build(ctx, templates, units)

	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.Build.MetricsFile); err != nil {
			slog.Warn("Failed to write metrics file", logfields.Path(cfg.Build.MetricsFile), logfields.Error(err))
		}
	}
	if buildErr != nil {
		return nil, buildErr
	}

	paths, err := assembler.WriteArtifacts(cfg.Build.OutputDir, artifacts)
	if err != nil {
		return nil, err
	}
	slog.Info("Artifacts written", logfields.Count(len(paths)), logfields.Path(cfg.Build.OutputDir))
	return &BuildReport{SessionID: session.ID(), Artifacts: artifacts, Paths: paths}, nil
}
