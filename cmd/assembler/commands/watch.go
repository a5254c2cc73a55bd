package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
	"git.home.luguber.info/inful/scriptassembler/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	BuildCmd
	Debounce string `name:"debounce" help:"Quiet period before rebuilding (overrides build.debounce)"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	w.apply(cfg)
	if w.Debounce != "" {
		cfg.Build.Debounce = w.Debounce
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return RunWatch(ctx, cfg, w.Units, w.Templates)
}

// RunWatch builds once and then rebuilds on every change until ctx is done.
// Failed builds are logged; the watch continues.
func RunWatch(ctx context.Context, cfg *config.Config, unitsFile string, templatePaths []string) error {
	rebuild := func(ctx context.Context) {
		report, err := RunBuild(ctx, cfg, unitsFile, templatePaths)
		if err != nil {
			slog.Error("Rebuild failed", logfields.Error(err))
			return
		}
		fmt.Printf("Rebuilt %d artifact(s)\n", len(report.Paths))
	}

	rebuild(ctx)

	w, err := watch.New(watch.Options{
		Paths:    watchPaths(unitsFile, templatePaths),
		Debounce: cfg.Build.DebounceDuration(),
		Filter:   watchFilter(cfg),
		OnChange: rebuild,
	})
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// watchPaths collects the units file, the templates and the inputs of every
// unit.
func watchPaths(unitsFile string, templatePaths []string) []string {
	paths := append([]string{unitsFile}, templatePaths...)
	f, err := buildunit.ReadFile(unitsFile)
	if err != nil {
		slog.Warn("Units file unreadable, watching it alone", logfields.Error(err))
		return paths
	}
	return append(paths, f.InputPaths(filepath.Dir(unitsFile))...)
}

// watchFilter ignores events on the output directory and journal.
func watchFilter(cfg *config.Config) func(string) bool {
	var out, journalPath string
	if cfg.Build.OutputDir != "" {
		out, _ = filepath.Abs(cfg.Build.OutputDir)
	}
	if cfg.Build.JournalPath != "" {
		journalPath, _ = filepath.Abs(cfg.Build.JournalPath)
	}
	return func(path string) bool {
		if out != "" && strings.HasPrefix(path, out+string(filepath.Separator)) {
			return false
		}
		if journalPath != "" && strings.HasPrefix(path, journalPath) {
			return false
		}
		return true
	}
}
