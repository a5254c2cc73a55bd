// Package watch triggers a debounced callback when files below a set of
// directories change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
)

// Watcher monitors directories and calls OnChange once per burst of events.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	filter   func(path string) bool
	debounce time.Duration
	onChange func(ctx context.Context)

	trigger chan struct{}
	wg      sync.WaitGroup
}

// Options configures a Watcher.
type Options struct {
	// Paths are files or directories; files are watched through their directory.
	Paths    []string
	Debounce time.Duration
	// Filter limits events to matching paths. Nil accepts every path.
	Filter   func(path string) bool
	OnChange func(ctx context.Context)
}

// New creates a watcher over opts.Paths.
func New(opts Options) (*Watcher, error) {
	if opts.OnChange == nil {
		return nil, errors.InternalError("watch requires an OnChange callback").Build()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}

	var dirs []string
	for _, p := range opts.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fw.Close()
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to resolve watch path").
				WithContext("path", p).
				Build()
		}
		dir := abs
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			dir = filepath.Dir(abs)
		}
		if !slices.Contains(dirs, dir) {
			dirs = append(dirs, dir)
		}
	}
	slices.Sort(dirs)

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		watcher:  fw,
		dirs:     dirs,
		filter:   opts.Filter,
		debounce: debounce,
		onChange: opts.OnChange,
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string { return slices.Clone(w.dirs) }

// Run watches until ctx is done. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", dir).
				Build()
		}
	}
	slog.Info("Watching for changes", logfields.Count(len(w.dirs)))

	w.wg.Add(1)
	go w.debounceLoop(ctx)
	defer w.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			w.notify()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	return w.filter == nil || w.filter(event.Name)
}

func (w *Watcher) notify() {
	select {
	case w.trigger <- struct{}{}:
	default:
		// already pending
	}
}

// debounceLoop runs OnChange after the configured quiet period. Callbacks
// never overlap.
func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
			timer.Reset(w.debounce)
		case <-timer.C:
			w.onChange(ctx)
		}
	}
}
