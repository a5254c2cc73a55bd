package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcher_DebouncesBurst(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	var calls atomic.Int32

	w, err := New(Options{
		Paths:    []string{dir},
		Debounce: 100 * time.Millisecond,
		Filter:   func(p string) bool { return strings.HasSuffix(p, ".xml") },
		OnChange: func(context.Context) { calls.Add(1) },
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(dir, "protocol.xml")
	for i := range 5 {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i)}, 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o600))

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	require.NoError(t, <-done)
}

func TestNew_WatchesFileDirectories(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{
		Paths:    []string{filepath.Join(dir, "units.yaml"), dir, filepath.Join(dir, "protocol.xml")},
		OnChange: func(context.Context) {},
	})
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	assert.Len(t, w.Dirs(), 1)
	assert.Equal(t, 500*time.Millisecond, w.debounce)
}

func TestNew_RequiresCallback(t *testing.T) {
	_, err := New(Options{Paths: []string{t.TempDir()}})
	require.Error(t, err)
}
