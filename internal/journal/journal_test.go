package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_AppendAndBySession(t *testing.T) {
	store := openMemory(t)
	ctx := t.Context()

	require.NoError(t, store.Append(ctx, "s-1", "Custom", []byte(`{"a":1}`), map[string]string{"k": "v"}))
	require.NoError(t, store.Append(ctx, "s-2", "Custom", nil, nil))

	events, err := store.BySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "s-1", events[0].SessionID())
	assert.Equal(t, "Custom", events[0].Type())
	assert.JSONEq(t, `{"a":1}`, string(events[0].Payload()))
	assert.Equal(t, "v", events[0].Metadata()["k"])
	assert.Positive(t, events[0].ID())
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), "s-1", "Custom", []byte("x"), nil))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	events, err := reopened.BySession(t.Context(), "s-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestRecord_NilStore(t *testing.T) {
	e, err := NewSessionStarted("s-1", nil, 0)
	require.NoError(t, err)
	assert.NoError(t, Record(t.Context(), nil, e))
}

func TestSummarize_SessionLifecycle(t *testing.T) {
	store := openMemory(t)
	ctx := t.Context()

	started, err := NewSessionStarted("s-1", []string{"protocol.xml"}, 2)
	require.NoError(t, err)
	require.NoError(t, Record(ctx, store, started))

	moved, err := NewUnitTransitioned("s-1", "QAction_1", "Discovered", "AssetsResolved", "")
	require.NoError(t, err)
	require.NoError(t, Record(ctx, store, moved))

	assembled, err := NewArtifactAssembled("s-1", "Demo", "protocol", []string{"QAction_1"}, nil, 120)
	require.NoError(t, err)
	require.NoError(t, Record(ctx, store, assembled))

	finished, err := NewSessionFinished("s-1", "success", 1500*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, Record(ctx, store, finished))

	events, err := store.BySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, events, 4)

	summary := Summarize("s-1", events)
	require.NotNil(t, summary)
	assert.Equal(t, "success", summary.Status)
	assert.Equal(t, []string{"protocol.xml"}, summary.Templates)
	assert.Equal(t, 2, summary.UnitCount)
	assert.Equal(t, "AssetsResolved", summary.UnitStates["QAction_1"])
	assert.Equal(t, []string{"Demo"}, summary.Artifacts)
	assert.Equal(t, 1500*time.Millisecond, summary.Duration)
	assert.NotNil(t, summary.CompletedAt)
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	store := openMemory(t)
	ctx := t.Context()

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		e, err := NewSessionStarted(id, nil, 0)
		require.NoError(t, err)
		require.NoError(t, Record(ctx, store, e))
		time.Sleep(2 * time.Millisecond)
	}
	failed, err := NewSessionFinished("s-3", "failed", time.Second, errors.New("boom"))
	require.NoError(t, err)
	require.NoError(t, Record(ctx, store, failed))

	history, err := History(ctx, store, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "s-3", history[0].SessionID)
	assert.Equal(t, "failed", history[0].Status)
	assert.Equal(t, "boom", history[0].Error)
	assert.Equal(t, "s-2", history[1].SessionID)
	assert.Equal(t, statusRunning, history[1].Status)
}

func TestEventPayloadOmitsEnvelope(t *testing.T) {
	e, err := NewUnitTransitioned("s-1", "QAction_1", "Discovered", "Rejected", "not empty")
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit":"QAction_1","from":"Discovered","to":"Rejected","reason":"not empty"}`, string(e.Payload()))
	assert.Equal(t, "QAction_1", e.Metadata()["unit"])
}
