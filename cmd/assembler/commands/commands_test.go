package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/journal"
)

const testProtocol = `<?xml version="1.0" encoding="utf-8"?>
<Protocol xmlns="http://www.skyline.be/protocol">
	<Name>Demo Protocol</Name>
	<QActions>
		<QAction id="1" name="Common" encoding="csharp" options="precompile" />
		<QAction id="2" name="Poll" encoding="csharp" />
	</QActions>
</Protocol>
`

const testUnits = `units:
  - name: QAction_1
    dir: QAction_1
    sources:
      - path: QAction_1/QAction_1.cs
  - name: QAction_2
    dir: QAction_2
    sources:
      - path: QAction_2/QAction_2.cs
    references: [System.Data.dll]
    unit_references: [QAction_1]
`

type fixture struct {
	dir      string
	units    string
	template string
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	write := func(rel, content string) string {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
		return p
	}
	write("QAction_1/QAction_1.cs", "public static class Common { }")
	write("QAction_2/QAction_2.cs", "public static class Poll { }")

	cfg := config.Default()
	cfg.Build.OutputDir = filepath.Join(dir, "out")
	cfg.Build.Concurrency = 2
	return &fixture{
		dir:      dir,
		units:    write("units.yaml", testUnits),
		template: write("templates/protocol.xml", testProtocol),
		cfg:      cfg,
	}
}

func TestRunBuild(t *testing.T) {
	f := newFixture(t)
	f.cfg.Build.JournalPath = filepath.Join(f.dir, "state", "journal.db")
	f.cfg.Build.MetricsFile = filepath.Join(f.dir, "metrics.prom")

	report, err := RunBuild(t.Context(), f.cfg, f.units, []string{f.template})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(f.dir, "out", "Demo Protocol.xml")}, report.Paths)

	out, err := os.ReadFile(report.Paths[0])
	require.NoError(t, err)
	doc := string(out)
	assert.Contains(t, doc, "<![CDATA[public static class Common { }]]>")
	assert.Contains(t, doc, `<QAction id="2" name="Poll" encoding="csharp" dllImport="System.Data.dll;[ProtocolName].[ProtocolVersion].QAction.1.dll">`)

	metricsText, err := os.ReadFile(f.cfg.Build.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(metricsText), `assembler_session_outcomes_total{outcome="success"} 1`)

	store, err := journal.Open(f.cfg.Build.JournalPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	history, err := journal.History(t.Context(), store, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, report.SessionID, history[0].SessionID)
	assert.Equal(t, []string{"Demo Protocol"}, history[0].Artifacts)
}

func TestRunBuild_MissingUnit(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.units, []byte("units:\n  - name: QAction_1\n    sources:\n      - path: QAction_1/QAction_1.cs\n"), 0o600))

	report, err := RunBuild(t.Context(), f.cfg, f.units, []string{f.template})
	require.Error(t, err)
	assert.Nil(t, report)
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, err.Error(), "Project with name 'QAction_2' could not be found!")

	_, statErr := os.Stat(f.cfg.Build.OutputDir)
	assert.True(t, os.IsNotExist(statErr), "no artifact is written on failure")
}

func TestWriteGraph(t *testing.T) {
	var buf bytes.Buffer
	err := WriteGraph(&buf, []*buildunit.Unit{
		{Name: "C", UnitReferences: []string{"A", "B"}},
		{Name: "B", UnitReferences: []string{"A"}},
		{Name: "A"},
	})
	require.NoError(t, err)
	assert.Equal(t, "level 0: A\nlevel 1: B\n  B -> A\nlevel 2: C\n  C -> A, B\n", buf.String())
}

func TestWriteGraph_Cycle(t *testing.T) {
	err := WriteGraph(&bytes.Buffer{}, []*buildunit.Unit{
		{Name: "A", UnitReferences: []string{"B"}},
		{Name: "B", UnitReferences: []string{"A"}},
	})
	require.Error(t, err)
	assert.Equal(t, 7, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestWriteDependencies(t *testing.T) {
	units := []*buildunit.Unit{
		{Name: "D"},
		{Name: "C", UnitReferences: []string{"B"}},
		{Name: "B", UnitReferences: []string{"A"}},
		{Name: "A"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDependencies(&buf, units, "C"))
	assert.Equal(t, "A\nB\nC\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteDependencies(&buf, units, "D"))
	assert.Equal(t, "D\n", buf.String())

	err := WriteDependencies(&bytes.Buffer{}, units, "E")
	require.Error(t, err)
	assert.Equal(t, 2, errors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
	assert.Contains(t, err.Error(), "Project with name 'E' could not be found!")
}

func TestWriteHistory(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	summaries := []*journal.SessionSummary{{
		SessionID: "abc",
		Status:    "failed",
		StartedAt: started,
		UnitCount: 3,
		Duration:  1500 * time.Millisecond,
		Error:     "Project with name 'QAction_2' could not be found!",
	}}

	var table bytes.Buffer
	require.NoError(t, WriteHistory(&table, summaries, false))
	assert.True(t, strings.HasPrefix(table.String(), "SESSION"))
	assert.Contains(t, table.String(), "abc")
	assert.Contains(t, table.String(), "1.5s")
	assert.Contains(t, table.String(), "error: Project with name 'QAction_2' could not be found!")

	var raw bytes.Buffer
	require.NoError(t, WriteHistory(&raw, summaries, true))
	var decoded []journal.SessionSummary
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "failed", decoded[0].Status)
}

func TestRunWatch_RebuildsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	f.cfg.Build.Debounce = "50ms"
	artifact := filepath.Join(f.cfg.Build.OutputDir, "Demo Protocol.xml")

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- RunWatch(ctx, f.cfg, f.units, []string{f.template}) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(artifact)
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	source := filepath.Join(f.dir, "QAction_1", "QAction_1.cs")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher has registered the directory.
		_ = os.WriteFile(source, []byte("public static class Changed { }"), 0o600)
		data, err := os.ReadFile(artifact)
		return err == nil && strings.Contains(string(data), "class Changed")
	}, 10*time.Second, 200*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatchFilter(t *testing.T) {
	cfg := config.Default()
	cfg.Build.OutputDir = "/work/out"
	cfg.Build.JournalPath = "/work/state/journal.db"
	accept := watchFilter(cfg)

	assert.True(t, accept("/work/QAction_1/QAction_1.cs"))
	assert.False(t, accept("/work/out/Demo.xml"))
	assert.False(t, accept("/work/state/journal.db-wal"))
}

func TestRunInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), defaultConfigPath)
	require.NoError(t, RunInit(path, false))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ".assembler/journal.db", cfg.Build.JournalPath)

	err = RunInit(path, false)
	require.Error(t, err)
	require.NoError(t, RunInit(path, true))
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := loadConfig(&CLI{Config: defaultConfigPath})
	require.NoError(t, err)
	assert.Equal(t, config.Default().Build.OutputDir, cfg.Build.OutputDir)

	_, err = loadConfig(&CLI{Config: "elsewhere.yaml"})
	require.Error(t, err)
}
