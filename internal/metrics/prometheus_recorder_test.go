package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("inject", 150*time.Millisecond)
	pr.ObserveSessionDuration(500 * time.Millisecond)
	pr.IncStageResult("inject", ResultSuccess)
	pr.IncSessionOutcome(SessionSuccess)
	pr.IncUnitResult("protocol", ResultSuccess)
	pr.IncUnitResult("protocol", ResultSuccess)
	pr.AddImportConflicts(2, 1)
	pr.SetResolveConcurrency(3)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.InDelta(t, 2, testutil.ToFloat64(pr.unitResults.WithLabelValues("protocol", "success")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.importConflicts.WithLabelValues("conflict")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.importConflicts.WithLabelValues("unreadable")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(pr.resolveConcurrent), 0)
}

func TestPrometheusRecorder_WriteTextfile(t *testing.T) {
	pr := NewPrometheusRecorder(nil)
	pr.IncSessionOutcome(SessionFailed)

	path := filepath.Join(t.TempDir(), "assembler.prom")
	require.NoError(t, pr.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `assembler_session_outcomes_total{outcome="failed"} 1`)
}
