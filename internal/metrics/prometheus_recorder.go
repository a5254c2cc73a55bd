package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assembler"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once              sync.Once
	registry          *prom.Registry
	stageDuration     *prom.HistogramVec
	sessionDuration   prom.Histogram
	stageResults      *prom.CounterVec
	sessionOutcome    *prom.CounterVec
	unitResults       *prom.CounterVec
	importConflicts   *prom.CounterVec
	resolveConcurrent prom.Gauge
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{registry: reg}
	pr.once.Do(func() {
		pr.stageDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual session stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"})
		pr.sessionDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Total assembly session duration",
			Buckets:   prom.DefBuckets,
		})
		pr.stageResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"})
		pr.sessionOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "session_outcomes_total",
			Help:      "Session outcomes by final status",
		}, []string{"outcome"})
		pr.unitResults = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "unit_results_total",
			Help:      "Build unit injection results by layout",
		}, []string{"layout", "result"})
		pr.importConflicts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "import_conflicts_total",
			Help:      "Package asset candidates lost to a same-name conflict or dropped as unreadable",
		}, []string{"kind"})
		pr.resolveConcurrent = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "resolve_concurrency",
			Help:      "Configured unit resolution concurrency of the last session",
		})
		reg.MustRegister(pr.stageDuration, pr.sessionDuration, pr.stageResults, pr.sessionOutcome,
			pr.unitResults, pr.importConflicts, pr.resolveConcurrent)
	})
	return pr
}

// Registry returns the registry the collectors are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry {
	return p.registry
}

// WriteTextfile writes the current metric values in the text exposition format,
// atomically replacing path.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.registry)
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	if p == nil || p.stageDuration == nil {
		return
	}
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveSessionDuration(d time.Duration) {
	if p == nil || p.sessionDuration == nil {
		return
	}
	p.sessionDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	if p == nil || p.stageResults == nil {
		return
	}
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) IncSessionOutcome(outcome SessionOutcomeLabel) {
	if p == nil || p.sessionOutcome == nil {
		return
	}
	p.sessionOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncUnitResult(layout string, result ResultLabel) {
	if p == nil || p.unitResults == nil {
		return
	}
	p.unitResults.WithLabelValues(layout, string(result)).Inc()
}

func (p *PrometheusRecorder) AddImportConflicts(conflicts, dropped int) {
	if p == nil || p.importConflicts == nil {
		return
	}
	if conflicts > 0 {
		p.importConflicts.WithLabelValues("conflict").Add(float64(conflicts))
	}
	if dropped > 0 {
		p.importConflicts.WithLabelValues("unreadable").Add(float64(dropped))
	}
}

func (p *PrometheusRecorder) SetResolveConcurrency(n int) {
	if p == nil || p.resolveConcurrent == nil {
		return
	}
	p.resolveConcurrent.Set(float64(n))
}
