package metrics

import "time"

// ResultLabel enumerates stage and unit result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultRejected ResultLabel = "rejected"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// SessionOutcomeLabel is the final status of an assembly session.
type SessionOutcomeLabel string

const (
	SessionSuccess  SessionOutcomeLabel = "success"
	SessionFailed   SessionOutcomeLabel = "failed"
	SessionCanceled SessionOutcomeLabel = "canceled"
)

// Recorder defines observability hooks for session, stage and unit metrics.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveSessionDuration(d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncSessionOutcome(outcome SessionOutcomeLabel)
	IncUnitResult(layout string, result ResultLabel)
	// AddImportConflicts counts candidates lost to a conflict and those dropped unreadable.
	AddImportConflicts(conflicts, dropped int)
	SetResolveConcurrency(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveSessionDuration(time.Duration)       {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncSessionOutcome(SessionOutcomeLabel)      {}
func (NoopRecorder) IncUnitResult(string, ResultLabel)          {}
func (NoopRecorder) AddImportConflicts(int, int)                {}
func (NoopRecorder) SetResolveConcurrency(int)                  {}
