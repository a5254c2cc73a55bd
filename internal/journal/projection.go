package journal

import (
	"context"
	"encoding/json"
	"sort"
	"time"
)

const (
	statusRunning = "running"
)

// SessionSummary is the read model of one session.
type SessionSummary struct {
	SessionID   string            `json:"session_id"`
	Status      string            `json:"status"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Templates   []string          `json:"templates,omitempty"`
	UnitCount   int               `json:"unit_count"`
	UnitStates  map[string]string `json:"unit_states,omitempty"`
	Artifacts   []string          `json:"artifacts,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// Summarize folds the events of one session into a summary. Events of other
// sessions are ignored.
func Summarize(sessionID string, events []Event) *SessionSummary {
	var summary *SessionSummary
	for _, e := range events {
		if e.SessionID() != sessionID {
			continue
		}
		if summary == nil {
			summary = &SessionSummary{
				SessionID:  sessionID,
				Status:     statusRunning,
				StartedAt:  e.Timestamp(),
				UnitStates: make(map[string]string),
			}
		}
		apply(summary, e)
	}
	return summary
}

// History returns the summaries of the most recent sessions, newest first.
// A limit of zero or less returns every session.
func History(ctx context.Context, store Store, limit int) ([]*SessionSummary, error) {
	events, err := store.Range(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return nil, err
	}

	var order []string
	bySession := make(map[string][]Event)
	for _, e := range events {
		id := e.SessionID()
		if id == "" {
			continue
		}
		if _, ok := bySession[id]; !ok {
			order = append(order, id)
		}
		bySession[id] = append(bySession[id], e)
	}

	out := make([]*SessionSummary, 0, len(order))
	for _, id := range order {
		out = append(out, Summarize(id, bySession[id]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func apply(s *SessionSummary, e Event) {
	switch e.Type() {
	case TypeSessionStarted:
		var body SessionStarted
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.Templates = body.Templates
			s.UnitCount = body.Units
		}
		s.StartedAt = e.Timestamp()
	case TypeUnitTransitioned:
		var body UnitTransitioned
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.UnitStates[body.Unit] = body.To
		}
	case TypeArtifactAssembled:
		var body ArtifactAssembled
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.Artifacts = append(s.Artifacts, body.Artifact)
		}
	case TypeSessionFinished:
		var body SessionFinished
		if json.Unmarshal(e.Payload(), &body) == nil {
			s.Status = body.Outcome
			s.Error = body.Error
			s.Duration = time.Duration(body.DurationMS) * time.Millisecond
		}
		done := e.Timestamp()
		s.CompletedAt = &done
	}
}
