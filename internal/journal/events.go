// Package journal records assembly sessions as an append-only event log in
// SQLite and projects them back into session summaries.
package journal

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// Event type names.
const (
	TypeSessionStarted    = "SessionStarted"
	TypeUnitTransitioned  = "UnitTransitioned"
	TypeArtifactAssembled = "ArtifactAssembled"
	TypeSessionFinished   = "SessionFinished"
)

// SessionStarted is emitted once when a session begins.
type SessionStarted struct {
	BaseEvent
	Templates []string `json:"templates"`
	Units     int      `json:"units"`
}

// NewSessionStarted creates a SessionStarted event.
func NewSessionStarted(sessionID string, templates []string, units int) (*SessionStarted, error) {
	e := &SessionStarted{Templates: templates, Units: units}
	if err := e.seal(sessionID, TypeSessionStarted, e); err != nil {
		return nil, err
	}
	return e, nil
}

// UnitTransitioned is emitted for every state change of a build unit.
type UnitTransitioned struct {
	BaseEvent
	Unit   string `json:"unit"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// NewUnitTransitioned creates a UnitTransitioned event.
func NewUnitTransitioned(sessionID, unit, from, to, reason string) (*UnitTransitioned, error) {
	e := &UnitTransitioned{Unit: unit, From: from, To: to, Reason: reason}
	if err := e.seal(sessionID, TypeUnitTransitioned, e); err != nil {
		return nil, err
	}
	e.EventMetadata = map[string]string{"unit": unit}
	return e, nil
}

// ArtifactAssembled is emitted for each artifact of a successful session.
type ArtifactAssembled struct {
	BaseEvent
	Artifact   string   `json:"artifact"`
	Layout     string   `json:"layout"`
	Units      []string `json:"units"`
	Assemblies []string `json:"assemblies,omitempty"`
	Size       int      `json:"size"`
}

// NewArtifactAssembled creates an ArtifactAssembled event.
func NewArtifactAssembled(sessionID, artifact, layout string, units, assemblies []string, size int) (*ArtifactAssembled, error) {
	e := &ArtifactAssembled{Artifact: artifact, Layout: layout, Units: units, Assemblies: assemblies, Size: size}
	if err := e.seal(sessionID, TypeArtifactAssembled, e); err != nil {
		return nil, err
	}
	return e, nil
}

// SessionFinished is emitted once when a session ends, successfully or not.
type SessionFinished struct {
	BaseEvent
	Outcome    string `json:"outcome"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NewSessionFinished creates a SessionFinished event.
func NewSessionFinished(sessionID, outcome string, duration time.Duration, cause error) (*SessionFinished, error) {
	e := &SessionFinished{Outcome: outcome, DurationMS: duration.Milliseconds()}
	if cause != nil {
		e.Error = cause.Error()
	}
	if err := e.seal(sessionID, TypeSessionFinished, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *BaseEvent) seal(sessionID, eventType string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return errors.WrapError(err, errors.CategoryJournal, "failed to marshal "+eventType+" payload").
			WithContext("session_id", sessionID).
			Build()
	}
	e.EventSessionID = sessionID
	e.EventType = eventType
	e.EventTimestamp = time.Now()
	e.EventPayload = payload
	return nil
}
