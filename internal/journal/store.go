package journal

import (
	"context"
	"time"
)

// Store persists and retrieves session events.
type Store interface {
	Append(ctx context.Context, sessionID, eventType string, payload []byte, metadata map[string]string) error
	BySession(ctx context.Context, sessionID string) ([]Event, error)
	Range(ctx context.Context, start, end time.Time) ([]Event, error)
	Close() error
}

// Record appends e to store. A nil store records nothing.
func Record(ctx context.Context, store Store, e Event) error {
	if store == nil || e == nil {
		return nil
	}
	return store.Append(ctx, e.SessionID(), e.Type(), e.Payload(), e.Metadata())
}
