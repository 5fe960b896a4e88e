package domain

import (
	"context"
	"time"
)

// EventRepository persists the notification journal.
// The domain defines the interface; postgres, mongo and the in-memory mock implement it.
type EventRepository interface {
	// SaveEvent appends one event record
	SaveEvent(ctx context.Context, rec EventRecord) error

	// GetEvents returns records between from and to, newest first
	GetEvents(ctx context.Context, from, to time.Time) ([]EventRecord, error)

	// Health checks backend connectivity
	Health(ctx context.Context) error
}
