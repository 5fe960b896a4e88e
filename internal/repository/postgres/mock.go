package postgres

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/smartcity/signalctl/internal/domain"
)

const mockHistoryLimit = 100

// MockRepository implements domain.EventRepository in memory for tests and
// for running without a database
type MockRepository struct {
	mu     sync.Mutex
	events []domain.EventRecord
}

// NewMockRepository creates a new mock repository
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// SaveEvent keeps the record in memory
func (r *MockRepository) SaveEvent(ctx context.Context, rec domain.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, rec)
	return nil
}

// GetEvents mirrors the SQL query: range filter, newest first, at most 100
func (r *MockRepository) GetEvents(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	r.mu.Lock()
	matched := lo.Filter(r.events, func(rec domain.EventRecord, _ int) bool {
		return !rec.Timestamp.Before(from) && !rec.Timestamp.After(to)
	})
	r.mu.Unlock()

	// latest insert first among equal timestamps
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > mockHistoryLimit {
		matched = matched[:mockHistoryLimit]
	}
	return matched, nil
}

// Len returns how many records were saved
func (r *MockRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
