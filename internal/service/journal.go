package service

import (
	"context"
	"sync"
	"time"

	"github.com/smartcity/signalctl/internal/domain"
)

const (
	journalBuffer      = 1024
	journalSaveTimeout = 5 * time.Second
)

// EventJournal persists published events to an EventRepository off the
// publisher's goroutine. When the buffer is full new events are dropped.
type EventJournal struct {
	repo EventRepository
	ch   chan domain.EventRecord

	mu      sync.Mutex
	closed  bool
	dropped uint64

	wgBg sync.WaitGroup // tracks the writer goroutine for graceful shutdown
}

// NewEventJournal starts the background writer
func NewEventJournal(repo EventRepository) *EventJournal {
	j := &EventJournal{
		repo: repo,
		ch:   make(chan domain.EventRecord, journalBuffer),
	}
	j.wgBg.Add(1)
	go j.run()
	return j
}

// Handle is a Subscriber; it never blocks
func (j *EventJournal) Handle(ev domain.Event) {
	rec := ev.Record()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.ch <- rec:
	default:
		j.dropped++
		log.WithField("event", rec.Kind).Warn("event journal full, dropping event")
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (j *EventJournal) Dropped() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

func (j *EventJournal) run() {
	defer j.wgBg.Done()
	for rec := range j.ch {
		ctx, cancel := context.WithTimeout(context.Background(), journalSaveTimeout)
		if err := j.repo.SaveEvent(ctx, rec); err != nil {
			log.WithField("event", rec.Kind).Errorf("Failed to save event: %v", err)
		}
		cancel()
	}
}

// History returns journaled events in [from, to], newest first
func (j *EventJournal) History(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	return j.repo.GetEvents(ctx, from, to)
}

// Close stops accepting events and blocks until the buffer is drained
func (j *EventJournal) Close() {
	j.mu.Lock()
	if !j.closed {
		j.closed = true
		close(j.ch)
	}
	j.mu.Unlock()
	j.wgBg.Wait()
}
