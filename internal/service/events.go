package service

import (
	"sort"
	"sync"

	"github.com/samber/lo"

	"github.com/smartcity/signalctl/internal/domain"
	"github.com/smartcity/signalctl/internal/repository/memory"
)

// Subscriber receives every published event. Events of one entity arrive in
// version order because they are published from inside that entity's lock;
// a subscriber therefore must not block or call back into the control services.
type Subscriber func(domain.Event)

// EventBus fans events out to subscribers in subscription order
type EventBus struct {
	mu     sync.RWMutex
	subs   map[uint64]Subscriber
	nextID uint64
}

// NewEventBus creates a bus with no subscribers
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[uint64]Subscriber)}
}

// Subscribe registers fn and returns a function that removes it
func (b *EventBus) Subscribe(fn Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers each event to every subscriber registered at call time
func (b *EventBus) Publish(events ...domain.Event) {
	if len(events) == 0 {
		return
	}
	b.mu.RLock()
	ids := lo.Keys(b.subs)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	subs := lo.Map(ids, func(id uint64, _ int) Subscriber { return b.subs[id] })
	b.mu.RUnlock()

	for _, ev := range events {
		for _, fn := range subs {
			deliver(fn, ev)
		}
	}
}

func deliver(fn Subscriber, ev domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("event", ev.Kind()).Errorf("subscriber panicked: %v", r)
		}
	}()
	fn(ev)
}

// phaseHook is a signal-store commit hook emitting PhaseChanged. It runs
// inside the signal lock, so one signal's changes reach subscribers in
// version order.
func phaseHook(bus *EventBus, source string) func(before, after memory.Versioned[domain.Signal]) {
	return func(before, after memory.Versioned[domain.Signal]) {
		bus.Publish(domain.PhaseChanged{
			SignalID:  after.ID,
			OldPhase:  before.Value.Phase,
			NewPhase:  after.Value.Phase,
			Duration:  after.Value.PhaseDuration,
			Source:    source,
			Version:   after.Version,
			Timestamp: after.Value.UpdatedAt,
		})
	}
}
