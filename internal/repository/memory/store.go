// Package memory holds the authoritative in-process entity collections.
//
// A Store serializes mutations per ID: each entry has its own mutex, so
// writers on different IDs never wait on each other. The map-level lock is
// only held to look entries up, insert or delete them, never while a
// mutation function runs. Multi-entry updates lock their entries in
// ascending ID order.
package memory

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samber/lo"
	"github.com/smartcity/signalctl/internal/domain"
)

// ErrUnchanged is returned by an update function to report a successful
// no-op: nothing is written and the version stays put
var ErrUnchanged = errors.New("unchanged")

// Versioned is a consistent snapshot of one entry
type Versioned[T any] struct {
	ID      string
	Value   T
	Version uint64
}

type entry[T comparable] struct {
	mu      sync.Mutex
	value   T
	version uint64
	removed bool
}

// Store is a concurrency-safe keyed collection with optimistic versions
type Store[T comparable] struct {
	kind string

	mu      sync.RWMutex
	entries map[string]*entry[T]
}

// NewStore creates an empty store; kind is used in error messages
func NewStore[T comparable](kind string) *Store[T] {
	return &Store[T]{
		kind:    kind,
		entries: make(map[string]*entry[T]),
	}
}

func (s *Store[T]) notFound(id string) error {
	return fmt.Errorf("%s %q: %w", s.kind, id, domain.ErrNotFound)
}

func (s *Store[T]) lookup(id string) (*entry[T], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Create inserts a new entry at version 1
func (s *Store[T]) Create(id string, value T) (Versioned[T], error) {
	return s.CreateThen(id, value, nil)
}

// CreateThen is Create with a hook that runs under the new entry's lock, so
// nothing observes a later write to id before then has returned
func (s *Store[T]) CreateThen(id string, value T, then func(created Versioned[T])) (Versioned[T], error) {
	s.mu.Lock()
	if _, ok := s.entries[id]; ok {
		s.mu.Unlock()
		return Versioned[T]{}, fmt.Errorf("%s %q: %w", s.kind, id, domain.ErrAlreadyExists)
	}
	e := &entry[T]{value: value, version: 1}
	e.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	defer e.mu.Unlock()

	created := Versioned[T]{ID: id, Value: value, Version: 1}
	if then != nil {
		then(created)
	}
	return created, nil
}

// Get returns a snapshot taken under the entry lock
func (s *Store[T]) Get(id string) (Versioned[T], error) {
	e, ok := s.lookup(id)
	if !ok {
		return Versioned[T]{}, s.notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Versioned[T]{}, s.notFound(id)
	}
	return Versioned[T]{ID: id, Value: e.value, Version: e.version}, nil
}

// Exists reports whether id is present
func (s *Store[T]) Exists(id string) bool {
	_, ok := s.lookup(id)
	return ok
}

// Len returns the number of entries
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// IDs returns every ID in ascending order
func (s *Store[T]) IDs() []string {
	s.mu.RLock()
	ids := lo.Keys(s.entries)
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// List returns per-entry consistent snapshots, ordered by ID.
// The snapshots are not taken at a single instant across entries.
func (s *Store[T]) List() []Versioned[T] {
	ids := s.IDs()
	out := make([]Versioned[T], 0, len(ids))
	for _, id := range ids {
		if v, err := s.Get(id); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// Filter lists the snapshots for which keep returns true
func (s *Store[T]) Filter(keep func(T) bool) []Versioned[T] {
	return lo.Filter(s.List(), func(v Versioned[T], _ int) bool {
		return keep(v.Value)
	})
}

// Update runs fn on a copy of the entry under its lock. When fn returns nil
// the copy is committed and the version bumped. When fn returns ErrUnchanged
// nothing is written and err is nil; any other failure is returned with
// nothing written. before and after are the snapshots around the call.
// fn must not call back into the store.
func (s *Store[T]) Update(id string, fn func(*T) error) (before, after Versioned[T], err error) {
	return s.update(id, 0, false, fn, nil)
}

// UpdateThen is Update with a commit hook. then runs only after a committed
// write and before the entry lock is released, so hooks for one ID run in
// version order. then must not block or call back into the store.
func (s *Store[T]) UpdateThen(id string, fn func(*T) error, then func(before, after Versioned[T])) (Versioned[T], Versioned[T], error) {
	return s.update(id, 0, false, fn, then)
}

// UpdateIfVersion is Update guarded by an optimistic version check
func (s *Store[T]) UpdateIfVersion(id string, expected uint64, fn func(*T) error) (before, after Versioned[T], err error) {
	return s.update(id, expected, true, fn, nil)
}

// UpdateIfVersionThen is UpdateIfVersion with a commit hook
func (s *Store[T]) UpdateIfVersionThen(id string, expected uint64, fn func(*T) error, then func(before, after Versioned[T])) (Versioned[T], Versioned[T], error) {
	return s.update(id, expected, true, fn, then)
}

func (s *Store[T]) update(id string, expected uint64, checkVersion bool, fn func(*T) error, then func(before, after Versioned[T])) (Versioned[T], Versioned[T], error) {
	e, ok := s.lookup(id)
	if !ok {
		return Versioned[T]{}, Versioned[T]{}, s.notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return Versioned[T]{}, Versioned[T]{}, s.notFound(id)
	}
	before := Versioned[T]{ID: id, Value: e.value, Version: e.version}
	if checkVersion && e.version != expected {
		return before, before, fmt.Errorf("%s %q: %w: expected %d, have %d", s.kind, id, domain.ErrVersionConflict, expected, e.version)
	}
	next := e.value
	if err := fn(&next); err != nil {
		if errors.Is(err, ErrUnchanged) {
			return before, before, nil
		}
		return before, before, err
	}
	e.value = next
	e.version++
	after := Versioned[T]{ID: id, Value: e.value, Version: e.version}
	if then != nil {
		then(before, after)
	}
	return before, after, nil
}

// UpdateMany locks every listed entry in ascending ID order and runs fn on
// copies of all of them. Either every changed copy is committed or, when fn
// fails, none is. Only entries whose value changed get a version bump.
// The returned map holds the post-call snapshots.
func (s *Store[T]) UpdateMany(ids []string, fn func(map[string]*T) error) (map[string]Versioned[T], error) {
	ordered := lo.Uniq(ids)
	sort.Strings(ordered)

	// resolve first: the map lock is never requested while an entry lock is held
	resolved := make([]*entry[T], len(ordered))
	s.mu.RLock()
	for i, id := range ordered {
		e, ok := s.entries[id]
		if !ok {
			s.mu.RUnlock()
			return nil, s.notFound(id)
		}
		resolved[i] = e
	}
	s.mu.RUnlock()

	locked := make([]*entry[T], 0, len(ordered))
	defer func() {
		for i := len(locked) - 1; i >= 0; i-- {
			locked[i].mu.Unlock()
		}
	}()
	for i, e := range resolved {
		e.mu.Lock()
		locked = append(locked, e)
		if e.removed {
			return nil, s.notFound(ordered[i])
		}
	}

	copies := make(map[string]*T, len(ordered))
	for i, id := range ordered {
		v := locked[i].value
		copies[id] = &v
	}
	if err := fn(copies); err != nil {
		return nil, err
	}

	out := make(map[string]Versioned[T], len(ordered))
	for i, id := range ordered {
		e := locked[i]
		if next := *copies[id]; next != e.value {
			e.value = next
			e.version++
		}
		out[id] = Versioned[T]{ID: id, Value: e.value, Version: e.version}
	}
	return out, nil
}

// Delete removes id once guard accepts the current value.
// A nil guard always accepts.
func (s *Store[T]) Delete(id string, guard func(T) error) (Versioned[T], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return Versioned[T]{}, s.notFound(id)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	last := Versioned[T]{ID: id, Value: e.value, Version: e.version}
	if guard != nil {
		if err := guard(e.value); err != nil {
			return last, err
		}
	}
	e.removed = true
	delete(s.entries, id)
	return last, nil
}
