// Package store holds the last known metrics for every polled host.
//
// A Store is the only structure shared between pollers and readers. Each
// host has one Entry; pollers update it field by field, so a command that
// fails on one cycle leaves the previous reading of its fields in place
// while everything else moves on.
package store

import (
	"sort"
	"sync"
	"time"
)

// Store maps host ids to their latest Entry. The zero value is not usable;
// call New.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	now     func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// entry returns the host's entry, creating it on first use.
// Must be called with s.mu held for writing.
func (s *Store) entry(hostID string) *Entry {
	e, ok := s.entries[hostID]
	if !ok {
		e = &Entry{HostID: hostID}
		s.entries[hostID] = e
	}
	return e
}

// Update applies fn to the host's entry under the store lock and stamps
// UpdatedAt. fn should only touch the fields it means to change.
func (s *Store) Update(hostID string, fn func(*Entry)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(hostID)
	fn(e)
	e.HostID = hostID
	e.UpdatedAt = s.now()
}

// Set writes one named field. v must have the field's Go type, for example
// float64 for FieldIdle or []metrics.Core for FieldCores.
func (s *Store) Set(hostID string, f Field, v any) error {
	var err error
	s.Update(hostID, func(e *Entry) {
		err = e.set(f, v)
	})
	return err
}

// MarkLoaded records that the host has completed a full poll cycle.
func (s *Store) MarkLoaded(hostID string) {
	s.Update(hostID, func(e *Entry) {
		e.Loaded = true
	})
}

// Get returns a copy of the host's entry.
func (s *Store) Get(hostID string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[hostID]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// Field returns one field's last value. A missing host and a field never
// observed both report false.
func (s *Store) Field(hostID string, f Field) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[hostID]
	if !ok {
		return nil, false
	}
	c := e.clone()
	return c.Value(f)
}

// FieldOr returns the field's last value, or its Fallback.
func (s *Store) FieldOr(hostID string, f Field) any {
	if v, ok := s.Field(hostID, f); ok {
		return v
	}
	return Fallback(f)
}

// Loaded reports whether the host has completed a full poll cycle.
func (s *Store) Loaded(hostID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[hostID]
	return ok && e.Loaded
}

// Hosts returns the ids that have an entry, sorted.
func (s *Store) Hosts() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
