package core

import (
	"fmt"

	"mvpplanner/pkg/domain"
)

// RecordStore holds the nine raw record collections of one load cycle.
// Collections are replaced wholesale; nothing is merged.
type RecordStore struct {
	collections map[domain.CollectionName][]domain.Record
}

// NewRecordStore returns a store with every collection empty.
func NewRecordStore() *RecordStore {
	s := &RecordStore{collections: make(map[domain.CollectionName][]domain.Record)}
	for _, name := range domain.Collections() {
		s.collections[name] = nil
	}
	return s
}

// Load replaces the named collection with a copy of records.
func (s *RecordStore) Load(name domain.CollectionName, records []domain.Record) error {
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
	}
	s.collections[name] = domain.CloneRecords(records)
	return nil
}

// Replace loads every collection of the snapshot. Collections missing from the
// snapshot are reset to empty.
func (s *RecordStore) Replace(snapshot domain.Snapshot) error {
	for name := range snapshot {
		if _, ok := s.collections[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCollection, name)
		}
	}
	for _, name := range domain.Collections() {
		s.collections[name] = domain.CloneRecords(snapshot[name])
	}
	return nil
}

// Get returns the named collection in source order. Callers must not mutate
// the returned records.
func (s *RecordStore) Get(name domain.CollectionName) []domain.Record {
	return s.collections[name]
}

// Snapshot returns a deep copy of all collections.
func (s *RecordStore) Snapshot() domain.Snapshot {
	out := make(domain.Snapshot, len(s.collections))
	for name, records := range s.collections {
		out[name] = domain.CloneRecords(records)
	}
	return out
}
