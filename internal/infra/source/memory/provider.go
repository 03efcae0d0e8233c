// Package memory implements an in-process collection source for tests and
// demos.
package memory

import (
	"context"
	"sync"

	"mvpplanner/internal/source/core"
	"mvpplanner/pkg/domain"
)

// Provider serves and stores collections in process memory.
type Provider struct {
	mu          sync.RWMutex
	collections domain.Snapshot
	fetches     map[domain.CollectionName]int
}

// New returns a provider seeded with a copy of snapshot.
func New(snapshot domain.Snapshot) *Provider {
	p := &Provider{collections: domain.Snapshot{}, fetches: map[domain.CollectionName]int{}}
	for name, records := range snapshot {
		p.collections[name] = domain.CloneRecords(records)
	}
	return p
}

// Fetch returns a copy of the collection, or core.ErrNotFound.
func (p *Provider) Fetch(_ context.Context, name domain.CollectionName) ([]domain.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fetches[name]++
	records, ok := p.collections[name]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := domain.CloneRecords(records)
	if out == nil {
		out = []domain.Record{}
	}
	return out, nil
}

// Store replaces the collection.
func (p *Provider) Store(_ context.Context, name domain.CollectionName, records []domain.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collections[name] = domain.CloneRecords(records)
	return nil
}

// Fetches reports how many times the collection was fetched.
func (p *Provider) Fetches(name domain.CollectionName) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.fetches[name]
}
