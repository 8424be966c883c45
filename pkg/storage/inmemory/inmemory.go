// Package inmemory provides a map-backed answer log for tests and for runs
// without a configured database.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/papercomputeco/memorag/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of records
	mu sync.RWMutex

	records map[string]*storage.Record
}

// NewDriver creates a new in-memory store.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*storage.Record),
	}
}

// Put stores a copy of rec, replacing any record with the same ID.
func (s *Driver) Put(_ context.Context, rec *storage.Record) error {
	if rec == nil {
		return errors.New("cannot store nil record")
	}
	rec.Fill()

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	cp.Passages = append([]string(nil), rec.Passages...)
	s.records[rec.ID] = &cp
	return nil
}

// Get retrieves a record by ID.
func (s *Driver) Get(_ context.Context, id string) (*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, storage.NotFoundError{ID: id}
	}
	cp := *rec
	return &cp, nil
}

// List returns matching records newest first.
func (s *Driver) List(_ context.Context, opts storage.ListOptions) ([]*storage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*storage.Record, 0, len(s.records))
	for _, rec := range s.records {
		if rec.Matches(opts) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit := opts.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats counts records by mode and failure.
func (s *Driver) Stats(_ context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := &storage.Stats{ByMode: make(map[string]int)}
	for _, rec := range s.records {
		st.Total++
		st.ByMode[rec.Mode]++
		if rec.Error != "" {
			st.Failed++
		}
	}
	return st, nil
}

// Clear removes every record.
func (s *Driver) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*storage.Record)
	return nil
}

// Close is a no-op.
func (s *Driver) Close() error {
	return nil
}

var _ storage.Driver = (*Driver)(nil)
