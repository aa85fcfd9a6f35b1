// Package memory implements storage.RecordStore with mutex-protected
// in-process maps, keeping each collection isolated from the others the
// way the teacher's own in-memory test doubles do.
package memory

import (
	"context"
	"sync"

	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

// Store is a storage.RecordStore backed entirely by process memory. Zero
// value is ready to use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]record.Record
}

// New returns an empty Store.
func New() *Store {
	return &Store{collections: make(map[string]map[string]record.Record)}
}

func (s *Store) rows(collection string) map[string]record.Record {
	rows, ok := s.collections[collection]
	if !ok {
		rows = make(map[string]record.Record)
		s.collections[collection] = rows
	}
	return rows
}

// Create stores rec under its id, failing if the id already exists.
func (s *Store) Create(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.rows(collection)
	id := rec.ID()
	if _, exists := rows[id]; exists {
		return nil, storage.ErrIDCollision
	}
	stored := rec.Clone()
	rows[id] = stored
	return stored.Clone(), nil
}

// FindByID returns a defensive copy of the stored record, if present.
func (s *Store) FindByID(ctx context.Context, collection, id string) (record.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.collections[collection]
	if !ok {
		return nil, false, nil
	}
	rec, found := rows[id]
	if !found {
		return nil, false, nil
	}
	return rec.Clone(), true, nil
}

// FindAll returns copies of every record matching filter, in insertion
// order is not guaranteed (map iteration).
func (s *Store) FindAll(ctx context.Context, collection string, filter storage.Filter) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, ok := s.collections[collection]
	if !ok {
		return nil, nil
	}
	out := make([]record.Record, 0, len(rows))
	for _, rec := range rows {
		if storage.Matches(rec, filter) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// Update merges rec over the existing record at id, reporting ok=false if
// id does not exist.
func (s *Store) Update(ctx context.Context, collection, id string, rec record.Record) (record.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.collections[collection]
	if !ok {
		return nil, false, nil
	}
	existing, found := rows[id]
	if !found {
		return nil, false, nil
	}
	merged := existing.Merge(rec).WithID(id)
	rows[id] = merged
	return merged.Clone(), true, nil
}

// Delete removes the record at id, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.collections[collection]
	if !ok {
		return false, nil
	}
	_, found := rows[id]
	delete(rows, id)
	return found, nil
}

// Clear empties collection without unregistering it.
func (s *Store) Clear(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = make(map[string]record.Record)
	return nil
}

// Aggregate reduces collection's rows per opts using the shared
// storage.Aggregate reducer.
func (s *Store) Aggregate(ctx context.Context, collection string, opts storage.AggregateOptions) ([]record.Record, error) {
	s.mu.RLock()
	rows, ok := s.collections[collection]
	snapshot := make([]record.Record, 0, len(rows))
	if ok {
		for _, rec := range rows {
			snapshot = append(snapshot, rec.Clone())
		}
	}
	s.mu.RUnlock()
	return storage.Aggregate(snapshot, opts), nil
}
