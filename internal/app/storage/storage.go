// Package storage defines the Repository/Storage substrate the three
// engines sit on: a typed, per-collection CRUD + filter + aggregate
// contract backed by a pluggable, untyped RecordStore. The in-memory
// (storage/memory) and Redis (storage/rediskv) backends implement
// RecordStore; this package owns the filter grammar, aggregation, and the
// generic Repository wrapper every domain entity type is stored through.
package storage

import (
	"context"
	"sync"

	"github.com/flowlayer/enginecore/internal/app/idgen"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// Schema is an opaque, store-level description of a collection's shape.
// The core never inspects it; it exists only so RegisterCollection can
// carry whatever validation metadata a backend wants to enforce.
type Schema map[string]any

// RecordStore is the backend-polymorphic, untyped collection operations
// contract. Every Repository[T] operation marshals T to/from record.Record
// and delegates here, so adding a backend never touches domain code.
type RecordStore interface {
	Create(ctx context.Context, collection string, rec record.Record) (record.Record, error)
	FindByID(ctx context.Context, collection, id string) (record.Record, bool, error)
	FindAll(ctx context.Context, collection string, filter Filter) ([]record.Record, error)
	Update(ctx context.Context, collection, id string, rec record.Record) (record.Record, bool, error)
	Delete(ctx context.Context, collection, id string) (bool, error)
	Clear(ctx context.Context, collection string) error
	Aggregate(ctx context.Context, collection string, opts AggregateOptions) ([]record.Record, error)
}

// Storage is the core's view of the entity store: collection registry plus
// the active RecordStore backend.
type Storage struct {
	backend RecordStore

	mu          sync.RWMutex
	collections map[string]Schema
}

// New wraps backend with a collection registry.
func New(backend RecordStore) *Storage {
	return &Storage{backend: backend, collections: make(map[string]Schema)}
}

// HasCollection reports whether name was registered.
func (s *Storage) HasCollection(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok
}

// RegisterCollection declares name with schema, idempotently.
func (s *Storage) RegisterCollection(name string, schema Schema) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return
	}
	s.collections[name] = schema
}

// Collections lists every registered collection name.
func (s *Storage) Collections() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// ensure registers name with an empty schema if it is not already known.
// The three engines create the collections they need lazily on first use.
func (s *Storage) ensure(name string) {
	s.RegisterCollection(name, Schema{})
}

// FindAllRecords reads every record of collection, registering it first if
// unseen. This satisfies condition.RecordSource structurally, so Storage
// can back exists() atoms without condition importing this package.
func (s *Storage) FindAllRecords(ctx context.Context, collection string) ([]record.Record, error) {
	s.ensure(collection)
	return s.backend.FindAll(ctx, collection, Filter{})
}

// CreateRecord persists rec into collection, registering the collection if
// unseen. Used by the Action Executor's createEntity variant, which
// addresses collections by name rather than through a typed Repository.
func (s *Storage) CreateRecord(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	s.ensure(collection)
	return s.backend.Create(ctx, collection, rec)
}

// FindRecord returns the record with id in collection, or ok=false if
// absent.
func (s *Storage) FindRecord(ctx context.Context, collection, id string) (record.Record, bool, error) {
	s.ensure(collection)
	return s.backend.FindByID(ctx, collection, id)
}

// UpdateRecord merges rec over the existing record at id in collection,
// returning ok=false when id does not exist.
func (s *Storage) UpdateRecord(ctx context.Context, collection, id string, rec record.Record) (record.Record, bool, error) {
	s.ensure(collection)
	return s.backend.Update(ctx, collection, id, rec)
}

// DeleteRecord removes the record with id from collection, reporting
// whether it existed.
func (s *Storage) DeleteRecord(ctx context.Context, collection, id string) (bool, error) {
	s.ensure(collection)
	return s.backend.Delete(ctx, collection, id)
}

// Clear removes every record from collection without unregistering it.
// Used by pipeline temp/preview collection garbage collection.
func (s *Storage) Clear(ctx context.Context, collection string) error {
	return s.backend.Clear(ctx, collection)
}

// ReplaceAll clears collection and recreates it from rows, assigning each
// row an id when it has none. Used by the Transform Step Executor, which
// addresses collections by name rather than through a typed Repository.
func (s *Storage) ReplaceAll(ctx context.Context, collection string, rows []record.Record) error {
	s.ensure(collection)
	if err := s.backend.Clear(ctx, collection); err != nil {
		return err
	}
	for _, row := range rows {
		if row.ID() == "" {
			row = row.WithID(idgen.New())
		}
		if _, err := s.backend.Create(ctx, collection, row); err != nil {
			return err
		}
	}
	return nil
}

// AggregateRecords reduces collection's records per opts.
func (s *Storage) AggregateRecords(ctx context.Context, collection string, opts AggregateOptions) ([]record.Record, error) {
	s.ensure(collection)
	return s.backend.Aggregate(ctx, collection, opts)
}
