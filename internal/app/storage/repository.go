package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flowlayer/enginecore/internal/app/idgen"
	"github.com/flowlayer/enginecore/internal/app/record"
)

// Entity is the contract a domain type must satisfy to be stored through a
// Repository: a stable identifier plus lifecycle timestamps the repository
// stamps on write.
type Entity interface {
	GetID() string
	SetID(string)
	SetCreatedAt(time.Time)
	SetUpdatedAt(time.Time)
}

// Repository is the typed, per-collection view over Storage's untyped
// RecordStore. T round-trips through record.Record via JSON marshaling,
// matching how every other path in this codebase treats a domain value as
// a JSON-shaped record.
type Repository[T Entity] struct {
	storage    *Storage
	collection string
}

// NewRepository returns a Repository over collection, registering it with
// storage if it is not already known.
func NewRepository[T Entity](storage *Storage, collection string) *Repository[T] {
	storage.ensure(collection)
	return &Repository[T]{storage: storage, collection: collection}
}

// Create assigns an id when entity has none, fails on id collision,
// stamps created/updated timestamps, and persists the result.
func (r *Repository[T]) Create(ctx context.Context, entity T) (T, error) {
	var zero T
	now := time.Now().UTC()
	if entity.GetID() == "" {
		entity.SetID(idgen.New())
	} else if _, found, err := r.storage.backend.FindByID(ctx, r.collection, entity.GetID()); err != nil {
		return zero, err
	} else if found {
		return zero, ErrIDCollision
	}
	entity.SetCreatedAt(now)
	entity.SetUpdatedAt(now)

	rec, err := encode(entity)
	if err != nil {
		return zero, err
	}
	stored, err := r.storage.backend.Create(ctx, r.collection, rec)
	if err != nil {
		return zero, err
	}
	return decode[T](stored)
}

// FindByID returns the entity with id, or ok=false if absent.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	rec, found, err := r.storage.backend.FindByID(ctx, r.collection, id)
	if err != nil || !found {
		return zero, false, err
	}
	entity, err := decode[T](rec)
	return entity, err == nil, err
}

// FindAll returns every entity matching filter.
func (r *Repository[T]) FindAll(ctx context.Context, filter Filter) ([]T, error) {
	rows, err := r.storage.backend.FindAll(ctx, r.collection, filter)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, rec := range rows {
		entity, err := decode[T](rec)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// Update merges entity's fields over the existing record at id, returning
// ok=false when id does not exist.
func (r *Repository[T]) Update(ctx context.Context, id string, entity T) (T, bool, error) {
	var zero T
	entity.SetUpdatedAt(time.Now().UTC())
	rec, err := encode(entity)
	if err != nil {
		return zero, false, err
	}
	stored, found, err := r.storage.backend.Update(ctx, r.collection, id, rec)
	if err != nil || !found {
		return zero, found, err
	}
	out, err := decode[T](stored)
	return out, true, err
}

// Delete removes the entity with id, reporting whether it existed.
func (r *Repository[T]) Delete(ctx context.Context, id string) (bool, error) {
	return r.storage.backend.Delete(ctx, r.collection, id)
}

// Clear removes every record in the collection.
func (r *Repository[T]) Clear(ctx context.Context) error {
	return r.storage.backend.Clear(ctx, r.collection)
}

// Aggregate reduces the collection's records per opts.
func (r *Repository[T]) Aggregate(ctx context.Context, opts AggregateOptions) ([]record.Record, error) {
	return r.storage.backend.Aggregate(ctx, r.collection, opts)
}

func encode[T any](entity T) (record.Record, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("storage: encode entity: %w", err)
	}
	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("storage: encode entity: %w", err)
	}
	return rec, nil
}

func decode[T any](rec record.Record) (T, error) {
	var out T
	data, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return out, fmt.Errorf("storage: decode record: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("storage: decode record: %w", err)
	}
	return out, nil
}
