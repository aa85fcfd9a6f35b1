// Package rediskv implements storage.RecordStore as a hash-per-record
// backend over go-redis/v8: each record is a JSON blob held in a single
// Redis hash field, and a per-collection set tracks member ids. Filtering
// and aggregation happen in Go, reusing the same storage.Matches and
// storage.Aggregate the in-memory backend uses, so the two backends never
// diverge on semantics.
package rediskv

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/storage"
)

const dataField = "blob"

// Store is a storage.RecordStore backed by Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// New wraps client; keys are namespaced under prefix (default "enginecore").
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "enginecore"
	}
	return &Store{client: client, prefix: prefix}
}

func (s *Store) recordKey(collection, id string) string {
	return fmt.Sprintf("%s:%s:record:%s", s.prefix, collection, id)
}

func (s *Store) indexKey(collection string) string {
	return fmt.Sprintf("%s:%s:ids", s.prefix, collection)
}

func (s *Store) write(ctx context.Context, collection, id string, rec record.Record) error {
	data, err := json.Marshal(map[string]any(rec))
	if err != nil {
		return fmt.Errorf("rediskv: marshal record: %w", err)
	}
	return s.client.HSet(ctx, s.recordKey(collection, id), dataField, data).Err()
}

func (s *Store) read(ctx context.Context, collection, id string) (record.Record, bool, error) {
	data, err := s.client.HGet(ctx, s.recordKey(collection, id), dataField).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rediskv: read record: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, false, fmt.Errorf("rediskv: unmarshal record: %w", err)
	}
	return record.Record(out), true, nil
}

func (s *Store) allIDs(ctx context.Context, collection string) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey(collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: list ids: %w", err)
	}
	return ids, nil
}

// Create persists rec under its id, failing on collision.
func (s *Store) Create(ctx context.Context, collection string, rec record.Record) (record.Record, error) {
	id := rec.ID()
	exists, err := s.client.SIsMember(ctx, s.indexKey(collection), id).Result()
	if err != nil {
		return nil, fmt.Errorf("rediskv: check existing id: %w", err)
	}
	if exists {
		return nil, storage.ErrIDCollision
	}
	if err := s.write(ctx, collection, id, rec); err != nil {
		return nil, err
	}
	if err := s.client.SAdd(ctx, s.indexKey(collection), id).Err(); err != nil {
		return nil, fmt.Errorf("rediskv: index id: %w", err)
	}
	return rec.Clone(), nil
}

// FindByID reads the record at id, if present.
func (s *Store) FindByID(ctx context.Context, collection, id string) (record.Record, bool, error) {
	return s.read(ctx, collection, id)
}

// FindAll reads every record in collection and applies filter in Go.
func (s *Store) FindAll(ctx context.Context, collection string, filter storage.Filter) ([]record.Record, error) {
	ids, err := s.allIDs(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		rec, found, err := s.read(ctx, collection, id)
		if err != nil {
			return nil, err
		}
		if found && storage.Matches(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Update merges rec over the existing record at id.
func (s *Store) Update(ctx context.Context, collection, id string, rec record.Record) (record.Record, bool, error) {
	existing, found, err := s.read(ctx, collection, id)
	if err != nil || !found {
		return nil, found, err
	}
	merged := existing.Merge(rec).WithID(id)
	if err := s.write(ctx, collection, id, merged); err != nil {
		return nil, false, err
	}
	return merged, true, nil
}

// Delete removes the record at id, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	exists, err := s.client.SIsMember(ctx, s.indexKey(collection), id).Result()
	if err != nil {
		return false, fmt.Errorf("rediskv: check existing id: %w", err)
	}
	if !exists {
		return false, nil
	}
	if err := s.client.Del(ctx, s.recordKey(collection, id)).Err(); err != nil {
		return false, fmt.Errorf("rediskv: delete record: %w", err)
	}
	if err := s.client.SRem(ctx, s.indexKey(collection), id).Err(); err != nil {
		return false, fmt.Errorf("rediskv: unindex id: %w", err)
	}
	return true, nil
}

// Clear removes every record in collection.
func (s *Store) Clear(ctx context.Context, collection string) error {
	ids, err := s.allIDs(ctx, collection)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.client.Del(ctx, s.recordKey(collection, id)).Err(); err != nil {
			return fmt.Errorf("rediskv: clear record: %w", err)
		}
	}
	return s.client.Del(ctx, s.indexKey(collection)).Err()
}

// Aggregate reduces collection's records per opts using the shared reducer.
func (s *Store) Aggregate(ctx context.Context, collection string, opts storage.AggregateOptions) ([]record.Record, error) {
	rows, err := s.FindAll(ctx, collection, storage.Filter{})
	if err != nil {
		return nil, err
	}
	return storage.Aggregate(rows, opts), nil
}
