package storage

import "errors"

// ErrNotFound is returned when a lookup by id finds no matching record.
var ErrNotFound = errors.New("storage: record not found")

// ErrIDCollision is returned by Create when the supplied id already exists
// in the collection.
var ErrIDCollision = errors.New("storage: id already exists")

// ErrCollectionNotRegistered is returned when an operation targets a
// collection that was never registered via RegisterCollection.
var ErrCollectionNotRegistered = errors.New("storage: collection not registered")
