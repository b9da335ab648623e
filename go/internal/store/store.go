// Package store persists JSON documents under string keys. The exam keeps
// exactly two: the live snapshot and the saved settings.
package store

import (
	"context"
	"errors"
)

const (
	// KeyActiveState holds the running exam's snapshot.
	KeyActiveState = "osce:active_state"
	// KeyConfig holds the saved exam settings.
	KeyConfig = "osce:config"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Store is a JSON document store.
type Store interface {
	// Get decodes the value under key into v.
	Get(ctx context.Context, key string, v any) error
	// Set encodes v as JSON and stores it under key.
	Set(ctx context.Context, key string, v any) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Has reports whether key exists.
	Has(ctx context.Context, key string) (bool, error)
	Close() error
}
