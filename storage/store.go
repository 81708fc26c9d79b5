// Package storage defines the key/value store that holds the local session state.
// It plays the part localStorage plays for a browser client.
package storage

import (
	"context"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = apperrors.ErrNotFound

// Store is a flat string key/value store.
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set creates or overwrites key
	Set(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists every key currently stored
	Keys(ctx context.Context) ([]string, error)
}
