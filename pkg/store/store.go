// Package store defines the persistence contracts consumed by the novella
// playback core: a flat key-value store for generated audio and alignment
// payloads, and a blob resolver for authored media (images, video).
//
// The core never assumes a particular backend. Implementations are provided
// for in-memory use ([github.com/sversen/novella/pkg/store/memstore]), SQLite
// and PostgreSQL. Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get and Resolve when the requested key or blob
// id does not exist. Callers should test with [errors.Is].
var ErrNotFound = errors.New("store: not found")

// KV is a persistent string-keyed byte store.
//
// Cache entries written through Put are immutable: a given key is written at
// most once per generation, and supersession happens by writing a new key,
// never by overwriting. Implementations may therefore cache reads freely.
type KV interface {
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key.
	Put(ctx context.Context, key string, value []byte) error

	// Keys enumerates every key currently present. Order is unspecified.
	// The cache-lookup ladder scans this enumeration, so implementations
	// should keep it cheap relative to value reads.
	Keys(ctx context.Context) ([]string, error)
}

// BlobStore resolves an opaque media id to a URL the renderer can display.
type BlobStore interface {
	// Resolve returns a displayable URL for id, or [ErrNotFound].
	Resolve(ctx context.Context, id string) (string, error)
}
