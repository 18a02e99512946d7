// Package memstore provides thread-safe, in-memory implementations of the
// [store.KV] and [store.BlobStore] interfaces. Suitable for single-session
// use and testing.
package memstore

import (
	"context"
	"sync"

	"github.com/sversen/novella/pkg/store"
)

// Compile-time assertions.
var (
	_ store.KV        = (*KV)(nil)
	_ store.BlobStore = (*BlobStore)(nil)
)

// KV is an in-memory [store.KV]. The zero value is ready to use.
type KV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewKV returns an initialised [KV].
func NewKV() *KV {
	return &KV{values: make(map[string][]byte)}
}

// Get implements [store.KV.Get].
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Put implements [store.KV.Put].
func (s *KV) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.values == nil {
		s.values = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.values[key] = v
	return nil
}

// Keys implements [store.KV.Keys].
func (s *KV) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys, nil
}

// BlobStore is an in-memory [store.BlobStore] mapping media ids to URLs.
// The zero value is ready to use.
type BlobStore struct {
	mu   sync.RWMutex
	urls map[string]string
}

// NewBlobStore returns an initialised [BlobStore].
func NewBlobStore() *BlobStore {
	return &BlobStore{urls: make(map[string]string)}
}

// Add registers a media id with its displayable URL.
func (b *BlobStore) Add(id, url string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.urls == nil {
		b.urls = make(map[string]string)
	}
	b.urls[id] = url
}

// Resolve implements [store.BlobStore.Resolve].
func (b *BlobStore) Resolve(_ context.Context, id string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	url, ok := b.urls[id]
	if !ok {
		return "", store.ErrNotFound
	}
	return url, nil
}
