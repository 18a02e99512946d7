// Package sqlite implements [store.KV] and [store.BlobStore] on top of a
// local SQLite database. This is the default backend for the authoring tool:
// a single file next to the story keeps generated audio reusable across runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sversen/novella/pkg/store"
)

// Compile-time interface checks.
var (
	_ store.KV        = (*Store)(nil)
	_ store.BlobStore = (*Store)(nil)
)

// Store is a SQLite-backed persistent store. All operations are safe for
// concurrent use; database/sql serialises access to the single connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and ensures the schema
// exists.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the entries and blobs tables when missing.
func (s *Store) migrate(ctx context.Context) error {
	const schema = `
create table if not exists entries (
	key   text primary key,
	value blob not null
);
create table if not exists blobs (
	id  text primary key,
	url text not null
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite store: migrate: %w", err)
	}
	return nil
}

// Get implements [store.KV.Get].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.
		QueryRowContext(ctx, "select value from entries where key = $1", key).
		Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite store: get %q: %w", key, err)
	}
	return value, nil
}

// Put implements [store.KV.Put]. Writing an existing key replaces its value;
// the cache layer never does this in practice since entries are immutable.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(
		ctx,
		"insert into entries (key, value) values ($1, $2) on conflict (key) do update set value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: put %q: %w", key, err)
	}
	return nil
}

// Keys implements [store.KV.Keys].
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "select key from entries")
	if err != nil {
		return nil, fmt.Errorf("sqlite store: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("sqlite store: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store: iterate keys: %w", err)
	}
	return keys, nil
}

// Resolve implements [store.BlobStore.Resolve].
func (s *Store) Resolve(ctx context.Context, id string) (string, error) {
	var url string
	err := s.db.
		QueryRowContext(ctx, "select url from blobs where id = $1", id).
		Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("sqlite store: resolve %q: %w", id, err)
	}
	return url, nil
}

// AddBlob registers a media id with its displayable URL.
func (s *Store) AddBlob(ctx context.Context, id, url string) error {
	_, err := s.db.ExecContext(
		ctx,
		"insert into blobs (id, url) values ($1, $2) on conflict (id) do update set url = excluded.url",
		id, url,
	)
	if err != nil {
		return fmt.Errorf("sqlite store: add blob %q: %w", id, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
