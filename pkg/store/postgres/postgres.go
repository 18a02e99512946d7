// Package postgres implements [store.KV] and [store.BlobStore] on top of
// PostgreSQL via pgx. Intended for shared deployments where several authors
// work against the same story and generated audio should be reused by all of
// them.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sversen/novella/pkg/store"
)

// Compile-time interface checks.
var (
	_ store.KV        = (*Store)(nil)
	_ store.BlobStore = (*Store)(nil)
)

// Store is a PostgreSQL-backed persistent store holding a single
// [pgxpool.Pool]. All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New establishes a connection pool to the database at dsn and runs the
// schema migration.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}
	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the entries and blobs tables when missing.
func (s *Store) migrate(ctx context.Context) error {
	const schema = `
create table if not exists novella_entries (
	key   text primary key,
	value bytea not null
);
create table if not exists novella_blobs (
	id  text primary key,
	url text not null
);`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres store: migrate: %w", err)
	}
	return nil
}

// Get implements [store.KV.Get].
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.pool.
		QueryRow(ctx, "select value from novella_entries where key = $1", key).
		Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres store: get %q: %w", key, err)
	}
	return value, nil
}

// Put implements [store.KV.Put].
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.pool.Exec(
		ctx,
		"insert into novella_entries (key, value) values ($1, $2) on conflict (key) do update set value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("postgres store: put %q: %w", key, err)
	}
	return nil
}

// Keys implements [store.KV.Keys].
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, "select key from novella_entries")
	if err != nil {
		return nil, fmt.Errorf("postgres store: keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("postgres store: scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres store: iterate keys: %w", err)
	}
	return keys, nil
}

// Resolve implements [store.BlobStore.Resolve].
func (s *Store) Resolve(ctx context.Context, id string) (string, error) {
	var url string
	err := s.pool.
		QueryRow(ctx, "select url from novella_blobs where id = $1", id).
		Scan(&url)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("postgres store: resolve %q: %w", id, err)
	}
	return url, nil
}

// AddBlob registers a media id with its displayable URL.
func (s *Store) AddBlob(ctx context.Context, id, url string) error {
	_, err := s.pool.Exec(
		ctx,
		"insert into novella_blobs (id, url) values ($1, $2) on conflict (id) do update set url = excluded.url",
		id, url,
	)
	if err != nil {
		return fmt.Errorf("postgres store: add blob %q: %w", id, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
