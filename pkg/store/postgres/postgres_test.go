package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/sversen/novella/pkg/store"
	"github.com/sversen/novella/pkg/store/postgres"
)

// testDSN returns the test database DSN from the environment, or skips the
// test if NOVELLA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("NOVELLA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NOVELLA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	ctx := context.Background()

	s, err := postgres.New(ctx, testDSN(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "test|roundtrip", []byte("mp3-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "test|roundtrip")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "mp3-bytes" {
		t.Errorf("got %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), "test|missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestKeysIncludesWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "test|keys", []byte("1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	found := false
	for _, k := range keys {
		if k == "test|keys" {
			found = true
		}
	}
	if !found {
		t.Error("written key absent from Keys enumeration")
	}
}

func TestBlobResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AddBlob(ctx, "test-blob", "https://cdn.example/x.png"); err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	url, err := s.Resolve(ctx, "test-blob")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "https://cdn.example/x.png" {
		t.Errorf("url = %q", url)
	}

	if _, err := s.Resolve(ctx, "test-blob-missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
