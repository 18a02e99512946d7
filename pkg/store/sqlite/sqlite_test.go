package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sversen/novella/pkg/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "audio|intro|b1", []byte("mp3-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := s.Get(ctx, "audio|intro|b1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "mp3-bytes" {
		t.Errorf("got %q", got)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPutReplacesValue(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "k", []byte("v1"))
	if err := s.Put(ctx, "k", []byte("v2")); err != nil {
		t.Fatalf("second Put: %v", err)
	}
	got, _ := s.Get(ctx, "k")
	if string(got) != "v2" {
		t.Errorf("got %q, want v2", got)
	}
}

func TestKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("got %d keys, want 2", len(keys))
	}
}

func TestBlobResolve(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.AddBlob(ctx, "bg-shore", "file:///media/bg-shore.png"); err != nil {
		t.Fatalf("AddBlob: %v", err)
	}
	url, err := s.Resolve(ctx, "bg-shore")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if url != "file:///media/bg-shore.png" {
		t.Errorf("url = %q", url)
	}

	if _, err := s.Resolve(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.Put(ctx, "k", []byte("kept"))
	s.Close()

	s2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, err := s2.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "kept" {
		t.Errorf("got %q, want kept", got)
	}
}
