package media

import (
	"context"
	"errors"
	"testing"

	"github.com/sversen/novella/internal/script"
	"github.com/sversen/novella/pkg/store"
	"github.com/sversen/novella/pkg/store/memstore"
)

func TestPrefetchScene_ResolvesAllBeats(t *testing.T) {
	t.Parallel()

	blobs := memstore.NewBlobStore()
	blobs.Add("img-eva", "https://cdn.example/eva.png")
	blobs.Add("img-bob", "https://cdn.example/bob.png")
	blobs.Add("vid-intro", "https://cdn.example/intro.mp4")

	scene := &script.Scene{
		ID: "scene-1",
		Beats: []script.Beat{
			{ID: "b1", Order: 1, ImageRef: "img-eva", VideoRef: "vid-intro"},
			{ID: "b2", Order: 2, ImageRef: "img-bob"},
			{ID: "b3", Order: 3},
		},
	}

	p := NewPrefetcher(blobs, nil)
	if err := p.PrefetchScene(context.Background(), scene); err != nil {
		t.Fatalf("PrefetchScene: %v", err)
	}

	a, ok := p.Beat("b1")
	if !ok {
		t.Fatal("beat b1 not prefetched")
	}
	if a.ImageURL != "https://cdn.example/eva.png" {
		t.Errorf("b1 image = %q", a.ImageURL)
	}
	if a.VideoURL != "https://cdn.example/intro.mp4" {
		t.Errorf("b1 video = %q", a.VideoURL)
	}

	a, ok = p.Beat("b2")
	if !ok {
		t.Fatal("beat b2 not prefetched")
	}
	if a.ImageURL != "https://cdn.example/bob.png" {
		t.Errorf("b2 image = %q", a.ImageURL)
	}
	if a.VideoURL != "" {
		t.Errorf("b2 video = %q, want empty", a.VideoURL)
	}

	a, ok = p.Beat("b3")
	if !ok {
		t.Fatal("beat b3 not prefetched")
	}
	if a != (Assets{}) {
		t.Errorf("b3 assets = %+v, want empty", a)
	}
}

func TestPrefetchScene_MissingBlobSkipped(t *testing.T) {
	t.Parallel()

	blobs := memstore.NewBlobStore()
	scene := &script.Scene{
		ID:    "scene-1",
		Beats: []script.Beat{{ID: "b1", Order: 1, ImageRef: "gone"}},
	}

	p := NewPrefetcher(blobs, nil)
	if err := p.PrefetchScene(context.Background(), scene); err != nil {
		t.Fatalf("PrefetchScene: %v", err)
	}

	a, ok := p.Beat("b1")
	if !ok {
		t.Fatal("beat b1 not prefetched")
	}
	if a.ImageURL != "" {
		t.Errorf("image = %q, want empty for missing blob", a.ImageURL)
	}
}

// failingBlobs returns a non-NotFound error for every lookup.
type failingBlobs struct{}

func (failingBlobs) Resolve(context.Context, string) (string, error) {
	return "", errors.New("store unavailable")
}

func TestPrefetchScene_StoreErrorPropagates(t *testing.T) {
	t.Parallel()

	scene := &script.Scene{
		ID:    "scene-1",
		Beats: []script.Beat{{ID: "b1", Order: 1, ImageRef: "img"}},
	}

	var bs store.BlobStore = failingBlobs{}
	p := NewPrefetcher(bs, nil)
	if err := p.PrefetchScene(context.Background(), scene); err == nil {
		t.Fatal("expected error from failing blob store")
	}
}

func TestReset_DropsAssets(t *testing.T) {
	t.Parallel()

	blobs := memstore.NewBlobStore()
	blobs.Add("img", "https://cdn.example/a.png")
	scene := &script.Scene{
		ID:    "scene-1",
		Beats: []script.Beat{{ID: "b1", Order: 1, ImageRef: "img"}},
	}

	p := NewPrefetcher(blobs, nil)
	if err := p.PrefetchScene(context.Background(), scene); err != nil {
		t.Fatalf("PrefetchScene: %v", err)
	}
	p.Reset()

	if _, ok := p.Beat("b1"); ok {
		t.Error("assets survived Reset")
	}
}
