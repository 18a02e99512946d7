// Package media resolves scene and beat media references (character images,
// background videos) to displayable URLs ahead of playback, so the player
// does not stall on blob lookups between beats.
package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sversen/novella/internal/script"
	"github.com/sversen/novella/pkg/store"
)

// Assets holds resolved media URLs for one beat. Empty fields mean the beat
// has no media of that kind, or the reference could not be resolved.
type Assets struct {
	ImageURL string
	VideoURL string
}

// Prefetcher resolves media references through a [store.BlobStore] and keeps
// an in-memory table of resolved URLs per beat.
type Prefetcher struct {
	blobs  store.BlobStore
	logger *slog.Logger

	mu     sync.RWMutex
	assets map[string]Assets // keyed by beat ID
}

// NewPrefetcher creates a Prefetcher backed by blobs. A nil logger defaults
// to [slog.Default].
func NewPrefetcher(blobs store.BlobStore, logger *slog.Logger) *Prefetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prefetcher{
		blobs:  blobs,
		logger: logger,
		assets: make(map[string]Assets),
	}
}

// PrefetchScene resolves the media references of every beat in the scene
// concurrently. Missing blobs are logged and skipped so one dangling
// reference never blocks playback of the rest of the scene. Other resolution
// failures (store unavailable) are returned.
func (p *Prefetcher) PrefetchScene(ctx context.Context, scene *script.Scene) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := range scene.Beats {
		beat := &scene.Beats[i]
		g.Go(func() error {
			assets, err := p.resolveBeat(ctx, beat)
			if err != nil {
				return err
			}
			p.mu.Lock()
			p.assets[beat.ID] = assets
			p.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Beat returns the resolved assets for a beat ID. The second return value is
// false when the beat has not been prefetched.
func (p *Prefetcher) Beat(beatID string) (Assets, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.assets[beatID]
	return a, ok
}

// Reset drops all resolved assets, typically on scene transition.
func (p *Prefetcher) Reset() {
	p.mu.Lock()
	p.assets = make(map[string]Assets)
	p.mu.Unlock()
}

func (p *Prefetcher) resolveBeat(ctx context.Context, beat *script.Beat) (Assets, error) {
	var a Assets
	var err error

	if beat.ImageRef != "" {
		a.ImageURL, err = p.resolve(ctx, beat.ID, "image", beat.ImageRef)
		if err != nil {
			return Assets{}, err
		}
	}
	if beat.VideoRef != "" {
		a.VideoURL, err = p.resolve(ctx, beat.ID, "video", beat.VideoRef)
		if err != nil {
			return Assets{}, err
		}
	}
	return a, nil
}

func (p *Prefetcher) resolve(ctx context.Context, beatID, kind, ref string) (string, error) {
	url, err := p.blobs.Resolve(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		p.logger.Warn("media reference not found",
			slog.String("beat_id", beatID),
			slog.String("kind", kind),
			slog.String("ref", ref))
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return url, nil
}
