package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sversen/novella/pkg/audio"
	"github.com/sversen/novella/pkg/speech"
)

// ErrNotRegistered is returned by Create* methods when no factory has been
// registered under the requested name.
var ErrNotRegistered = errors.New("config: not registered")

// Registry maps provider and player names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	speech  map[string]func(ProviderEntry) (speech.Provider, error)
	players map[string]func() (audio.Player, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		speech:  make(map[string]func(ProviderEntry) (speech.Provider, error)),
		players: make(map[string]func() (audio.Player, error)),
	}
}

// RegisterSpeech registers a speech provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSpeech(name string, factory func(ProviderEntry) (speech.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speech[name] = factory
}

// RegisterPlayer registers an audio player factory under name.
func (r *Registry) RegisterPlayer(name string, factory func() (audio.Player, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[name] = factory
}

// CreateSpeech instantiates a speech provider using the factory registered
// under entry.Name. Returns [ErrNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) CreateSpeech(entry ProviderEntry) (speech.Provider, error) {
	r.mu.RLock()
	factory, ok := r.speech[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: speech/%q", ErrNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreatePlayer instantiates an audio player using the factory registered
// under name.
func (r *Registry) CreatePlayer(name string) (audio.Player, error) {
	r.mu.RLock()
	factory, ok := r.players[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: player/%q", ErrNotRegistered, name)
	}
	return factory()
}
