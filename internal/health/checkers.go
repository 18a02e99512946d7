package health

import (
	"context"
	"errors"

	"github.com/sversen/novella/pkg/store"
)

// StoreChecker probes the cache store by enumerating its keys. A backend
// that cannot enumerate cannot serve the cache ladder either.
func StoreChecker(kv store.KV) Checker {
	return Checker{
		Name: "store",
		Check: func(ctx context.Context) error {
			_, err := kv.Keys(ctx)
			return err
		},
	}
}

// ProviderChecker reports whether a speech provider is configured. A missing
// provider is not fatal (playback degrades to text-only), but readiness
// surfaces it so operators notice before players do.
func ProviderChecker(name string) Checker {
	return Checker{
		Name: "provider",
		Check: func(context.Context) error {
			if name == "" {
				return errors.New("no speech provider configured")
			}
			return nil
		},
	}
}
