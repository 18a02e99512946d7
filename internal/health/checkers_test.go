package health

import (
	"context"
	"testing"

	"github.com/sversen/novella/pkg/store/memstore"
)

func TestStoreChecker(t *testing.T) {
	c := StoreChecker(memstore.NewKV())
	if c.Name != "store" {
		t.Errorf("name = %q", c.Name)
	}
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("healthy store reported: %v", err)
	}
}

func TestProviderChecker(t *testing.T) {
	if err := ProviderChecker("elevenlabs").Check(context.Background()); err != nil {
		t.Errorf("configured provider reported: %v", err)
	}
	if err := ProviderChecker("").Check(context.Background()); err == nil {
		t.Error("missing provider not reported")
	}
}
