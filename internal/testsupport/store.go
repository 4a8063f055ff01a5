package testsupport

import (
	"testing"

	"linebridge/internal/config"
	"linebridge/internal/subscription"
)

// MustOpenStore opens a subscription.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...subscription.Option) *subscription.Store {
	t.Helper()

	store, err := subscription.Open(cfg.DatabasePath(), opts...)
	if err != nil {
		t.Fatalf("subscription.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
