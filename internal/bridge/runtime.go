package bridge

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"linebridge/internal/config"
	"linebridge/internal/subscription"
)

// acquireLock takes the adapter's single-instance lock or fails fast when
// another instance holds it.
func acquireLock(cfg *config.Config, adapter string) (*flock.Flock, error) {
	lock := flock.New(cfg.LockPath(adapter))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", adapter, err)
	}
	if !ok {
		return nil, fmt.Errorf("another %s adapter instance is already running", adapter)
	}
	return lock, nil
}

// boundCache holds the set of bound platform ids for O(1) hot-path checks.
// Adapters refresh it after every bind and unbind.
type boundCache struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func newBoundCache() *boundCache {
	return &boundCache{ids: make(map[string]struct{})}
}

func (c *boundCache) replace(ids map[string]struct{}) {
	c.mu.Lock()
	c.ids = ids
	c.mu.Unlock()
}

func (c *boundCache) contains(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// mediaFolder returns the on-disk artifact directory for a subscription.
func mediaFolder(cfg *config.Config, sub *subscription.Subscription) string {
	return filepath.Join(cfg.Paths.MediaDir, sub.MediaFolder)
}

// annotateFailure appends the attachment-failed marker to relayed text so the
// receiving side knows part of the message was dropped.
func annotateFailure(text, filename string) string {
	marker := fmt.Sprintf("[attachment %s could not be relayed]", filename)
	if text == "" {
		return marker
	}
	return text + "\n" + marker
}
