package sync

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	statusCacheTTL     = time.Minute
	statusCacheCleanup = 5 * time.Minute
)

// StatusCache is a short-TTL cache over subscription status. The store stays
// authoritative; the cache only shaves reads off the hot status-check path and
// is refreshed on every applied subscription event.
type StatusCache struct {
	inner *gocache.Cache
}

func NewStatusCache() *StatusCache {
	return &StatusCache{inner: gocache.New(statusCacheTTL, statusCacheCleanup)}
}

func (c *StatusCache) Get(subscriptionID string) (string, bool) {
	v, ok := c.inner.Get(subscriptionID)
	if !ok {
		return "", false
	}
	status, ok := v.(string)
	return status, ok
}

func (c *StatusCache) Set(subscriptionID, status string) {
	c.inner.SetDefault(subscriptionID, status)
}

func (c *StatusCache) Invalidate(subscriptionID string) {
	c.inner.Delete(subscriptionID)
}
