// Package refresh provides the keyed snapshot cache and the debounced
// refresh coordinator that invalidates it.
package refresh

import "sync"

// Resource keys used across the pipeline.
const (
	KeyTasks         = "tasks"
	KeyTimers        = "timers"
	KeyNotifications = "notifications"
)

// Invalidator is the cache-layer contract: keyed invalidation, idempotent
// and safe to call redundantly.
type Invalidator interface {
	Invalidate(resourceKey string)
}

// Cache is a two-level snapshot cache: resource key, then user ID.
// Invalidation drops every user's snapshot for a resource at once, which
// matches how the refresh coordinator is keyed.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]map[string]interface{}
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]map[string]interface{})}
}

// Get returns the cached snapshot for (resourceKey, userID), if any.
func (c *Cache) Get(resourceKey, userID string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	users, ok := c.entries[resourceKey]
	if !ok {
		return nil, false
	}
	v, ok := users[userID]
	return v, ok
}

// Put stores a snapshot for (resourceKey, userID).
func (c *Cache) Put(resourceKey, userID string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	users, ok := c.entries[resourceKey]
	if !ok {
		users = make(map[string]interface{})
		c.entries[resourceKey] = users
	}
	users[userID] = value
}

// Invalidate drops all snapshots for a resource key. Idempotent.
func (c *Cache) Invalidate(resourceKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, resourceKey)
}

var _ Invalidator = (*Cache)(nil)
