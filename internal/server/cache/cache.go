// Package cache holds rendered read models, chiefly public status pages,
// between writes. Entries expire after a TTL and are dropped as soon as a
// write commits for their organization.
package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/agentstation/statuspage/pkg/status"
)

const publicStatusPrefix = "public-status:"

// Cache wraps go-cache with typed accessors for the read endpoints.
type Cache struct {
	store *gocache.Cache
}

// New creates a cache with the given TTL and cleanup interval.
func New(defaultTTL, cleanupInterval time.Duration) *Cache {
	return &Cache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	return c.store.Get(key)
}

// Set stores a value in the cache with default TTL.
func (c *Cache) Set(key string, value any) {
	c.store.Set(key, value, gocache.DefaultExpiration)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.store.Delete(key)
}

// Clear removes all items from the cache.
func (c *Cache) Clear() {
	c.store.Flush()
}

// ItemCount returns the number of items in the cache.
func (c *Cache) ItemCount() int {
	return c.store.ItemCount()
}

// PublicStatus returns the cached public page of an organization.
func (c *Cache) PublicStatus(slug string) (*status.PublicStatus, bool) {
	v, ok := c.store.Get(publicStatusPrefix + slug)
	if !ok {
		return nil, false
	}
	ps, ok := v.(*status.PublicStatus)
	return ps, ok
}

// SetPublicStatus caches the public page of an organization.
func (c *Cache) SetPublicStatus(slug string, ps *status.PublicStatus) {
	c.store.Set(publicStatusPrefix+slug, ps, gocache.DefaultExpiration)
}

// InvalidateOrganization drops every entry derived from an organization.
func (c *Cache) InvalidateOrganization(slug string) {
	c.store.Delete(publicStatusPrefix + slug)
	suffix := ":" + slug
	for key := range c.store.Items() {
		if strings.HasSuffix(key, suffix) {
			c.store.Delete(key)
		}
	}
}

// Stats returns cache statistics.
type Stats struct {
	ItemCount int `json:"item_count"`
}

// GetStats returns current cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		ItemCount: c.store.ItemCount(),
	}
}
