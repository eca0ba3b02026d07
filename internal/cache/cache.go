package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Identities remembers which article identities this process has already
// handled, saving a store round-trip per candidate. It is rebuilt empty on
// restart and is never authoritative: the attempt ledger is.
type Identities struct {
	cache *gocache.Cache
}

// NewIdentities builds a cache with the given entry TTL. A zero TTL keeps
// entries for the process lifetime.
func NewIdentities(ttl time.Duration) *Identities {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}

	return &Identities{
		cache: gocache.New(expiration, cleanup),
	}
}

func (c *Identities) Add(identity string) {
	c.cache.Set(identity, time.Now(), gocache.DefaultExpiration)
}

func (c *Identities) Has(identity string) bool {
	_, found := c.cache.Get(identity)
	return found
}

func (c *Identities) Remove(identity string) {
	c.cache.Delete(identity)
}

func (c *Identities) Len() int {
	return c.cache.ItemCount()
}
