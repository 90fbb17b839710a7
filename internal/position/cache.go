package position

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/retrocast/retrocast/internal/timeline"
)

// Entry is the minimized cache payload: indices and slot metadata only.
// Full item references are attached after the cache so entries stay small.
type Entry struct {
	ChannelName string
	Position    timeline.Position
	Slot        SlotInfo
	EpochMS     int64
}

// Cache is a short-TTL position cache keyed by hashed (channel, timezone)
// pairs. Writes are fire-and-forget; misses fall through to recomputation.
type Cache struct {
	store *gocache.Cache
}

// NewCache creates a cache whose entries expire after ttl
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		store: gocache.New(ttl, 2*ttl),
	}
}

// Get returns the cached entry for a channel/timezone pair
func (c *Cache) Get(channelID uuid.UUID, tz string) (*Entry, bool) {
	v, ok := c.store.Get(cacheKey(channelID, tz))
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Put stores an entry under the pair's key with the default TTL
func (c *Cache) Put(channelID uuid.UUID, tz string, entry *Entry) {
	c.store.SetDefault(cacheKey(channelID, tz), entry)
}

// Invalidate drops every entry of a channel across all timezones. Called
// after state writes so a committed jump is visible to the next query.
func (c *Cache) Invalidate(channelID uuid.UUID) {
	prefix := fmt.Sprintf("%08x:", shortHash(channelID.String()))
	for key := range c.store.Items() {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.store.Delete(key)
		}
	}
}

// cacheKey joins short hashes of the channel id and timezone name
func cacheKey(channelID uuid.UUID, tz string) string {
	return fmt.Sprintf("%08x:%08x", shortHash(channelID.String()), shortHash(tz))
}

// shortHash is FNV-1a over s
func shortHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
