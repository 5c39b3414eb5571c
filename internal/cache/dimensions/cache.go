// Package dimensions caches image dimensions observed from the resizer
// backend so repeated metadata lookups can be skipped.
package dimensions

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mohammed-shakir/akamai-compat-edge/internal/cache/keys"
)

const (
	DefaultMaxSize = 100
	DefaultTTL     = 24 * time.Hour
)

type Record struct {
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	AspectRatio float64   `json:"aspectRatio"`
	Format      string    `json:"format,omitempty"`
	LastFetched time.Time `json:"lastFetched"`
}

// EvictReason says why an entry left the cache.
type EvictReason string

const (
	ReasonCapacity EvictReason = "capacity"
	ReasonExpired  EvictReason = "expired"
)

type Option func(*Cache)

func WithMaxSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithOnEvict registers a callback run after an entry is evicted for
// capacity or expiry. It is called with the cache lock released.
func WithOnEvict(fn func(key string, reason EvictReason)) Option {
	return func(c *Cache) { c.onEvict = fn }
}

// Cache is a bounded, TTL-checked map from normalized image path to Record.
// When full it evicts the entry inserted (or last rewritten) longest ago;
// reads never change eviction order. Expired entries are removed lazily on
// Get. Capacity and TTL are fixed at construction.
type Cache struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, Record]
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	onEvict func(key string, reason EvictReason)
}

func New(opts ...Option) *Cache {
	c := &Cache{
		maxSize: DefaultMaxSize,
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	// NewLRU only fails for a non-positive size, which the options rule out.
	l, _ := simplelru.NewLRU[string, Record](c.maxSize, nil)
	c.lru = l
	return c
}

func (c *Cache) MaxSize() int       { return c.maxSize }
func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns the record for key if present and not older than the TTL.
// A stale entry is removed and reported as a miss.
func (c *Cache) Get(key string) (Record, bool) {
	k := keys.Normalize(key)

	c.mu.Lock()
	rec, ok := c.lru.Peek(k)
	if !ok {
		c.mu.Unlock()
		return Record{}, false
	}
	if c.now().Sub(rec.LastFetched) > c.ttl {
		c.lru.Remove(k)
		c.mu.Unlock()
		c.evicted(k, ReasonExpired)
		return Record{}, false
	}
	c.mu.Unlock()
	return rec, true
}

// Set stores rec under key. AspectRatio is always recomputed from the
// dimensions and LastFetched defaults to now. Records without positive
// dimensions are ignored.
func (c *Cache) Set(key string, rec Record) {
	if rec.Width <= 0 || rec.Height <= 0 {
		return
	}
	k := keys.Normalize(key)
	rec.AspectRatio = float64(rec.Width) / float64(rec.Height)
	if rec.LastFetched.IsZero() {
		rec.LastFetched = c.now()
	}

	c.mu.Lock()
	var (
		oldest  string
		evicted bool
	)
	if !c.lru.Contains(k) && c.lru.Len() >= c.maxSize {
		oldest, _, evicted = c.lru.RemoveOldest()
	}
	c.lru.Add(k, rec)
	c.mu.Unlock()

	if evicted {
		c.evicted(oldest, ReasonCapacity)
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache) Delete(key string) bool {
	k := keys.Normalize(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(k)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	c.lru.Purge()
	c.mu.Unlock()
}

func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Cache) evicted(key string, reason EvictReason) {
	if c.onEvict != nil {
		c.onEvict(key, reason)
	}
}
