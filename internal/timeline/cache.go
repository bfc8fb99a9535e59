package timeline

import (
	"sync"
	"time"

	appLog "bookcal/internal/log"
	"bookcal/internal/model"
)

// Cache memoizes the most recent layout Result, keyed by a cheap
// fingerprint of the booking collection (row count + latest created_at
// instant).
//
// The fingerprint is a deliberate approximation: an edit that changes
// an existing row without changing the row count or advancing the max
// timestamp is invisible to it, and the stale result is served until
// the TTL expires or Invalidate is called.
//
// Results returned from a hit are shared; callers must treat them as
// immutable. The mutex only guards the lookup/store pair; two callers
// that both miss may both recompute, which is harmless because layout
// is deterministic and side-effect free.
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration
	now func() time.Time

	fp       model.Fingerprint
	res      Result
	storedAt time.Time
	valid    bool
}

// NewCache creates a cache with the given freshness period. A zero or
// negative ttl disables expiry (entries live until invalidated or
// replaced).
func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now}
}

// Get returns the cached result if fp matches the stored fingerprint
// and the entry is still fresh.
func (c *Cache) Get(fp model.Fingerprint) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.valid || c.fp != fp {
		return Result{}, false
	}
	if c.ttl > 0 && c.now().Sub(c.storedAt) >= c.ttl {
		return Result{}, false
	}
	return c.res, true
}

// Put stores a result under fp, replacing any previous entry.
func (c *Cache) Put(fp model.Fingerprint, res Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fp = fp
	c.res = res
	c.storedAt = c.now()
	c.valid = true
}

// Invalidate clears the cache unconditionally. Called after every
// successful booking insert and on scheduled feed refreshes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid {
		appLog.Debug("timeline cache invalidated")
	}
	c.valid = false
	c.res = Result{}
}

// Cached runs compute through the cache: a fresh fingerprint match
// returns the prior result, otherwise compute runs (outside the lock)
// and its result is stored.
func (c *Cache) Cached(fp model.Fingerprint, compute func() Result) Result {
	if res, ok := c.Get(fp); ok {
		return res
	}
	res := compute()
	c.Put(fp, res)
	return res
}
