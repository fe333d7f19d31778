// Package cache is the process-wide read cache in front of the persistence
// layer. It holds no authority: every miss is answered by the fetcher.
package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/unclebandit/darb-backend/internal/metrics"
)

const (
	// ListWindow is the freshness window of list style reads.
	ListWindow = 60 * time.Second
	// NotificationWindow is the freshness window of notification style reads.
	NotificationWindow = 5 * time.Minute
)

// Key identifies a cached read: the operation, its scope parameters and the
// collections the result was built from.
type Key struct {
	Op          string
	Scope       []string
	Collections []string
}

func NewKey(op string, collections []string, scope ...string) Key {
	return Key{Op: op, Scope: scope, Collections: collections}
}

func (k Key) String() string {
	return k.Op + "|" + strings.Join(k.Scope, "|")
}

// entry holds the JSON encoding of a payload. Every hit decodes a fresh
// value, so callers never share memory with the cache or with each other.
type entry struct {
	payload     []byte
	fetchedAt   time.Time
	collections []string
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	// lastKnown keeps the newest payload per key regardless of freshness or
	// invalidation. Only Clear and Forget drop it.
	lastKnown map[string][]byte
	group     singleflight.Group
	// generation is bumped by every invalidation so that a fetch started
	// before a mutation cannot store its stale result afterwards.
	generation uint64
	now        func() time.Time
}

func New() *Cache {
	return NewWithClock(time.Now)
}

func NewWithClock(now func() time.Time) *Cache {
	return &Cache{entries: make(map[string]entry), lastKnown: make(map[string][]byte), now: now}
}

// GetOrFetch returns the cached payload for key when it is younger than
// window, and otherwise calls fetch and caches its result. Concurrent misses
// for one key share a single fetch. Errors are never cached.
func GetOrFetch[T any](ctx context.Context, c *Cache, key Key, window time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	id := key.String()

	c.mu.Lock()
	e, ok := c.entries[id]
	c.mu.Unlock()
	if ok && c.now().Sub(e.fetchedAt) < window {
		if payload, err := decode[T](e.payload); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return payload, nil
		}
	}

	c.mu.Lock()
	generation := c.generation
	c.mu.Unlock()

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	v, err, _ := c.group.Do(id, func() (any, error) {
		payload, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "cache: encode %s", key.Op)
		}
		c.mu.Lock()
		if c.generation == generation {
			c.entries[id] = entry{payload: raw, fetchedAt: c.now(), collections: key.Collections}
			c.lastKnown[id] = raw
		}
		c.mu.Unlock()
		return raw, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return decode[T](v.([]byte))
}

// Remember records v as the newest known value for key without making it a
// fresh entry.
func Remember[T any](c *Cache, key Key, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.lastKnown[key.String()] = raw
	c.mu.Unlock()
}

// LastKnown returns the newest value fetched or remembered for key, however
// old. It serves reads that must go on while the backing store is down.
func LastKnown[T any](c *Cache, key Key) (T, bool) {
	c.mu.Lock()
	raw, ok := c.lastKnown[key.String()]
	c.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	v, err := decode[T](raw)
	return v, err == nil
}

// Forget drops every trace of key, including its last known value.
func (c *Cache) Forget(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	delete(c.entries, key.String())
	delete(c.lastKnown, key.String())
}

func decode[T any](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "cache: decode")
	}
	return v, nil
}

// Invalidate drops every entry built from any of the given collections.
func (c *Cache) Invalidate(collections ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for id, e := range c.entries {
		if references(e.collections, collections) {
			delete(c.entries, id)
		}
	}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.entries = make(map[string]entry)
	c.lastKnown = make(map[string][]byte)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func references(have, want []string) bool {
	for _, h := range have {
		for _, w := range want {
			if h == w {
				return true
			}
		}
	}
	return false
}
