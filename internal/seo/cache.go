package seo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Cache stores encoded metadata responses. Get reports a miss with ok=false
// and a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Memory is an in-process Cache used when no Redis address is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty in-memory cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	m.sweepLocked()
	return nil
}

// sweepLocked drops expired entries once the map grows past a small bound.
func (m *Memory) sweepLocked() {
	if len(m.entries) < 1024 {
		return
	}
	now := m.now()
	for k, e := range m.entries {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
}

// CachedContent serves Content lookups through a Cache. Cache failures are
// logged and the lookup falls through to the wrapped Content. Not-found
// results are never cached.
type CachedContent struct {
	next    Content
	cache   Cache
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *Metrics
}

var _ Content = (*CachedContent)(nil)

// NewCachedContent wraps next. A nil metrics disables cache counters.
func NewCachedContent(next Content, cache Cache, ttl time.Duration, logger zerolog.Logger, metrics *Metrics) *CachedContent {
	return &CachedContent{next: next, cache: cache, ttl: ttl, logger: logger, metrics: metrics}
}

func (c *CachedContent) Clip(ctx context.Context, id string) (*Clip, error) {
	var clip Clip
	if c.load(ctx, "clip", id, &clip) {
		return &clip, nil
	}
	fresh, err := c.next.Clip(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "clip", id, fresh)
	return fresh, nil
}

func (c *CachedContent) Feed(ctx context.Context, id string) (*Feed, error) {
	var feed Feed
	if c.load(ctx, "feed", id, &feed) {
		return &feed, nil
	}
	fresh, err := c.next.Feed(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, "feed", id, fresh)
	return fresh, nil
}

func cacheKey(kind, id string) string {
	return kind + ":" + id
}

func (c *CachedContent) load(ctx context.Context, kind, id string, out any) bool {
	raw, ok, err := c.cache.Get(ctx, cacheKey(kind, id))
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("cache read failed")
		c.metrics.cacheResult(kind, "error")
		return false
	}
	if !ok {
		c.metrics.cacheResult(kind, "miss")
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("cached entry unreadable")
		c.metrics.cacheResult(kind, "error")
		return false
	}
	c.metrics.cacheResult(kind, "hit")
	return true
}

func (c *CachedContent) store(ctx context.Context, kind, id string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("encode cache entry")
		return
	}
	if err := c.cache.Set(ctx, cacheKey(kind, id), raw, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("kind", kind).Str("id", id).Msg("cache write failed")
	}
}
