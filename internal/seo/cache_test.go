package seo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeContent serves fixed clips and feeds and counts lookups.
type fakeContent struct {
	clips map[string]*Clip
	feeds map[string]*Feed
	err   error
	calls int
}

func (f *fakeContent) Clip(_ context.Context, id string) (*Clip, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.clips[id]
	if !ok {
		return nil, fmt.Errorf("fetch clip %s: %w", id, ErrNotFound)
	}
	return c, nil
}

func (f *fakeContent) Feed(_ context.Context, id string) (*Feed, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	feed, ok := f.feeds[id]
	if !ok {
		return nil, fmt.Errorf("fetch feed %s: %w", id, ErrNotFound)
	}
	return feed, nil
}

type brokenCache struct{ sets int }

func (b *brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (b *brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	b.sets++
	return errors.New("connection refused")
}

func TestMemory_Expires(t *testing.T) {
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "clip:1", []byte("v"), time.Minute))
	got, ok, err := m.Get(ctx, "clip:1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(time.Minute)
	_, ok, err = m.Get(ctx, "clip:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_ReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, ok, _ := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(got))
	got[1] = 'y'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestCachedContent_HitSkipsUpstream(t *testing.T) {
	upstream := &fakeContent{clips: map[string]*Clip{"c1": {ID: "c1", Title: "Hello"}}}
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")
	cc := NewCachedContent(upstream, NewMemory(), time.Minute, zerolog.Nop(), metrics)
	ctx := context.Background()

	first, err := cc.Clip(ctx, "c1")
	require.NoError(t, err)
	second, err := cc.Clip(ctx, "c1")
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheTotal.WithLabelValues("clip", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheTotal.WithLabelValues("clip", "hit")))
}

func TestCachedContent_KindsDoNotCollide(t *testing.T) {
	upstream := &fakeContent{
		clips: map[string]*Clip{"1": {ID: "1", Title: "clip"}},
		feeds: map[string]*Feed{"1": {ID: "1", Title: "feed"}},
	}
	cc := NewCachedContent(upstream, NewMemory(), time.Minute, zerolog.Nop(), nil)
	ctx := context.Background()

	_, err := cc.Clip(ctx, "1")
	require.NoError(t, err)
	feed, err := cc.Feed(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "feed", feed.Title)
}

func TestCachedContent_NotFoundIsNotCached(t *testing.T) {
	upstream := &fakeContent{}
	cc := NewCachedContent(upstream, NewMemory(), time.Minute, zerolog.Nop(), nil)
	ctx := context.Background()

	_, err := cc.Feed(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cc.Feed(ctx, "gone")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, upstream.calls)
}

func TestCachedContent_BrokenCacheIsBypassed(t *testing.T) {
	upstream := &fakeContent{feeds: map[string]*Feed{"917": {ID: "917", Title: "Show"}}}
	cache := &brokenCache{}
	cc := NewCachedContent(upstream, cache, time.Minute, zerolog.Nop(), nil)

	feed, err := cc.Feed(context.Background(), "917")
	require.NoError(t, err)
	assert.Equal(t, "Show", feed.Title)
	assert.Equal(t, 1, cache.sets)
}

func TestCachedContent_UnreadableEntryRefetches(t *testing.T) {
	upstream := &fakeContent{clips: map[string]*Clip{"c1": {ID: "c1", Title: "Fresh"}}}
	mem := NewMemory()
	require.NoError(t, mem.Set(context.Background(), cacheKey("clip", "c1"), []byte("{not json"), time.Minute))
	cc := NewCachedContent(upstream, mem, time.Minute, zerolog.Nop(), nil)

	clip, err := cc.Clip(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", clip.Title)
	assert.Equal(t, 1, upstream.calls)
}
