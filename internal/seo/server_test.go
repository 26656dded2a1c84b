package seo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uncleJim21/pullthatupjamie/internal/config"
)

const twitterbot = "Twitterbot/1.0"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("dial tcp: refused") }

func newTestServer(content Content) (*Server, *prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "jamie_seo")
	srv := NewServer(Options{
		Content:  content,
		Site:     testSite,
		Logger:   zerolog.Nop(),
		Metrics:  metrics,
		Gatherer: reg,
		Now:      func() time.Time { return time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC) },
	})
	return srv, reg, metrics
}

func get(t *testing.T, h http.Handler, path, ua string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func sampleContent() *fakeContent {
	return &fakeContent{
		clips: map[string]*Clip{"c1": {
			ID:          "c1",
			Title:       `Tom & Jerry <script>alert("x")</script>`,
			Quote:       "Say \"hi\" & <b>bye</b>",
			PodcastName: "Show",
		}},
		feeds: map[string]*Feed{"917": {ID: "917", Title: "Deep Work Show", Description: "Ideas"}},
	}
}

func TestServer_BrowsersAreRedirected(t *testing.T) {
	content := sampleContent()
	srv, _, metrics := newTestServer(content)
	h := srv.Router()

	rec := get(t, h, "/share/clip/c1", "Mozilla/5.0 (Macintosh) Safari/605.1.15")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://jamie.example/share?clip=c1", rec.Header().Get("Location"))

	rec = get(t, h, "/share/feed/917", "")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://jamie.example/app/feed/917", rec.Header().Get("Location"))

	assert.Zero(t, content.calls, "browsers never hit the content api")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rendersTotal.WithLabelValues("clip", "redirect")))
}

func TestServer_CrawlerGetsEscapedMetadata(t *testing.T) {
	srv, _, _ := newTestServer(sampleContent())
	rec := get(t, srv.Router(), "/share/clip/c1", twitterbot)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))

	body := rec.Body.String()
	assert.Contains(t, body, `<meta property="og:url" content="https://jamie.example/share?clip=c1">`)
	assert.Contains(t, body, `<link rel="canonical" href="https://jamie.example/share?clip=c1">`)
	assert.Contains(t, body, `<meta name="twitter:card" content="summary_large_image">`)
	assert.Contains(t, body, `<meta property="og:image" content="https://jamie.example/og.png">`)
	assert.Contains(t, body, `"@type":"PodcastEpisode"`)
	assert.Contains(t, body, "Tom &amp; Jerry &lt;script&gt;")
	assert.NotContains(t, body, `<script>alert`)
	assert.NotContains(t, body, "<b>bye</b>")
}

func TestServer_FeedPage(t *testing.T) {
	srv, _, _ := newTestServer(sampleContent())
	rec := get(t, srv.Router(), "/share/feed/917", "facebookexternalhit/1.1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Deep Work Show | Pull That Up Jamie</title>")
	assert.Contains(t, body, `<meta property="og:description" content="Ideas">`)
	assert.Contains(t, body, `"@type":"PodcastSeries"`)
}

func TestServer_NotFoundPage(t *testing.T) {
	srv, _, metrics := newTestServer(sampleContent())
	rec := get(t, srv.Router(), "/share/clip/unknown", twitterbot)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "no longer available")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.rendersTotal.WithLabelValues("clip", "not_found")))

	rec = get(t, srv.Router(), "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not found")
}

func TestServer_UpstreamFailureIs500(t *testing.T) {
	srv, _, _ := newTestServer(&fakeContent{err: errors.New("content api returned 502 Bad Gateway")})
	rec := get(t, srv.Router(), "/share/feed/917", twitterbot)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Something went wrong")
	assert.NotContains(t, body, "502", "upstream details stay in the logs")
}

func TestServer_Health(t *testing.T) {
	srv, _, _ := newTestServer(sampleContent())
	rec := get(t, srv.Router(), "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, true, status["ok"])
	assert.Equal(t, "2026-03-04T09:00:00Z", status["time"])
	assert.NotContains(t, status, "cache")

	srv.health = failingPinger{}
	rec = get(t, srv.Router(), "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "dial tcp: refused", status["cache"])
}

func TestServer_MetricsUseRoutePatterns(t *testing.T) {
	srv, _, metrics := newTestServer(sampleContent())
	h := srv.Router()
	get(t, h, "/share/clip/c1", "")
	get(t, h, "/share/clip/other", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("GET", "/share/clip/{clipID}", "302")))

	rec := get(t, h, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "jamie_seo_share_responses_total"))
}

func TestServer_NilMetricsStillServes(t *testing.T) {
	srv := NewServer(Options{Content: sampleContent(), Site: testSite, Logger: zerolog.Nop()})
	rec := get(t, srv.Router(), "/share/feed/917", twitterbot)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, get(t, srv.Router(), "/metrics", "").Code)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ListenAndServe(ctx, "127.0.0.1:0", http.NotFoundHandler(), zerolog.Nop())
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestBuildCache_MemoryWithoutRedis(t *testing.T) {
	cache, closeCache, err := buildCache(context.Background(), config.SEO{CacheTTL: time.Minute}, zerolog.Nop())
	require.NoError(t, err)
	defer closeCache()
	assert.IsType(t, &Memory{}, cache)
}

func TestBuildCache_RedisWhenConfigured(t *testing.T) {
	cache, closeCache, err := buildCache(context.Background(), config.SEO{RedisAddr: "127.0.0.1:1"}, zerolog.Nop())
	require.NoError(t, err)
	defer closeCache()
	assert.IsType(t, &Redis{}, cache)
}
