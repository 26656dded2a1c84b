package seo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Pinger is implemented by caches that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure a Server.
type Options struct {
	Content Content
	Site    Site
	Logger  zerolog.Logger
	Metrics *Metrics
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	// Health, when set, is pinged by /health.
	Health Pinger
	Now    func() time.Time
}

// Server answers share links: crawlers get metadata HTML, browsers are sent
// on to the single-page app.
type Server struct {
	content  Content
	site     Site
	logger   zerolog.Logger
	metrics  *Metrics
	gatherer prometheus.Gatherer
	health   Pinger
	now      func() time.Time
}

// NewServer builds a Server from opts.
func NewServer(opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{
		content:  opts.Content,
		site:     opts.Site,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		health:   opts.Health,
		now:      now,
	}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", s.handleHealth)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/share", func(r chi.Router) {
		r.Get("/clip/{clipID}", s.handleClip)
		r.Get("/feed/{feedID}", s.handleFeed)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusNotFound, errorComponent(s.site, http.StatusNotFound))
	})
	return r
}

func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "clipID"))
	s.serveShare(w, r, "clip", id, s.site.ClipURL(id), func(ctx context.Context) (Page, error) {
		clip, err := s.content.Clip(ctx, id)
		if err != nil {
			return Page{}, err
		}
		return ClipPage(s.site, clip)
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "feedID"))
	s.serveShare(w, r, "feed", id, s.site.FeedURL(id), func(ctx context.Context) (Page, error) {
		feed, err := s.content.Feed(ctx, id)
		if err != nil {
			return Page{}, err
		}
		return FeedPage(s.site, feed)
	})
}

func (s *Server) serveShare(w http.ResponseWriter, r *http.Request, kind, id, target string, build func(context.Context) (Page, error)) {
	if id == "" {
		s.metrics.render(kind, "not_found")
		render(w, r, http.StatusNotFound, errorComponent(s.site, http.StatusNotFound))
		return
	}
	if !IsCrawler(r.UserAgent()) {
		s.metrics.render(kind, "redirect")
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	page, err := build(r.Context())
	switch {
	case errors.Is(err, ErrNotFound):
		s.metrics.render(kind, "not_found")
		render(w, r, http.StatusNotFound, errorComponent(s.site, http.StatusNotFound))
	case err != nil:
		s.metrics.render(kind, "error")
		s.logger.Error().Err(err).Str("kind", kind).Str("id", id).
			Str("request_id", middleware.GetReqID(r.Context())).Msg("render share page")
		render(w, r, http.StatusInternalServerError, errorComponent(s.site, http.StatusInternalServerError))
	default:
		s.metrics.render(kind, "rendered")
		render(w, r, http.StatusOK, pageComponent(page))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"ok":   true,
		"time": s.now().UTC(),
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			status["cache"] = err.Error()
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(status)
}

// logRequests logs each request except health and metrics scrapes.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		ev := s.logger.Info()
		if status >= 500 {
			ev = s.logger.Warn()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("ip", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Bool("crawler", IsCrawler(r.UserAgent())).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// ListenAndServe serves h on addr until ctx is cancelled, then drains
// in-flight requests for up to ten seconds.
func ListenAndServe(ctx context.Context, addr string, h http.Handler, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("seo renderer listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("seo renderer stopped")
	return nil
}
