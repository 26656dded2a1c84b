package seo

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/config"
)

// Run wires the renderer from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.SEO, logger zerolog.Logger) error {
	content, err := NewContentClient(cfg.ContentAPI, nil)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(reg, "jamie_seo")

	cache, closeCache, err := buildCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	var health Pinger
	if p, ok := cache.(Pinger); ok {
		health = p
	}

	srv := NewServer(Options{
		Content: NewCachedContent(content, cache, cfg.CacheTTL, logger, metrics),
		Site: Site{
			Name:         cfg.SiteName,
			SPAURL:       cfg.SPAURL,
			DefaultImage: cfg.DefaultImage,
		},
		Logger:   logger,
		Metrics:  metrics,
		Gatherer: reg,
		Health:   health,
	})
	return ListenAndServe(ctx, cfg.Listen, srv.Router(), logger)
}

// buildCache picks Redis when an address is configured and memory otherwise.
// An unreachable Redis at startup is logged, not fatal.
func buildCache(ctx context.Context, cfg config.SEO, logger zerolog.Logger) (Cache, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Info().Dur("ttl", cfg.CacheTTL).Msg("using in-memory metadata cache")
		return NewMemory(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	cache, err := NewRedis(client, "")
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("init redis cache: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cache.Ping(pingCtx); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable; lookups will bypass the cache until it recovers")
	} else {
		logger.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("using redis metadata cache")
	}

	return cache, func() {
		if err := client.Close(); err != nil {
			logger.Warn().Err(err).Msg("close redis client")
		}
	}, nil
}
