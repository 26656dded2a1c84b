package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/analytics"
	kafkasink "github.com/uncleJim21/pullthatupjamie/internal/analytics/kafka"
	promsink "github.com/uncleJim21/pullthatupjamie/internal/analytics/prometheus"
	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/config"
	"github.com/uncleJim21/pullthatupjamie/internal/logging"
	"github.com/uncleJim21/pullthatupjamie/internal/logtail"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
	"github.com/uncleJim21/pullthatupjamie/internal/state"
	"github.com/uncleJim21/pullthatupjamie/internal/ui"
)

// Options configure the terminal client.
type Options struct {
	ConfigPath string
	PollEvery  int // seconds; zero uses the configured job poll interval
}

// Run boots the terminal client until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.PollEvery > 0 {
		cfg.PollInterval = time.Duration(opts.PollEvery) * time.Second
	}

	logFile, err := logging.OpenFile(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := logging.New(logFile, cfg.LogLevel, false).With().Str("component", "jamie").Logger()

	sess, err := session.OpenFile(cfg.SessionPath)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}

	client, err := backend.NewClient(backend.Options{
		BaseURL: cfg.APIBase,
		Session: sess,
		Timeout: cfg.RequestTimeout,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("init api client: %w", err)
	}

	sink, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	store := state.NewStore(client.CheckEligibility)
	svc := NewService(ctx, ServiceOptions{
		API:       client,
		Store:     store,
		Session:   sess,
		Analytics: sink,
		Poll:      PollOptions{Interval: cfg.PollInterval, MaxAttempts: cfg.PollMaxAttempts},
		Logger:    logger,
	})
	defer svc.Close()

	// Populate eligibility before the first frame so the banner is right.
	svc.Refresh(ctx)

	logger.Info().Str("api", cfg.APIBase).Str("tier", string(sess.Tier())).Msg("jamie started")
	return ui.Run(ui.Options{
		Context:   ctx,
		Service:   svc,
		Session:   sess,
		ThemeName: cfg.Theme,
		Logger:    logger,
	})
}

// PrintLogs writes the last n lines of the configured log file to w.
func PrintLogs(opts Options, n int, w io.Writer, color bool) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	lines, err := logtail.ReadFile(cfg.LogPath, n)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		_, err := fmt.Fprintf(w, "no log entries in %s\n", cfg.LogPath)
		return err
	}
	return logtail.Print(w, lines, color)
}

// buildSinks assembles the analytics sinks from config. The returned closer
// flushes Kafka and stops the metrics listener.
func buildSinks(ctx context.Context, cfg config.Config, logger zerolog.Logger) (analytics.Sink, func(), error) {
	var sinks analytics.Multi
	var closers []func()

	if cfg.MetricsListen != "" {
		reg := prometheus.NewRegistry()
		sinks = append(sinks, promsink.New(reg, "jamie"))
		srv := startMetricsServer(ctx, cfg.MetricsListen, reg, logger)
		closers = append(closers, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	if cfg.Analytics.Enabled() {
		ks, err := kafkasink.New(kafkasink.Config{
			Brokers: cfg.Analytics.KafkaBrokers,
			Topic:   cfg.Analytics.KafkaTopic,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("init kafka sink: %w", err)
		}
		sinks = append(sinks, ks)
		closers = append(closers, func() {
			if err := ks.Close(); err != nil {
				logger.Warn().Err(err).Msg("close kafka sink")
			}
		})
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if len(sinks) == 0 {
		return analytics.Noop{}, closeAll, nil
	}
	return sinks, closeAll, nil
}

func startMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
	return srv
}
