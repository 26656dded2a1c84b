package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uncleJim21/pullthatupjamie/internal/config"
	"github.com/uncleJim21/pullthatupjamie/internal/logging"
	"github.com/uncleJim21/pullthatupjamie/internal/seo"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional; JAMIE_* environment variables take precedence)")
	listen := flag.String("listen", "", "listen address (optional, defaults to :8787)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jamie-seo: load config: %v\n", err)
		return 1
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "jamie-seo: %v\n", err)
		return 1
	}
	if *listen != "" {
		cfg.SEO.Listen = *listen
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, false).With().Str("component", "jamie-seo").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := seo.Run(ctx, cfg.SEO, logger); err != nil {
		logger.Error().Err(err).Msg("seo renderer failed")
		return 1
	}
	return 0
}
