package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uncleJim21/pullthatupjamie/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional, defaults to ~/.config/jamie/config.toml)")
	pollSeconds := flag.Int("poll", 0, "job status poll interval in seconds (optional, defaults to 15s)")
	logLines := flag.Int("logs", 0, "print the last N lines of the jamie log and exit")
	flag.Parse()

	opts := app.Options{ConfigPath: *configPath}
	if poll := *pollSeconds; poll > 0 {
		opts.PollEvery = poll
	}

	if *logLines > 0 {
		if err := app.PrintLogs(opts, *logLines, os.Stdout, os.Getenv("NO_COLOR") == ""); err != nil {
			fmt.Fprintf(os.Stderr, "jamie: %v\n", err)
			return 1
		}
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "jamie: %v\n", err)
		return 1
	}
	return 0
}
