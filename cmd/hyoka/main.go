// Command hyoka grades ungraded agent sessions.
//
// By default it runs one incremental pass and exits; with -interval it keeps
// polling, grading new sessions as the agent produces them. Either way a
// session is graded at most once: the store's anti-join hides every session
// that already has scores.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/hyoka"
	"github.com/ashita-ai/hyoka/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	batch := flag.Int("batch", 0, "max sessions to grade per pass (0 = configured default)")
	interval := flag.Duration("interval", 0, "poll interval; 0 runs a single pass and exits")
	flag.Parse()

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		return 1
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger, *batch, *interval); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger, batch int, interval time.Duration) error {
	app, err := hyoka.New(
		hyoka.WithLogger(logger),
		hyoka.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	graded, err := app.Grade(ctx, batch)
	if err != nil {
		return err
	}
	logger.Info("evaluation pass complete", "graded", graded)

	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("evaluator stopped")
			return nil
		case <-ticker.C:
			graded, err := app.Grade(ctx, batch)
			if err != nil {
				// Transient store/oracle trouble: log and try again next
				// tick rather than dying mid-watch.
				logger.Error("evaluation pass failed", "error", err)
				continue
			}
			if graded > 0 {
				logger.Info("evaluation pass complete", "graded", graded)
			}
		}
	}
}
