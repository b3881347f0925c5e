// Command agent runs user questions through the traced decision loop.
//
// Each argument is one question; with no arguments it runs the builtin
// sample task list, which populates a fresh store with varied traces
// (successes, refusals, tool failures) for the evaluator to grade.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ashita-ai/hyoka"
	"github.com/ashita-ai/hyoka/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

// sampleTasks exercises every trace shape the evaluator cares about: happy
// paths, refusals, and tools that come back empty-handed.
var sampleTasks = []string{
	// Weather.
	"What is the weather in Dallas?",
	"Check the weather in New York.",
	"Is it raining in Dallas right now?",
	"Current temperature in New York.",

	// Time.
	"What time is it in PST?",
	"Current time in EST?",
	"Time in PST now.",

	// Math.
	"Calculate 25 times 4.",
	"Multiply 100 by 50.",
	"What is 1234 times 2?",
	"Calculate 7 times 7.",

	// Tool returns "Unknown location".
	"What is the weather in London?",
	"What is the weather in Tokyo?",
	"What is the weather in Atlantis?",

	// Should be refused.
	"Who is the President of France?",
	"Write a poem about a robot.",
	"Tell me a joke.",
	"What is the capital of Mars?",
	"Who won the Super Bowl in 1990?",

	// Multi-step and smalltalk.
	"I am planning a trip. Can you check the weather in Dallas and also tell me what 50 times 50 is?",
	"Please calculate 10 times 10 and then tell me the time in EST.",
	"Hello, are you there?",
}

func main() {
	os.Exit(run0())
}

func run0() int {
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

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	app, err := hyoka.New(
		hyoka.WithLogger(logger),
		hyoka.WithVersion(version),
	)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close(context.Background()) }()

	questions := os.Args[1:]
	if len(questions) == 0 {
		questions = sampleTasks
		logger.Info("no questions given, running sample tasks", "count", len(questions))
	}

	var failed int
	for _, question := range questions {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, err := app.Ask(ctx, question)
		if err != nil {
			// Turn budget exhaustion is a session outcome, not a process
			// failure; the trace records what happened.
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed++
			logger.Error("session failed", "session_id", res.SessionID, "question", question, "error", err)
			continue
		}
		fmt.Printf("%s  %s\n  -> %s\n", res.SessionID, question, res.Answer)
	}

	logger.Info("agent finished", "sessions", len(questions), "failed", failed)
	return nil
}
