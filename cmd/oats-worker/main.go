// OATS investigation worker: reads its goal from the environment, runs
// the reasoning engine, streams events to stdout, and reports success
// through its exit code.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/4sgupta828/oats/pkg/config"
	"github.com/4sgupta828/oats/pkg/worker"
)

func main() {
	// stdout is the event channel; all logging goes to stderr.
	config.SetupLogging(os.Getenv("UFFLOW_LOG_LEVEL"), os.Stderr)

	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		slog.Error("invalid worker environment", "error", err)
		os.Exit(worker.ExitFailure)
	}

	// Cancellation arrives as process termination from the orchestrator;
	// translate the signal into context cancellation so an in-flight
	// tool call can be abandoned cleanly.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(worker.NewRunner(cfg).Run(ctx))
}
