// OATS control-plane server: accepts investigation requests, schedules
// ephemeral worker jobs, and streams their events back to clients.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/4sgupta828/oats/pkg/api"
	"github.com/4sgupta828/oats/pkg/config"
	"github.com/4sgupta828/oats/pkg/events"
	"github.com/4sgupta828/oats/pkg/orchestrator"
	"github.com/4sgupta828/oats/pkg/services"
	"github.com/4sgupta828/oats/pkg/version"
)

func main() {
	envFile := flag.String("env-file", ".env", "Path to optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		slog.Info("no .env file loaded, using existing environment", "path", *envFile)
	}

	config.SetupLogging(os.Getenv("UFFLOW_LOG_LEVEL"), os.Stderr)
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	slog.Info("starting control plane", "version", version.Full())

	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	orch, err := orchestrator.NewKubernetes(cfg.Kubeconfig)
	if err != nil {
		slog.Error("failed to connect to orchestrator", "error", err)
		os.Exit(1)
	}

	hub := events.NewHub()
	metrics := api.NewMetrics()
	svc := services.NewInvestigationService(cfg, orch, hub, metrics.Hooks())
	server := api.NewServer(cfg, svc, metrics)

	// Serve until SIGINT/SIGTERM, then drain.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}
	svc.Stop()
}
