// Package config loads all OATS configuration from the environment.
//
// Both binaries are configured exclusively through environment variables
// (optionally seeded from a .env file by the caller). Load functions apply
// defaults, validate, and return typed structs; nothing reads the
// environment after startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Server defaults.
const (
	DefaultListenAddr       = ":8080"
	DefaultNamespace        = "default"
	DefaultTurnBudget       = 15
	DefaultJobTTL           = 300 * time.Second
	DefaultHardDeadline     = 30 * time.Minute
	DefaultStatusPollPeriod = 2 * time.Second
	DefaultWorkerImage      = "ghcr.io/4sgupta828/oats-worker:latest"
	DefaultOracleSecret     = "oats-oracle-credentials"
)

// ServerConfig configures the control-plane server.
type ServerConfig struct {
	ListenAddr string

	// DefaultNamespace is used when a request omits target_namespace.
	DefaultNamespace string

	// WorkerImage is the container image for investigation jobs.
	WorkerImage string

	// OracleSecretName is the orchestrator-managed secret holding the
	// oracle API keys, mounted into each worker's environment.
	OracleSecretName string

	// JobTTL is the terminal-state TTL after which the orchestrator
	// reclaims a finished job.
	JobTTL time.Duration

	// HardDeadline is the wall-clock limit for a running investigation;
	// exceeding it transitions the investigation to timed_out.
	HardDeadline time.Duration

	// StatusPollPeriod is how often the lifecycle watcher polls job status.
	StatusPollPeriod time.Duration

	// Kubeconfig is the path to a kubeconfig file. Empty means in-cluster.
	Kubeconfig string

	// WorkerLogLevel is propagated to workers as UFFLOW_LOG_LEVEL.
	WorkerLogLevel string

	// LLM carries the UFFLOW_* settings passed through to workers.
	LLM LLMConfig
}

// LoadServerConfig reads the control-plane configuration from the
// environment.
func LoadServerConfig() (*ServerConfig, error) {
	cfg := &ServerConfig{
		ListenAddr:       getEnv("OATS_LISTEN_ADDR", DefaultListenAddr),
		DefaultNamespace: getEnv("OATS_NAMESPACE", DefaultNamespace),
		WorkerImage:      getEnv("OATS_WORKER_IMAGE", DefaultWorkerImage),
		OracleSecretName: getEnv("OATS_ORACLE_SECRET", DefaultOracleSecret),
		Kubeconfig:       os.Getenv("KUBECONFIG"),
		WorkerLogLevel:   getEnv("UFFLOW_LOG_LEVEL", "info"),
	}

	var err error
	if cfg.JobTTL, err = getDurationEnv("OATS_JOB_TTL", DefaultJobTTL); err != nil {
		return nil, err
	}
	if cfg.HardDeadline, err = getDurationEnv("OATS_HARD_DEADLINE", DefaultHardDeadline); err != nil {
		return nil, err
	}
	if cfg.StatusPollPeriod, err = getDurationEnv("OATS_STATUS_POLL_PERIOD", DefaultStatusPollPeriod); err != nil {
		return nil, err
	}

	// The server does not call the oracle itself, so missing API keys are
	// not an error here — workers receive them from the managed secret.
	cfg.LLM = loadLLMConfig()

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func getDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
