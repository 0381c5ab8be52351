package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Worker defaults.
const (
	DefaultToolsDir   = "/etc/oats/tools"
	DefaultResultsDir = "/var/lib/oats/results"
)

// ErrMissingGoal is returned when OATS_GOAL is absent or empty. The worker
// cannot start without a goal; this is a fatal startup error.
var ErrMissingGoal = errors.New("OATS_GOAL is required")

// WorkerConfig is the complete environment contract of one investigation
// worker, read once at process start.
type WorkerConfig struct {
	Goal       string
	TurnBudget int

	// ToolsDir is the directory the registry discovers tool manifests from.
	ToolsDir string

	// ResultsDir receives the final-result artifact.
	ResultsDir string

	// ScratchDir is this worker's exclusively-owned spill directory,
	// purged best-effort at exit. Empty means create one under the OS
	// temp directory.
	ScratchDir string

	LogLevel string

	LLM LLMConfig
}

// LoadWorkerConfig reads the worker environment contract. Missing OATS_GOAL
// or missing oracle credentials are fatal.
func LoadWorkerConfig() (*WorkerConfig, error) {
	goal := os.Getenv("OATS_GOAL")
	if goal == "" {
		return nil, ErrMissingGoal
	}

	turns, err := getIntEnv("OATS_MAX_TURNS", DefaultTurnBudget)
	if err != nil {
		return nil, err
	}
	if turns < 1 {
		return nil, fmt.Errorf("OATS_MAX_TURNS must be at least 1, got %d", turns)
	}

	cfg := &WorkerConfig{
		Goal:       goal,
		TurnBudget: turns,
		ToolsDir:   getEnv("OATS_TOOLS_DIR", DefaultToolsDir),
		ResultsDir: getEnv("OATS_RESULTS_DIR", DefaultResultsDir),
		ScratchDir: os.Getenv("OATS_SCRATCH_DIR"),
		LogLevel:   getEnv("UFFLOW_LOG_LEVEL", "info"),
		LLM:        loadLLMConfig(),
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// EnsureScratchDir creates the worker's scratch directory if needed and
// returns its path. Failure here is fatal to the worker.
func (c *WorkerConfig) EnsureScratchDir() (string, error) {
	if c.ScratchDir == "" {
		dir, err := os.MkdirTemp("", "oats-scratch-")
		if err != nil {
			return "", fmt.Errorf("failed to create scratch directory: %w", err)
		}
		c.ScratchDir = dir
		return dir, nil
	}
	if err := os.MkdirAll(c.ScratchDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory %s: %w", c.ScratchDir, err)
	}
	return c.ScratchDir, nil
}

// EnsureResultsDir creates the results directory if needed.
func (c *WorkerConfig) EnsureResultsDir() error {
	if err := os.MkdirAll(c.ResultsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create results directory %s: %w", c.ResultsDir, err)
	}
	return nil
}

// ResultPath returns the artifact path for a final result written at the
// given unix timestamp.
func (c *WorkerConfig) ResultPath(unixTS int64) string {
	return filepath.Join(c.ResultsDir, fmt.Sprintf("final_result_%d.txt", unixTS))
}
