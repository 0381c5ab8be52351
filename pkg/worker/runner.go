// Package worker hosts one reasoning-engine run inside an ephemeral
// orchestrator job. The process exit code is the only outward success
// signal the orchestrator tracks: 0 means the finish tool concluded the
// investigation, 1 means anything else.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/4sgupta828/oats/pkg/agent"
	"github.com/4sgupta828/oats/pkg/config"
	"github.com/4sgupta828/oats/pkg/events"
	"github.com/4sgupta828/oats/pkg/llm"
	"github.com/4sgupta828/oats/pkg/tools"
)

// Exit codes.
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Runner assembles and runs one worker: registry, executor, oracle,
// engine, event stream, final artifact.
type Runner struct {
	cfg       *config.WorkerConfig
	publisher events.Publisher

	// newOracle is swappable for tests; defaults to llm.New.
	newOracle func(config.LLMConfig) (llm.Client, error)
}

// NewRunner creates a runner that streams events to stdout.
func NewRunner(cfg *config.WorkerConfig) *Runner {
	return &Runner{
		cfg:       cfg,
		publisher: events.NewStdoutPublisher(os.Stdout),
		newOracle: llm.New,
	}
}

// Run executes the investigation and returns the process exit code.
// Fatal setup errors (unreadable tool directory, scratch-directory
// failure, oracle construction failure) emit an error event and exit 1.
func (r *Runner) Run(ctx context.Context) int {
	scratch, err := r.cfg.EnsureScratchDir()
	if err != nil {
		return r.fatal("scratch directory setup failed", err)
	}
	defer func() {
		// Best-effort purge: the scratch dir is exclusively ours.
		if err := os.RemoveAll(scratch); err != nil {
			slog.Warn("failed to purge scratch directory", "path", scratch, "error", err)
		}
	}()

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return r.fatal("builtin tool registration failed", err)
	}
	if _, statErr := os.Stat(r.cfg.ToolsDir); statErr == nil {
		if err := registry.Discover(r.cfg.ToolsDir); err != nil {
			return r.fatal("tool discovery failed", err)
		}
	} else {
		slog.Info("no tool directory; running with builtins only", "path", r.cfg.ToolsDir)
	}

	oracle, err := r.newOracle(r.cfg.LLM)
	if err != nil {
		return r.fatal("oracle client setup failed", err)
	}

	executor := tools.NewExecutor(registry, scratch, tools.DefaultCallTimeout)
	engine := agent.New(agent.Config{
		TurnBudget:       r.cfg.TurnBudget,
		PromptVersion:    r.cfg.LLM.PromptVersion,
		ForcedConclusion: true,
	}, oracle, registry, executor, r.publisher)

	slog.Info("starting investigation",
		"turn_budget", r.cfg.TurnBudget,
		"provider", r.cfg.LLM.Provider,
		"model", r.cfg.LLM.Model,
	)

	result, err := engine.Run(ctx, r.cfg.Goal)
	if err != nil {
		return r.fatal("reasoning engine failed", err)
	}

	if result.Summary != "" {
		if path, werr := r.writeArtifact(result.Summary); werr != nil {
			slog.Error("failed to write final result artifact", "error", werr)
		} else {
			slog.Info("final result written", "path", path)
		}
	}

	r.printSummary(result)
	if result.Success {
		return ExitSuccess
	}
	return ExitFailure
}

// writeArtifact persists the final result text to the results directory.
func (r *Runner) writeArtifact(text string) (string, error) {
	if err := r.cfg.EnsureResultsDir(); err != nil {
		return "", err
	}
	path := r.cfg.ResultPath(time.Now().Unix())
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// printSummary logs the human-readable wrap-up. It goes to stderr via
// slog — stdout belongs to the event stream.
func (r *Runner) printSummary(result *agent.RunResult) {
	if result.Success {
		slog.Info("investigation complete",
			"turns_used", result.TurnsUsed,
			"facts", len(result.State.Facts),
			"result", result.Summary,
		)
		return
	}
	slog.Error("investigation did not complete",
		"reason", result.Reason,
		"turns_used", result.TurnsUsed,
		"facts", len(result.State.Facts),
	)
}

func (r *Runner) fatal(msg string, err error) int {
	slog.Error(msg, "error", err)
	r.publisher.Publish(events.NewError(msg, err.Error()))
	return ExitFailure
}
