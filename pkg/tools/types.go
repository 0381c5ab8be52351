// Package tools provides the worker's tool registry, the synchronous tool
// executor, and the observation funnel for oversized outputs.
package tools

import (
	"context"
	"encoding/json"
)

// FinishToolName is the distinguished tool whose invocation marks the
// investigation successful. It is registered so it appears in the catalog,
// but the reasoning engine intercepts it before dispatch — the executor
// never runs it.
const FinishToolName = "finish"

// Handler executes one tool invocation. Params have already been validated
// against the descriptor's input schema. The returned string is the raw
// output; a non-nil error marks the invocation failed.
type Handler func(ctx context.Context, params map[string]any) (string, error)

// Descriptor is the immutable record describing one registered tool.
type Descriptor struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`

	// Searchlike marks tools whose output is grep-shaped
	// (path:line:content); the funnel extracts match statistics for them.
	Searchlike bool `json:"-"`

	Handler Handler `json:"-"`
}

// Status is the outcome of one tool invocation.
type Status string

// Invocation outcomes.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ObservationSummary describes a funneled (spilled) output.
type ObservationSummary struct {
	TotalLines       int    `json:"total_lines"`
	TotalChars       int    `json:"total_chars"`
	TotalMatches     *int   `json:"total_matches,omitempty"`
	FilesWithMatches *int   `json:"files_with_matches,omitempty"`
	FullOutputPath   string `json:"full_output_path"`
	Preview          string `json:"preview"`
}

// Result is what the executor produces for every invocation. Failures are
// recoverable by design — they are reported into the agent's transcript as
// observations, never raised across the loop boundary.
type Result struct {
	Status     Status              `json:"status"`
	Output     string              `json:"output"`
	Error      string              `json:"error,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	Summary    *ObservationSummary `json:"summary,omitempty"`
}

// Failure builds a failure result with the given error message.
func Failure(msg string) *Result {
	return &Result{Status: StatusFailure, Error: msg}
}
