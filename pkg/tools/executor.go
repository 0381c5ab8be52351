package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultCallTimeout bounds one tool invocation.
const DefaultCallTimeout = 300 * time.Second

// Executor invokes tools synchronously. One executor serves one worker and
// owns that worker's scratch directory for funnel spills.
type Executor struct {
	registry    *Registry
	scratchDir  string
	callTimeout time.Duration
}

// NewExecutor creates an executor bound to a registry and scratch directory.
// A zero callTimeout selects DefaultCallTimeout.
func NewExecutor(registry *Registry, scratchDir string, callTimeout time.Duration) *Executor {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &Executor{
		registry:    registry,
		scratchDir:  scratchDir,
		callTimeout: callTimeout,
	}
}

// Execute runs one tool invocation: lookup, schema validation, handler call
// under the per-call timeout, then the observation funnel for oversized
// output. Every failure mode returns a failure Result — validation errors,
// handler errors, timeouts, and even scratch-directory I/O errors are
// reported to the agent as observations, never raised to the loop.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) *Result {
	start := time.Now()

	desc, err := e.registry.Lookup(name)
	if err != nil {
		return finish(Failure(fmt.Sprintf("unknown tool %q", name)), start)
	}
	if name == FinishToolName {
		// The engine intercepts finish before dispatch; reaching the
		// executor means a wiring bug upstream, reported like any failure.
		return finish(Failure("finish is handled by the reasoning engine, not the executor"), start)
	}

	if params == nil {
		params = map[string]any{}
	}
	if sch := e.registry.schema(name); sch != nil {
		if err := sch.Validate(normalizeForValidation(params)); err != nil {
			return finish(Failure(fmt.Sprintf("invalid params for %s: %v", name, err)), start)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
	defer cancel()

	output, err := desc.Handler(callCtx, params)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("tool %s timed out after %s", name, e.callTimeout)
		}
		return finish(Failure(msg), start)
	}

	res := &Result{Status: StatusSuccess, Output: output}
	if NeedsFunnel(output) {
		wrapped, summary, ferr := Funnel(e.scratchDir, name, output, desc.Searchlike)
		if ferr != nil {
			// Spill failed — the call itself is failed but the loop
			// continues; the agent sees why.
			slog.Error("observation funnel failed", "tool", name, "error", ferr)
			return finish(Failure(fmt.Sprintf("tool %s produced %d chars but spilling failed: %v",
				name, len(output), ferr)), start)
		}
		res.Output = wrapped
		res.Summary = summary
	}

	return finish(res, start)
}

func finish(r *Result, start time.Time) *Result {
	r.DurationMS = time.Since(start).Milliseconds()
	return r
}

// normalizeForValidation converts params into the shape the schema
// validator expects (the types json.Unmarshal produces). Params parsed
// from the oracle's JSON reply are already in that shape; integers
// constructed by tests are not.
func normalizeForValidation(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeForValidation(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeForValidation(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}
