// Package agent implements the bounded Reflect–Strategize–Act reasoning
// loop that runs inside each investigation worker.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/4sgupta828/oats/pkg/agent/prompt"
	"github.com/4sgupta828/oats/pkg/events"
	"github.com/4sgupta828/oats/pkg/llm"
	"github.com/4sgupta828/oats/pkg/models"
	"github.com/4sgupta828/oats/pkg/tools"
)

// Engine thresholds.
const (
	// maxConsecutiveParseFailures terminates the run after this many
	// parse failures in a row. Each failure costs an oracle call but
	// does not advance the turn count.
	maxConsecutiveParseFailures = 2

	// stuckTaskTurns is the turns-on-task threshold for the forced
	// reflection directive.
	stuckTaskTurns = 8

	// stuckNoDeltaTurns is how many consecutive no-delta turns arm the
	// directive once the turns-on-task threshold is crossed.
	stuckNoDeltaTurns = 2

	// maxConsecutiveTimeouts aborts the run when tool calls keep timing
	// out — the environment is unresponsive and further turns only burn
	// budget.
	maxConsecutiveTimeouts = 3
)

// Config tunes one engine instance.
type Config struct {
	TurnBudget    int
	SchemaMode    ReplySchemaMode
	PromptVersion string

	// ForcedConclusion makes one final tool-less oracle call for a
	// best-effort summary when the budget runs out.
	ForcedConclusion bool
}

// RunResult is what Engine.Run returns.
type RunResult struct {
	Success   bool
	State     *models.AgentState
	TurnsUsed int

	// Summary is the final result on success, or the forced-conclusion
	// best-effort summary on budget exhaustion.
	Summary string

	// Reason describes why an unsuccessful run terminated.
	Reason string
}

// Engine runs the R-S-A loop: one oracle call at a time, one tool
// execution at a time, strict prompt → oracle → parse → dispatch → merge
// serialization.
type Engine struct {
	cfg       Config
	oracle    llm.Client
	registry  *tools.Registry
	executor  *tools.Executor
	publisher events.Publisher
}

// New creates an engine. The registry must already be fully constructed —
// it is treated as read-only from here on.
func New(cfg Config, oracle llm.Client, registry *tools.Registry, executor *tools.Executor, publisher events.Publisher) *Engine {
	if cfg.SchemaMode == "" {
		cfg.SchemaMode = SchemaModeAuto
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Engine{
		cfg:       cfg,
		oracle:    oracle,
		registry:  registry,
		executor:  executor,
		publisher: publisher,
	}
}

// Run drives the goal until completion, budget exhaustion, or an
// unrecoverable failure.
func (e *Engine) Run(ctx context.Context, goal string) (*RunResult, error) {
	state := models.NewAgentState(goal)
	catalog := e.registry.List()
	system := prompt.SystemPreamble(e.cfg.PromptVersion)

	parseFailures := 0
	noDeltaStreak := 0
	reflectionPending := false
	reflectionSpent := false
	consecutiveTimeouts := 0
	corrective := ""

	for state.TurnCount < e.cfg.TurnBudget {
		if err := ctx.Err(); err != nil {
			e.publisher.Publish(events.NewError("cancelled", err.Error()))
			return e.failed(state, "cancelled"), nil
		}

		userMsg := prompt.BuildUserMessage(prompt.BuildInput{
			Goal:             goal,
			State:            state,
			Tools:            catalog,
			Turn:             state.TurnCount,
			Budget:           e.cfg.TurnBudget,
			ForcedReflection: reflectionPending,
			CorrectiveNote:   corrective,
		})
		reflectionPending = false

		reply, err := e.oracle.Complete(ctx, &llm.Request{
			System:   system,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: userMsg}},
		})
		if err != nil {
			e.publisher.Publish(events.NewError("oracle failure", err.Error()))
			return e.failed(state, fmt.Sprintf("oracle failure: %v", err)), nil
		}

		parsed, perr := ParseReply(reply, e.cfg.SchemaMode)
		if perr != nil {
			parseFailures++
			slog.Warn("oracle reply failed to parse",
				"attempt", parseFailures, "error", perr)
			if parseFailures >= maxConsecutiveParseFailures {
				e.publisher.Publish(events.NewError("parse failure",
					fmt.Sprintf("%d consecutive malformed oracle replies: %v", parseFailures, perr)))
				return e.failed(state, "consecutive parse failures"), nil
			}
			corrective = fmt.Sprintf(
				"Your previous reply was not a valid protocol message (%v). "+
					"Reply with exactly one JSON object matching the reply contract.", perr)
			continue // turn count does not advance on a parse failure
		}
		parseFailures = 0
		corrective = ""

		e.publisher.Publish(events.NewThought(state.TurnCount, parsed.Reflect, parsed.Strategize))
		e.publisher.Publish(events.NewAction(state.TurnCount, parsed.Act.Tool, parsed.Act.Params))

		if parsed.Act.Tool == tools.FinishToolName {
			outcome := MergeState(state, parsed.State)
			e.publishWarnings(outcome)

			result, _ := parsed.Act.Params["result"].(string)
			state.Transcript = append(state.Transcript, models.TranscriptEntry{
				TurnIndex:   state.TurnCount,
				Thought:     parsed.Thought(),
				Action:      formatAction(parsed.Act),
				Observation: "investigation concluded",
			})
			state.TurnCount++
			state.IsComplete = true
			state.FinalResult = result

			e.publisher.Publish(events.NewFinish(state.TurnCount-1, result, state.TurnCount))
			return &RunResult{
				Success:   true,
				State:     state,
				TurnsUsed: state.TurnCount,
				Summary:   result,
			}, nil
		}

		toolResult := e.executor.Execute(ctx, parsed.Act.Tool, parsed.Act.Params)
		e.publisher.Publish(events.NewObservation(state.TurnCount, observationPayload(toolResult)))

		state.Transcript = append(state.Transcript, models.TranscriptEntry{
			TurnIndex:   state.TurnCount,
			Thought:     parsed.Thought(),
			Action:      formatAction(parsed.Act),
			Observation: observationText(toolResult),
		})

		outcome := MergeState(state, parsed.State)
		e.publishWarnings(outcome)
		state.TurnCount++

		if isTimeoutResult(toolResult) {
			consecutiveTimeouts++
			if consecutiveTimeouts >= maxConsecutiveTimeouts {
				e.publisher.Publish(events.NewError("environment unresponsive",
					fmt.Sprintf("%d consecutive tool timeouts", consecutiveTimeouts)))
				return e.failed(state, "consecutive tool timeouts"), nil
			}
		} else {
			consecutiveTimeouts = 0
		}

		if outcome.Delta() || outcome.ActiveChanged {
			noDeltaStreak = 0
			reflectionSpent = false
		} else {
			noDeltaStreak++
		}
		if !reflectionSpent && state.Active != nil &&
			state.Active.TurnsOnTask >= stuckTaskTurns && noDeltaStreak >= stuckNoDeltaTurns {
			reflectionPending = true
			reflectionSpent = true
			slog.Info("injecting forced reflection directive",
				"task", state.Active.ID, "turns_on_task", state.Active.TurnsOnTask)
		}
	}

	// Budget exhausted without completion — not a success.
	summary := ""
	if e.cfg.ForcedConclusion {
		summary = e.forcedConclusion(ctx, goal, state)
	}
	e.publisher.Publish(events.NewError("budget exhausted",
		fmt.Sprintf("turn budget %d reached; best-effort summary: %s", e.cfg.TurnBudget, summary)))

	res := e.failed(state, "budget exhausted")
	res.Summary = summary
	return res, nil
}

// forcedConclusion makes one tool-less oracle call asking for a
// best-effort summary of what was learned. Failures are swallowed — the
// run is already terminating.
func (e *Engine) forcedConclusion(ctx context.Context, goal string, state *models.AgentState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The investigation of this goal ran out of turns:\n\n%s\n\n", goal)
	b.WriteString("Known facts:\n")
	for _, f := range state.Facts {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("Ruled out:\n")
	for _, r := range state.RuledOut {
		fmt.Fprintf(&b, "- %s\n", r)
	}
	b.WriteString("\nWrite a concise best-effort summary of the most likely root cause and recommended next steps. Plain text, no JSON.")

	reply, err := e.oracle.Complete(ctx, &llm.Request{
		System:   "You summarize incomplete SRE investigations for handoff to a human operator.",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: b.String()}},
	})
	if err != nil {
		slog.Warn("forced conclusion call failed", "error", err)
		return ""
	}
	return strings.TrimSpace(reply)
}

func (e *Engine) publishWarnings(outcome *MergeOutcome) {
	for _, w := range outcome.Warnings {
		e.publisher.Publish(events.NewStatus(w, map[string]any{"level": "warning"}))
	}
}

func (e *Engine) failed(state *models.AgentState, reason string) *RunResult {
	return &RunResult{
		State:     state,
		TurnsUsed: state.TurnCount,
		Reason:    reason,
	}
}

func observationPayload(r *tools.Result) map[string]any {
	payload := map[string]any{
		"status":      string(r.Status),
		"duration_ms": r.DurationMS,
	}
	if r.Status == tools.StatusFailure {
		payload["error"] = r.Error
	} else {
		payload["output"] = r.Output
	}
	if r.Summary != nil {
		payload["summary"] = r.Summary
	}
	return payload
}

func observationText(r *tools.Result) string {
	if r.Status == tools.StatusFailure {
		return "FAILED: " + r.Error
	}
	return r.Output
}

func isTimeoutResult(r *tools.Result) bool {
	return r.Status == tools.StatusFailure && strings.Contains(r.Error, "timed out")
}

func formatAction(a *Action) string {
	params, err := json.Marshal(a.Params)
	if err != nil {
		return a.Tool
	}
	return fmt.Sprintf("%s(%s)", a.Tool, params)
}
