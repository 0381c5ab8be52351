// Package prompt composes the reasoning engine's prompts. Composition is a
// pure function of its inputs — no I/O, no clock, no mutable state — so
// every prompt the engine ever sends is independently unit-testable.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/4sgupta828/oats/pkg/models"
	"github.com/4sgupta828/oats/pkg/tools"
)

// transcriptCharBudget bounds the serialized transcript tail. Older turns
// fall off first; the structured state object carries the durable memory,
// so losing early transcript text costs little.
const transcriptCharBudget = 24000

// BuildInput is everything a user message is composed from.
type BuildInput struct {
	Goal   string
	State  *models.AgentState
	Tools  []tools.Descriptor
	Turn   int // 0-based index of the turn being prompted
	Budget int

	// ForcedReflection appends the stuck-task directive.
	ForcedReflection bool

	// CorrectiveNote is set after a parse failure: a demand for a valid
	// JSON reply, carrying the parse error.
	CorrectiveNote string
}

// BuildUserMessage composes the per-turn user message: goal, serialized
// state, transcript tail, tool catalog, turn position, plus any one-shot
// directives.
func BuildUserMessage(in BuildInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Goal\n\n%s\n\n", in.Goal)

	b.WriteString("## Current state\n\n```json\n")
	b.WriteString(serializeState(in.State))
	b.WriteString("\n```\n\n")

	if tail := FormatTranscript(in.State.Transcript, transcriptCharBudget); tail != "" {
		b.WriteString("## Transcript (most recent turns)\n\n")
		b.WriteString(tail)
		b.WriteString("\n")
	}

	b.WriteString("## Tool catalog\n\n")
	b.WriteString(FormatToolCatalog(in.Tools))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Turn\n\nThis is turn %d of %d.\n", in.Turn+1, in.Budget)

	if in.ForcedReflection {
		b.WriteString("\n")
		b.WriteString(ForcedReflection())
		b.WriteString("\n")
	}
	if in.CorrectiveNote != "" {
		fmt.Fprintf(&b, "\n## FORMAT ERROR\n\n%s\n", in.CorrectiveNote)
	}

	return b.String()
}

// serializeState renders the state object the oracle must echo back,
// without the transcript (rendered separately) or engine-owned counters.
func serializeState(s *models.AgentState) string {
	view := map[string]any{
		"tasks":     s.Tasks,
		"facts":     s.Facts,
		"ruled_out": s.RuledOut,
		"unknowns":  s.Unknowns,
	}
	if s.Active != nil {
		view["active"] = s.Active
	}
	data, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// FormatTranscript renders the newest-last transcript tail within a
// character budget. Turns are dropped oldest-first; a marker records how
// many were omitted.
func FormatTranscript(entries []models.TranscriptEntry, charBudget int) string {
	if len(entries) == 0 {
		return ""
	}

	rendered := make([]string, len(entries))
	total := 0
	for i, e := range entries {
		rendered[i] = fmt.Sprintf("### Turn %d\nThought: %s\nAction: %s\nObservation: %s\n",
			e.TurnIndex+1, e.Thought, e.Action, e.Observation)
		total += len(rendered[i])
	}

	start := 0
	for start < len(rendered)-1 && total > charBudget {
		total -= len(rendered[start])
		start++
	}

	var b strings.Builder
	if start > 0 {
		fmt.Fprintf(&b, "(%d earlier turns omitted; all facts are preserved in the state object)\n\n", start)
	}
	b.WriteString(strings.Join(rendered[start:], "\n"))
	return b.String()
}

// FormatToolCatalog renders the tool list with schemas and descriptions.
func FormatToolCatalog(descriptors []tools.Descriptor) string {
	var b strings.Builder
	for _, d := range descriptors {
		fmt.Fprintf(&b, "- %s: %s\n", d.Name, d.Description)
		if len(d.InputSchema) > 0 {
			fmt.Fprintf(&b, "  schema: %s\n", compactJSON(d.InputSchema))
		}
	}
	return b.String()
}

func compactJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
