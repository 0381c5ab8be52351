package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredReply = `{
	"reflect": "the pod is crash-looping",
	"strategize": "check recent events next",
	"state": {
		"tasks": [{"id": "t1", "description": "find root cause", "status": "active"}],
		"active": {"id": "t1", "archetype": "Investigate", "phase": "Gather", "turns_on_task": 0},
		"facts": ["pod api-7f9 restarted 14 times"],
		"ruled_out": [],
		"unknowns": ["why OOM"]
	},
	"act": {"tool": "run_shell", "params": {"command": "kubectl get events"}}
}`

const legacyReply = `{
	"thought": "need to see the logs",
	"action": {"tool": "search_logs", "params": {"pattern": "OOM", "root": "/var/log"}}
}`

func TestParseReply_Structured(t *testing.T) {
	p, err := ParseReply(structuredReply, SchemaModeAuto)
	require.NoError(t, err)
	assert.False(t, p.Legacy)
	assert.Equal(t, "the pod is crash-looping", p.Reflect)
	assert.Equal(t, "check recent events next", p.Strategize)
	assert.Equal(t, "run_shell", p.Act.Tool)
	assert.Equal(t, "kubectl get events", p.Act.Params["command"])
	require.NotNil(t, p.State)
	assert.Equal(t, []string{"pod api-7f9 restarted 14 times"}, p.State.Facts)
	require.NotNil(t, p.State.Active)
	assert.Equal(t, "Investigate", string(p.State.Active.Archetype))
}

func TestParseReply_Legacy(t *testing.T) {
	p, err := ParseReply(legacyReply, SchemaModeAuto)
	require.NoError(t, err)
	assert.True(t, p.Legacy)
	assert.Equal(t, "need to see the logs", p.Thought())
	assert.Equal(t, "search_logs", p.Act.Tool)
	assert.Nil(t, p.State)
}

func TestParseReply_FencedJSON(t *testing.T) {
	fenced := "Here is my reply:\n```json\n" + structuredReply + "\n```\nDone."
	p, err := ParseReply(fenced, SchemaModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "run_shell", p.Act.Tool)
}

func TestParseReply_SurroundingProse(t *testing.T) {
	p, err := ParseReply("Sure! "+legacyReply+" hope that helps", SchemaModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "search_logs", p.Act.Tool)
}

// Both forms present: precedence is a configuration choice on the engine.
const hybridReply = `{
	"thought": "legacy thought",
	"action": {"tool": "legacy_tool", "params": {}},
	"reflect": "structured reflect",
	"strategize": "structured plan",
	"state": {"tasks": [], "facts": [], "ruled_out": [], "unknowns": []},
	"act": {"tool": "structured_tool", "params": {}}
}`

func TestParseReply_HybridPrecedence(t *testing.T) {
	tests := []struct {
		mode     ReplySchemaMode
		wantTool string
		legacy   bool
	}{
		{SchemaModeAuto, "structured_tool", false},
		{SchemaModeStructured, "structured_tool", false},
		{SchemaModeLegacy, "legacy_tool", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			p, err := ParseReply(hybridReply, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTool, p.Act.Tool)
			assert.Equal(t, tt.legacy, p.Legacy)
		})
	}
}

func TestParseReply_StructuredModeRejectsLegacy(t *testing.T) {
	_, err := ParseReply(legacyReply, SchemaModeStructured)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "act")
}

func TestParseReply_LegacyModeFallsBackToStructured(t *testing.T) {
	p, err := ParseReply(structuredReply, SchemaModeLegacy)
	require.NoError(t, err)
	assert.Equal(t, "run_shell", p.Act.Tool)
	assert.False(t, p.Legacy)
}

func TestParseReply_Malformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"no json", "I could not decide what to do."},
		{"unbalanced", `{"reflect": "x", "act": {"tool": "y"`},
		{"no act section", `{"reflect": "x", "strategize": "y"}`},
		{"act missing tool", `{"act": {"params": {}}}`},
		{"legacy missing tool", `{"thought": "x", "action": {"params": {}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseReply(tt.text, SchemaModeAuto)
			assert.Error(t, err)
		})
	}
}

func TestParseReply_BracesInsideStrings(t *testing.T) {
	reply := `{"thought": "watch out for {braces} and \"quotes\"", "action": {"tool": "run_shell", "params": {"command": "echo '{}'"}}}`
	p, err := ParseReply(reply, SchemaModeAuto)
	require.NoError(t, err)
	assert.Equal(t, "run_shell", p.Act.Tool)
}

func TestParsedReply_Thought(t *testing.T) {
	p := &ParsedReply{Reflect: "a", Strategize: "b"}
	assert.Equal(t, "a\nb", p.Thought())

	p = &ParsedReply{Reflect: "only", Legacy: true}
	assert.Equal(t, "only", p.Thought())
}
