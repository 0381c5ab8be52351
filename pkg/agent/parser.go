package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/4sgupta828/oats/pkg/models"
)

// ReplySchemaMode selects which oracle reply schema the engine honors when
// a reply carries both the current four-section form and the legacy
// two-section form.
type ReplySchemaMode string

// Reply schema modes.
const (
	// SchemaModeAuto accepts both forms; the four-section form wins when
	// both are present.
	SchemaModeAuto ReplySchemaMode = "auto"
	// SchemaModeStructured accepts only the four-section form.
	SchemaModeStructured ReplySchemaMode = "structured"
	// SchemaModeLegacy prefers the legacy form, falling back to the
	// four-section form only when no legacy sections are present.
	SchemaModeLegacy ReplySchemaMode = "legacy"
)

// Action is the oracle's requested tool dispatch.
type Action struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// ParsedReply is a successfully parsed oracle reply.
type ParsedReply struct {
	Reflect    string
	Strategize string
	State      *models.ProposedState
	Act        *Action

	// Legacy is set when the reply was accepted via the two-section
	// thought/action schema.
	Legacy bool
}

// Thought renders the reply's reasoning text for transcripts and events.
func (p *ParsedReply) Thought() string {
	if p.Legacy {
		return p.Reflect
	}
	if p.Strategize == "" {
		return p.Reflect
	}
	if p.Reflect == "" {
		return p.Strategize
	}
	return p.Reflect + "\n" + p.Strategize
}

// rawReply is the union of both schemas for a single decode pass.
type rawReply struct {
	// Current four-section schema.
	Reflect    string                `json:"reflect"`
	Strategize string                `json:"strategize"`
	State      *models.ProposedState `json:"state"`
	Act        *Action               `json:"act"`

	// Legacy two-section schema.
	Thought string  `json:"thought"`
	Action  *Action `json:"action"`
}

// ParseReply parses an oracle reply. The parser is deliberately forgiving
// about packaging — code fences and surrounding prose are stripped before
// the single JSON object is decoded — but strict about the contract: a
// reply with no recognizable act section is a parse failure the engine
// answers with a corrective message.
func ParseReply(text string, mode ReplySchemaMode) (*ParsedReply, error) {
	payload, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var raw rawReply
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("reply is not a valid JSON object: %w", err)
	}

	hasStructured := raw.Act != nil
	hasLegacy := raw.Action != nil

	useLegacy := false
	switch mode {
	case SchemaModeStructured:
		if !hasStructured {
			return nil, fmt.Errorf("reply missing the \"act\" section")
		}
	case SchemaModeLegacy:
		if hasLegacy {
			useLegacy = true
		} else if !hasStructured {
			return nil, fmt.Errorf("reply missing the \"action\" section")
		}
	default: // SchemaModeAuto — structured wins when both are present
		if !hasStructured {
			if !hasLegacy {
				return nil, fmt.Errorf("reply has neither an \"act\" nor an \"action\" section")
			}
			useLegacy = true
		}
	}

	if useLegacy {
		if raw.Action.Tool == "" {
			return nil, fmt.Errorf("legacy \"action\" section missing tool name")
		}
		return &ParsedReply{
			Reflect: raw.Thought,
			Act:     raw.Action,
			Legacy:  true,
		}, nil
	}

	if raw.Act.Tool == "" {
		return nil, fmt.Errorf("\"act\" section missing tool name")
	}
	return &ParsedReply{
		Reflect:    raw.Reflect,
		Strategize: raw.Strategize,
		State:      raw.State,
		Act:        raw.Act,
	}, nil
}

// extractJSONObject locates the single top-level JSON object in the reply.
// Handles fenced blocks (```json ... ```) and stray prose around the
// object by scanning for the first balanced {...} span outside strings.
func extractJSONObject(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", fmt.Errorf("empty reply")
	}

	// Prefer the inside of a fenced block when one exists.
	if idx := strings.Index(s, "```"); idx >= 0 {
		rest := s[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			s = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", fmt.Errorf("no JSON object found in reply")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced JSON object in reply")
}
