// Package events defines the structured event stream a worker emits over
// stdout and the control-plane hub that fans those events out to attached
// WebSocket clients.
//
// The worker writes exactly one JSON-encoded Event per stdout line. Ordinary
// log lines may appear interleaved on the same stream; consumers filter by
// the presence of a recognized "type" field (see ParseLine).
package events

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of event.
type Type string

// The six event types. No other type appears on the stream.
const (
	TypeThought     Type = "thought"
	TypeAction      Type = "action"
	TypeObservation Type = "observation"
	TypeStatus      Type = "status"
	TypeError       Type = "error"
	TypeFinish      Type = "finish"
)

// Valid reports whether t is one of the declared event types.
func (t Type) Valid() bool {
	switch t {
	case TypeThought, TypeAction, TypeObservation, TypeStatus, TypeError, TypeFinish:
		return true
	}
	return false
}

// Event is the streamed unit from worker to client.
type Event struct {
	Type      Type           `json:"type"`
	Turn      int            `json:"turn,omitempty"`
	Timestamp time.Time      `json:"ts"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewThought builds a thought event from the reflect/strategize sections.
func NewThought(turn int, reflect, strategize string) Event {
	return Event{
		Type:      TypeThought,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"reflect":    reflect,
			"strategize": strategize,
		},
	}
}

// NewAction builds an action event for a tool dispatch.
func NewAction(turn int, tool string, params map[string]any) Event {
	return Event{
		Type:      TypeAction,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"tool":   tool,
			"params": params,
		},
	}
}

// NewObservation builds an observation event from a tool result.
func NewObservation(turn int, payload map[string]any) Event {
	return Event{
		Type:      TypeObservation,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewStatus builds a status event carrying a human-readable message.
func NewStatus(message string, fields map[string]any) Event {
	payload := map[string]any{"message": message}
	for k, v := range fields {
		payload[k] = v
	}
	return Event{
		Type:      TypeStatus,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewError builds an error event with a reason and optional detail.
func NewError(reason, detail string) Event {
	payload := map[string]any{"reason": reason}
	if detail != "" {
		payload["detail"] = detail
	}
	return Event{
		Type:      TypeError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewFinish builds the terminal finish event carrying the final result.
func NewFinish(turn int, result string, turnsUsed int) Event {
	return Event{
		Type:      TypeFinish,
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Payload: map[string]any{
			"result":     result,
			"turns_used": turnsUsed,
		},
	}
}

// ParseLine decodes one stdout line into an Event. It returns ok=false for
// lines that are not events: non-JSON log output, JSON without a "type"
// field, or JSON with an unrecognized type. This is the shape validation
// the control plane performs — payloads are forwarded uninterpreted.
func ParseLine(line []byte) (Event, bool) {
	var ev Event
	if err := json.Unmarshal(line, &ev); err != nil {
		return Event{}, false
	}
	if !ev.Type.Valid() {
		return Event{}, false
	}
	return ev, true
}
