package events

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
)

// Publisher delivers events from the reasoning engine to whoever is
// listening. The worker uses StdoutPublisher; tests use a recording fake.
type Publisher interface {
	Publish(ev Event)
}

// StdoutPublisher writes one JSON-encoded event per line. The worker's
// stdout is the event channel the orchestrator retains and the control
// plane follows, so nothing else in the worker may write to it.
type StdoutPublisher struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStdoutPublisher creates a publisher writing to w (normally os.Stdout).
func NewStdoutPublisher(w io.Writer) *StdoutPublisher {
	return &StdoutPublisher{enc: json.NewEncoder(w)}
}

// Publish encodes the event as a single line. Encoding failures are logged
// and dropped — the stream must not be corrupted by a partial write of an
// unencodable payload.
func (p *StdoutPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enc.Encode(ev); err != nil {
		slog.Error("failed to encode event", "type", ev.Type, "error", err)
	}
}

// NopPublisher discards all events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(Event) {}
