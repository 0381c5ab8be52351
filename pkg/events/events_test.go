package events

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		ok   bool
		typ  Type
	}{
		{"thought event", `{"type":"thought","turn":1,"ts":"2026-01-02T15:04:05Z","payload":{"reflect":"x"}}`, true, TypeThought},
		{"finish event", `{"type":"finish","ts":"2026-01-02T15:04:05Z","payload":{"result":"done"}}`, true, TypeFinish},
		{"plain log line", "INFO worker started", false, ""},
		{"json without type", `{"level":"info","msg":"hi"}`, false, ""},
		{"json with unknown type", `{"type":"heartbeat"}`, false, ""},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := ParseLine([]byte(tt.line))
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.typ, ev.Type)
			}
		})
	}
}

func TestStdoutPublisher_OneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	p := NewStdoutPublisher(&buf)

	p.Publish(NewThought(0, "reflecting", "planning"))
	p.Publish(NewAction(0, "run_shell", map[string]any{"command": "ls"}))
	p.Publish(NewFinish(1, "done", 2))

	scanner := bufio.NewScanner(&buf)
	var parsed []Event
	for scanner.Scan() {
		ev, ok := ParseLine(scanner.Bytes())
		require.True(t, ok, "line was not a valid event: %s", scanner.Text())
		parsed = append(parsed, ev)
	}
	require.Len(t, parsed, 3)
	assert.Equal(t, TypeThought, parsed[0].Type)
	assert.Equal(t, TypeAction, parsed[1].Type)
	assert.Equal(t, TypeFinish, parsed[2].Type)
	assert.Equal(t, "done", parsed[2].Payload["result"])
}

func TestStdoutPublisher_InterleavedLogLinesFiltered(t *testing.T) {
	var buf bytes.Buffer
	p := NewStdoutPublisher(&buf)
	p.Publish(NewStatus("starting", nil))
	buf.WriteString("plain log noise\n")
	p.Publish(NewError("budget exhausted", ""))

	var count int
	scanner := bufio.NewScanner(strings.NewReader(buf.String()))
	for scanner.Scan() {
		if _, ok := ParseLine(scanner.Bytes()); ok {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestHub_PublishAndSubscribe(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("inv-1")
	defer cancel()

	h.Publish("inv-1", NewThought(0, "r", "s"))

	select {
	case f := <-frames:
		assert.Equal(t, "agent_message", f.Type)
		assert.Equal(t, "inv-1", f.InvestigationID)
		require.NotNil(t, f.Event)
		assert.Equal(t, TypeThought, f.Event.Type)
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestHub_TopicsAreIndependent(t *testing.T) {
	h := NewHub()
	a, cancelA := h.Subscribe("inv-a")
	defer cancelA()
	_, cancelB := h.Subscribe("inv-b")
	defer cancelB()

	h.Publish("inv-b", NewStatus("only for b", nil))

	select {
	case f := <-a:
		t.Fatalf("subscriber for inv-a received frame for %s", f.InvestigationID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DetachStopsDelivery(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("inv-1")
	cancel()
	cancel() // idempotent

	h.Publish("inv-1", NewStatus("late", nil))
	select {
	case <-frames:
		t.Fatal("detached subscriber received a frame")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, 0, h.SubscriberCount("inv-1"))
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("inv-1")
	defer cancel()

	// Overfill well past the buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish("inv-1", NewStatus("flood", nil))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
	assert.Len(t, frames, subscriberBuffer)
}

func TestHub_Lifecycle(t *testing.T) {
	h := NewHub()
	frames, cancel := h.Subscribe("inv-1")
	defer cancel()

	h.PublishLifecycle("inv-1", "succeeded")
	f := <-frames
	assert.Equal(t, "lifecycle", f.Type)
	assert.Equal(t, "succeeded", f.State)
	assert.Nil(t, f.Event)
}
