package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, descriptors ...Descriptor) *Executor {
	t.Helper()
	r := NewRegistry()
	for _, d := range descriptors {
		require.NoError(t, r.Register(d))
	}
	return NewExecutor(r, t.TempDir(), 2*time.Second)
}

func TestExecutor_UnknownTool(t *testing.T) {
	e := newTestExecutor(t)

	res := e.Execute(context.Background(), "nonexistent", nil)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestExecutor_Success(t *testing.T) {
	e := newTestExecutor(t, Descriptor{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Handler: func(_ context.Context, params map[string]any) (string, error) {
			return params["text"].(string), nil
		},
	})

	res := e.Execute(context.Background(), "echo", map[string]any{"text": "hello"})
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "hello", res.Output)
	assert.Empty(t, res.Error)
	assert.Nil(t, res.Summary)
	assert.GreaterOrEqual(t, res.DurationMS, int64(0))
}

func TestExecutor_ValidationFailure(t *testing.T) {
	e := newTestExecutor(t, Descriptor{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}},"required":["text"]}`),
		Handler: func(context.Context, map[string]any) (string, error) {
			return "should not run", nil
		},
	})

	res := e.Execute(context.Background(), "echo", map[string]any{"wrong": true})
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "invalid params")
}

func TestExecutor_HandlerError(t *testing.T) {
	e := newTestExecutor(t, Descriptor{
		Name: "boom",
		Handler: func(context.Context, map[string]any) (string, error) {
			return "", errors.New("kaboom")
		},
	})

	res := e.Execute(context.Background(), "boom", nil)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "kaboom")
}

func TestExecutor_Timeout(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name: "slow",
		Handler: func(ctx context.Context, _ map[string]any) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}))
	e := NewExecutor(r, t.TempDir(), 50*time.Millisecond)

	res := e.Execute(context.Background(), "slow", nil)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "timed out")
}

func TestExecutor_FunnelsLargeOutput(t *testing.T) {
	var big strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&big, "log line %d\n", i)
	}

	e := newTestExecutor(t, Descriptor{
		Name: "bigdump",
		Handler: func(context.Context, map[string]any) (string, error) {
			return big.String(), nil
		},
	})

	res := e.Execute(context.Background(), "bigdump", nil)
	require.Equal(t, StatusSuccess, res.Status)
	require.NotNil(t, res.Summary)
	assert.Equal(t, 500, res.Summary.TotalLines)
	assert.True(t, strings.HasPrefix(res.Output, FunnelMarker))
	assert.Contains(t, res.Output, res.Summary.FullOutputPath)
}

func TestExecutor_SmallOutputNotFunneled(t *testing.T) {
	e := newTestExecutor(t, Descriptor{
		Name: "small",
		Handler: func(context.Context, map[string]any) (string, error) {
			return "tiny", nil
		},
	})

	res := e.Execute(context.Background(), "small", nil)
	assert.Nil(t, res.Summary)
	assert.Equal(t, "tiny", res.Output)
}

func TestExecutor_FinishNeverDispatched(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))
	e := NewExecutor(r, t.TempDir(), time.Second)

	res := e.Execute(context.Background(), FinishToolName, map[string]any{"result": "done"})
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "reasoning engine")
}

func TestExecutor_SpillFailureIsRecoverable(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Descriptor{
		Name: "bigdump",
		Handler: func(context.Context, map[string]any) (string, error) {
			return strings.Repeat("x\n", 200), nil
		},
	}))
	e := NewExecutor(r, "/nonexistent/scratch", time.Second)

	res := e.Execute(context.Background(), "bigdump", nil)
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Error, "spilling failed")
}
