package llm

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/4sgupta828/oats/pkg/config"
)

// flakyClient fails a set number of times before succeeding.
type flakyClient struct {
	failures int32
	err      error
	calls    atomic.Int32
}

func (c *flakyClient) Complete(context.Context, *Request) (string, error) {
	n := c.calls.Add(1)
	if n <= c.failures {
		return "", c.err
	}
	return "recovered", nil
}

func retryCfg() config.LLMConfig {
	return config.LLMConfig{
		Timeout:        time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	}
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func TestRetry_TransientRecovers(t *testing.T) {
	inner := &flakyClient{failures: 2, err: timeoutNetError{}}
	c := newRetryingClient(inner, retryCfg())

	reply, err := c.Complete(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, "recovered", reply)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	inner := &flakyClient{failures: 10, err: timeoutNetError{}}
	c := newRetryingClient(inner, retryCfg())

	_, err := c.Complete(context.Background(), &Request{})
	require.Error(t, err)
	assert.Equal(t, int32(3), inner.calls.Load())
}

func TestRetry_PermanentFailsFast(t *testing.T) {
	inner := &flakyClient{failures: 10, err: &anthropic.Error{StatusCode: 401}}
	c := newRetryingClient(inner, retryCfg())

	_, err := c.Complete(context.Background(), &Request{})
	require.Error(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"context canceled", context.Canceled, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"net timeout", timeoutNetError{}, true},
		{"anthropic 500", &anthropic.Error{StatusCode: 500}, true},
		{"anthropic 529", &anthropic.Error{StatusCode: 529}, true},
		{"anthropic 429", &anthropic.Error{StatusCode: 429}, true},
		{"anthropic 400", &anthropic.Error{StatusCode: 400}, false},
		{"anthropic 401", &anthropic.Error{StatusCode: 401}, false},
		{"openai 503", &openai.APIError{HTTPStatusCode: 503}, true},
		{"openai 404", &openai.APIError{HTTPStatusCode: 404}, false},
		{"unclassified", errors.New("connection reset by peer"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isTransient(tt.err))
		})
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	cfg := retryCfg()
	cfg.Provider = config.ProviderAnthropic
	cfg.AnthropicAPIKey = "sk-test"
	cfg.Model = "claude-sonnet-4-20250514"

	c, err := New(cfg)
	require.NoError(t, err)
	assert.NotNil(t, c)

	cfg.Provider = config.ProviderOpenAI
	cfg.OpenAIAPIKey = ""
	_, err = New(cfg)
	assert.Error(t, err)
}
