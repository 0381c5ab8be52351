package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptorNamed(name string) Descriptor {
	return Descriptor{
		Name:        name,
		Version:     "1.0",
		Description: "test tool",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(context.Context, map[string]any) (string, error) {
			return "ok", nil
		},
	}
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(descriptorNamed("alpha")))

	desc, err := r.Lookup("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", desc.Name)
	assert.Equal(t, "1.0", desc.Version)
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(descriptorNamed("alpha")))

	err := r.Register(descriptorNamed("alpha"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateTool)
}

func TestRegistry_LookupMiss(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistry_ListOrdered(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(descriptorNamed(name)))
	}

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)
}

func TestRegistry_InvalidSchemaRejected(t *testing.T) {
	r := NewRegistry()
	desc := descriptorNamed("broken")
	desc.InputSchema = json.RawMessage(`{"type": 42}`)

	err := r.Register(desc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid input schema")
}

func TestRegistry_EmptyNameRejected(t *testing.T) {
	r := NewRegistry()
	err := r.Register(Descriptor{})
	assert.Error(t, err)
}

func TestRegisterBuiltins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, RegisterBuiltins(r))

	names := make([]string, 0)
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Contains(t, names, "run_shell")
	assert.Contains(t, names, "read_file")
	assert.Contains(t, names, "search_logs")
	assert.Contains(t, names, "fetch_metrics")
	assert.Contains(t, names, FinishToolName)

	// Builtins cannot be shadowed.
	err := r.Register(descriptorNamed("run_shell"))
	assert.ErrorIs(t, err, ErrDuplicateTool)
}
