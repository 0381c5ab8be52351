package tools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const validManifest = `
name: restart_checker
version: "1.0"
description: Count recent container restarts.
command: ["/bin/echo", "ok"]
timeout_seconds: 30
input_schema:
  type: object
  properties:
    namespace: {type: string}
  required: [namespace]
`

func TestDiscover_ValidManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "restart_checker.yaml", validManifest)

	r := NewRegistry()
	require.NoError(t, r.Discover(dir))

	desc, err := r.Lookup("restart_checker")
	require.NoError(t, err)
	assert.Equal(t, "1.0", desc.Version)
	assert.Contains(t, string(desc.InputSchema), "namespace")
	assert.NotNil(t, desc.Handler)
}

func TestDiscover_MalformedManifestSkipped(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good.yaml", validManifest)
	writeManifest(t, dir, "bad.yaml", "name: [this is: not valid yaml\n\t")
	writeManifest(t, dir, "incomplete.yaml", "name: no_command\n")

	r := NewRegistry()
	require.NoError(t, r.Discover(dir))

	assert.Len(t, r.List(), 1)
	_, err := r.Lookup("restart_checker")
	assert.NoError(t, err)
}

func TestDiscover_NonYAMLIgnored(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "README.md", "# not a tool")
	writeManifest(t, dir, "tool.yaml", validManifest)

	r := NewRegistry()
	require.NoError(t, r.Discover(dir))
	assert.Len(t, r.List(), 1)
}

func TestDiscover_DuplicateSkipped(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", validManifest)
	writeManifest(t, dir, "b.yaml", validManifest)

	r := NewRegistry()
	require.NoError(t, r.Discover(dir))
	assert.Len(t, r.List(), 1)
}

func TestDiscover_UnreadableRootFatal(t *testing.T) {
	r := NewRegistry()
	err := r.Discover("/nonexistent/tools/dir")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable")
}
