package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// toolManifest is the on-disk YAML declaration of one external tool.
//
//	name: restart_checker
//	version: "1.0"
//	description: Count recent container restarts in a namespace.
//	command: ["/opt/oats/tools/restart-checker"]
//	timeout_seconds: 120
//	searchlike: false
//	input_schema:
//	  type: object
//	  properties:
//	    namespace: {type: string}
//	  required: [namespace]
//
// The command receives the validated params as a JSON object on stdin and
// must write its result to stdout.
type toolManifest struct {
	Name           string         `yaml:"name"`
	Version        string         `yaml:"version"`
	Description    string         `yaml:"description"`
	Command        []string       `yaml:"command"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
	Searchlike     bool           `yaml:"searchlike"`
	InputSchema    map[string]any `yaml:"input_schema"`
}

// Discover walks root for *.yaml / *.yml tool manifests and registers each
// declared tool. Partial failure is tolerated: a malformed manifest or a
// duplicate name is logged and skipped. The only hard error is an
// unreadable root, which is fatal to worker startup.
func (r *Registry) Discover(root string) error {
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("tool directory unreadable: %w", err)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("tool directory unreadable: %w", err)
			}
			slog.Warn("skipping unreadable tool path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		desc, err := loadManifest(path)
		if err != nil {
			slog.Warn("skipping malformed tool manifest", "path", path, "error", err)
			return nil
		}
		if err := r.Register(desc); err != nil {
			slog.Warn("skipping tool manifest", "path", path, "tool", desc.Name, "error", err)
		} else {
			slog.Info("discovered tool", "tool", desc.Name, "version", desc.Version, "path", path)
		}
		return nil
	})
}

func loadManifest(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, err
	}

	var m toolManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Descriptor{}, fmt.Errorf("invalid YAML: %w", err)
	}
	if m.Name == "" {
		return Descriptor{}, fmt.Errorf("manifest missing name")
	}
	if len(m.Command) == 0 {
		return Descriptor{}, fmt.Errorf("manifest %s missing command", m.Name)
	}

	schema := m.InputSchema
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return Descriptor{}, fmt.Errorf("manifest %s input_schema not JSON-encodable: %w", m.Name, err)
	}

	timeout := time.Duration(m.TimeoutSeconds) * time.Second

	return Descriptor{
		Name:        m.Name,
		Version:     m.Version,
		Description: m.Description,
		InputSchema: schemaJSON,
		Searchlike:  m.Searchlike,
		Handler:     commandHandler(m.Command, timeout),
	}, nil
}

// commandHandler wraps an external command as a Handler. Params are passed
// as JSON on stdin; combined output is the observation.
func commandHandler(command []string, timeout time.Duration) Handler {
	return func(ctx context.Context, params map[string]any) (string, error) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		input, err := json.Marshal(params)
		if err != nil {
			return "", fmt.Errorf("failed to encode params: %w", err)
		}

		cmd := exec.CommandContext(ctx, command[0], command[1:]...)
		cmd.Stdin = strings.NewReader(string(input))
		out, err := cmd.CombinedOutput()
		if err != nil {
			return "", fmt.Errorf("%s: %w\n%s", command[0], err, string(out))
		}
		return string(out), nil
	}
}
