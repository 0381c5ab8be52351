package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RegisterBuiltins installs the core diagnostic tools plus the finish
// descriptor. Called once during worker startup, before directory
// discovery, so a manifest cannot shadow a builtin name.
func RegisterBuiltins(r *Registry) error {
	for _, d := range builtinDescriptors() {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func builtinDescriptors() []Descriptor {
	return []Descriptor{
		{
			Name:        "run_shell",
			Version:     "1.0",
			Description: "Run a shell command and return its combined output. Use for kubectl, systemctl, df, ps and other one-shot diagnostics.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"command": {"type": "string", "description": "Shell command to execute"}
				},
				"required": ["command"]
			}`),
			Handler: runShell,
		},
		{
			Name:        "read_file",
			Version:     "1.0",
			Description: "Read a file, optionally a line range. Use offset/limit to stream large spilled outputs in slices.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"},
					"offset": {"type": "integer", "minimum": 0, "description": "First line to return (0-based)"},
					"limit": {"type": "integer", "minimum": 1, "description": "Maximum number of lines to return"}
				},
				"required": ["path"]
			}`),
			Handler: readFile,
		},
		{
			Name:        "list_directory",
			Version:     "1.0",
			Description: "List a directory's entries with sizes.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"path": {"type": "string"}
				},
				"required": ["path"]
			}`),
			Handler: listDirectory,
		},
		{
			Name:        "search_logs",
			Version:     "1.0",
			Description: "Search files under a root for a pattern (grep -rn). Returns path:line:content matches.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"pattern": {"type": "string"},
					"root": {"type": "string", "description": "Directory or file to search"},
					"ignore_case": {"type": "boolean"}
				},
				"required": ["pattern", "root"]
			}`),
			Searchlike: true,
			Handler:    searchLogs,
		},
		{
			Name:        "fetch_metrics",
			Version:     "1.0",
			Description: "Fetch a metrics or health endpoint over HTTP and return the response body.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"url": {"type": "string", "description": "Endpoint URL, e.g. http://svc:9090/metrics"}
				},
				"required": ["url"]
			}`),
			Handler: fetchMetrics,
		},
		{
			Name:        FinishToolName,
			Version:     "1.0",
			Description: "Conclude the investigation. Call with the final root-cause analysis once the goal is met.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"result": {"type": "string", "description": "Final result / root-cause analysis"}
				},
				"required": ["result"]
			}`),
			Handler: func(context.Context, map[string]any) (string, error) {
				return "", fmt.Errorf("finish is handled by the reasoning engine")
			},
		},
	}
}

func runShell(ctx context.Context, params map[string]any) (string, error) {
	command, _ := params["command"].(string)
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("command failed: %w\n%s", err, string(out))
	}
	return string(out), nil
}

func readFile(_ context.Context, params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	offset := intParam(params, "offset", 0)
	limit := intParam(params, "limit", 0)
	if offset == 0 && limit == 0 {
		return string(data), nil
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	if offset >= len(lines) {
		return "", fmt.Errorf("offset %d beyond end of file (%d lines)", offset, len(lines))
	}
	end := len(lines)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return strings.Join(lines[offset:end], "\n"), nil
}

func listDirectory(_ context.Context, params map[string]any) (string, error) {
	path, _ := params["path"].(string)
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		kind := "f"
		if e.IsDir() {
			kind = "d"
		}
		fmt.Fprintf(&b, "%s %10d %s\n", kind, info.Size(), filepath.Join(path, e.Name()))
	}
	return b.String(), nil
}

func searchLogs(ctx context.Context, params map[string]any) (string, error) {
	pattern, _ := params["pattern"].(string)
	root, _ := params["root"].(string)

	args := []string{"-rn"}
	if ic, _ := params["ignore_case"].(bool); ic {
		args = append(args, "-i")
	}
	args = append(args, "--", pattern, root)

	cmd := exec.CommandContext(ctx, "grep", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// grep exits 1 on zero matches — that is a valid empty result.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return "no matches", nil
		}
		return "", fmt.Errorf("search failed: %w\n%s", err, string(out))
	}
	return string(out), nil
}

var metricsHTTPClient = &http.Client{Timeout: 30 * time.Second}

func fetchMetrics(ctx context.Context, params map[string]any) (string, error) {
	url, _ := params["url"].(string)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := metricsHTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
