package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Funnel thresholds. Output at exactly the threshold passes through
// untouched; one line or one character over triggers the spill.
const (
	FunnelMaxLines = 50
	FunnelMaxChars = 2000
)

// Preview shape: head lines, a truncation marker, tail lines.
const (
	previewHeadLines = 10
	previewTailLines = 5
)

// FunnelMarker prefixes every funneled observation so the agent (whose
// prompt documents this contract) streams the spilled file instead of
// re-reading the whole payload.
const FunnelMarker = "LARGE OUTPUT DETECTED"

// grepLinePattern matches grep -n style output: path:line:content.
var grepLinePattern = regexp.MustCompile(`^([^:\s][^:]*):(\d+):`)

// NeedsFunnel reports whether output exceeds either spill threshold.
func NeedsFunnel(output string) bool {
	return countLines(output) > FunnelMaxLines || len(output) > FunnelMaxChars
}

// Funnel applies the three-layer observation funnel to an oversized output:
// spill the full payload to the scratch directory, summarize it, and return
// the guidance-wrapped preview that replaces the raw output. The spilled
// file matches the original byte-for-byte.
func Funnel(scratchDir, toolName, output string, searchlike bool) (string, *ObservationSummary, error) {
	path := spillPath(scratchDir, toolName, output)
	if err := os.WriteFile(path, []byte(output), 0o644); err != nil {
		return "", nil, fmt.Errorf("failed to spill output: %w", err)
	}

	summary := summarize(output, searchlike)
	summary.FullOutputPath = path

	wrapped := fmt.Sprintf(
		"%s: %d lines, %d chars. Full output saved to %s\n"+
			"Preview below. Do NOT re-run the tool; stream the saved file in slices instead.\n%s",
		FunnelMarker, summary.TotalLines, summary.TotalChars, path, summary.Preview,
	)
	return wrapped, summary, nil
}

func spillPath(scratchDir, toolName, output string) string {
	sum := sha256.Sum256([]byte(output))
	short := hex.EncodeToString(sum[:])[:8]
	name := fmt.Sprintf("%s_%d_%s.txt", sanitizeToolName(toolName), time.Now().UnixNano(), short)
	return filepath.Join(scratchDir, name)
}

func sanitizeToolName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func summarize(output string, searchlike bool) *ObservationSummary {
	lines := splitLines(output)
	s := &ObservationSummary{
		TotalLines: len(lines),
		TotalChars: len(output),
		Preview:    buildPreview(lines),
	}

	if searchlike {
		matches := 0
		files := make(map[string]bool)
		for _, line := range lines {
			if m := grepLinePattern.FindStringSubmatch(line); m != nil {
				matches++
				files[m[1]] = true
			}
		}
		nFiles := len(files)
		s.TotalMatches = &matches
		s.FilesWithMatches = &nFiles
	}

	return s
}

func buildPreview(lines []string) string {
	if len(lines) <= previewHeadLines+previewTailLines {
		return strings.Join(lines, "\n")
	}
	truncated := len(lines) - previewHeadLines - previewTailLines
	var b strings.Builder
	for _, line := range lines[:previewHeadLines] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "... (%d lines truncated) ...\n", truncated)
	for i, line := range lines[len(lines)-previewTailLines:] {
		b.WriteString(line)
		if i < previewTailLines-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// countLines counts newline-delimited lines the way an operator would:
// a trailing newline does not start an extra empty line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
