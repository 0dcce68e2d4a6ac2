package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"stpasec/internal/logging"
)

// PromptSaver captures every LLM exchange of an analysis into an
// append-only per-run directory. A nil *PromptSaver disables capture
// entirely; enabled/disabled state is fixed at coordinator construction.
type PromptSaver struct {
	mu      sync.Mutex
	dir     string
	counter int
	entries []promptIndexEntry
}

type promptIndexEntry struct {
	seq       int
	agent     string
	step      int
	style     string
	timestamp time.Time
	prompt    string
	response  string
}

// NewPromptSaver creates the capture directory for one analysis.
func NewPromptSaver(baseDir, analysisID string) (*PromptSaver, error) {
	dir := filepath.Join(baseDir, "prompts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create prompts directory: %w", err)
	}
	logging.L(logging.CategoryLLM).Debugw("prompt capture enabled", "dir", dir, "analysis", analysisID)
	return &PromptSaver{dir: dir}, nil
}

// Save writes one prompt/response pair. Filenames carry a monotone counter
// and a short timestamp so ordering survives directory listings.
func (ps *PromptSaver) Save(agent string, step int, style, prompt, response string, metadata map[string]string) error {
	if ps == nil {
		return nil
	}
	ps.mu.Lock()
	ps.counter++
	seq := ps.counter
	now := time.Now()
	ps.entries = append(ps.entries, promptIndexEntry{
		seq: seq, agent: agent, step: step, style: style,
		timestamp: now, prompt: prompt, response: response,
	})
	ps.mu.Unlock()

	stamp := now.Format("150405")
	base := fmt.Sprintf("%03d_%s_%s_%s", seq, sanitize(agent), sanitize(style), stamp)

	var header strings.Builder
	header.WriteString(fmt.Sprintf("# %s (step %d, style %s)\n\n", agent, step, style))
	header.WriteString(fmt.Sprintf("Captured: %s\n", now.Format(time.RFC3339)))
	for k, v := range metadata {
		header.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	header.WriteString("\n---\n\n")

	promptPath := filepath.Join(ps.dir, base+"_prompt.md")
	if err := os.WriteFile(promptPath, []byte(header.String()+prompt), 0o644); err != nil {
		return fmt.Errorf("failed to write prompt capture: %w", err)
	}
	respPath := filepath.Join(ps.dir, base+"_response.md")
	if err := os.WriteFile(respPath, []byte(response), 0o644); err != nil {
		return fmt.Errorf("failed to write response capture: %w", err)
	}
	return nil
}

// Flush writes the markdown index table. Called once at analysis end.
func (ps *PromptSaver) Flush() error {
	if ps == nil {
		return nil
	}
	ps.mu.Lock()
	defer ps.mu.Unlock()

	var b strings.Builder
	b.WriteString("# Prompt capture index\n\n")
	b.WriteString("| # | Agent | Step | Style | Time | Prompt chars | Response chars |\n")
	b.WriteString("|---|-------|------|-------|------|--------------|----------------|\n")
	for _, e := range ps.entries {
		b.WriteString(fmt.Sprintf("| %d | %s | %d | %s | %s | %d | %d |\n",
			e.seq, e.agent, e.step, e.style, e.timestamp.Format("15:04:05"), len(e.prompt), len(e.response)))
	}
	return os.WriteFile(filepath.Join(ps.dir, "index.md"), []byte(b.String()), 0o644)
}

// Dir returns the capture directory.
func (ps *PromptSaver) Dir() string {
	if ps == nil {
		return ""
	}
	return ps.dir
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "/", "_")
	if s == "" {
		return "unknown"
	}
	return s
}
