package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"stpasec/internal/registry"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

// Context is the per-run state threaded through every agent call. Agents
// hold no state of their own; everything they need arrives here.
type Context struct {
	AnalysisID        string
	Step              types.Step
	SystemDescription string
	// Style is the cognitive style of this run; empty means balanced.
	Style string
	// Phase is the write buffer for the current phase; Persist goes through
	// it so phase writes land atomically at phase end.
	Phase *store.PhaseTx
	// Registry is the shared component registry; Step 2 only.
	Registry *registry.Registry
	// Alloc hands out PREFIX-INT identifiers; shared across the analysis so
	// later phases never collide with earlier ones.
	Alloc *types.IDAllocator
	// ParentAnalysisID links a Step 2 run to its Step 1 framing.
	ParentAnalysisID string
	// PreservedElements carries user-frozen artifacts into a re-run.
	PreservedElements map[string]any
}

// priorResults loads previously persisted agent results for this analysis,
// filtered by agent types. Earlier phases flushed at phase end, so their
// results are visible here.
func (c *Context) priorResults(s *store.Store, agentTypes ...string) ([]*types.AgentResult, error) {
	id := c.AnalysisID
	results, err := s.FetchAgentResults(id, agentTypes...)
	if err != nil {
		return nil, err
	}
	// A Step 2 analysis also sees its parent's Step 1 results.
	if c.ParentAnalysisID != "" {
		parent, err := s.FetchAgentResults(c.ParentAnalysisID, agentTypes...)
		if err != nil {
			return nil, err
		}
		results = append(parent, results...)
	}
	return results, nil
}

// priorContext renders prior results as a prompt section. Only the data
// payload is included; execution metadata would waste tokens.
func (c *Context) priorContext(s *store.Store, agentTypes ...string) (string, error) {
	results, err := c.priorResults(s, agentTypes...)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	var b strings.Builder
	b.WriteString("Prior analysis results:\n")
	for _, r := range results {
		if !r.Success || len(r.Data) == 0 {
			continue
		}
		payload, err := json.Marshal(r.Data)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n%s\n", r.AgentType, payload)
	}
	return b.String(), nil
}

// artifactIdentifiers returns the set of persisted identifiers of a kind,
// checking the parent analysis too for cross-step references.
func (c *Context) artifactIdentifiers(s *store.Store, kind types.ArtifactKind) (map[string]bool, error) {
	out := make(map[string]bool)
	ids := []string{c.AnalysisID}
	if c.ParentAnalysisID != "" {
		ids = append(ids, c.ParentAnalysisID)
	}
	for _, analysisID := range ids {
		records, err := s.FetchArtifacts(analysisID, kind)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if rec.Identifier != "" {
				out[rec.Identifier] = true
			}
		}
	}
	return out, nil
}
