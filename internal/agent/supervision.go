package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/logging"
	"stpasec/internal/types"
)

// SupervisedAgent wraps another agent with one expert critique pass: when
// the inner result succeeds but carries validation errors, the LLM is asked
// to review the output once and the critique is attached as metadata. The
// wrapper never alters the inner result's data.
type SupervisedAgent struct {
	inner   Agent
	adapter *llm.Adapter
}

// Supervised decorates an agent with the critique pass.
func Supervised(inner Agent, adapter *llm.Adapter) Agent {
	return &SupervisedAgent{inner: inner, adapter: adapter}
}

func (s *SupervisedAgent) AgentType() string { return s.inner.AgentType() }

func (s *SupervisedAgent) ValidateAbstractionLevel(text string) bool {
	return s.inner.ValidateAbstractionLevel(text)
}

func (s *SupervisedAgent) Persist(actx *Context, result *types.AgentResult) error {
	return s.inner.Persist(actx, result)
}

func (s *SupervisedAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	result, err := s.inner.Analyze(ctx, actx)
	if err != nil || result == nil || !result.Success || len(result.ValidationErrors) == 0 {
		return result, err
	}

	critique, critErr := s.critique(ctx, actx, result)
	if critErr != nil {
		logging.L(logging.CategoryAgent).Debugw("supervision critique failed",
			"agent", s.inner.AgentType(), "error", critErr)
		return result, nil
	}
	if result.Metadata == nil {
		result.Metadata = make(map[string]any)
	}
	result.Metadata["supervision"] = critique
	return result, nil
}

func (s *SupervisedAgent) critique(ctx context.Context, actx *Context, result *types.AgentResult) (string, error) {
	payload, err := json.Marshal(result.Data)
	if err != nil {
		return "", err
	}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are an expert STPA-Sec reviewer. Critique the analysis " +
			"output below against the flagged problems. Be specific and brief: what should change, and why."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Output:\n%s\n\nFlagged problems:\n%v", payload, result.ValidationErrors)},
	}
	return s.adapter.Generate(ctx, messages, llm.Options{Temperature: 0.3},
		llm.CaptureMeta{Agent: s.inner.AgentType() + "_supervisor", Step: int(actx.Step), Style: actx.Style})
}
