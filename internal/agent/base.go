package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"stpasec/internal/llm"
	"stpasec/internal/logging"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

// BaseAgent supplies the shared behavior concrete agents embed: prompt
// assembly with style prefix, structured LLM dispatch, activity logging,
// and the abstraction filter.
type BaseAgent struct {
	deps      Deps
	agentType string
}

func newBase(agentType string, deps Deps) BaseAgent {
	return BaseAgent{deps: deps, agentType: agentType}
}

// AgentType returns the agent's phase-graph name.
func (b *BaseAgent) AgentType() string { return b.agentType }

// ValidateAbstractionLevel reports whether text is free of implementation
// terms and prevention phrasing.
func (b *BaseAgent) ValidateAbstractionLevel(text string) bool {
	return len(FindImplementationKeywords(text)) == 0 && len(FindPreventionLanguage(text)) == 0
}

// template resolves the agent's system prompt, honoring overrides.
func (b *BaseAgent) template() string {
	if b.deps.Prompts != nil {
		return b.deps.Prompts.Template(b.agentType)
	}
	return prompts.Default(b.agentType)
}

// messages assembles the call: style stance plus base template as system,
// the composed analysis context as user.
func (b *BaseAgent) messages(actx *Context, userContent string) []llm.Message {
	system := StylePrefix(actx.Style) + "\n\n" + b.template()
	return []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: userContent},
	}
}

// newResult starts a result record for this run.
func (b *BaseAgent) newResult(actx *Context) *types.AgentResult {
	style := actx.Style
	if style == "" {
		style = StyleBalanced
	}
	return &types.AgentResult{
		AgentType:      b.agentType,
		AnalysisID:     actx.AnalysisID,
		CognitiveStyle: style,
		StartedAt:      time.Now(),
		Data:           make(map[string]any),
	}
}

// generate performs one structured LLM call and returns the decoded object.
func (b *BaseAgent) generate(ctx context.Context, actx *Context, userContent string, schema *llm.Schema) (map[string]any, error) {
	value, err := b.deps.Adapter.GenerateStructured(ctx, b.messages(actx, userContent), schema, llm.Options{
		Temperature: 0.7,
	}, llm.CaptureMeta{Agent: b.agentType, Step: int(actx.Step), Style: actx.Style})
	if err != nil {
		return nil, err
	}
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, &llm.Failure{Kind: llm.FailSchema, Attempts: 1,
			LastErr: fmt.Errorf("expected object result, got %T", value)}
	}
	return obj, nil
}

// logActivity queues one activity row on the phase.
func (b *BaseAgent) logActivity(actx *Context, activity, detail string) {
	if actx.Phase == nil {
		return
	}
	if err := actx.Phase.LogActivity(types.ActivityEntry{
		AnalysisID: actx.AnalysisID,
		AgentType:  b.agentType,
		Activity:   activity,
		Detail:     detail,
	}); err != nil {
		logging.L(logging.CategoryAgent).Warnw("activity log failed", "agent", b.agentType, "error", err)
	}
}

// fail finalizes a result on the error path. The error is recorded on the
// result and in the activity log; callers return the result, not the error,
// so phase execution continues.
func (b *BaseAgent) fail(actx *Context, res *types.AgentResult, err error) *types.AgentResult {
	res.Success = false
	res.Error = err.Error()
	res.CompletedAt = time.Now()
	b.logActivity(actx, "failed", err.Error())
	logging.L(logging.CategoryAgent).Warnw("agent failed", "agent", b.agentType, "style", actx.Style, "error", err)
	return res
}

// finish finalizes a successful result.
func (b *BaseAgent) finish(actx *Context, res *types.AgentResult) *types.AgentResult {
	res.Success = true
	res.CompletedAt = time.Now()
	b.logActivity(actx, "completed", "")
	return res
}

// decodeSection re-decodes one key of a structured LLM result into a typed
// slice. Items that cannot decode are dropped; the LLM occasionally mixes a
// malformed element into an otherwise good array.
func decodeSection[T any](obj map[string]any, key string) []T {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]T, 0, len(arr))
	for _, item := range arr {
		payload, err := json.Marshal(item)
		if err != nil {
			continue
		}
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			logging.L(logging.CategoryAgent).Debugw("dropping undecodable item", "key", key, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// decodeObject re-decodes one key into a typed struct.
func decodeObject[T any](obj map[string]any, key string) (T, bool) {
	var v T
	raw, ok := obj[key]
	if !ok {
		return v, false
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, false
	}
	return v, true
}

// dataSlice reads a typed slice back out of a result's data map. Synthesis
// and Persist exchange typed slices through AgentResult.Data; when the
// result crossed a serialization boundary the value may instead be []any,
// so fall back to re-decoding.
func dataSlice[T any](res *types.AgentResult, key string) []T {
	raw, ok := res.Data[key]
	if !ok {
		return nil
	}
	if typed, ok := raw.([]T); ok {
		return typed
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}
