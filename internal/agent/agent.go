// Package agent implements the analysis agents: the framework (cognitive
// styles, prior-result loading, identifier allocation, abstraction
// filtering) and the twelve concrete Step 1 / Step 2 agents.
//
// Agents are stateless between runs. Analyze performs the LLM interaction
// and returns typed data in the result; Persist writes the (possibly
// synthesized) data through the persistence gateway and the component
// registry. The split exists because cognitive-style fan-out merges several
// Analyze outputs into one artifact set before anything is written.
package agent

import (
	"context"
	"fmt"
	"sort"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

// Agent is the capability contract every concrete agent implements.
type Agent interface {
	// AgentType returns the agent's phase-graph name.
	AgentType() string
	// Analyze runs the LLM interaction and returns a typed result. Non-fatal
	// problems are recorded on the result, not returned as errors.
	Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error)
	// Persist writes the result's artifacts through the phase handle,
	// assigning identifiers and validating references. Reference violations
	// drop the offending artifact and accumulate on the result.
	Persist(actx *Context, result *types.AgentResult) error
	// ValidateAbstractionLevel reports whether text stays at mission level.
	ValidateAbstractionLevel(text string) bool
}

// Deps carries the shared collaborators injected into every agent.
type Deps struct {
	Adapter *llm.Adapter
	Store   *store.Store
	Prompts *prompts.Loader
}

// Error wraps an agent failure with its type, for the coordinator's log.
type Error struct {
	AgentType string
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.AgentType, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Constructor builds an agent from its dependencies.
type Constructor func(deps Deps) Agent

var constructors = map[string]Constructor{}

// register adds a constructor to the compile-time registry. Called from
// each agent file's init.
func register(agentType string, c Constructor) {
	if _, dup := constructors[agentType]; dup {
		panic("duplicate agent constructor: " + agentType)
	}
	constructors[agentType] = c
}

// New constructs the agent for a type.
func New(agentType string, deps Deps) (Agent, error) {
	c, ok := constructors[agentType]
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", agentType)
	}
	return c(deps), nil
}

// Types returns the registered agent types, sorted.
func Types() []string {
	out := make([]string, 0, len(constructors))
	for t := range constructors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
