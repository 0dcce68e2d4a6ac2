package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.TrustBoundaryAnalysis, func(deps Deps) Agent {
		return &TrustBoundaryAgent{BaseAgent: newBase(prompts.TrustBoundaryAnalysis, deps)}
	})
}

// TrustBoundaryAgent identifies the component pairs at which trust changes.
// Runs in parallel with the feedback agent.
type TrustBoundaryAgent struct {
	BaseAgent
}

var trustBoundarySchema = llm.Object(map[string]*llm.Schema{
	"trust_boundaries": llm.Array(llm.Object(map[string]*llm.Schema{
		"component_a_id": llm.String(),
		"component_b_id": llm.String(),
		"type":           llm.String("network", "organizational", "privilege", "data_classification"),
		"direction":      llm.String(),
	}, "component_a_id", "component_b_id", "type")),
}, "trust_boundaries")

func (a *TrustBoundaryAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.ControlStructure, prompts.SystemBoundaries)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" +
		actx.Registry.PromptContext() + "\n" + prior

	obj, err := a.generate(ctx, actx, user, trustBoundarySchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	boundaries := decodeSection[types.TrustBoundary](obj, "trust_boundaries")
	if len(boundaries) == 0 {
		return a.fail(actx, res, fmt.Errorf("no trust boundaries identified")), nil
	}

	res.Data["trust_boundaries"] = boundaries
	return a.finish(actx, res), nil
}

func (a *TrustBoundaryAgent) Persist(actx *Context, result *types.AgentResult) error {
	var kept []types.TrustBoundary
	for _, tb := range dataSlice[types.TrustBoundary](result, "trust_boundaries") {
		if !actx.Registry.Validate(tb.ComponentAID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid component reference: %s", tb.ComponentAID))
			continue
		}
		if !actx.Registry.Validate(tb.ComponentBID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid component reference: %s", tb.ComponentBID))
			continue
		}

		if tb.Identifier == "" {
			tb.Identifier = actx.Alloc.Next(types.PrefixTrustBoundary)
		} else {
			actx.Alloc.Observe(tb.Identifier)
		}
		if err := actx.Registry.AddReference(tb.ComponentAID, tb.ComponentBID); err != nil {
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindTrustBoundary, tb.Identifier, tb); err != nil {
			return err
		}
		if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindTrustBoundary, tb.ComponentAID, tb.ComponentBID,
			map[string]string{"trust_boundary_id": tb.Identifier}); err != nil {
			return err
		}
		kept = append(kept, tb)
	}
	result.Data["trust_boundaries"] = kept
	return nil
}
