package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.SystemBoundaries, func(deps Deps) Agent {
		return &BoundaryAgent{BaseAgent: newBase(prompts.SystemBoundaries, deps)}
	})
}

// BoundaryAgent defines the boundaries that scope the analysis.
type BoundaryAgent struct {
	BaseAgent
}

var boundarySchema = llm.Object(map[string]*llm.Schema{
	"boundaries": llm.Array(llm.Object(map[string]*llm.Schema{
		"name": llm.String(),
		"type": llm.String("system_scope", "trust", "responsibility", "data_governance"),
		"elements": llm.Array(llm.Object(map[string]*llm.Schema{
			"name":     llm.String(),
			"position": llm.String("inside", "outside", "interface", "crossing"),
		}, "name", "position")),
	}, "name", "type", "elements")),
}, "boundaries")

func (a *BoundaryAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store,
		prompts.MissionAnalyst, prompts.LossIdentification,
		prompts.HazardIdentification, prompts.StakeholderAnalyst)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, boundarySchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	boundaries := decodeSection[types.SystemBoundary](obj, "boundaries")
	if len(boundaries) == 0 {
		return a.fail(actx, res, fmt.Errorf("no boundaries identified")), nil
	}

	res.Data["boundaries"] = boundaries
	return a.finish(actx, res), nil
}

func (a *BoundaryAgent) Persist(actx *Context, result *types.AgentResult) error {
	for _, b := range dataSlice[types.SystemBoundary](result, "boundaries") {
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindSystemBoundary, "", b); err != nil {
			return err
		}
	}
	return nil
}
