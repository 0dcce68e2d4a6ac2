package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.ProcessModelAnalyst, func(deps Deps) Agent {
		return &ProcessModelAgent{BaseAgent: newBase(prompts.ProcessModelAnalyst, deps)}
	})
}

// ProcessModelAgent describes each controller's internal beliefs about what
// it controls. Runs last: it consumes the full control structure.
type ProcessModelAgent struct {
	BaseAgent
}

var processModelSchema = llm.Object(map[string]*llm.Schema{
	"process_models": llm.Array(llm.Object(map[string]*llm.Schema{
		"controller_id": llm.String(),
		"state_variables": llm.Array(llm.Object(map[string]*llm.Schema{
			"name":          llm.String(),
			"update_source": llm.String(),
		}, "name")),
		"assumptions":          llm.Array(llm.String()),
		"potential_mismatches": llm.Array(llm.String()),
	}, "controller_id", "state_variables")),
}, "process_models")

func (a *ProcessModelAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store,
		prompts.ControlStructure, prompts.ControlActionMapping, prompts.FeedbackMechanism)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" +
		actx.Registry.PromptContext() + "\n" + prior

	obj, err := a.generate(ctx, actx, user, processModelSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	models := decodeSection[types.ProcessModel](obj, "process_models")
	if len(models) == 0 {
		return a.fail(actx, res, fmt.Errorf("no process models identified")), nil
	}

	res.Data["process_models"] = models
	return a.finish(actx, res), nil
}

func (a *ProcessModelAgent) Persist(actx *Context, result *types.AgentResult) error {
	var kept []types.ProcessModel
	for _, pm := range dataSlice[types.ProcessModel](result, "process_models") {
		c, ok := actx.Registry.Get(pm.ControllerID)
		if !ok || c.Kind == types.KindControlledProcess {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid controller reference: %s", pm.ControllerID))
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindProcessModel, "", pm); err != nil {
			return err
		}
		kept = append(kept, pm)
	}
	result.Data["process_models"] = kept
	return nil
}
