package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.StateContextAnalysis, func(deps Deps) Agent {
		return &ControlContextAgent{BaseAgent: newBase(prompts.StateContextAnalysis, deps)}
	})
}

// ControlContextAgent describes the execution context of each control
// action and the system's operational modes and transitions.
type ControlContextAgent struct {
	BaseAgent
}

var controlContextSchema = llm.Object(map[string]*llm.Schema{
	"contexts": llm.Array(llm.Object(map[string]*llm.Schema{
		"control_action_id": llm.String(),
		"triggers":          llm.Array(llm.String()),
		"preconditions":     llm.Array(llm.String()),
		"timing":            llm.String(),
	}, "control_action_id")),
	"modes": llm.Array(llm.Object(map[string]*llm.Schema{
		"name":        llm.String(),
		"description": llm.String(),
	}, "name")),
	"transitions": llm.Array(llm.Object(map[string]*llm.Schema{
		"from_mode": llm.String(),
		"to_mode":   llm.String(),
		"trigger":   llm.String(),
	}, "from_mode", "to_mode")),
}, "contexts")

func (a *ControlContextAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.ControlStructure, prompts.ControlActionMapping)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" +
		actx.Registry.PromptContext() + "\n" + prior

	obj, err := a.generate(ctx, actx, user, controlContextSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	contexts := decodeSection[types.ControlContext](obj, "contexts")
	if len(contexts) == 0 {
		return a.fail(actx, res, fmt.Errorf("no control contexts identified")), nil
	}

	res.Data["contexts"] = contexts
	res.Data["modes"] = decodeSection[types.OperationalMode](obj, "modes")
	res.Data["transitions"] = decodeSection[types.ModeTransition](obj, "transitions")
	return a.finish(actx, res), nil
}

func (a *ControlContextAgent) Persist(actx *Context, result *types.AgentResult) error {
	knownActions, err := actx.artifactIdentifiers(a.deps.Store, types.KindControlAction)
	if err != nil {
		return err
	}

	var kept []types.ControlContext
	for _, cc := range dataSlice[types.ControlContext](result, "contexts") {
		if !knownActions[cc.ControlActionID] {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid control action reference: %s", cc.ControlActionID))
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindControlContext, "", cc); err != nil {
			return err
		}
		kept = append(kept, cc)
	}
	result.Data["contexts"] = kept

	modeNames := make(map[string]bool)
	for _, m := range dataSlice[types.OperationalMode](result, "modes") {
		modeNames[normalizeKey(m.Name)] = true
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindOperationalMode, "", m); err != nil {
			return err
		}
	}
	for _, t := range dataSlice[types.ModeTransition](result, "transitions") {
		if !modeNames[normalizeKey(t.FromMode)] || !modeNames[normalizeKey(t.ToMode)] {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("mode transition cites unknown mode: %q -> %q", t.FromMode, t.ToMode))
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindModeTransition, "", t); err != nil {
			return err
		}
	}
	return nil
}
