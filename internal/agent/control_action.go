package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.ControlActionMapping, func(deps Deps) Agent {
		return &ControlActionAgent{BaseAgent: newBase(prompts.ControlActionMapping, deps)}
	})
}

// ControlActionAgent maps the commands controllers issue to the processes
// they control. Every reference is checked against the registry; an action
// citing an unregistered component is dropped, not persisted.
type ControlActionAgent struct {
	BaseAgent
}

var controlActionSchema = llm.Object(map[string]*llm.Schema{
	"control_actions": llm.Array(llm.Object(map[string]*llm.Schema{
		"controller_id":         llm.String(),
		"controlled_process_id": llm.String(),
		"name":                  llm.String(),
		"description":           llm.String(),
	}, "controller_id", "controlled_process_id", "name")),
}, "control_actions")

func (a *ControlActionAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.ControlStructure)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" +
		actx.Registry.PromptContext() + "\n" + prior

	obj, err := a.generate(ctx, actx, user, controlActionSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	actions := decodeSection[types.ControlAction](obj, "control_actions")
	if len(actions) == 0 {
		return a.fail(actx, res, fmt.Errorf("no control actions identified")), nil
	}

	res.Data["control_actions"] = actions
	return a.finish(actx, res), nil
}

func (a *ControlActionAgent) Persist(actx *Context, result *types.AgentResult) error {
	var kept []types.ControlAction
	for _, ca := range dataSlice[types.ControlAction](result, "control_actions") {
		if !actx.Registry.Validate(ca.ControllerID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid controller reference: %s", ca.ControllerID))
			continue
		}
		if !actx.Registry.Validate(ca.ControlledProcessID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid process reference: %s", ca.ControlledProcessID))
			continue
		}

		if ca.Identifier == "" {
			ca.Identifier = actx.Alloc.Next(types.PrefixControlAction)
		} else {
			actx.Alloc.Observe(ca.Identifier)
		}
		if err := actx.Registry.AddReference(ca.ControllerID, ca.ControlledProcessID); err != nil {
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindControlAction, ca.Identifier, ca); err != nil {
			return err
		}
		if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindControlAction, ca.ControllerID, ca.ControlledProcessID,
			map[string]string{"control_action_id": ca.Identifier}); err != nil {
			return err
		}
		kept = append(kept, ca)
	}
	result.Data["control_actions"] = kept
	return nil
}
