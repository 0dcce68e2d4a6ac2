package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.FeedbackMechanism, func(deps Deps) Agent {
		return &FeedbackAgent{BaseAgent: newBase(prompts.FeedbackMechanism, deps)}
	})
}

// FeedbackAgent identifies the channels carrying state information from
// processes back to controllers. Runs in parallel with the trust-boundary
// agent.
type FeedbackAgent struct {
	BaseAgent
}

var feedbackSchema = llm.Object(map[string]*llm.Schema{
	"feedback_mechanisms": llm.Array(llm.Object(map[string]*llm.Schema{
		"source_process_id":    llm.String(),
		"target_controller_id": llm.String(),
		"information_type":     llm.String(),
		"timing":               llm.String(),
	}, "source_process_id", "target_controller_id", "information_type")),
}, "feedback_mechanisms")

func (a *FeedbackAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.ControlStructure, prompts.ControlActionMapping)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" +
		actx.Registry.PromptContext() + "\n" + prior

	obj, err := a.generate(ctx, actx, user, feedbackSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	feedbacks := decodeSection[types.FeedbackMechanism](obj, "feedback_mechanisms")
	if len(feedbacks) == 0 {
		return a.fail(actx, res, fmt.Errorf("no feedback mechanisms identified")), nil
	}

	res.Data["feedback_mechanisms"] = feedbacks
	return a.finish(actx, res), nil
}

func (a *FeedbackAgent) Persist(actx *Context, result *types.AgentResult) error {
	var kept []types.FeedbackMechanism
	for _, fb := range dataSlice[types.FeedbackMechanism](result, "feedback_mechanisms") {
		if !actx.Registry.Validate(fb.SourceProcessID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid process reference: %s", fb.SourceProcessID))
			continue
		}
		if !actx.Registry.Validate(fb.TargetControllerID) {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("Invalid controller reference: %s", fb.TargetControllerID))
			continue
		}

		if fb.Identifier == "" {
			fb.Identifier = actx.Alloc.Next(types.PrefixFeedback)
		} else {
			actx.Alloc.Observe(fb.Identifier)
		}
		if err := actx.Registry.AddReference(fb.SourceProcessID, fb.TargetControllerID); err != nil {
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindFeedback, fb.Identifier, fb); err != nil {
			return err
		}
		if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindFeedback, fb.SourceProcessID, fb.TargetControllerID,
			map[string]string{"feedback_id": fb.Identifier}); err != nil {
			return err
		}
		kept = append(kept, fb)
	}
	result.Data["feedback_mechanisms"] = kept
	return nil
}
