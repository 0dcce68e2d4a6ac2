package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.StakeholderAnalyst, func(deps Deps) Agent {
		return &StakeholderAgent{BaseAgent: newBase(prompts.StakeholderAnalyst, deps)}
	})
}

// StakeholderAgent identifies stakeholders and adversary classes. Runs in
// parallel with hazard identification; both only read the loss phase.
type StakeholderAgent struct {
	BaseAgent
}

var stakeholderSchema = llm.Object(map[string]*llm.Schema{
	"stakeholders": llm.Array(llm.Object(map[string]*llm.Schema{
		"name":          llm.String(),
		"type":          llm.String(),
		"loss_exposure": llm.Array(llm.String()),
	}, "name", "type")),
	"adversaries": llm.Array(llm.Object(map[string]*llm.Schema{
		"class":      llm.String("nation_state", "organized_crime", "insider", "hacktivist", "opportunist"),
		"profile":    llm.String(),
		"capability": llm.String(),
	}, "class")),
}, "stakeholders", "adversaries")

func (a *StakeholderAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.MissionAnalyst, prompts.LossIdentification)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, stakeholderSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	stakeholders := decodeSection[types.Stakeholder](obj, "stakeholders")
	adversaries := decodeSection[types.Adversary](obj, "adversaries")
	if len(stakeholders) == 0 && len(adversaries) == 0 {
		return a.fail(actx, res, fmt.Errorf("no stakeholders or adversaries identified")), nil
	}

	res.Data["stakeholders"] = stakeholders
	res.Data["adversaries"] = adversaries
	return a.finish(actx, res), nil
}

func (a *StakeholderAgent) Persist(actx *Context, result *types.AgentResult) error {
	knownLosses, err := actx.artifactIdentifiers(a.deps.Store, types.KindLoss)
	if err != nil {
		return err
	}

	stakeholders := dataSlice[types.Stakeholder](result, "stakeholders")
	for i := range stakeholders {
		s := &stakeholders[i]
		valid := s.LossExposure[:0]
		for _, lossID := range s.LossExposure {
			if !knownLosses[lossID] {
				result.ValidationErrors = append(result.ValidationErrors,
					fmt.Sprintf("Invalid loss reference: %s", lossID))
				continue
			}
			valid = append(valid, lossID)
		}
		s.LossExposure = valid
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindStakeholder, "", *s); err != nil {
			return err
		}
	}
	result.Data["stakeholders"] = stakeholders

	for _, adv := range dataSlice[types.Adversary](result, "adversaries") {
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindAdversary, "", adv); err != nil {
			return err
		}
	}
	return nil
}
