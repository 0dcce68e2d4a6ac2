package agent

import (
	"context"
	"fmt"
	"strings"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.LossIdentification, func(deps Deps) Agent {
		return &LossAgent{BaseAgent: newBase(prompts.LossIdentification, deps)}
	})
}

// LossAgent identifies unacceptable mission-level outcomes and the
// dependencies between them.
type LossAgent struct {
	BaseAgent
}

// LossDependencyDraft relates losses by description before identifiers
// exist; Persist resolves descriptions to allocated L-n ids.
type LossDependencyDraft struct {
	Primary   string `json:"primary"`
	Dependent string `json:"dependent"`
	Type      string `json:"type"`
	Strength  string `json:"strength,omitempty"`
	Timing    string `json:"timing,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

var lossSchema = llm.Object(map[string]*llm.Schema{
	"losses": llm.Array(llm.Object(map[string]*llm.Schema{
		"description":    llm.String(),
		"category":       llm.String("financial", "regulatory", "privacy", "reputation", "mission"),
		"mission_impact": llm.String(),
	}, "description", "category")),
	"dependencies": llm.Array(llm.Object(map[string]*llm.Schema{
		"primary":   llm.String(),
		"dependent": llm.String(),
		"type":      llm.String("triggers", "enables", "amplifies"),
	}, "primary", "dependent", "type")),
}, "losses")

func (a *LossAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.MissionAnalyst)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, lossSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	losses := decodeSection[types.Loss](obj, "losses")
	if len(losses) == 0 {
		return a.fail(actx, res, fmt.Errorf("no losses identified")), nil
	}
	for _, l := range losses {
		// Losses describe outcomes; attack vocabulary means the model
		// slipped into mechanism.
		for _, word := range []string{"attack", "exploit", "breach", "hack"} {
			if strings.Contains(strings.ToLower(l.Description), word) {
				res.ValidationErrors = append(res.ValidationErrors,
					fmt.Sprintf("loss describes a mechanism, not an outcome: %q", l.Description))
				break
			}
		}
	}

	res.Data["losses"] = losses
	res.Data["dependencies"] = decodeSection[LossDependencyDraft](obj, "dependencies")
	return a.finish(actx, res), nil
}

func (a *LossAgent) Persist(actx *Context, result *types.AgentResult) error {
	losses := dataSlice[types.Loss](result, "losses")
	byDescription := make(map[string]string, len(losses))
	for i := range losses {
		if losses[i].Identifier == "" {
			losses[i].Identifier = actx.Alloc.Next(types.PrefixLoss)
		} else {
			actx.Alloc.Observe(losses[i].Identifier)
		}
		byDescription[normalizeKey(losses[i].Description)] = losses[i].Identifier
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindLoss, losses[i].Identifier, losses[i]); err != nil {
			return err
		}
	}
	result.Data["losses"] = losses

	for _, dep := range dataSlice[LossDependencyDraft](result, "dependencies") {
		primaryID, okP := byDescription[normalizeKey(dep.Primary)]
		dependentID, okD := byDescription[normalizeKey(dep.Dependent)]
		if !okP || !okD {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("loss dependency cites unknown loss: %q -> %q", dep.Primary, dep.Dependent))
			continue
		}
		ld := types.LossDependency{
			PrimaryID: primaryID, DependentID: dependentID,
			Type: dep.Type, Strength: dep.Strength, Timing: dep.Timing, Rationale: dep.Rationale,
		}
		if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindLossDependency, primaryID, dependentID, ld); err != nil {
			return err
		}
	}
	return nil
}

// normalizeKey canonicalizes free-text keys the model uses to refer back to
// its own items.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
