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
	register(prompts.HazardIdentification, func(deps Deps) Agent {
		return &HazardAgent{BaseAgent: newBase(prompts.HazardIdentification, deps)}
	})
}

// HazardAgent identifies hazardous system states and maps them onto the
// losses from the previous phase. Runs in parallel with the stakeholder
// analyst.
type HazardAgent struct {
	BaseAgent
}

// HazardLossRef is the per-hazard mapping detail before the hazard has an
// identifier.
type HazardLossRef struct {
	LossID             string `json:"loss_id"`
	Relationship       string `json:"relationship"`
	Rationale          string `json:"rationale,omitempty"`
	EnablingConditions string `json:"enabling_conditions,omitempty"`
}

// HazardDraft is a hazard plus its nested loss mappings as the model emits
// them.
type HazardDraft struct {
	types.Hazard
	LossMappings []HazardLossRef `json:"loss_mappings,omitempty"`
}

var hazardSchema = llm.Object(map[string]*llm.Schema{
	"hazards": llm.Array(llm.Object(map[string]*llm.Schema{
		"description":       llm.String(),
		"category":          llm.String("integrity", "confidentiality", "availability", "capability"),
		"affected_property": llm.String(),
		"loss_ids":          llm.Array(llm.String()),
	}, "description", "category", "loss_ids")),
}, "hazards")

func (a *HazardAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store, prompts.MissionAnalyst, prompts.LossIdentification)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, hazardSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	hazards := decodeSection[HazardDraft](obj, "hazards")
	if len(hazards) == 0 {
		return a.fail(actx, res, fmt.Errorf("no hazards identified")), nil
	}
	for _, h := range hazards {
		lower := strings.ToLower(h.Description)
		// Hazards are states; absence phrasing ("without X") is a missing
		// defense in disguise.
		for _, phrase := range []string{"without", "missing", "lack of"} {
			if strings.Contains(lower, phrase) {
				res.ValidationErrors = append(res.ValidationErrors,
					fmt.Sprintf("hazard phrased as missing defense: %q", h.Description))
				break
			}
		}
	}

	res.Data["hazards"] = hazards
	return a.finish(actx, res), nil
}

func (a *HazardAgent) Persist(actx *Context, result *types.AgentResult) error {
	knownLosses, err := actx.artifactIdentifiers(a.deps.Store, types.KindLoss)
	if err != nil {
		return err
	}

	hazards := dataSlice[HazardDraft](result, "hazards")
	for i := range hazards {
		h := &hazards[i]
		if h.Identifier == "" {
			h.Identifier = actx.Alloc.Next(types.PrefixHazard)
		} else {
			actx.Alloc.Observe(h.Identifier)
		}

		valid := h.LossIDs[:0]
		for _, lossID := range h.LossIDs {
			if !knownLosses[lossID] {
				result.ValidationErrors = append(result.ValidationErrors,
					fmt.Sprintf("Invalid loss reference: %s", lossID))
				continue
			}
			valid = append(valid, lossID)
		}
		h.LossIDs = valid

		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindHazard, h.Identifier, h.Hazard); err != nil {
			return err
		}

		mapped := make(map[string]bool)
		for _, ref := range h.LossMappings {
			if !knownLosses[ref.LossID] {
				continue
			}
			mapped[ref.LossID] = true
			m := types.HazardLossMapping{
				HazardID: h.Identifier, LossID: ref.LossID,
				Relationship: ref.Relationship, Rationale: ref.Rationale,
				EnablingConditions: ref.EnablingConditions,
			}
			if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindHazardLossMap, h.Identifier, ref.LossID, m); err != nil {
				return err
			}
		}
		// Cited losses without a detailed mapping still get a direct edge so
		// reference closure holds.
		for _, lossID := range h.LossIDs {
			if mapped[lossID] {
				continue
			}
			m := types.HazardLossMapping{HazardID: h.Identifier, LossID: lossID, Relationship: "direct"}
			if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindHazardLossMap, h.Identifier, lossID, m); err != nil {
				return err
			}
		}
	}
	result.Data["hazards"] = hazards
	return nil
}
