package agent

import (
	"context"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func init() {
	register(prompts.SecurityConstraints, func(deps Deps) Agent {
		return &ConstraintAgent{BaseAgent: newBase(prompts.SecurityConstraints, deps)}
	})
}

// ConstraintAgent derives security constraints from the identified hazards.
type ConstraintAgent struct {
	BaseAgent
}

// ConstraintHazardRef is the per-constraint mapping detail before the
// constraint has an identifier.
type ConstraintHazardRef struct {
	HazardID     string `json:"hazard_id"`
	Relationship string `json:"relationship"`
}

// ConstraintDraft is a constraint plus its nested hazard mappings as the
// model emits them.
type ConstraintDraft struct {
	types.SecurityConstraint
	HazardMappings []ConstraintHazardRef `json:"hazard_mappings,omitempty"`
}

var constraintSchema = llm.Object(map[string]*llm.Schema{
	"constraints": llm.Array(llm.Object(map[string]*llm.Schema{
		"statement":         llm.String(),
		"type":              llm.String("preventive", "detective", "corrective", "compensating"),
		"enforcement_level": llm.String("mandatory", "recommended"),
		"hazard_ids":        llm.Array(llm.String()),
	}, "statement", "type", "hazard_ids")),
}, "constraints")

func (a *ConstraintAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store,
		prompts.MissionAnalyst, prompts.LossIdentification, prompts.HazardIdentification)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, constraintSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	constraints := decodeSection[ConstraintDraft](obj, "constraints")
	if len(constraints) == 0 {
		return a.fail(actx, res, fmt.Errorf("no constraints identified")), nil
	}
	for _, c := range constraints {
		// Constraints state objectives; naming a technology pins the how.
		for _, kw := range FindImplementationKeywords(c.Statement) {
			res.ValidationErrors = append(res.ValidationErrors,
				fmt.Sprintf("implementation keyword in constraint: %s", kw))
		}
	}

	res.Data["constraints"] = constraints
	return a.finish(actx, res), nil
}

func (a *ConstraintAgent) Persist(actx *Context, result *types.AgentResult) error {
	knownHazards, err := actx.artifactIdentifiers(a.deps.Store, types.KindHazard)
	if err != nil {
		return err
	}

	constraints := dataSlice[ConstraintDraft](result, "constraints")
	for i := range constraints {
		c := &constraints[i]
		if c.Identifier == "" {
			c.Identifier = actx.Alloc.Next(types.PrefixConstraint)
		} else {
			actx.Alloc.Observe(c.Identifier)
		}

		valid := c.HazardIDs[:0]
		for _, hazardID := range c.HazardIDs {
			if !knownHazards[hazardID] {
				result.ValidationErrors = append(result.ValidationErrors,
					fmt.Sprintf("Invalid hazard reference: %s", hazardID))
				continue
			}
			valid = append(valid, hazardID)
		}
		c.HazardIDs = valid

		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindConstraint, c.Identifier, c.SecurityConstraint); err != nil {
			return err
		}

		mapped := make(map[string]bool)
		for _, ref := range c.HazardMappings {
			if !knownHazards[ref.HazardID] {
				continue
			}
			mapped[ref.HazardID] = true
			m := types.ConstraintHazardMapping{
				ConstraintID: c.Identifier, HazardID: ref.HazardID, Relationship: ref.Relationship,
			}
			if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindConstraintMap, c.Identifier, ref.HazardID, m); err != nil {
				return err
			}
		}
		for _, hazardID := range c.HazardIDs {
			if mapped[hazardID] {
				continue
			}
			m := types.ConstraintHazardMapping{ConstraintID: c.Identifier, HazardID: hazardID, Relationship: "reduces"}
			if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindConstraintMap, c.Identifier, hazardID, m); err != nil {
				return err
			}
		}
	}
	result.Data["constraints"] = constraints
	return nil
}
