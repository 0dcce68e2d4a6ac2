package agent

import (
	"context"
	"errors"
	"fmt"

	"stpasec/internal/llm"
	"stpasec/internal/prompts"
	"stpasec/internal/registry"
	"stpasec/internal/types"
)

func init() {
	register(prompts.ControlStructure, func(deps Deps) Agent {
		return &ControlStructureAgent{BaseAgent: newBase(prompts.ControlStructure, deps)}
	})
}

// ControlStructureAgent identifies the components of the control structure
// and the supervision hierarchy between controllers. It is the only agent
// that registers components; every later Step 2 agent validates against
// what it registered.
type ControlStructureAgent struct {
	BaseAgent
}

// HierarchyDraft is a supervision edge by component name, resolved to
// identifiers at Persist.
type HierarchyDraft struct {
	Parent       string `json:"parent"`
	Child        string `json:"child"`
	Relationship string `json:"relationship"`
}

var controlStructureSchema = llm.Object(map[string]*llm.Schema{
	"components": llm.Array(llm.Object(map[string]*llm.Schema{
		"kind":        llm.String("controller", "controlled_process", "dual_role"),
		"name":        llm.String(),
		"description": llm.String(),
		"sensor_only": llm.Boolean(),
	}, "kind", "name")),
	"hierarchy": llm.Array(llm.Object(map[string]*llm.Schema{
		"parent":       llm.String(),
		"child":        llm.String(),
		"relationship": llm.String("supervises", "coordinates", "delegates"),
	}, "parent", "child", "relationship")),
}, "components")

func (a *ControlStructureAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	prior, err := actx.priorContext(a.deps.Store,
		prompts.MissionAnalyst, prompts.HazardIdentification, prompts.SystemBoundaries)
	if err != nil {
		return a.fail(actx, res, err), nil
	}
	user := "System description:\n" + actx.SystemDescription + "\n\n" + prior

	obj, err := a.generate(ctx, actx, user, controlStructureSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	components := decodeSection[types.Component](obj, "components")
	if len(components) == 0 {
		return a.fail(actx, res, fmt.Errorf("no components identified")), nil
	}

	res.Data["components"] = components
	res.Data["hierarchy"] = decodeSection[HierarchyDraft](obj, "hierarchy")
	return a.finish(actx, res), nil
}

func (a *ControlStructureAgent) Persist(actx *Context, result *types.AgentResult) error {
	components := dataSlice[types.Component](result, "components")
	byName := make(map[string]*types.Component, len(components))
	for i := range components {
		c := &components[i]
		if c.Identifier == "" {
			c.Identifier = actx.Alloc.Next(prefixForKind(c.Kind))
		} else {
			actx.Alloc.Observe(c.Identifier)
		}
		c.Source = a.agentType

		if err := actx.Registry.Register(*c); err != nil {
			var v *registry.Violation
			if errors.As(err, &v) {
				result.ValidationErrors = append(result.ValidationErrors, v.Error())
				continue
			}
			return err
		}
		byName[normalizeKey(c.Name)] = c
		if err := actx.Phase.InsertArtifact(actx.AnalysisID, types.KindComponent, c.Identifier, *c); err != nil {
			return err
		}
	}
	result.Data["components"] = components

	for _, edge := range dataSlice[HierarchyDraft](result, "hierarchy") {
		parent, okP := byName[normalizeKey(edge.Parent)]
		child, okC := byName[normalizeKey(edge.Child)]
		if !okP || !okC {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("hierarchy cites unknown component: %q -> %q", edge.Parent, edge.Child))
			continue
		}
		if parent.Identifier == child.Identifier {
			result.ValidationErrors = append(result.ValidationErrors,
				fmt.Sprintf("hierarchy self-edge dropped: %s", parent.Identifier))
			continue
		}
		if err := actx.Registry.AddReference(parent.Identifier, child.Identifier); err != nil {
			result.ValidationErrors = append(result.ValidationErrors, err.Error())
			continue
		}
		h := types.ControlHierarchy{
			ParentID: parent.Identifier, ChildID: child.Identifier, Relationship: edge.Relationship,
		}
		if err := actx.Phase.InsertMapping(actx.AnalysisID, types.KindControlHierarchy, h.ParentID, h.ChildID, h); err != nil {
			return err
		}
	}
	return nil
}

func prefixForKind(kind types.ComponentKind) string {
	switch kind {
	case types.KindController:
		return types.PrefixController
	case types.KindControlledProcess:
		return types.PrefixProcess
	default:
		return types.PrefixDualRole
	}
}
