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
	register(prompts.MissionAnalyst, func(deps Deps) Agent {
		return &MissionAgent{BaseAgent: newBase(prompts.MissionAnalyst, deps)}
	})
}

// MissionAgent derives the mission statement: the problem framing everything
// downstream hangs off. Runs first and sequentially.
type MissionAgent struct {
	BaseAgent
}

var missionSchema = llm.Object(map[string]*llm.Schema{
	"purpose":           llm.String(),
	"method":            llm.String(),
	"goals":             llm.Array(llm.String()),
	"domain":            llm.String(),
	"criticality":       llm.String(),
	"operational_tempo": llm.String(),
	"key_capabilities":  llm.Array(llm.String()),
	"constraints":       llm.Array(llm.String()),
	"assumptions":       llm.Array(llm.String()),
}, "purpose", "method", "goals")

func (a *MissionAgent) Analyze(ctx context.Context, actx *Context) (*types.AgentResult, error) {
	res := a.newResult(actx)
	a.logActivity(actx, "started", "")

	user := "System description:\n" + actx.SystemDescription
	obj, err := a.generate(ctx, actx, user, missionSchema)
	if err != nil {
		return a.fail(actx, res, err), nil
	}

	mission, ok := decodeObject[types.Mission](map[string]any{"mission": obj}, "mission")
	if !ok {
		return a.fail(actx, res, fmt.Errorf("mission result did not decode")), nil
	}

	// The mission is the reference point for abstraction; flag drift here
	// rather than silently carrying it into every later phase.
	framing := strings.Join(append([]string{mission.Purpose, mission.Method}, mission.Goals...), " ")
	for _, kw := range FindImplementationKeywords(framing) {
		res.ValidationErrors = append(res.ValidationErrors,
			fmt.Sprintf("implementation keyword in mission: %s", kw))
	}
	for _, phrase := range FindPreventionLanguage(framing) {
		res.ValidationErrors = append(res.ValidationErrors,
			fmt.Sprintf("prevention language in mission: %s", phrase))
	}

	res.Data["mission"] = mission
	return a.finish(actx, res), nil
}

func (a *MissionAgent) Persist(actx *Context, result *types.AgentResult) error {
	mission, ok := result.Data["mission"].(types.Mission)
	if !ok {
		if mission, ok = decodeObject[types.Mission](result.Data, "mission"); !ok {
			return fmt.Errorf("mission data missing from result")
		}
	}
	return actx.Phase.InsertArtifact(actx.AnalysisID, types.KindMission, "", mission)
}
