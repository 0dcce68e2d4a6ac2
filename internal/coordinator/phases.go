package coordinator

import (
	"stpasec/internal/agent"
	"stpasec/internal/config"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

// Phase is one stage of a step's static phase graph. Agents of a parallel
// phase run concurrently; otherwise they run in declaration order.
type Phase struct {
	Name     string
	Agents   []string
	Parallel bool
}

// PhaseValidation is the synthetic final phase of Step 1: it runs the
// validator, not an LLM agent.
const PhaseValidation = "validation"

// step1Phases is the Step 1 graph: framing flows mission -> losses ->
// (hazards ∥ stakeholders) -> constraints -> boundaries -> validation.
var step1Phases = []Phase{
	{Name: "mission", Agents: []string{prompts.MissionAnalyst}},
	{Name: "losses", Agents: []string{prompts.LossIdentification}},
	{Name: "hazards_stakeholders", Agents: []string{prompts.HazardIdentification, prompts.StakeholderAnalyst}, Parallel: true},
	{Name: "constraints", Agents: []string{prompts.SecurityConstraints}},
	{Name: "boundaries", Agents: []string{prompts.SystemBoundaries}},
	{Name: PhaseValidation},
}

// step2Phases is the Step 2 graph: structure -> actions -> contexts ->
// (feedback ∥ trust boundaries) -> process models.
var step2Phases = []Phase{
	{Name: "control_structure", Agents: []string{prompts.ControlStructure}},
	{Name: "control_actions", Agents: []string{prompts.ControlActionMapping}},
	{Name: "contexts", Agents: []string{prompts.StateContextAnalysis}},
	{Name: "feedback_trust", Agents: []string{prompts.FeedbackMechanism, prompts.TrustBoundaryAnalysis}, Parallel: true},
	{Name: "process_models", Agents: []string{prompts.ProcessModelAnalyst}},
}

// phasesFor returns the phase graph for a step.
func phasesFor(step types.Step) []Phase {
	if step == types.Step2 {
		return step2Phases
	}
	return step1Phases
}

// enhancedStyles maps agent type to its task-appropriate style pair for
// enhanced mode.
var enhancedStyles = map[string][]string{
	prompts.LossIdentification:   {agent.StyleIntuitive, agent.StyleTechnical},
	prompts.HazardIdentification: {agent.StyleTechnical, agent.StyleCreative},
	prompts.StakeholderAnalyst:   {agent.StyleIntuitive, agent.StyleSystematic},
	prompts.SecurityConstraints:  {agent.StyleTechnical, agent.StyleSystematic},
	prompts.SystemBoundaries:     {agent.StyleSystematic, agent.StyleCreative},
	prompts.ControlStructure:     {agent.StyleTechnical, agent.StyleSystematic},
	prompts.ControlActionMapping: {agent.StyleTechnical, agent.StyleSystematic},
	prompts.StateContextAnalysis: {agent.StyleTechnical, agent.StyleCreative},
	prompts.FeedbackMechanism:    {agent.StyleTechnical, agent.StyleSystematic},
	prompts.TrustBoundaryAnalysis: {agent.StyleTechnical, agent.StyleCreative},
	prompts.ProcessModelAnalyst:  {agent.StyleTechnical, agent.StyleSystematic},
}

// stylesFor resolves the cognitive-style set for one agent under an
// execution mode. The mission statement is a singleton, so its agent always
// runs a single balanced pass regardless of mode.
func stylesFor(mode config.ExecutionMode, agentType string) []string {
	if agentType == prompts.MissionAnalyst {
		return []string{agent.StyleBalanced}
	}
	switch mode {
	case config.ModeDreamTeam:
		return append([]string(nil), agent.AllStyles...)
	case config.ModeEnhanced:
		if pair, ok := enhancedStyles[agentType]; ok {
			return append([]string(nil), pair...)
		}
		return []string{agent.StyleBalanced}
	default:
		return []string{agent.StyleBalanced}
	}
}
