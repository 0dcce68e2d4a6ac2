package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/agent"
	"stpasec/internal/config"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func TestPhaseGraphs(t *testing.T) {
	step1 := phasesFor(types.Step1)
	require.Len(t, step1, 6)
	assert.Equal(t, "mission", step1[0].Name)
	assert.Equal(t, PhaseValidation, step1[5].Name)
	assert.Empty(t, step1[5].Agents, "validation is synthetic, no LLM agents")

	var parallel []string
	for _, p := range step1 {
		if p.Parallel {
			parallel = append(parallel, p.Name)
		}
	}
	assert.Equal(t, []string{"hazards_stakeholders"}, parallel)

	step2 := phasesFor(types.Step2)
	require.Len(t, step2, 5)
	assert.Equal(t, "control_structure", step2[0].Name)
	assert.True(t, step2[3].Parallel)
	assert.Equal(t, []string{prompts.FeedbackMechanism, prompts.TrustBoundaryAnalysis}, step2[3].Agents)
}

func TestPhaseGraphAgentsAllRegistered(t *testing.T) {
	known := make(map[string]bool)
	for _, at := range agent.Types() {
		known[at] = true
	}
	for _, step := range []types.Step{types.Step1, types.Step2} {
		for _, phase := range phasesFor(step) {
			for _, at := range phase.Agents {
				assert.True(t, known[at], "phase %s names unregistered agent %s", phase.Name, at)
			}
		}
	}
}

func TestStylesFor(t *testing.T) {
	// The mission statement is a singleton regardless of mode.
	for _, mode := range []config.ExecutionMode{config.ModeStandard, config.ModeEnhanced, config.ModeDreamTeam} {
		assert.Equal(t, []string{agent.StyleBalanced}, stylesFor(mode, prompts.MissionAnalyst), "mode %s", mode)
	}

	assert.Equal(t, []string{agent.StyleBalanced},
		stylesFor(config.ModeStandard, prompts.LossIdentification))

	assert.Equal(t, []string{agent.StyleIntuitive, agent.StyleTechnical},
		stylesFor(config.ModeEnhanced, prompts.LossIdentification))
	assert.Equal(t, []string{agent.StyleTechnical, agent.StyleCreative},
		stylesFor(config.ModeEnhanced, prompts.HazardIdentification))

	dream := stylesFor(config.ModeDreamTeam, prompts.LossIdentification)
	assert.Equal(t, agent.AllStyles, dream)

	// Returned slices are copies; callers must not mutate the tables.
	dream[0] = "mutated"
	assert.Equal(t, agent.AllStyles, stylesFor(config.ModeDreamTeam, prompts.LossIdentification))
}

func TestEnhancedStylesCoverEveryFanOutAgent(t *testing.T) {
	for _, step := range []types.Step{types.Step1, types.Step2} {
		for _, phase := range phasesFor(step) {
			for _, at := range phase.Agents {
				if at == prompts.MissionAnalyst {
					continue
				}
				pair, ok := enhancedStyles[at]
				require.True(t, ok, "agent %s has no enhanced style pair", at)
				assert.Len(t, pair, 2)
			}
		}
	}
}
