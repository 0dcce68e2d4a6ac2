package coordinator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/agent"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

func lossVariant(style string, losses ...types.Loss) *types.AgentResult {
	return &types.AgentResult{
		AgentType:      prompts.LossIdentification,
		AnalysisID:     "a1",
		CognitiveStyle: style,
		Success:        true,
		Data:           map[string]any{"losses": losses},
	}
}

func TestSynthesizeSingleVariant(t *testing.T) {
	merged := Synthesize(prompts.LossIdentification, []*types.AgentResult{
		lossVariant(agent.StyleBalanced,
			types.Loss{Description: "Customer funds are stolen", Category: types.LossFinancial}),
	})

	require.True(t, merged.Success)
	assert.Equal(t, []string{agent.StyleBalanced}, merged.StylesUsed)

	losses := merged.Data["losses"].([]types.Loss)
	require.Len(t, losses, 1)
	require.NotNil(t, losses[0].Provenance)
	assert.Equal(t, []string{agent.StyleBalanced}, losses[0].Provenance.FoundByStyles)
	assert.Equal(t, "medium", losses[0].Provenance.Confidence, "single style yields medium confidence")

	require.NotNil(t, merged.Synthesis)
	assert.Equal(t, 1, merged.Synthesis.TotalUnique)
	assert.Zero(t, merged.Synthesis.ConsensusItems)
}

func TestSynthesizeConsensusAcrossStyles(t *testing.T) {
	variants := []*types.AgentResult{
		lossVariant(agent.StyleIntuitive,
			types.Loss{Description: "Customer funds are stolen", Category: types.LossFinancial},
			types.Loss{Description: "Reputation is damaged", Category: types.LossReputation}),
		lossVariant(agent.StyleTechnical,
			// Same finding modulo case and whitespace: identity keys normalize both.
			types.Loss{Description: "customer  funds are STOLEN", Category: types.LossFinancial,
				MissionImpact: "direct monetary harm"},
			types.Loss{Description: "Regulator imposes a fine", Category: types.LossRegulatory}),
	}

	merged := Synthesize(prompts.LossIdentification, variants)
	require.True(t, merged.Success)
	assert.Equal(t, []string{agent.StyleIntuitive, agent.StyleTechnical}, merged.StylesUsed)

	losses := merged.Data["losses"].([]types.Loss)
	require.Len(t, losses, 3)

	byDesc := make(map[string]types.Loss, len(losses))
	for _, l := range losses {
		byDesc[descKey(l.Description)] = l
	}

	consensus := byDesc["customer funds are stolen"]
	require.NotNil(t, consensus.Provenance)
	assert.Equal(t, []string{agent.StyleIntuitive, agent.StyleTechnical}, consensus.Provenance.FoundByStyles)
	assert.Equal(t, "very_high", consensus.Provenance.Confidence)
	assert.Equal(t, "direct monetary harm", consensus.MissionImpact, "field union fills gaps from later variants")

	single := byDesc["regulator imposes a fine"]
	assert.Equal(t, "high", single.Provenance.Confidence, "single-style find promoted to high when peers ran")

	require.NotNil(t, merged.Synthesis)
	assert.Equal(t, 3, merged.Synthesis.TotalUnique)
	assert.Equal(t, 1, merged.Synthesis.ConsensusItems)
	assert.Equal(t, 2, merged.Synthesis.StyleContributions[agent.StyleIntuitive])
	assert.Equal(t, 2, merged.Synthesis.StyleContributions[agent.StyleTechnical])
}

func TestSynthesizeOrderIndependent(t *testing.T) {
	a := lossVariant(agent.StyleIntuitive,
		types.Loss{Description: "Customer funds are stolen", Category: types.LossFinancial},
		types.Loss{Description: "Reputation is damaged", Category: types.LossReputation})
	b := lossVariant(agent.StyleTechnical,
		types.Loss{Description: "Regulator imposes a fine", Category: types.LossRegulatory},
		types.Loss{Description: "Customer funds are stolen", Category: types.LossFinancial})

	forward := Synthesize(prompts.LossIdentification, []*types.AgentResult{a, b})
	reverse := Synthesize(prompts.LossIdentification, []*types.AgentResult{b, a})

	if diff := cmp.Diff(forward.Data, reverse.Data); diff != "" {
		t.Errorf("merged data depends on variant order (-forward +reverse):\n%s", diff)
	}
	assert.Equal(t, forward.StylesUsed, reverse.StylesUsed)
}

func TestSynthesizeRepeatedStyleCountedOnce(t *testing.T) {
	// The same style surfacing the same item twice is one contribution.
	merged := Synthesize(prompts.LossIdentification, []*types.AgentResult{
		lossVariant(agent.StyleIntuitive,
			types.Loss{Description: "Customer funds are stolen", Category: types.LossFinancial},
			types.Loss{Description: "customer funds are stolen", Category: types.LossFinancial}),
	})

	losses := merged.Data["losses"].([]types.Loss)
	require.Len(t, losses, 1)
	assert.Equal(t, []string{agent.StyleIntuitive}, losses[0].Provenance.FoundByStyles)
	assert.Equal(t, 1, merged.Synthesis.StyleContributions[agent.StyleIntuitive])
}

func TestSynthesizeAllVariantsFailed(t *testing.T) {
	merged := Synthesize(prompts.LossIdentification, []*types.AgentResult{
		{AgentType: prompts.LossIdentification, AnalysisID: "a1",
			CognitiveStyle: agent.StyleIntuitive, Error: "no losses identified"},
		{AgentType: prompts.LossIdentification, AnalysisID: "a1",
			CognitiveStyle: agent.StyleTechnical, Error: "llm failure (transport) after 3 attempt(s): boom"},
	})

	assert.False(t, merged.Success)
	assert.Equal(t, "a1", merged.AnalysisID)
	assert.Contains(t, merged.Error, "no losses identified")
	assert.Contains(t, merged.Error, "transport")
	assert.Len(t, merged.StylesUsed, 2)
}

func TestSynthesizeMandatoryEnforcementWins(t *testing.T) {
	mk := func(style, level string) *types.AgentResult {
		return &types.AgentResult{
			AgentType: prompts.SecurityConstraints, AnalysisID: "a1",
			CognitiveStyle: style, Success: true,
			Data: map[string]any{"constraints": []agent.ConstraintDraft{{
				SecurityConstraint: types.SecurityConstraint{
					Statement:        "The system shall only act on verified instructions",
					Type:             types.ConstraintPreventive,
					EnforcementLevel: level,
					HazardIDs:        []string{"H-1"},
				},
			}}},
		}
	}

	merged := Synthesize(prompts.SecurityConstraints, []*types.AgentResult{
		mk(agent.StyleTechnical, "recommended"),
		mk(agent.StyleSystematic, "mandatory"),
	})

	constraints := merged.Data["constraints"].([]agent.ConstraintDraft)
	require.Len(t, constraints, 1)
	assert.Equal(t, "mandatory", constraints[0].EnforcementLevel)
}

func TestConfidencePromotion(t *testing.T) {
	cases := []struct {
		foundBy, stylesUsed int
		want                string
	}{
		{foundBy: 3, stylesUsed: 4, want: "very_high"},
		{foundBy: 2, stylesUsed: 2, want: "very_high"},
		{foundBy: 1, stylesUsed: 2, want: "high"},
		{foundBy: 1, stylesUsed: 1, want: "medium"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, confidence(tc.foundBy, tc.stylesUsed),
			"foundBy=%d stylesUsed=%d", tc.foundBy, tc.stylesUsed)
	}
}

func TestDescKey(t *testing.T) {
	assert.Equal(t, "customer funds are stolen", descKey("  Customer   FUNDS are stolen "))
	long := descKey("this description goes on for quite a while and certainly exceeds the cap")
	assert.Len(t, long, 50)
}
