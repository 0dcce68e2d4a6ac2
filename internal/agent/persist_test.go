package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/prompts"
	"stpasec/internal/registry"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

func newPersistContext(t *testing.T, step types.Step) (*Context, *store.Store) {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "a1", Step: step, Name: "persist test",
		Status: types.AnalysisRunning, CreatedAt: time.Now(),
	}))

	tx, err := s.BeginPhase()
	require.NoError(t, err)

	actx := &Context{
		AnalysisID: "a1",
		Step:       step,
		Phase:      tx,
		Alloc:      types.NewIDAllocator(),
	}
	if step == types.Step2 {
		actx.Registry = registry.New()
	}
	return actx, s
}

func flushPhase(t *testing.T, actx *Context, s *store.Store) {
	t.Helper()
	require.NoError(t, actx.Phase.Commit())
	tx, err := s.BeginPhase()
	require.NoError(t, err)
	actx.Phase = tx
}

func TestLossPersistAllocatesIdentifiers(t *testing.T) {
	actx, s := newPersistContext(t, types.Step1)
	a, err := New(prompts.LossIdentification, Deps{Store: s})
	require.NoError(t, err)

	result := &types.AgentResult{
		AgentType: prompts.LossIdentification, AnalysisID: "a1", Success: true,
		Data: map[string]any{
			"losses": []types.Loss{
				{Description: "Customer funds are stolen", Category: types.LossFinancial},
				{Description: "Settlement halts for a business day", Category: types.LossMission},
			},
			"dependencies": []LossDependencyDraft{
				{Primary: "Customer funds are stolen", Dependent: "Settlement halts for a business day", Type: "triggers"},
				{Primary: "Customer funds are stolen", Dependent: "never identified", Type: "enables"},
			},
		},
	}
	require.NoError(t, a.Persist(actx, result))
	flushPhase(t, actx, s)

	losses, err := store.FetchArtifactsInto[types.Loss](s, "a1", types.KindLoss)
	require.NoError(t, err)
	require.Len(t, losses, 2)
	assert.Equal(t, "L-1", losses[0].Identifier)
	assert.Equal(t, "L-2", losses[1].Identifier)

	deps, err := s.FetchMappings("a1", types.KindLossDependency)
	require.NoError(t, err)
	require.Len(t, deps, 1, "dependency citing an unknown loss is dropped")
	assert.Equal(t, "L-1", deps[0].AID)
	assert.Equal(t, "L-2", deps[0].BID)

	require.Len(t, result.ValidationErrors, 1)
	assert.Contains(t, result.ValidationErrors[0], "unknown loss")
}

func TestHazardPersistValidatesLossReferences(t *testing.T) {
	actx, s := newPersistContext(t, types.Step1)

	// Seed the losses the hazards will cite.
	require.NoError(t, actx.Phase.InsertArtifact("a1", types.KindLoss, "L-1",
		types.Loss{Identifier: "L-1", Description: "funds stolen"}))
	flushPhase(t, actx, s)

	a, err := New(prompts.HazardIdentification, Deps{Store: s})
	require.NoError(t, err)

	result := &types.AgentResult{
		AgentType: prompts.HazardIdentification, AnalysisID: "a1", Success: true,
		Data: map[string]any{
			"hazards": []HazardDraft{
				{Hazard: types.Hazard{
					Description: "System operates on unverified instructions",
					Category:    types.HazardIntegrity,
					LossIDs:     []string{"L-1", "L-99"},
				}},
			},
		},
	}
	require.NoError(t, a.Persist(actx, result))
	flushPhase(t, actx, s)

	hazards, err := store.FetchArtifactsInto[types.Hazard](s, "a1", types.KindHazard)
	require.NoError(t, err)
	require.Len(t, hazards, 1)
	assert.Equal(t, "H-1", hazards[0].Identifier)
	assert.Equal(t, []string{"L-1"}, hazards[0].LossIDs, "unknown loss id filtered out")

	assert.Contains(t, result.ValidationErrors, "Invalid loss reference: L-99")

	// The surviving citation got a direct mapping edge.
	mappings, err := s.FetchMappings("a1", types.KindHazardLossMap)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "H-1", mappings[0].AID)
	assert.Equal(t, "L-1", mappings[0].BID)
}

func TestControlActionPersistDropsUnregisteredReferences(t *testing.T) {
	actx, s := newPersistContext(t, types.Step2)
	require.NoError(t, actx.Registry.Register(types.Component{
		Identifier: "CTRL-1", Kind: types.KindController, Name: "Payment gateway",
	}))
	require.NoError(t, actx.Registry.Register(types.Component{
		Identifier: "PROC-1", Kind: types.KindControlledProcess, Name: "Settlement ledger",
	}))

	a, err := New(prompts.ControlActionMapping, Deps{Store: s})
	require.NoError(t, err)

	result := &types.AgentResult{
		AgentType: prompts.ControlActionMapping, AnalysisID: "a1", Success: true,
		Data: map[string]any{
			"control_actions": []types.ControlAction{
				{ControllerID: "CTRL-1", ControlledProcessID: "PROC-1", Name: "post settlement entry"},
				{ControllerID: "CTRL-77", ControlledProcessID: "PROC-1", Name: "phantom command"},
				{ControllerID: "CTRL-1", ControlledProcessID: "PROC-88", Name: "dangling target"},
			},
		},
	}
	require.NoError(t, a.Persist(actx, result))
	flushPhase(t, actx, s)

	actions, err := store.FetchArtifactsInto[types.ControlAction](s, "a1", types.KindControlAction)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, "CA-1", actions[0].Identifier)
	assert.Equal(t, "post settlement entry", actions[0].Name)

	assert.Contains(t, result.ValidationErrors, "Invalid controller reference: CTRL-77")
	assert.Contains(t, result.ValidationErrors, "Invalid process reference: PROC-88")

	kept := dataSlice[types.ControlAction](result, "control_actions")
	require.Len(t, kept, 1)
}
