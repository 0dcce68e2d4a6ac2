package coordinator

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/store"
	"stpasec/internal/types"
)

func newCompletenessStore(t *testing.T, step types.Step) *store.Store {
	t.Helper()
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "a1", Step: step, Name: "census", Status: types.AnalysisRunning, CreatedAt: time.Now(),
	}))
	return s
}

func TestCompletenessEmptyAnalysis(t *testing.T) {
	s := newCompletenessStore(t, types.Step1)

	check, err := checkCompleteness(s, "a1", types.Step1)
	require.NoError(t, err)
	assert.False(t, check.IsComplete)
	assert.Len(t, check.MissingKinds, len(step1MinCounts))
	assert.Contains(t, check.MissingKinds, "loss: 0 of 3 required")
}

func TestCompletenessSatisfiedStep1(t *testing.T) {
	s := newCompletenessStore(t, types.Step1)
	tx, err := s.BeginPhase()
	require.NoError(t, err)

	require.NoError(t, tx.InsertArtifact("a1", types.KindMission, "", types.Mission{
		Purpose: "settle payments", Method: "by routing instructions", Goals: []string{"timeliness"},
	}))
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("L-%d", i)
		require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, id,
			types.Loss{Identifier: id, Description: "loss " + id, Category: types.LossFinancial}))
	}
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("H-%d", i)
		require.NoError(t, tx.InsertArtifact("a1", types.KindHazard, id,
			types.Hazard{Identifier: id, Description: "hazard " + id, LossIDs: []string{"L-1"}}))
		require.NoError(t, tx.InsertMapping("a1", types.KindHazardLossMap, id, "L-1", nil))
	}
	for i := 1; i <= 5; i++ {
		require.NoError(t, tx.InsertArtifact("a1", types.KindStakeholder, "",
			types.Stakeholder{Name: fmt.Sprintf("stakeholder %d", i), Type: "primary"}))
	}
	require.NoError(t, tx.InsertArtifact("a1", types.KindAdversary, "", types.Adversary{Class: "insider"}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindAdversary, "", types.Adversary{Class: "organized_crime"}))
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("SC-%d", i)
		require.NoError(t, tx.InsertArtifact("a1", types.KindConstraint, id,
			types.SecurityConstraint{Identifier: id, Statement: "constraint " + id, HazardIDs: []string{"H-1"}}))
		require.NoError(t, tx.InsertMapping("a1", types.KindConstraintMap, id, "H-1", nil))
	}
	require.NoError(t, tx.InsertArtifact("a1", types.KindSystemBoundary, "",
		types.SystemBoundary{Name: "system scope", Type: types.BoundarySystemScope}))
	require.NoError(t, tx.Commit())

	check, err := checkCompleteness(s, "a1", types.Step1)
	require.NoError(t, err)
	assert.True(t, check.IsComplete, "missing=%v fields=%v refs=%v",
		check.MissingKinds, check.MissingFields, check.BrokenRefs)
	assert.Equal(t, 3, check.Counts["loss"])
	assert.Equal(t, 5, check.Counts["stakeholder"])
}

func TestCompletenessMonotonicUnderGrowth(t *testing.T) {
	s := newCompletenessStore(t, types.Step1)

	// Each batch is well-formed and satisfies exactly one required kind;
	// adding artifacts only ever shrinks what is missing.
	batches := []func(tx *store.PhaseTx){
		func(tx *store.PhaseTx) {
			require.NoError(t, tx.InsertArtifact("a1", types.KindMission, "", types.Mission{
				Purpose: "settle payments", Method: "by routing instructions", Goals: []string{"timeliness"},
			}))
		},
		func(tx *store.PhaseTx) {
			for i := 1; i <= 3; i++ {
				id := fmt.Sprintf("L-%d", i)
				require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, id,
					types.Loss{Identifier: id, Description: "loss " + id, Category: types.LossFinancial}))
			}
		},
		func(tx *store.PhaseTx) {
			for i := 1; i <= 3; i++ {
				id := fmt.Sprintf("H-%d", i)
				require.NoError(t, tx.InsertArtifact("a1", types.KindHazard, id,
					types.Hazard{Identifier: id, Description: "hazard " + id, LossIDs: []string{"L-1"}}))
				require.NoError(t, tx.InsertMapping("a1", types.KindHazardLossMap, id, "L-1", nil))
			}
		},
		func(tx *store.PhaseTx) {
			for i := 1; i <= 5; i++ {
				require.NoError(t, tx.InsertArtifact("a1", types.KindStakeholder, "",
					types.Stakeholder{Name: fmt.Sprintf("stakeholder %d", i), Type: "primary"}))
			}
		},
		func(tx *store.PhaseTx) {
			require.NoError(t, tx.InsertArtifact("a1", types.KindAdversary, "", types.Adversary{Class: "insider"}))
			require.NoError(t, tx.InsertArtifact("a1", types.KindAdversary, "", types.Adversary{Class: "organized_crime"}))
		},
		func(tx *store.PhaseTx) {
			for i := 1; i <= 3; i++ {
				id := fmt.Sprintf("SC-%d", i)
				require.NoError(t, tx.InsertArtifact("a1", types.KindConstraint, id,
					types.SecurityConstraint{Identifier: id, Statement: "constraint " + id, HazardIDs: []string{"H-1"}}))
				require.NoError(t, tx.InsertMapping("a1", types.KindConstraintMap, id, "H-1", nil))
			}
		},
		func(tx *store.PhaseTx) {
			require.NoError(t, tx.InsertArtifact("a1", types.KindSystemBoundary, "",
				types.SystemBoundary{Name: "system scope", Type: types.BoundarySystemScope}))
		},
	}
	require.Len(t, batches, len(step1MinCounts))

	prevCounts := map[string]int{}
	for i, batch := range batches {
		tx, err := s.BeginPhase()
		require.NoError(t, err)
		batch(tx)
		require.NoError(t, tx.Commit())

		check, err := checkCompleteness(s, "a1", types.Step1)
		require.NoError(t, err)
		assert.Len(t, check.MissingKinds, len(step1MinCounts)-(i+1), "after batch %d", i+1)
		assert.Empty(t, check.MissingFields, "after batch %d", i+1)
		assert.Empty(t, check.BrokenRefs, "after batch %d", i+1)
		for kind, n := range prevCounts {
			assert.GreaterOrEqual(t, check.Counts[kind], n, "count for %s shrank after batch %d", kind, i+1)
		}
		prevCounts = check.Counts
		assert.Equal(t, i == len(batches)-1, check.IsComplete, "after batch %d", i+1)
	}
}

func TestCompletenessFlagsBrokenRefsAndFields(t *testing.T) {
	s := newCompletenessStore(t, types.Step1)
	tx, err := s.BeginPhase()
	require.NoError(t, err)
	// A hazard with no loss linkage and a mapping onto a loss nobody defined.
	require.NoError(t, tx.InsertArtifact("a1", types.KindHazard, "H-1",
		types.Hazard{Identifier: "H-1", Description: "unlinked hazard"}))
	require.NoError(t, tx.InsertMapping("a1", types.KindHazardLossMap, "H-1", "L-9", nil))
	require.NoError(t, tx.Commit())

	check, err := checkCompleteness(s, "a1", types.Step1)
	require.NoError(t, err)
	assert.False(t, check.IsComplete)
	assert.Contains(t, check.MissingFields, "H-1.loss_ids")
	assert.Contains(t, check.BrokenRefs, "hazard_loss_mapping: unknown loss L-9")
}

func TestCompletenessStep2ContextCoverage(t *testing.T) {
	s := newCompletenessStore(t, types.Step2)
	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact("a1", types.KindComponent, "CTRL-1",
		types.Component{Identifier: "CTRL-1", Kind: types.KindController, Name: "gateway"}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindComponent, "PROC-1",
		types.Component{Identifier: "PROC-1", Kind: types.KindControlledProcess, Name: "ledger"}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindControlAction, "CA-1",
		types.ControlAction{Identifier: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1", Name: "post entry"}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindFeedback, "FB-1",
		types.FeedbackMechanism{Identifier: "FB-1", SourceProcessID: "PROC-1", TargetControllerID: "CTRL-1"}))
	require.NoError(t, tx.Commit())

	check, err := checkCompleteness(s, "a1", types.Step2)
	require.NoError(t, err)
	// Counts are satisfied but CA-1 has no control context yet.
	assert.Empty(t, check.MissingKinds)
	assert.Contains(t, check.MissingFields, "CA-1.control_context")
	assert.False(t, check.IsComplete)
	assert.Empty(t, check.BrokenRefs)
}
