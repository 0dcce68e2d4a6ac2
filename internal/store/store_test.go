package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestAnalysis(t *testing.T, s *Store, id string, step types.Step, status types.AnalysisStatus) {
	t.Helper()
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID:            id,
		Step:          step,
		Name:          "test analysis",
		Status:        status,
		ExecutionMode: "standard",
		CreatedAt:     time.Now(),
	}))
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	a, err := s.FetchAnalysis("a1")
	require.NoError(t, err)
	assert.Equal(t, types.Step1, a.Step)
	assert.Equal(t, types.AnalysisRunning, a.Status)

	require.NoError(t, s.UpdateAnalysisStatus("a1", types.AnalysisCompleted, 87.5))
	a, err = s.FetchAnalysis("a1")
	require.NoError(t, err)
	assert.Equal(t, types.AnalysisCompleted, a.Status)
	assert.InDelta(t, 87.5, a.QualityScore, 0.001)
}

func TestFetchLatestStep1(t *testing.T) {
	s := newTestStore(t)

	_, err := s.FetchLatestStep1()
	require.Error(t, err)

	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "old", Step: types.Step1, Name: "old", Status: types.AnalysisCompleted,
		CreatedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "new", Step: types.Step1, Name: "new", Status: types.AnalysisCompleted,
		CreatedAt: time.Now(),
	}))
	// Running analyses and Step 2 analyses never qualify.
	insertTestAnalysis(t, s, "running", types.Step1, types.AnalysisRunning)
	insertTestAnalysis(t, s, "step2", types.Step2, types.AnalysisCompleted)

	a, err := s.FetchLatestStep1()
	require.NoError(t, err)
	assert.Equal(t, "new", a.ID)
}

func TestPhaseTxCommitFlushesAllWrites(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, "L-1",
		types.Loss{Identifier: "L-1", Description: "customer funds stolen", Category: types.LossFinancial}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, "L-2",
		types.Loss{Identifier: "L-2", Description: "regulatory fine", Category: types.LossRegulatory}))
	require.NoError(t, tx.LogActivity(types.ActivityEntry{
		AnalysisID: "a1", AgentType: "loss_identification", Activity: "completed",
	}))

	// Nothing is visible before the flush.
	records, err := s.FetchArtifacts("a1", types.KindLoss)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, tx.Commit())

	losses, err := FetchArtifactsInto[types.Loss](s, "a1", types.KindLoss)
	require.NoError(t, err)
	require.Len(t, losses, 2)
	assert.Equal(t, "L-1", losses[0].Identifier)

	log, err := s.FetchActivityLog("a1")
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "completed", log[0].Activity)
}

func TestPhaseTxRollbackDiscardsWrites(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact("a1", types.KindHazard, "H-1",
		types.Hazard{Identifier: "H-1", Description: "system operates on stale data"}))
	require.NoError(t, tx.Rollback())

	// Writes after rollback are rejected, and nothing landed.
	require.Error(t, tx.InsertArtifact("a1", types.KindHazard, "H-2", types.Hazard{Identifier: "H-2"}))
	records, err := s.FetchArtifacts("a1", types.KindHazard)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPhaseTxDuplicateIdentifierFailsAtomically(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, "L-1", types.Loss{Identifier: "L-1", Description: "x"}))
	require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, "L-1", types.Loss{Identifier: "L-1", Description: "y"}))
	require.Error(t, tx.Commit())

	records, err := s.FetchArtifacts("a1", types.KindLoss)
	require.NoError(t, err)
	assert.Empty(t, records, "failed flush must leave no partial state")
}

func TestInsertMappingMirrorsDependencies(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertMapping("a1", types.KindHazardLossMap, "H-1", "L-1",
		map[string]string{"relationship": "direct"}))
	require.NoError(t, tx.Commit())

	mappings, err := s.FetchMappings("a1", types.KindHazardLossMap)
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "H-1", mappings[0].AID)
	assert.Equal(t, "L-1", mappings[0].BID)

	impact, err := s.Impact("a1", types.KindLoss, "L-1")
	require.NoError(t, err)
	require.Len(t, impact.Dependents, 1)
	assert.Equal(t, string(types.KindHazard), impact.Dependents[0].Kind)
	assert.Equal(t, "H-1", impact.Dependents[0].ID)
}

func TestAgentResultRoundTrip(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertAgentResult(&types.AgentResult{
		AgentType:  "mission_analyst",
		AnalysisID: "a1",
		Success:    true,
		Data:       map[string]any{"mission": map[string]any{"purpose": "protect payments"}},
		StylesUsed: []string{"balanced"},
	}))
	require.NoError(t, tx.Commit())

	results, err := s.FetchAgentResults("a1", "mission_analyst")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	assert.Equal(t, []string{"balanced"}, results[0].StylesUsed)

	none, err := s.FetchAgentResults("a1", "loss_identification")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLegacyIdentifierStash(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisRunning)
	// Simulate an imported pre-identifier-column database.
	s.legacyArtifacts = true

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact("a1", types.KindLoss, "L-7",
		types.Loss{Identifier: "", Description: "loss with no inline id"}))
	require.NoError(t, tx.Commit())

	records, err := s.FetchArtifacts("a1", types.KindLoss)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "L-7", records[0].Identifier, "identifier recovered from payload metadata")
}

func TestListAnalysesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "first", Step: types.Step1, Name: "first", Status: types.AnalysisCompleted,
		CreatedAt: time.Now().Add(-time.Minute),
	}))
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "second", Step: types.Step2, Name: "second", Status: types.AnalysisRunning,
		CreatedAt: time.Now(),
	}))

	analyses, err := s.ListAnalyses()
	require.NoError(t, err)
	require.Len(t, analyses, 2)
	assert.Equal(t, "second", analyses[0].ID)
}
