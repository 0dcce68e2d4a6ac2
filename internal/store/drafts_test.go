package store

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/types"
)

func seedLoss(t *testing.T, s *Store, analysisID, id, description string) {
	t.Helper()
	tx, err := s.BeginPhase()
	require.NoError(t, err)
	require.NoError(t, tx.InsertArtifact(analysisID, types.KindLoss, id,
		types.Loss{Identifier: id, Description: description, Category: types.LossFinancial}))
	require.NoError(t, tx.Commit())
}

func TestGetOrCreateDraftIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)

	d1, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	d2, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)

	// A different user gets their own working draft.
	d3, err := s.GetOrCreateDraft("a1", "bob")
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d3.ID)
}

func TestAccumulateEditMergesFieldWise(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)

	d, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)

	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"description": "first pass"}, false))
	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"category": "privacy"}, true))

	reloaded, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	edit := reloaded.Data.Edits[string(types.KindLoss)]["L-1"]
	assert.Equal(t, "first pass", edit.Changes["description"])
	assert.Equal(t, "privacy", edit.Changes["category"])
	assert.True(t, edit.Freeze, "freeze sticks once set")
}

func TestCommitAppliesEditsAndVersions(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)
	seedLoss(t, s, "a1", "L-1", "original description")

	d, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"description": "edited description"}, false))

	versionID, err := s.Commit(d.ID, "tighten wording", "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, versionID)

	// The base row now carries the edit.
	losses, err := FetchArtifactsInto[types.Loss](s, "a1", types.KindLoss)
	require.NoError(t, err)
	require.Len(t, losses, 1)
	assert.Equal(t, "edited description", losses[0].Description)

	// Version 1 is the auto-created baseline; version 2 is the commit.
	v1, err := s.FetchVersion("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, "initial", v1.VersionType)

	v2, err := s.FetchVersion("a1", 2)
	require.NoError(t, err)
	assert.Equal(t, "commit", v2.VersionType)
	assert.Equal(t, "tighten wording", v2.CommitMessage)

	// The pre-edit state stays readable at version 1.
	raw, err := s.ArtifactAtVersion("a1", 1, types.KindLoss, "L-1")
	require.NoError(t, err)
	var before types.Loss
	require.NoError(t, json.Unmarshal(raw, &before))
	assert.Equal(t, "original description", before.Description)

	raw, err = s.ArtifactAtVersion("a1", 2, types.KindLoss, "L-1")
	require.NoError(t, err)
	var after types.Loss
	require.NoError(t, json.Unmarshal(raw, &after))
	assert.Equal(t, "edited description", after.Description)
}

func TestCommitTwiceConflicts(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)
	seedLoss(t, s, "a1", "L-1", "seed")

	d, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"description": "v2"}, false))

	_, err = s.Commit(d.ID, "first", "alice")
	require.NoError(t, err)

	_, err = s.Commit(d.ID, "again", "alice")
	assert.ErrorIs(t, err, ErrDraftConflict)

	err = s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"description": "v3"}, false)
	assert.ErrorIs(t, err, ErrDraftConflict, "edits on a committed draft are rejected")
}

func TestCommitAgainstUnknownArtifactFailsAtomically(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)
	seedLoss(t, s, "a1", "L-1", "seed")

	d, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-1",
		map[string]any{"description": "changed"}, false))
	require.NoError(t, s.AccumulateEdit(d.ID, types.KindLoss, "L-404",
		map[string]any{"description": "phantom"}, false))

	_, err = s.Commit(d.ID, "broken", "alice")
	require.Error(t, err)

	// Nothing applied, no version recorded, draft still working.
	losses, err := FetchArtifactsInto[types.Loss](s, "a1", types.KindLoss)
	require.NoError(t, err)
	assert.Equal(t, "seed", losses[0].Description)
	_, err = s.FetchVersion("a1", 1)
	assert.Error(t, err)

	reloaded, err := s.GetOrCreateDraft("a1", "alice")
	require.NoError(t, err)
	assert.Equal(t, d.ID, reloaded.ID)
}

func TestImpactSeverityThresholds(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)

	tx, err := s.BeginPhase()
	require.NoError(t, err)
	for i := 1; i <= 6; i++ {
		require.NoError(t, tx.InsertMapping("a1", types.KindHazardLossMap,
			fmt.Sprintf("H-%d", i), "L-1", nil))
	}
	require.NoError(t, tx.Commit())

	high, err := s.Impact("a1", types.KindLoss, "L-1")
	require.NoError(t, err)
	assert.Equal(t, ImpactHigh, high.Severity)
	assert.Equal(t, 6, high.Count)

	low, err := s.Impact("a1", types.KindLoss, "L-99")
	require.NoError(t, err)
	assert.Equal(t, ImpactLow, low.Severity)
	assert.Zero(t, low.Count)
}

func TestInsertLoadedVersion(t *testing.T) {
	s := newTestStore(t)
	insertTestAnalysis(t, s, "a1", types.Step1, types.AnalysisCompleted)
	seedLoss(t, s, "a1", "L-1", "pre-baked loss")

	versionID, err := s.InsertLoadedVersion("a1", "demo")
	require.NoError(t, err)
	assert.NotEmpty(t, versionID)

	v, err := s.FetchVersion("a1", 1)
	require.NoError(t, err)
	assert.Equal(t, "loaded", v.VersionType)

	raw, err := s.ArtifactAtVersion("a1", 1, types.KindLoss, "L-1")
	require.NoError(t, err)
	var l types.Loss
	require.NoError(t, json.Unmarshal(raw, &l))
	assert.Equal(t, "pre-baked loss", l.Description)
}
