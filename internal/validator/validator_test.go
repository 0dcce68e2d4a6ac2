package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stpasec/internal/store"
	"stpasec/internal/types"
)

func TestScoringMath(t *testing.T) {
	r := newReporter()
	r.add(CategoryCompleteness, SeverityCritical, "no mission statement", "")
	r.add(CategoryAbstraction, SeverityMajor, "implementation keyword", "")
	r.add(CategoryAbstraction, SeverityMinor, "mechanism wording", "L-1")

	rep := r.finalize()
	require.Len(t, rep.Categories, 6)
	assert.InDelta(t, 75.0, rep.Categories[CategoryCompleteness].Score, 0.001)
	assert.InDelta(t, 80.0, rep.Categories[CategoryAbstraction].Score, 0.001)
	assert.InDelta(t, 100.0, rep.Categories[CategoryCoverage].Score, 0.001)

	// 0.20*80 + 0.20*75 + 0.20*100 + 0.15*100 + 0.15*100 + 0.10*100
	assert.InDelta(t, 91.0, rep.OverallScore, 0.001)

	// Issues surface worst first.
	require.NotEmpty(t, rep.Issues)
	assert.Equal(t, SeverityCritical, rep.Issues[0].Severity)
}

func TestScoreFloorsAtZero(t *testing.T) {
	r := newReporter()
	for i := 0; i < 5; i++ {
		r.add(CategoryConsistency, SeverityCritical, "dangling reference", "")
	}
	rep := r.finalize()
	assert.Zero(t, rep.Categories[CategoryConsistency].Score)
}

func TestQualityLevels(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "excellent"}, {90, "excellent"},
		{85, "good"}, {80, "good"},
		{75, "adequate"}, {70, "adequate"},
		{65, "needs_improvement"}, {60, "needs_improvement"},
		{59.9, "poor"}, {0, "poor"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, qualityLevel(tc.score), "score %.1f", tc.score)
	}
}

func TestOverallStatus(t *testing.T) {
	critical := []Issue{{Severity: SeverityCritical}}
	major := []Issue{{Severity: SeverityMajor}}

	assert.Equal(t, types.StatusRevisionRequired, overallStatus(95, critical),
		"a critical issue blocks regardless of score")
	assert.Equal(t, types.StatusRevisionRequired, overallStatus(55, nil))
	assert.Equal(t, types.StatusReadyForStep2, overallStatus(92, nil))
	assert.Equal(t, types.StatusReadyMinorIssues, overallStatus(92, major))
	assert.Equal(t, types.StatusReadyMinorIssues, overallStatus(85, nil))
	assert.Equal(t, types.StatusReviewRecommended, overallStatus(72, nil))
}

func TestCoverageCriticalHazardRule(t *testing.T) {
	a := &step1Artifacts{
		hazards: []types.Hazard{
			{Identifier: "H-1", Category: types.HazardIntegrity, LossIDs: []string{"L-1", "L-2"}},
			{Identifier: "H-2", Category: types.HazardAvailability, LossIDs: []string{"L-1"}},
		},
		constraints: []types.SecurityConstraint{
			{Identifier: "SC-1", HazardIDs: []string{"H-1"}},
		},
	}
	r := newReporter()
	checkCoverage(r, a)

	var messages []string
	for _, issue := range r.issues[CategoryCoverage] {
		messages = append(messages, issue.Message+"/"+issue.ArtifactID)
	}
	// H-1 touches two losses and has one constraint; H-2 has none at all.
	assert.Contains(t, messages, "critical hazard has only one constraint/H-1")
	assert.Contains(t, messages, "hazard has no security constraint/H-2")
}

func TestConstraintBalanceOneSided(t *testing.T) {
	a := &step1Artifacts{
		constraints: []types.SecurityConstraint{
			{Identifier: "SC-1", Statement: "a", Type: types.ConstraintPreventive},
			{Identifier: "SC-2", Statement: "b", Type: types.ConstraintPreventive},
			{Identifier: "SC-3", Statement: "c", Type: types.ConstraintPreventive},
		},
	}
	r := newReporter()
	checkConstraintBalance(r, a)

	var severities []Severity
	for _, issue := range r.issues[CategorySecurityConstraints] {
		severities = append(severities, issue.Severity)
	}
	assert.Contains(t, severities, SeverityMajor, "all-preventive mix is one-sided")
	assert.Contains(t, severities, SeverityWarning, "missing detective constraints")
}

func TestConstraintBalanceIdealMixClean(t *testing.T) {
	a := &step1Artifacts{
		constraints: []types.SecurityConstraint{
			{Identifier: "SC-1", Statement: "a", Type: types.ConstraintPreventive},
			{Identifier: "SC-2", Statement: "b", Type: types.ConstraintPreventive},
			{Identifier: "SC-3", Statement: "c", Type: types.ConstraintPreventive},
			{Identifier: "SC-4", Statement: "d", Type: types.ConstraintPreventive},
			{Identifier: "SC-5", Statement: "e", Type: types.ConstraintDetective},
			{Identifier: "SC-6", Statement: "f", Type: types.ConstraintDetective},
			{Identifier: "SC-7", Statement: "g", Type: types.ConstraintDetective},
			{Identifier: "SC-8", Statement: "h", Type: types.ConstraintCorrective},
			{Identifier: "SC-9", Statement: "i", Type: types.ConstraintCorrective},
			{Identifier: "SC-10", Statement: "j", Type: types.ConstraintCompensating},
		},
	}
	r := newReporter()
	checkConstraintBalance(r, a)
	assert.Empty(t, r.issues[CategorySecurityConstraints])
}

func TestAbstractionChecks(t *testing.T) {
	a := &step1Artifacts{
		missions: []types.Mission{{
			Purpose: "prevent fraud in the payment database",
			Method:  "by monitoring", Goals: []string{"safety"},
		}},
		losses: []types.Loss{
			{Identifier: "L-1", Description: "An attacker breaches the vault"},
		},
		hazards: []types.Hazard{
			{Identifier: "H-1", Description: "System runs without input validation"},
		},
	}
	r := newReporter()
	checkAbstraction(r, a)

	issues := r.issues[CategoryAbstraction]
	require.Len(t, issues, 4)
	bySeverity := map[Severity]int{}
	for _, issue := range issues {
		bySeverity[issue.Severity]++
	}
	// Mission violations (keyword + prevention verb) are major; loss and
	// hazard wording slips are minor.
	assert.Equal(t, 2, bySeverity[SeverityMajor])
	assert.Equal(t, 2, bySeverity[SeverityMinor])
}

func TestHierarchyCycleDetected(t *testing.T) {
	a := &step2Artifacts{hierarchy: []store.MappingRecord{
		{AID: "CTRL-1", BID: "CTRL-2"},
		{AID: "CTRL-2", BID: "CTRL-3"},
		{AID: "CTRL-3", BID: "CTRL-1"},
	}}
	r := newReporter()
	checkHierarchyAcyclic(r, a)
	require.Len(t, r.issues[CategoryConsistency], 1)
	assert.Equal(t, SeverityCritical, r.issues[CategoryConsistency][0].Severity)

	// A diamond is fine: shared descendants are not cycles.
	a = &step2Artifacts{hierarchy: []store.MappingRecord{
		{AID: "CTRL-1", BID: "CTRL-2"},
		{AID: "CTRL-1", BID: "CTRL-3"},
		{AID: "CTRL-2", BID: "CTRL-4"},
		{AID: "CTRL-3", BID: "CTRL-4"},
	}}
	r = newReporter()
	checkHierarchyAcyclic(r, a)
	assert.Empty(t, r.issues[CategoryConsistency])
}

func TestStep2StructureChecks(t *testing.T) {
	a := &step2Artifacts{
		components: []types.Component{
			{Identifier: "CTRL-1", Kind: types.KindController},
			{Identifier: "CTRL-2", Kind: types.KindController},               // commands nothing
			{Identifier: "CTRL-3", Kind: types.KindController, SensorOnly: true}, // exempt
			{Identifier: "PROC-1", Kind: types.KindControlledProcess},
			{Identifier: "PROC-2", Kind: types.KindControlledProcess}, // uncommanded
		},
		actions: []types.ControlAction{
			{Identifier: "CA-1", ControllerID: "CTRL-1", ControlledProcessID: "PROC-1"},
		},
		contexts: []types.ControlContext{{ControlActionID: "CA-1"}},
		feedbacks: []types.FeedbackMechanism{
			{Identifier: "FB-1", SourceProcessID: "PROC-1", TargetControllerID: "CTRL-1"},
		},
	}
	r := newReporter()
	checkStep2Structure(r, a)

	var flagged []string
	for _, issue := range r.issues[CategoryConsistency] {
		flagged = append(flagged, issue.ArtifactID)
	}
	assert.ElementsMatch(t, []string{"CTRL-2", "PROC-2"}, flagged)
	assert.Empty(t, r.issues[CategoryCoverage], "covered action and fed-back controller are clean")
}

func TestValidateStep1EmptyAnalysis(t *testing.T) {
	s, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.InsertAnalysis(&types.Analysis{
		ID: "a1", Step: types.Step1, Name: "empty", Status: types.AnalysisRunning, CreatedAt: time.Now(),
	}))

	rep, err := ValidateStep1(s, "a1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRevisionRequired, rep.OverallStatus)
	assert.Equal(t, "poor", rep.QualityLevel)
	assert.Len(t, rep.Categories, 6)
}
