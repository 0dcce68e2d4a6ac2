// Package validator scores an analysis across weighted quality categories
// and produces the structured report that gates the Step 1 to Step 2
// transition. All checks are deterministic: they read persisted artifacts,
// never the LLM.
package validator

import (
	"sort"

	"stpasec/internal/logging"
	"stpasec/internal/registry"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

// Severity of a single finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityWarning  Severity = "warning"
)

// Issue is one finding against one category.
type Issue struct {
	Category   string   `json:"category"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	ArtifactID string   `json:"artifact_id,omitempty"`
}

// Category names and weights. Weights sum to 1.
const (
	CategoryAbstraction         = "abstraction"
	CategoryCompleteness        = "completeness"
	CategoryConsistency         = "consistency"
	CategoryCoverage            = "coverage"
	CategorySecurityConstraints = "security_constraints"
	CategorySystemBoundaries    = "system_boundaries"
)

var categoryWeights = map[string]float64{
	CategoryAbstraction:         0.20,
	CategoryCompleteness:        0.20,
	CategoryConsistency:         0.20,
	CategoryCoverage:            0.15,
	CategorySecurityConstraints: 0.15,
	CategorySystemBoundaries:    0.10,
}

var severityDeductions = map[Severity]float64{
	SeverityCritical: 25,
	SeverityMajor:    15,
	SeverityMinor:    5,
	SeverityWarning:  2,
}

// CategoryScore is one category's score plus its findings.
type CategoryScore struct {
	Score  float64 `json:"score"`
	Issues []Issue `json:"issues,omitempty"`
}

// Report is the validator's structured output.
type Report struct {
	Categories    map[string]CategoryScore `json:"categories"`
	OverallScore  float64                  `json:"overall_score"`
	QualityLevel  string                   `json:"quality_level"`
	OverallStatus types.OverallStatus      `json:"overall_status"`
	Issues        []Issue                  `json:"issues,omitempty"`
	Bridge        *Bridge                  `json:"step2_bridge,omitempty"`
}

// report accumulates issues per category and finalizes scores.
type reporter struct {
	issues map[string][]Issue
}

func newReporter() *reporter {
	return &reporter{issues: make(map[string][]Issue)}
}

func (r *reporter) add(category string, severity Severity, message, artifactID string) {
	r.issues[category] = append(r.issues[category], Issue{
		Category: category, Severity: severity, Message: message, ArtifactID: artifactID,
	})
}

func (r *reporter) finalize() *Report {
	rep := &Report{Categories: make(map[string]CategoryScore)}
	var overall float64
	for category, weight := range categoryWeights {
		score := 100.0
		for _, issue := range r.issues[category] {
			score -= severityDeductions[issue.Severity]
		}
		if score < 0 {
			score = 0
		}
		rep.Categories[category] = CategoryScore{Score: score, Issues: r.issues[category]}
		rep.Issues = append(rep.Issues, r.issues[category]...)
		overall += score * weight
	}
	sort.SliceStable(rep.Issues, func(i, j int) bool {
		return severityDeductions[rep.Issues[i].Severity] > severityDeductions[rep.Issues[j].Severity]
	})
	rep.OverallScore = overall
	rep.QualityLevel = qualityLevel(overall)
	rep.OverallStatus = overallStatus(overall, rep.Issues)
	return rep
}

func qualityLevel(score float64) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 80:
		return "good"
	case score >= 70:
		return "adequate"
	case score >= 60:
		return "needs_improvement"
	default:
		return "poor"
	}
}

func overallStatus(score float64, issues []Issue) types.OverallStatus {
	critical, major := 0, 0
	for _, issue := range issues {
		switch issue.Severity {
		case SeverityCritical:
			critical++
		case SeverityMajor:
			major++
		}
	}
	switch {
	case critical > 0 || score < 60:
		return types.StatusRevisionRequired
	case score >= 90 && major == 0:
		return types.StatusReadyForStep2
	case score >= 80:
		return types.StatusReadyMinorIssues
	default:
		return types.StatusReviewRecommended
	}
}

// ValidateStep1 runs the Step 1 checks and the Step 2 bridge derivation.
func ValidateStep1(s *store.Store, analysisID string) (*Report, error) {
	a, err := loadStep1Artifacts(s, analysisID)
	if err != nil {
		return nil, err
	}

	r := newReporter()
	checkAbstraction(r, a)
	checkCompleteness(r, a)
	checkConsistency(r, a)
	checkCoverage(r, a)
	checkConstraintBalance(r, a)
	checkBoundaries(r, a)

	rep := r.finalize()
	rep.Bridge = buildBridge(a)
	logging.L(logging.CategoryValidator).Infow("step 1 validated",
		"analysis", analysisID, "score", rep.OverallScore, "status", rep.OverallStatus)
	return rep, nil
}

// ValidateStep2 runs the Step 2 structural checks. The registry carries the
// reference bookkeeping accumulated during the run; a nil registry skips
// those checks (validating a reloaded analysis).
func ValidateStep2(s *store.Store, analysisID string, reg *registry.Registry) (*Report, error) {
	a, err := loadStep2Artifacts(s, analysisID)
	if err != nil {
		return nil, err
	}

	r := newReporter()
	checkStep2Completeness(r, a)
	checkStep2Structure(r, a)
	checkHierarchyAcyclic(r, a)
	if reg != nil {
		checkRegistryReport(r, reg.Report())
	}

	rep := r.finalize()
	logging.L(logging.CategoryValidator).Infow("step 2 validated",
		"analysis", analysisID, "score", rep.OverallScore, "status", rep.OverallStatus)
	return rep, nil
}
