package validator

import (
	"fmt"
	"strings"

	"stpasec/internal/agent"
	"stpasec/internal/registry"
	"stpasec/internal/store"
	"stpasec/internal/types"
)

// step1Artifacts is everything the Step 1 checks read, loaded once.
type step1Artifacts struct {
	missions        []types.Mission
	losses          []types.Loss
	hazards         []types.Hazard
	stakeholders    []types.Stakeholder
	adversaries     []types.Adversary
	constraints     []types.SecurityConstraint
	boundaries      []types.SystemBoundary
	hazardLossMaps  []store.MappingRecord
	constraintMaps  []store.MappingRecord
}

func loadStep1Artifacts(s *store.Store, analysisID string) (*step1Artifacts, error) {
	var a step1Artifacts
	var err error
	if a.missions, err = store.FetchArtifactsInto[types.Mission](s, analysisID, types.KindMission); err != nil {
		return nil, err
	}
	if a.losses, err = store.FetchArtifactsInto[types.Loss](s, analysisID, types.KindLoss); err != nil {
		return nil, err
	}
	if a.hazards, err = store.FetchArtifactsInto[types.Hazard](s, analysisID, types.KindHazard); err != nil {
		return nil, err
	}
	if a.stakeholders, err = store.FetchArtifactsInto[types.Stakeholder](s, analysisID, types.KindStakeholder); err != nil {
		return nil, err
	}
	if a.adversaries, err = store.FetchArtifactsInto[types.Adversary](s, analysisID, types.KindAdversary); err != nil {
		return nil, err
	}
	if a.constraints, err = store.FetchArtifactsInto[types.SecurityConstraint](s, analysisID, types.KindConstraint); err != nil {
		return nil, err
	}
	if a.boundaries, err = store.FetchArtifactsInto[types.SystemBoundary](s, analysisID, types.KindSystemBoundary); err != nil {
		return nil, err
	}
	if a.hazardLossMaps, err = s.FetchMappings(analysisID, types.KindHazardLossMap); err != nil {
		return nil, err
	}
	if a.constraintMaps, err = s.FetchMappings(analysisID, types.KindConstraintMap); err != nil {
		return nil, err
	}
	return &a, nil
}

func (a *step1Artifacts) lossIDs() map[string]bool {
	out := make(map[string]bool, len(a.losses))
	for _, l := range a.losses {
		out[l.Identifier] = true
	}
	return out
}

func (a *step1Artifacts) hazardIDs() map[string]bool {
	out := make(map[string]bool, len(a.hazards))
	for _, h := range a.hazards {
		out[h.Identifier] = true
	}
	return out
}

// checkAbstraction enforces mission-level language in the Step 1 framing.
func checkAbstraction(r *reporter, a *step1Artifacts) {
	for _, m := range a.missions {
		framing := strings.Join(append([]string{m.Purpose, m.Method}, m.Goals...), " ")
		for _, kw := range agent.FindImplementationKeywords(framing) {
			r.add(CategoryAbstraction, SeverityMajor,
				fmt.Sprintf("mission contains implementation keyword %q", kw), "")
		}
		for _, phrase := range agent.FindPreventionLanguage(framing) {
			r.add(CategoryAbstraction, SeverityMajor,
				fmt.Sprintf("mission contains prevention language %q", phrase), "")
		}
	}

	for _, l := range a.losses {
		lower := strings.ToLower(l.Description)
		for _, word := range []string{"attack", "exploit", "breach", "hack"} {
			if strings.Contains(lower, word) {
				r.add(CategoryAbstraction, SeverityMinor,
					fmt.Sprintf("loss describes a mechanism (%q), not an outcome", word), l.Identifier)
				break
			}
		}
	}

	for _, h := range a.hazards {
		lower := strings.ToLower(h.Description)
		for _, phrase := range []string{"without", "missing", "lack of"} {
			if strings.Contains(lower, phrase) {
				r.add(CategoryAbstraction, SeverityMinor,
					fmt.Sprintf("hazard phrased as missing defense (%q)", phrase), h.Identifier)
				break
			}
		}
		for _, verb := range []string{"attacks", "steals", "exploits", "breaches", "injects"} {
			if strings.Contains(lower, verb) {
				r.add(CategoryAbstraction, SeverityMinor,
					fmt.Sprintf("hazard describes an action (%q), not a state", verb), h.Identifier)
				break
			}
		}
	}
}

// checkCompleteness enforces minimum artifact counts and required fields.
func checkCompleteness(r *reporter, a *step1Artifacts) {
	if len(a.missions) == 0 {
		r.add(CategoryCompleteness, SeverityCritical, "no mission statement", "")
	}
	for _, m := range a.missions {
		if m.Purpose == "" || m.Method == "" || len(m.Goals) == 0 {
			r.add(CategoryCompleteness, SeverityMajor, "mission missing purpose, method, or goals", "")
		}
	}
	counts := []struct {
		name    string
		have    int
		minimum int
	}{
		{"losses", len(a.losses), 3},
		{"hazards", len(a.hazards), 3},
		{"stakeholders", len(a.stakeholders), 5},
		{"adversaries", len(a.adversaries), 2},
		{"constraints", len(a.constraints), 3},
	}
	for _, c := range counts {
		if c.have == 0 {
			r.add(CategoryCompleteness, SeverityCritical, fmt.Sprintf("no %s identified", c.name), "")
		} else if c.have < c.minimum {
			r.add(CategoryCompleteness, SeverityMajor,
				fmt.Sprintf("only %d %s (minimum %d)", c.have, c.name, c.minimum), "")
		}
	}
}

// checkConsistency verifies reference closure across Step 1 artifacts.
func checkConsistency(r *reporter, a *step1Artifacts) {
	lossIDs := a.lossIDs()
	hazardIDs := a.hazardIDs()

	for _, h := range a.hazards {
		for _, id := range h.LossIDs {
			if !lossIDs[id] {
				r.add(CategoryConsistency, SeverityMajor,
					fmt.Sprintf("hazard references unknown loss %s", id), h.Identifier)
			}
		}
	}
	for _, c := range a.constraints {
		for _, id := range c.HazardIDs {
			if !hazardIDs[id] {
				r.add(CategoryConsistency, SeverityMajor,
					fmt.Sprintf("constraint references unknown hazard %s", id), c.Identifier)
			}
		}
	}
	for _, s := range a.stakeholders {
		for _, id := range s.LossExposure {
			if !lossIDs[id] {
				r.add(CategoryConsistency, SeverityMinor,
					fmt.Sprintf("stakeholder %q references unknown loss %s", s.Name, id), "")
			}
		}
	}
	for _, m := range a.hazardLossMaps {
		if !hazardIDs[m.AID] || !lossIDs[m.BID] {
			r.add(CategoryConsistency, SeverityMajor,
				fmt.Sprintf("hazard-loss mapping %s -> %s has a dangling endpoint", m.AID, m.BID), "")
		}
	}
}

// checkCoverage verifies hazard category spread and constraint coverage per
// hazard. A hazard tied to two or more losses is treated as critical and
// needs two constraints.
func checkCoverage(r *reporter, a *step1Artifacts) {
	seen := make(map[types.HazardCategory]bool)
	for _, h := range a.hazards {
		seen[h.Category] = true
	}
	for _, cat := range []types.HazardCategory{
		types.HazardIntegrity, types.HazardConfidentiality,
		types.HazardAvailability, types.HazardCapability,
	} {
		if !seen[cat] {
			r.add(CategoryCoverage, SeverityMinor,
				fmt.Sprintf("no hazard in category %s", cat), "")
		}
	}

	constraintsPerHazard := make(map[string]int)
	for _, c := range a.constraints {
		for _, id := range c.HazardIDs {
			constraintsPerHazard[id]++
		}
	}
	for _, h := range a.hazards {
		n := constraintsPerHazard[h.Identifier]
		if n == 0 {
			r.add(CategoryCoverage, SeverityMajor,
				"hazard has no security constraint", h.Identifier)
		} else if len(h.LossIDs) >= 2 && n < 2 {
			r.add(CategoryCoverage, SeverityMinor,
				"critical hazard has only one constraint", h.Identifier)
		}
	}
}

// idealConstraintMix is the target type distribution, in percent.
var idealConstraintMix = map[types.ConstraintType]float64{
	types.ConstraintPreventive:   40,
	types.ConstraintDetective:    30,
	types.ConstraintCorrective:   20,
	types.ConstraintCompensating: 10,
}

// checkConstraintBalance compares the constraint type mix to the ideal
// distribution.
func checkConstraintBalance(r *reporter, a *step1Artifacts) {
	if len(a.constraints) == 0 {
		return // completeness already flagged it
	}
	counts := make(map[types.ConstraintType]int)
	for _, c := range a.constraints {
		counts[c.Type]++
		if c.Statement == "" {
			r.add(CategorySecurityConstraints, SeverityMajor, "constraint has no statement", c.Identifier)
		}
	}
	total := float64(len(a.constraints))
	var deviation float64
	for ctype, ideal := range idealConstraintMix {
		actual := float64(counts[ctype]) / total * 100
		if actual > ideal {
			deviation += actual - ideal
		} else {
			deviation += ideal - actual
		}
	}
	// Total absolute deviation over 80 means the mix is one-sided (e.g. all
	// preventive); over 40 it is skewed.
	switch {
	case deviation > 80:
		r.add(CategorySecurityConstraints, SeverityMajor,
			fmt.Sprintf("constraint type distribution is one-sided (deviation %.0f%%)", deviation), "")
	case deviation > 40:
		r.add(CategorySecurityConstraints, SeverityMinor,
			fmt.Sprintf("constraint type distribution is skewed (deviation %.0f%%)", deviation), "")
	}
	if counts[types.ConstraintDetective] == 0 {
		r.add(CategorySecurityConstraints, SeverityWarning, "no detective constraints", "")
	}
}

// checkBoundaries enforces per-type element minimums.
func checkBoundaries(r *reporter, a *step1Artifacts) {
	if len(a.boundaries) == 0 {
		r.add(CategorySystemBoundaries, SeverityCritical, "no system boundaries defined", "")
		return
	}
	hasScope := false
	for _, b := range a.boundaries {
		switch b.Type {
		case types.BoundarySystemScope:
			hasScope = true
			var inside, outside, iface int
			for _, e := range b.Elements {
				switch e.Position {
				case types.PositionInside:
					inside++
				case types.PositionOutside:
					outside++
				case types.PositionInterface:
					iface++
				}
			}
			if inside < 3 || outside < 3 || iface < 2 {
				r.add(CategorySystemBoundaries, SeverityMinor,
					fmt.Sprintf("scope boundary %q is thin: %d inside, %d outside, %d interface (want 3/3/2)",
						b.Name, inside, outside, iface), "")
			}
		case types.BoundaryTrust, types.BoundaryDataGov:
			if len(b.Elements) < 3 {
				r.add(CategorySystemBoundaries, SeverityMinor,
					fmt.Sprintf("%s boundary %q has fewer than 3 elements", b.Type, b.Name), "")
			}
		case types.BoundaryResponsibility:
			var we, they, shared int
			for _, e := range b.Elements {
				upper := strings.ToUpper(e.Name)
				switch {
				case strings.HasPrefix(upper, "WE OWN"):
					we++
				case strings.HasPrefix(upper, "THEY OWN"):
					they++
				case strings.HasPrefix(upper, "SHARED"):
					shared++
				}
			}
			if we < 2 || they < 2 || shared < 2 {
				r.add(CategorySystemBoundaries, SeverityMinor,
					fmt.Sprintf("responsibility boundary %q needs 2 each of WE OWN / THEY OWN / SHARED", b.Name), "")
			}
		}
	}
	if !hasScope {
		r.add(CategorySystemBoundaries, SeverityMajor, "no system_scope boundary defined", "")
	}
}

// step2Artifacts is everything the Step 2 checks read.
type step2Artifacts struct {
	components []types.Component
	actions    []types.ControlAction
	contexts   []types.ControlContext
	feedbacks  []types.FeedbackMechanism
	boundaries []types.TrustBoundary
	hierarchy  []store.MappingRecord
}

func loadStep2Artifacts(s *store.Store, analysisID string) (*step2Artifacts, error) {
	var a step2Artifacts
	var err error
	if a.components, err = store.FetchArtifactsInto[types.Component](s, analysisID, types.KindComponent); err != nil {
		return nil, err
	}
	if a.actions, err = store.FetchArtifactsInto[types.ControlAction](s, analysisID, types.KindControlAction); err != nil {
		return nil, err
	}
	if a.contexts, err = store.FetchArtifactsInto[types.ControlContext](s, analysisID, types.KindControlContext); err != nil {
		return nil, err
	}
	if a.feedbacks, err = store.FetchArtifactsInto[types.FeedbackMechanism](s, analysisID, types.KindFeedback); err != nil {
		return nil, err
	}
	if a.boundaries, err = store.FetchArtifactsInto[types.TrustBoundary](s, analysisID, types.KindTrustBoundary); err != nil {
		return nil, err
	}
	if a.hierarchy, err = s.FetchMappings(analysisID, types.KindControlHierarchy); err != nil {
		return nil, err
	}
	return &a, nil
}

func checkStep2Completeness(r *reporter, a *step2Artifacts) {
	if len(a.components) == 0 {
		r.add(CategoryCompleteness, SeverityCritical, "no components identified", "")
		return
	}
	if len(a.actions) == 0 {
		r.add(CategoryCompleteness, SeverityCritical, "no control actions identified", "")
	}
	if len(a.feedbacks) == 0 {
		r.add(CategoryCompleteness, SeverityMajor, "no feedback mechanisms identified", "")
	}
	if len(a.boundaries) == 0 {
		r.add(CategorySystemBoundaries, SeverityMajor, "no trust boundaries identified", "")
	}
}

// checkStep2Structure enforces the control-structure invariants: every
// controller commands or is sensor-only, every process is commanded, every
// action has a context.
func checkStep2Structure(r *reporter, a *step2Artifacts) {
	outgoing := make(map[string]int)
	incoming := make(map[string]int)
	for _, ca := range a.actions {
		outgoing[ca.ControllerID]++
		incoming[ca.ControlledProcessID]++
	}
	for _, c := range a.components {
		switch c.Kind {
		case types.KindController, types.KindDualRole:
			if outgoing[c.Identifier] == 0 && !c.SensorOnly {
				r.add(CategoryConsistency, SeverityMajor,
					"controller issues no control actions and is not sensor-only", c.Identifier)
			}
		}
		switch c.Kind {
		case types.KindControlledProcess, types.KindDualRole:
			if incoming[c.Identifier] == 0 && c.Kind == types.KindControlledProcess {
				r.add(CategoryConsistency, SeverityMajor,
					"controlled process receives no control actions", c.Identifier)
			}
		}
	}

	covered := make(map[string]bool, len(a.contexts))
	for _, cc := range a.contexts {
		covered[cc.ControlActionID] = true
	}
	for _, ca := range a.actions {
		if !covered[ca.Identifier] {
			r.add(CategoryCoverage, SeverityMinor, "control action has no context", ca.Identifier)
		}
	}

	// Feedback coverage: a controller commanding with no feedback at all is
	// controlling blind.
	feedbackTo := make(map[string]bool)
	for _, fb := range a.feedbacks {
		feedbackTo[fb.TargetControllerID] = true
	}
	for id, n := range outgoing {
		if n > 0 && !feedbackTo[id] {
			r.add(CategoryCoverage, SeverityWarning, "controller receives no feedback", id)
		}
	}
}

// checkHierarchyAcyclic verifies the supervision closure is a DAG.
func checkHierarchyAcyclic(r *reporter, a *step2Artifacts) {
	children := make(map[string][]string)
	for _, edge := range a.hierarchy {
		children[edge.AID] = append(children[edge.AID], edge.BID)
	}
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int)
	var visit func(id string) bool
	visit = func(id string) bool {
		switch state[id] {
		case visiting:
			return false
		case done:
			return true
		}
		state[id] = visiting
		for _, child := range children[id] {
			if !visit(child) {
				return false
			}
		}
		state[id] = done
		return true
	}
	for id := range children {
		if !visit(id) {
			r.add(CategoryConsistency, SeverityCritical,
				"control hierarchy contains a cycle", id)
			return
		}
	}
}

// checkRegistryReport folds the registry's accumulated violations into the
// report.
func checkRegistryReport(r *reporter, rep registry.Report) {
	for _, id := range rep.UndefinedReferences {
		r.add(CategoryConsistency, SeverityMajor,
			fmt.Sprintf("undefined component reference %s", id), id)
	}
	for _, id := range rep.OrphanComponents {
		r.add(CategorySystemBoundaries, SeverityWarning,
			fmt.Sprintf("component %s has no references in either direction", id), id)
	}
	for _, msg := range rep.Errors {
		r.add(CategoryConsistency, SeverityMinor, msg, "")
	}
}
