package coordinator

import (
	"fmt"
	"sort"

	"stpasec/internal/store"
	"stpasec/internal/types"
)

// Minimum artifact counts a complete Step 1 analysis must reach.
var step1MinCounts = map[types.ArtifactKind]int{
	types.KindMission:        1,
	types.KindLoss:           3,
	types.KindHazard:         3,
	types.KindStakeholder:    5,
	types.KindAdversary:      2,
	types.KindConstraint:     3,
	types.KindSystemBoundary: 1,
}

var step2MinCounts = map[types.ArtifactKind]int{
	types.KindComponent:     2,
	types.KindControlAction: 1,
	types.KindFeedback:      1,
}

// checkCompleteness runs the deterministic post-run census: artifact kinds
// present with minimum counts, required fields set, cross-references
// resolved.
func checkCompleteness(s *store.Store, analysisID string, step types.Step) (*types.CompletenessCheck, error) {
	check := &types.CompletenessCheck{IsComplete: true, Counts: make(map[string]int)}

	minCounts := step1MinCounts
	if step == types.Step2 {
		minCounts = step2MinCounts
	}

	for kind, minimum := range minCounts {
		records, err := s.FetchArtifacts(analysisID, kind)
		if err != nil {
			return nil, err
		}
		check.Counts[string(kind)] = len(records)
		if len(records) < minimum {
			check.IsComplete = false
			check.MissingKinds = append(check.MissingKinds,
				fmt.Sprintf("%s: %d of %d required", kind, len(records), minimum))
		}
	}
	sort.Strings(check.MissingKinds)

	if step == types.Step1 {
		if err := checkStep1Fields(s, analysisID, check); err != nil {
			return nil, err
		}
		if err := checkStep1Refs(s, analysisID, check); err != nil {
			return nil, err
		}
	} else {
		if err := checkStep2Refs(s, analysisID, check); err != nil {
			return nil, err
		}
	}

	if len(check.MissingFields) > 0 || len(check.BrokenRefs) > 0 {
		check.IsComplete = false
	}
	return check, nil
}

func checkStep1Fields(s *store.Store, analysisID string, check *types.CompletenessCheck) error {
	missions, err := store.FetchArtifactsInto[types.Mission](s, analysisID, types.KindMission)
	if err != nil {
		return err
	}
	for _, m := range missions {
		if m.Purpose == "" {
			check.MissingFields = append(check.MissingFields, "mission.purpose")
		}
		if m.Method == "" {
			check.MissingFields = append(check.MissingFields, "mission.method")
		}
		if len(m.Goals) == 0 {
			check.MissingFields = append(check.MissingFields, "mission.goals")
		}
	}

	losses, err := store.FetchArtifactsInto[types.Loss](s, analysisID, types.KindLoss)
	if err != nil {
		return err
	}
	for _, l := range losses {
		if l.Description == "" {
			check.MissingFields = append(check.MissingFields, l.Identifier+".description")
		}
		if l.Category == "" {
			check.MissingFields = append(check.MissingFields, l.Identifier+".category")
		}
	}

	hazards, err := store.FetchArtifactsInto[types.Hazard](s, analysisID, types.KindHazard)
	if err != nil {
		return err
	}
	for _, h := range hazards {
		if h.Description == "" {
			check.MissingFields = append(check.MissingFields, h.Identifier+".description")
		}
		if len(h.LossIDs) == 0 {
			check.MissingFields = append(check.MissingFields, h.Identifier+".loss_ids")
		}
	}
	return nil
}

func checkStep1Refs(s *store.Store, analysisID string, check *types.CompletenessCheck) error {
	lossIDs, err := identifierSet(s, analysisID, types.KindLoss)
	if err != nil {
		return err
	}
	hazardIDs, err := identifierSet(s, analysisID, types.KindHazard)
	if err != nil {
		return err
	}

	hazardLoss, err := s.FetchMappings(analysisID, types.KindHazardLossMap)
	if err != nil {
		return err
	}
	for _, m := range hazardLoss {
		if !hazardIDs[m.AID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("hazard_loss_mapping: unknown hazard %s", m.AID))
		}
		if !lossIDs[m.BID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("hazard_loss_mapping: unknown loss %s", m.BID))
		}
	}

	constraintIDs, err := identifierSet(s, analysisID, types.KindConstraint)
	if err != nil {
		return err
	}
	constraintHazard, err := s.FetchMappings(analysisID, types.KindConstraintMap)
	if err != nil {
		return err
	}
	for _, m := range constraintHazard {
		if !constraintIDs[m.AID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("constraint_hazard_mapping: unknown constraint %s", m.AID))
		}
		if !hazardIDs[m.BID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("constraint_hazard_mapping: unknown hazard %s", m.BID))
		}
	}
	return nil
}

func checkStep2Refs(s *store.Store, analysisID string, check *types.CompletenessCheck) error {
	componentIDs, err := identifierSet(s, analysisID, types.KindComponent)
	if err != nil {
		return err
	}

	actions, err := store.FetchArtifactsInto[types.ControlAction](s, analysisID, types.KindControlAction)
	if err != nil {
		return err
	}
	for _, ca := range actions {
		if !componentIDs[ca.ControllerID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown controller %s", ca.Identifier, ca.ControllerID))
		}
		if !componentIDs[ca.ControlledProcessID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown process %s", ca.Identifier, ca.ControlledProcessID))
		}
	}

	feedbacks, err := store.FetchArtifactsInto[types.FeedbackMechanism](s, analysisID, types.KindFeedback)
	if err != nil {
		return err
	}
	for _, fb := range feedbacks {
		if !componentIDs[fb.SourceProcessID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown process %s", fb.Identifier, fb.SourceProcessID))
		}
		if !componentIDs[fb.TargetControllerID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown controller %s", fb.Identifier, fb.TargetControllerID))
		}
	}

	boundaries, err := store.FetchArtifactsInto[types.TrustBoundary](s, analysisID, types.KindTrustBoundary)
	if err != nil {
		return err
	}
	for _, tb := range boundaries {
		if !componentIDs[tb.ComponentAID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown component %s", tb.Identifier, tb.ComponentAID))
		}
		if !componentIDs[tb.ComponentBID] {
			check.BrokenRefs = append(check.BrokenRefs, fmt.Sprintf("%s: unknown component %s", tb.Identifier, tb.ComponentBID))
		}
	}

	// Every control action needs a context.
	contexts, err := store.FetchArtifactsInto[types.ControlContext](s, analysisID, types.KindControlContext)
	if err != nil {
		return err
	}
	covered := make(map[string]bool, len(contexts))
	for _, cc := range contexts {
		covered[cc.ControlActionID] = true
	}
	for _, ca := range actions {
		if !covered[ca.Identifier] {
			check.MissingFields = append(check.MissingFields, ca.Identifier+".control_context")
		}
	}
	return nil
}

func identifierSet(s *store.Store, analysisID string, kind types.ArtifactKind) (map[string]bool, error) {
	records, err := s.FetchArtifacts(analysisID, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Identifier != "" {
			out[rec.Identifier] = true
		}
	}
	return out, nil
}
