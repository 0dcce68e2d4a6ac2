package coordinator

import (
	"encoding/json"
	"fmt"

	"stpasec/internal/store"
	"stpasec/internal/types"
)

func decodeProps(raw []byte, v any) error { return json.Unmarshal(raw, v) }

// Cross-reference synthesis joins the Step 2 phase outputs into one
// coherent control-structure view: which actions cross trust boundaries,
// which loops are closed by feedback, which boundaries concentrate risk.

// CriticalControlAction is a control action enriched with its boundary
// crossings and the feedback that closes its loop.
type CriticalControlAction struct {
	Action             types.ControlAction `json:"action"`
	CrossesBoundaries  []string            `json:"crosses_boundaries,omitempty"`
	FeedbackMechanisms []string            `json:"feedback_mechanisms,omitempty"`
	ClosedLoop         bool                `json:"closed_loop"`
}

// BoundaryRisk is a trust boundary enriched with the actions crossing it.
type BoundaryRisk struct {
	Boundary        types.TrustBoundary `json:"boundary"`
	CrossingActions []string            `json:"crossing_actions,omitempty"`
	RiskLevel       string              `json:"risk_level"`
}

// ComponentNode is one component with its command and feedback adjacency.
type ComponentNode struct {
	Component            types.Component `json:"component"`
	SendsCommandsTo      []string        `json:"sends_commands_to,omitempty"`
	ReceivesFeedbackFrom []string        `json:"receives_feedback_from,omitempty"`
}

// HierarchyEdge is one flat supervision relationship.
type HierarchyEdge struct {
	ParentID     string `json:"parent_id"`
	ChildID      string `json:"child_id"`
	Relationship string `json:"relationship"`
}

// CrossRefSummary carries the headline counts.
type CrossRefSummary struct {
	BoundaryCrossingActions int `json:"boundary_crossing_actions"`
	ClosedLoopActions       int `json:"closed_loop_actions"`
	HighRiskBoundaries      int `json:"high_risk_boundaries"`
}

// CrossReferenceSynthesis is the full Step 2 join.
type CrossReferenceSynthesis struct {
	CriticalControlActions []CriticalControlAction `json:"critical_control_actions"`
	TrustBoundaries        []BoundaryRisk          `json:"trust_boundaries"`
	ComponentHierarchy     []ComponentNode         `json:"component_hierarchy"`
	Relationships          []HierarchyEdge         `json:"relationships"`
	CrossReferences        CrossRefSummary         `json:"cross_references"`
}

// synthesizeCrossReferences builds the join from persisted Step 2
// artifacts.
func synthesizeCrossReferences(s *store.Store, analysisID string) (*CrossReferenceSynthesis, error) {
	components, err := store.FetchArtifactsInto[types.Component](s, analysisID, types.KindComponent)
	if err != nil {
		return nil, fmt.Errorf("cross-reference: %w", err)
	}
	actions, err := store.FetchArtifactsInto[types.ControlAction](s, analysisID, types.KindControlAction)
	if err != nil {
		return nil, fmt.Errorf("cross-reference: %w", err)
	}
	feedbacks, err := store.FetchArtifactsInto[types.FeedbackMechanism](s, analysisID, types.KindFeedback)
	if err != nil {
		return nil, fmt.Errorf("cross-reference: %w", err)
	}
	boundaries, err := store.FetchArtifactsInto[types.TrustBoundary](s, analysisID, types.KindTrustBoundary)
	if err != nil {
		return nil, fmt.Errorf("cross-reference: %w", err)
	}
	hierarchy, err := s.FetchMappings(analysisID, types.KindControlHierarchy)
	if err != nil {
		return nil, fmt.Errorf("cross-reference: %w", err)
	}

	out := &CrossReferenceSynthesis{}

	// Actions: boundary crossings and closed loops.
	crossingsPerBoundary := make(map[string][]string)
	for _, ca := range actions {
		cca := CriticalControlAction{Action: ca}
		for _, tb := range boundaries {
			if spansBoundary(ca.ControllerID, ca.ControlledProcessID, tb) {
				cca.CrossesBoundaries = append(cca.CrossesBoundaries, tb.Identifier)
				crossingsPerBoundary[tb.Identifier] = append(crossingsPerBoundary[tb.Identifier], ca.Identifier)
			}
		}
		for _, fb := range feedbacks {
			if fb.SourceProcessID == ca.ControlledProcessID && fb.TargetControllerID == ca.ControllerID {
				cca.FeedbackMechanisms = append(cca.FeedbackMechanisms, fb.Identifier)
			}
		}
		cca.ClosedLoop = len(cca.FeedbackMechanisms) > 0
		out.CriticalControlActions = append(out.CriticalControlActions, cca)

		if len(cca.CrossesBoundaries) > 0 {
			out.CrossReferences.BoundaryCrossingActions++
		}
		if cca.ClosedLoop {
			out.CrossReferences.ClosedLoopActions++
		}
	}

	// Boundaries: crossing actions and risk level.
	for _, tb := range boundaries {
		crossings := crossingsPerBoundary[tb.Identifier]
		br := BoundaryRisk{Boundary: tb, CrossingActions: crossings, RiskLevel: boundaryRisk(tb, len(crossings))}
		if br.RiskLevel == "high" {
			out.CrossReferences.HighRiskBoundaries++
		}
		out.TrustBoundaries = append(out.TrustBoundaries, br)
	}

	// Component adjacency.
	sendsTo := make(map[string][]string)
	feedbackFrom := make(map[string][]string)
	for _, ca := range actions {
		sendsTo[ca.ControllerID] = append(sendsTo[ca.ControllerID], ca.ControlledProcessID)
	}
	for _, fb := range feedbacks {
		feedbackFrom[fb.TargetControllerID] = append(feedbackFrom[fb.TargetControllerID], fb.SourceProcessID)
	}
	for _, c := range components {
		out.ComponentHierarchy = append(out.ComponentHierarchy, ComponentNode{
			Component:            c,
			SendsCommandsTo:      dedupeOrdered(sendsTo[c.Identifier]),
			ReceivesFeedbackFrom: dedupeOrdered(feedbackFrom[c.Identifier]),
		})
	}

	for _, rec := range hierarchy {
		edge := HierarchyEdge{ParentID: rec.AID, ChildID: rec.BID}
		var h types.ControlHierarchy
		if len(rec.Props) > 0 {
			if err := decodeProps(rec.Props, &h); err == nil {
				edge.Relationship = h.Relationship
			}
		}
		out.Relationships = append(out.Relationships, edge)
	}

	return out, nil
}

// spansBoundary reports whether from/to sit on opposite sides of a trust
// boundary.
func spansBoundary(fromID, toID string, tb types.TrustBoundary) bool {
	return (fromID == tb.ComponentAID && toID == tb.ComponentBID) ||
		(fromID == tb.ComponentBID && toID == tb.ComponentAID)
}

// boundaryRisk grades a trust boundary: high with many crossings or an
// inherently exposed type, medium with any crossing, low otherwise.
func boundaryRisk(tb types.TrustBoundary, crossings int) string {
	if crossings > 3 || tb.Type == "network" || tb.Type == "organizational" {
		return "high"
	}
	if crossings >= 1 {
		return "medium"
	}
	return "low"
}

func dedupeOrdered(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
