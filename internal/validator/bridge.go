package validator

import (
	"fmt"
	"sort"

	"stpasec/internal/types"
)

// The Step 1 to Step 2 bridge translates the problem framing into the
// questions the control-structure phases must answer.

// ControlNeed summarizes what Step 2 must control for one hazard category.
type ControlNeed struct {
	HazardIDs []string `json:"hazard_ids"`
	Need      string   `json:"need"`
}

// ConstraintBuckets groups constraint identifiers by type.
type ConstraintBuckets struct {
	Preventive   []string `json:"preventive,omitempty"`
	Detective    []string `json:"detective,omitempty"`
	Corrective   []string `json:"corrective,omitempty"`
	Compensating []string `json:"compensating,omitempty"`
}

// ImpliedBoundary is a Step 1 boundary restated as a Step 2 control
// requirement.
type ImpliedBoundary struct {
	Name               string `json:"name"`
	Type               string `json:"type"`
	ControlRequirement string `json:"control_requirement"`
}

// Bridge is the full Step 1 -> Step 2 handoff artifact.
type Bridge struct {
	ControlNeeds       map[string]ControlNeed `json:"control_needs"`
	ConstraintBuckets  ConstraintBuckets      `json:"constraint_buckets"`
	ImpliedBoundaries  []ImpliedBoundary      `json:"implied_boundaries,omitempty"`
	TransitionGuidance []string               `json:"transition_guidance"`
}

var controlNeedText = map[types.HazardCategory]string{
	types.HazardIntegrity:       "Identify the controllers and actions that maintain data and decision integrity; trace how corrupted state would propagate through control loops.",
	types.HazardConfidentiality: "Identify where classified information crosses component and trust boundaries; every crossing needs an authorization decision point.",
	types.HazardAvailability:    "Identify the control actions whose absence or delay leaves the system in a hazardous state; look for single controllers without fallback.",
	types.HazardCapability:      "Identify the controllers whose degraded process models reduce mission capability; map the feedback that keeps their beliefs current.",
}

// buildBridge derives the handoff from Step 1 artifacts.
func buildBridge(a *step1Artifacts) *Bridge {
	b := &Bridge{ControlNeeds: make(map[string]ControlNeed)}

	byCategory := make(map[types.HazardCategory][]string)
	for _, h := range a.hazards {
		byCategory[h.Category] = append(byCategory[h.Category], h.Identifier)
	}
	for cat, ids := range byCategory {
		sort.Strings(ids)
		b.ControlNeeds[string(cat)] = ControlNeed{HazardIDs: ids, Need: controlNeedText[cat]}
	}

	for _, c := range a.constraints {
		switch c.Type {
		case types.ConstraintPreventive:
			b.ConstraintBuckets.Preventive = append(b.ConstraintBuckets.Preventive, c.Identifier)
		case types.ConstraintDetective:
			b.ConstraintBuckets.Detective = append(b.ConstraintBuckets.Detective, c.Identifier)
		case types.ConstraintCorrective:
			b.ConstraintBuckets.Corrective = append(b.ConstraintBuckets.Corrective, c.Identifier)
		case types.ConstraintCompensating:
			b.ConstraintBuckets.Compensating = append(b.ConstraintBuckets.Compensating, c.Identifier)
		}
	}

	for _, sb := range a.boundaries {
		req := ""
		switch sb.Type {
		case types.BoundarySystemScope:
			req = "Every interface element becomes a candidate component or external entity in the control structure."
		case types.BoundaryTrust:
			req = "Restate this boundary as trust-boundary relations between the components on each side."
		case types.BoundaryResponsibility:
			req = "Shared elements need explicit control authority: decide which controller commands them."
		case types.BoundaryDataGov:
			req = "Control actions moving governed data across this boundary need data-protection requirements."
		}
		b.ImpliedBoundaries = append(b.ImpliedBoundaries, ImpliedBoundary{
			Name: sb.Name, Type: string(sb.Type), ControlRequirement: req,
		})
	}

	b.TransitionGuidance = append(b.TransitionGuidance,
		fmt.Sprintf("Step 1 produced %d losses, %d hazards, and %d constraints; every constraint should trace to at least one control action or feedback mechanism in Step 2.",
			len(a.losses), len(a.hazards), len(a.constraints)))
	if n := len(b.ConstraintBuckets.Preventive); n > 0 {
		b.TransitionGuidance = append(b.TransitionGuidance,
			fmt.Sprintf("%d preventive constraints: look for the control actions that enforce them before the hazardous state is reachable.", n))
	}
	if n := len(b.ConstraintBuckets.Detective); n > 0 {
		b.TransitionGuidance = append(b.TransitionGuidance,
			fmt.Sprintf("%d detective constraints: look for the feedback mechanisms that surface the hazardous state to a controller.", n))
	}
	if len(byCategory[types.HazardAvailability]) > 0 {
		b.TransitionGuidance = append(b.TransitionGuidance,
			"Availability hazards exist: check each controller for fallback when its feedback goes stale.")
	}
	return b
}
