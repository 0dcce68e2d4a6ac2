package coordinator

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"stpasec/internal/agent"
	"stpasec/internal/prompts"
	"stpasec/internal/types"
)

// Cognitive synthesis: merge the per-style variants of one agent's output
// into a single result. Items are keyed by stable identity (category plus
// description prefix, type plus name, endpoint identifiers) so the same
// finding surfaced by several styles collapses to one artifact with
// provenance. The merge is idempotent and independent of variant order:
// variants are processed in sorted style order and merged items are emitted
// in sorted identity order.

// Synthesize merges style variants into the agent's final result. A single
// variant passes through the same machinery so provenance is uniform.
func Synthesize(agentType string, variants []*types.AgentResult) *types.AgentResult {
	ok := make([]*types.AgentResult, 0, len(variants))
	var failed []*types.AgentResult
	for _, v := range variants {
		if v == nil {
			continue
		}
		if v.Success {
			ok = append(ok, v)
		} else {
			failed = append(failed, v)
		}
	}

	if len(ok) == 0 {
		res := &types.AgentResult{AgentType: agentType, Success: false}
		if len(failed) > 0 {
			res.AnalysisID = failed[0].AnalysisID
			res.StartedAt = failed[0].StartedAt
			res.CompletedAt = failed[len(failed)-1].CompletedAt
			var msgs []string
			for _, f := range failed {
				msgs = append(msgs, f.Error)
				res.StylesUsed = append(res.StylesUsed, f.CognitiveStyle)
			}
			res.Error = strings.Join(msgs, "; ")
		}
		return res
	}

	sort.Slice(ok, func(i, j int) bool { return ok[i].CognitiveStyle < ok[j].CognitiveStyle })

	merged := &types.AgentResult{
		AgentType:  agentType,
		AnalysisID: ok[0].AnalysisID,
		Success:    true,
		Data:       make(map[string]any),
	}
	merged.StartedAt = ok[0].StartedAt
	for _, v := range ok {
		if v.StartedAt.Before(merged.StartedAt) {
			merged.StartedAt = v.StartedAt
		}
		if v.CompletedAt.After(merged.CompletedAt) {
			merged.CompletedAt = v.CompletedAt
		}
		merged.StylesUsed = append(merged.StylesUsed, v.CognitiveStyle)
		merged.ValidationErrors = append(merged.ValidationErrors, v.ValidationErrors...)
	}
	sort.Strings(merged.StylesUsed)
	if merged.CompletedAt.IsZero() {
		merged.CompletedAt = time.Now()
	}

	switch agentType {
	case prompts.MissionAnalyst:
		// Singleton artifact: the first successful variant wins.
		merged.Data["mission"] = ok[0].Data["mission"]

	case prompts.LossIdentification:
		losses, meta := mergeProvenanced(ok, "losses", len(merged.StylesUsed),
			func(l types.Loss) string { return string(l.Category) + "|" + descKey(l.Description) },
			mergeLoss,
			func(l *types.Loss, p *types.StyleOrigins) { l.Provenance = p })
		merged.Data["losses"] = losses
		merged.Synthesis = meta
		merged.Data["dependencies"] = mergePlain(ok, "dependencies",
			func(d agent.LossDependencyDraft) string {
				return descKey(d.Primary) + "|" + descKey(d.Dependent) + "|" + d.Type
			}, nil)

	case prompts.HazardIdentification:
		hazards, meta := mergeProvenanced(ok, "hazards", len(merged.StylesUsed),
			func(h agent.HazardDraft) string { return string(h.Category) + "|" + descKey(h.Description) },
			mergeHazard,
			func(h *agent.HazardDraft, p *types.StyleOrigins) { h.Provenance = p })
		merged.Data["hazards"] = hazards
		merged.Synthesis = meta

	case prompts.StakeholderAnalyst:
		stakeholders, meta := mergeProvenanced(ok, "stakeholders", len(merged.StylesUsed),
			func(s types.Stakeholder) string { return s.Type + "|" + descKey(s.Name) },
			mergeStakeholder,
			func(s *types.Stakeholder, p *types.StyleOrigins) { s.Provenance = p })
		merged.Data["stakeholders"] = stakeholders
		merged.Synthesis = meta
		adversaries, _ := mergeProvenanced(ok, "adversaries", len(merged.StylesUsed),
			func(a types.Adversary) string { return a.Class },
			mergeAdversary,
			func(a *types.Adversary, p *types.StyleOrigins) { a.Provenance = p })
		merged.Data["adversaries"] = adversaries

	case prompts.SecurityConstraints:
		constraints, meta := mergeProvenanced(ok, "constraints", len(merged.StylesUsed),
			func(c agent.ConstraintDraft) string { return string(c.Type) + "|" + descKey(c.Statement) },
			mergeConstraint,
			func(c *agent.ConstraintDraft, p *types.StyleOrigins) { c.Provenance = p })
		merged.Data["constraints"] = constraints
		merged.Synthesis = meta

	case prompts.SystemBoundaries:
		boundaries, meta := mergeProvenanced(ok, "boundaries", len(merged.StylesUsed),
			func(b types.SystemBoundary) string { return string(b.Type) + "|" + descKey(b.Name) },
			mergeBoundary,
			func(b *types.SystemBoundary, p *types.StyleOrigins) { b.Provenance = p })
		merged.Data["boundaries"] = boundaries
		merged.Synthesis = meta

	case prompts.ControlStructure:
		merged.Data["components"] = mergePlain(ok, "components",
			func(c types.Component) string { return string(c.Kind) + "|" + descKey(c.Name) },
			func(dst *types.Component, src types.Component) {
				if dst.Description == "" {
					dst.Description = src.Description
				}
				dst.SensorOnly = dst.SensorOnly || src.SensorOnly
			})
		merged.Data["hierarchy"] = mergePlain(ok, "hierarchy",
			func(h agent.HierarchyDraft) string {
				return descKey(h.Parent) + "|" + descKey(h.Child) + "|" + h.Relationship
			}, nil)

	case prompts.ControlActionMapping:
		merged.Data["control_actions"] = mergePlain(ok, "control_actions",
			func(ca types.ControlAction) string {
				return ca.ControllerID + "|" + ca.ControlledProcessID + "|" + descKey(ca.Name)
			}, nil)

	case prompts.StateContextAnalysis:
		merged.Data["contexts"] = mergePlain(ok, "contexts",
			func(cc types.ControlContext) string { return cc.ControlActionID },
			mergeControlContext)
		merged.Data["modes"] = mergePlain(ok, "modes",
			func(m types.OperationalMode) string { return descKey(m.Name) }, nil)
		merged.Data["transitions"] = mergePlain(ok, "transitions",
			func(t types.ModeTransition) string {
				return descKey(t.FromMode) + "|" + descKey(t.ToMode) + "|" + descKey(t.Trigger)
			}, nil)

	case prompts.FeedbackMechanism:
		merged.Data["feedback_mechanisms"] = mergePlain(ok, "feedback_mechanisms",
			func(fb types.FeedbackMechanism) string {
				return fb.SourceProcessID + "|" + fb.TargetControllerID + "|" + descKey(fb.InformationType)
			}, nil)

	case prompts.TrustBoundaryAnalysis:
		merged.Data["trust_boundaries"] = mergePlain(ok, "trust_boundaries",
			func(tb types.TrustBoundary) string { return tb.ComponentAID + "|" + tb.ComponentBID + "|" + tb.Type },
			nil)

	case prompts.ProcessModelAnalyst:
		merged.Data["process_models"] = mergePlain(ok, "process_models",
			func(pm types.ProcessModel) string { return pm.ControllerID },
			mergeProcessModel)

	default:
		// Unknown agent type: pass the first variant's data through.
		merged.Data = ok[0].Data
	}

	return merged
}

// descKey is the identity normalization for free-text fields: lowercase,
// whitespace-collapsed, first 50 characters.
func descKey(s string) string {
	s = strings.Join(strings.Fields(strings.ToLower(s)), " ")
	if len(s) > 50 {
		s = s[:50]
	}
	return s
}

// confidence applies the promotion rule: consensus across styles is
// very_high; a single-style find is high when other styles ran, else medium.
func confidence(foundBy, stylesUsed int) string {
	switch {
	case foundBy >= 2:
		return "very_high"
	case stylesUsed > 1:
		return "high"
	default:
		return "medium"
	}
}

// variantItems reads a typed slice out of a variant's data map, tolerating
// values that crossed a serialization boundary.
func variantItems[T any](res *types.AgentResult, key string) []T {
	raw, ok := res.Data[key]
	if !ok {
		return nil
	}
	if typed, ok := raw.([]T); ok {
		return typed
	}
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var out []T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}

type mergeEntry[T any] struct {
	item   T
	styles map[string]bool
}

// mergeKeyed is the shared merge loop: items keyed by identity, optional
// field union via mergeFn, styles tracked per key.
func mergeKeyed[T any](variants []*types.AgentResult, dataKey string,
	keyFn func(T) string, mergeFn func(*T, T)) (map[string]*mergeEntry[T], []string, map[string]int) {

	entries := make(map[string]*mergeEntry[T])
	var keys []string
	contributions := make(map[string]int)

	for _, v := range variants {
		style := v.CognitiveStyle
		for _, item := range variantItems[T](v, dataKey) {
			k := keyFn(item)
			e, exists := entries[k]
			if !exists {
				e = &mergeEntry[T]{item: item, styles: make(map[string]bool)}
				entries[k] = e
				keys = append(keys, k)
			} else if mergeFn != nil {
				mergeFn(&e.item, item)
			}
			if !e.styles[style] {
				e.styles[style] = true
				contributions[style]++
			}
		}
	}
	sort.Strings(keys)
	return entries, keys, contributions
}

// mergeProvenanced merges items that carry provenance and returns the
// synthesis metadata.
func mergeProvenanced[T any](variants []*types.AgentResult, dataKey string, stylesUsed int,
	keyFn func(T) string, mergeFn func(*T, T), provFn func(*T, *types.StyleOrigins)) ([]T, *types.SynthesisMetadata) {

	entries, keys, contributions := mergeKeyed(variants, dataKey, keyFn, mergeFn)

	out := make([]T, 0, len(keys))
	consensus := 0
	for _, k := range keys {
		e := entries[k]
		styles := make([]string, 0, len(e.styles))
		for s := range e.styles {
			styles = append(styles, s)
		}
		sort.Strings(styles)
		if len(styles) >= 2 {
			consensus++
		}
		provFn(&e.item, &types.StyleOrigins{
			FoundByStyles: styles,
			Confidence:    confidence(len(styles), stylesUsed),
		})
		out = append(out, e.item)
	}
	return out, &types.SynthesisMetadata{
		TotalUnique:        len(out),
		ConsensusItems:     consensus,
		StyleContributions: contributions,
	}
}

// mergePlain merges items without provenance fields.
func mergePlain[T any](variants []*types.AgentResult, dataKey string,
	keyFn func(T) string, mergeFn func(*T, T)) []T {

	entries, keys, _ := mergeKeyed(variants, dataKey, keyFn, mergeFn)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, entries[k].item)
	}
	return out
}

func mergeLoss(dst *types.Loss, src types.Loss) {
	if dst.MissionImpact == "" {
		dst.MissionImpact = src.MissionImpact
	}
	if dst.Severity == (types.LossSeverity{}) {
		dst.Severity = src.Severity
	}
}

func mergeHazard(dst *agent.HazardDraft, src agent.HazardDraft) {
	dst.LossIDs = unionStrings(dst.LossIDs, src.LossIDs)
	seen := make(map[string]bool, len(dst.LossMappings))
	for _, m := range dst.LossMappings {
		seen[m.LossID] = true
	}
	for _, m := range src.LossMappings {
		if !seen[m.LossID] {
			dst.LossMappings = append(dst.LossMappings, m)
			seen[m.LossID] = true
		}
	}
	if dst.AffectedProperty == "" {
		dst.AffectedProperty = src.AffectedProperty
	}
	dst.EnvironmentalFactors = unionStrings(dst.EnvironmentalFactors, src.EnvironmentalFactors)
}

func mergeStakeholder(dst *types.Stakeholder, src types.Stakeholder) {
	dst.LossExposure = unionStrings(dst.LossExposure, src.LossExposure)
	if dst.MissionPerspective == "" {
		dst.MissionPerspective = src.MissionPerspective
	}
	if dst.Influence == "" {
		dst.Influence = src.Influence
	}
	if dst.Interest == "" {
		dst.Interest = src.Interest
	}
}

func mergeAdversary(dst *types.Adversary, src types.Adversary) {
	dst.Targets = unionStrings(dst.Targets, src.Targets)
	if dst.Profile == "" {
		dst.Profile = src.Profile
	}
	if dst.Capability == "" {
		dst.Capability = src.Capability
	}
}

func mergeConstraint(dst *agent.ConstraintDraft, src agent.ConstraintDraft) {
	// Mandatory enforcement wins over recommended.
	if src.EnforcementLevel == "mandatory" {
		dst.EnforcementLevel = "mandatory"
	}
	dst.HazardIDs = unionStrings(dst.HazardIDs, src.HazardIDs)
	seen := make(map[string]bool, len(dst.HazardMappings))
	for _, m := range dst.HazardMappings {
		seen[m.HazardID] = true
	}
	for _, m := range src.HazardMappings {
		if !seen[m.HazardID] {
			dst.HazardMappings = append(dst.HazardMappings, m)
			seen[m.HazardID] = true
		}
	}
	if dst.Rationale == "" {
		dst.Rationale = src.Rationale
	}
}

func mergeBoundary(dst *types.SystemBoundary, src types.SystemBoundary) {
	seen := make(map[string]bool, len(dst.Elements))
	for _, e := range dst.Elements {
		seen[descKey(e.Name)+"|"+string(e.Position)] = true
	}
	for _, e := range src.Elements {
		k := descKey(e.Name) + "|" + string(e.Position)
		if !seen[k] {
			dst.Elements = append(dst.Elements, e)
			seen[k] = true
		}
	}
}

func mergeControlContext(dst *types.ControlContext, src types.ControlContext) {
	dst.Triggers = unionStrings(dst.Triggers, src.Triggers)
	dst.Preconditions = unionStrings(dst.Preconditions, src.Preconditions)
	dst.EnvironmentalFactors = unionStrings(dst.EnvironmentalFactors, src.EnvironmentalFactors)
	dst.ApplicableModes = unionStrings(dst.ApplicableModes, src.ApplicableModes)
	if dst.Timing == "" {
		dst.Timing = src.Timing
	}
}

func mergeProcessModel(dst *types.ProcessModel, src types.ProcessModel) {
	seen := make(map[string]bool, len(dst.StateVariables))
	for _, sv := range dst.StateVariables {
		seen[descKey(sv.Name)] = true
	}
	for _, sv := range src.StateVariables {
		if !seen[descKey(sv.Name)] {
			dst.StateVariables = append(dst.StateVariables, sv)
			seen[descKey(sv.Name)] = true
		}
	}
	dst.Assumptions = unionStrings(dst.Assumptions, src.Assumptions)
	dst.PotentialMismatches = unionStrings(dst.PotentialMismatches, src.PotentialMismatches)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			a = append(a, s)
			seen[s] = true
		}
	}
	return a
}
