package report

import (
	"fmt"
	"sort"
	"strings"

	"stpasec/internal/store"
	"stpasec/internal/types"
	"stpasec/internal/validator"
)

// WriteMarkdown renders and persists the human-readable analysis report.
// Artifacts are read back from the store so the report reflects exactly what
// was committed, not what the agents returned.
func (w *Writer) WriteMarkdown(s *store.Store, res *types.AnalysisResult) error {
	var b strings.Builder
	writeHeader(&b, res)
	if rep := validationReport(res); rep != nil {
		writeQuality(&b, rep)
	}

	var err error
	if res.Analysis.Step == types.Step2 {
		err = writeStep2Sections(&b, s, res.Analysis.ID)
	} else {
		err = writeStep1Sections(&b, s, res.Analysis.ID)
	}
	if err != nil {
		return err
	}

	writeCompleteness(&b, res.CompletenessCheck)
	writeErrors(&b, res.Errors)
	return w.write("analysis-report.md", []byte(b.String()))
}

// validationReport digs the validator's report out of the agent results.
func validationReport(res *types.AnalysisResult) *validator.Report {
	for _, name := range []string{"validation"} {
		ar, ok := res.AgentResults[name]
		if !ok || ar.Data == nil {
			continue
		}
		if rep, ok := ar.Data["report"].(*validator.Report); ok {
			return rep
		}
	}
	return nil
}

func writeHeader(b *strings.Builder, res *types.AnalysisResult) {
	stepName := "Step 1 - Problem Framing"
	if res.Analysis.Step == types.Step2 {
		stepName = "Step 2 - Control Structure Analysis"
	}
	fmt.Fprintf(b, "# STPA-Sec Analysis: %s\n\n", res.Analysis.Name)
	fmt.Fprintf(b, "| | |\n|---|---|\n")
	fmt.Fprintf(b, "| Analysis ID | %s |\n", res.Analysis.ID)
	fmt.Fprintf(b, "| Step | %s |\n", stepName)
	fmt.Fprintf(b, "| Execution mode | %s |\n", res.Analysis.ExecutionMode)
	fmt.Fprintf(b, "| Status | %s |\n", res.Status)
	if res.OverallStatus != "" {
		fmt.Fprintf(b, "| Overall status | %s |\n", res.OverallStatus)
	}
	if res.Analysis.ParentID != "" {
		fmt.Fprintf(b, "| Step 1 analysis | %s |\n", res.Analysis.ParentID)
	}
	b.WriteString("\n")
}

func writeQuality(b *strings.Builder, rep *validator.Report) {
	fmt.Fprintf(b, "## Quality Report\n\n")
	fmt.Fprintf(b, "Overall score: **%.1f / 100** (%s)\n\n", rep.OverallScore, rep.QualityLevel)

	names := make([]string, 0, len(rep.Categories))
	for name := range rep.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	b.WriteString("| Category | Score | Issues |\n|---|---|---|\n")
	for _, name := range names {
		cs := rep.Categories[name]
		fmt.Fprintf(b, "| %s | %.0f | %d |\n", name, cs.Score, len(cs.Issues))
	}
	b.WriteString("\n")

	if len(rep.Issues) > 0 {
		b.WriteString("### Findings\n\n")
		for _, issue := range rep.Issues {
			ref := ""
			if issue.ArtifactID != "" {
				ref = " (" + issue.ArtifactID + ")"
			}
			fmt.Fprintf(b, "- **%s** [%s]%s: %s\n", issue.Severity, issue.Category, ref, issue.Message)
		}
		b.WriteString("\n")
	}
}

func writeStep1Sections(b *strings.Builder, s *store.Store, analysisID string) error {
	missions, err := store.FetchArtifactsInto[types.Mission](s, analysisID, types.KindMission)
	if err != nil {
		return err
	}
	if len(missions) > 0 {
		m := missions[0]
		b.WriteString("## Mission\n\n")
		fmt.Fprintf(b, "**Purpose:** %s\n\n**Method:** %s\n\n", m.Purpose, m.Method)
		if len(m.Goals) > 0 {
			b.WriteString("**Goals:**\n\n")
			for _, g := range m.Goals {
				fmt.Fprintf(b, "- %s\n", g)
			}
			b.WriteString("\n")
		}
	}

	losses, err := store.FetchArtifactsInto[types.Loss](s, analysisID, types.KindLoss)
	if err != nil {
		return err
	}
	if len(losses) > 0 {
		fmt.Fprintf(b, "## Losses (%d)\n\n", len(losses))
		for _, l := range losses {
			fmt.Fprintf(b, "- **%s** [%s]: %s%s\n", l.Identifier, l.Category, l.Description, provenanceSuffix(l.Provenance))
		}
		b.WriteString("\n")
	}

	hazards, err := store.FetchArtifactsInto[types.Hazard](s, analysisID, types.KindHazard)
	if err != nil {
		return err
	}
	if len(hazards) > 0 {
		fmt.Fprintf(b, "## Hazards (%d)\n\n", len(hazards))
		for _, h := range hazards {
			fmt.Fprintf(b, "- **%s** [%s] → %s: %s%s\n", h.Identifier, h.Category,
				strings.Join(h.LossIDs, ", "), h.Description, provenanceSuffix(h.Provenance))
		}
		b.WriteString("\n")
	}

	stakeholders, err := store.FetchArtifactsInto[types.Stakeholder](s, analysisID, types.KindStakeholder)
	if err != nil {
		return err
	}
	adversaries, err := store.FetchArtifactsInto[types.Adversary](s, analysisID, types.KindAdversary)
	if err != nil {
		return err
	}
	if len(stakeholders) > 0 || len(adversaries) > 0 {
		fmt.Fprintf(b, "## Stakeholders (%d) and Adversaries (%d)\n\n", len(stakeholders), len(adversaries))
		for _, sh := range stakeholders {
			exposure := ""
			if len(sh.LossExposure) > 0 {
				exposure = " - exposed to " + strings.Join(sh.LossExposure, ", ")
			}
			fmt.Fprintf(b, "- **%s** (%s)%s\n", sh.Name, sh.Type, exposure)
		}
		for _, adv := range adversaries {
			fmt.Fprintf(b, "- **Adversary: %s** - %s\n", adv.Class, adv.Profile)
		}
		b.WriteString("\n")
	}

	constraints, err := store.FetchArtifactsInto[types.SecurityConstraint](s, analysisID, types.KindConstraint)
	if err != nil {
		return err
	}
	if len(constraints) > 0 {
		fmt.Fprintf(b, "## Security Constraints (%d)\n\n", len(constraints))
		for _, sc := range constraints {
			fmt.Fprintf(b, "- **%s** [%s, %s] → %s: %s\n", sc.Identifier, sc.Type,
				sc.EnforcementLevel, strings.Join(sc.HazardIDs, ", "), sc.Statement)
		}
		b.WriteString("\n")
	}

	boundaries, err := store.FetchArtifactsInto[types.SystemBoundary](s, analysisID, types.KindSystemBoundary)
	if err != nil {
		return err
	}
	if len(boundaries) > 0 {
		fmt.Fprintf(b, "## System Boundaries (%d)\n\n", len(boundaries))
		for _, sb := range boundaries {
			fmt.Fprintf(b, "### %s (%s)\n\n", sb.Name, sb.Type)
			for _, el := range sb.Elements {
				fmt.Fprintf(b, "- [%s] %s\n", el.Position, el.Name)
			}
			b.WriteString("\n")
		}
	}
	return nil
}

func writeStep2Sections(b *strings.Builder, s *store.Store, analysisID string) error {
	components, err := store.FetchArtifactsInto[types.Component](s, analysisID, types.KindComponent)
	if err != nil {
		return err
	}
	if len(components) > 0 {
		fmt.Fprintf(b, "## Components (%d)\n\n", len(components))
		for _, c := range components {
			fmt.Fprintf(b, "- **%s** [%s]: %s\n", c.Identifier, c.Kind, c.Name)
		}
		b.WriteString("\n")
	}

	actions, err := store.FetchArtifactsInto[types.ControlAction](s, analysisID, types.KindControlAction)
	if err != nil {
		return err
	}
	if len(actions) > 0 {
		fmt.Fprintf(b, "## Control Actions (%d)\n\n", len(actions))
		for _, ca := range actions {
			fmt.Fprintf(b, "- **%s**: %s → %s - %s\n", ca.Identifier, ca.ControllerID, ca.ControlledProcessID, ca.Name)
		}
		b.WriteString("\n")
	}

	feedbacks, err := store.FetchArtifactsInto[types.FeedbackMechanism](s, analysisID, types.KindFeedback)
	if err != nil {
		return err
	}
	if len(feedbacks) > 0 {
		fmt.Fprintf(b, "## Feedback Mechanisms (%d)\n\n", len(feedbacks))
		for _, fb := range feedbacks {
			fmt.Fprintf(b, "- **%s**: %s → %s - %s\n", fb.Identifier, fb.SourceProcessID, fb.TargetControllerID, fb.InformationType)
		}
		b.WriteString("\n")
	}

	tbs, err := store.FetchArtifactsInto[types.TrustBoundary](s, analysisID, types.KindTrustBoundary)
	if err != nil {
		return err
	}
	if len(tbs) > 0 {
		fmt.Fprintf(b, "## Trust Boundaries (%d)\n\n", len(tbs))
		for _, tb := range tbs {
			fmt.Fprintf(b, "- **%s** [%s]: %s ↔ %s\n", tb.Identifier, tb.Type, tb.ComponentAID, tb.ComponentBID)
		}
		b.WriteString("\n")
	}

	models, err := store.FetchArtifactsInto[types.ProcessModel](s, analysisID, types.KindProcessModel)
	if err != nil {
		return err
	}
	if len(models) > 0 {
		fmt.Fprintf(b, "## Process Models (%d)\n\n", len(models))
		for _, pm := range models {
			fmt.Fprintf(b, "### %s\n\n", pm.ControllerID)
			for _, sv := range pm.StateVariables {
				fmt.Fprintf(b, "- %s (source: %s, staleness: %s)\n", sv.Name, sv.UpdateSource, sv.StalenessTolerance)
			}
			for _, mm := range pm.PotentialMismatches {
				fmt.Fprintf(b, "- mismatch risk: %s\n", mm)
			}
			b.WriteString("\n")
		}
	}
	return nil
}

func writeCompleteness(b *strings.Builder, check *types.CompletenessCheck) {
	if check == nil {
		return
	}
	b.WriteString("## Completeness\n\n")
	if check.IsComplete {
		b.WriteString("All required artifact kinds present with minimum counts.\n\n")
	} else {
		b.WriteString("Analysis is incomplete:\n\n")
		for _, m := range check.MissingKinds {
			fmt.Fprintf(b, "- missing: %s\n", m)
		}
		for _, m := range check.MissingFields {
			fmt.Fprintf(b, "- empty field: %s\n", m)
		}
		for _, m := range check.BrokenRefs {
			fmt.Fprintf(b, "- broken reference: %s\n", m)
		}
		b.WriteString("\n")
	}
}

func writeErrors(b *strings.Builder, errs []string) {
	if len(errs) == 0 {
		return
	}
	b.WriteString("## Errors\n\n")
	for _, e := range errs {
		fmt.Fprintf(b, "- %s\n", e)
	}
	b.WriteString("\n")
}

func provenanceSuffix(p *types.StyleOrigins) string {
	if p == nil || len(p.FoundByStyles) == 0 {
		return ""
	}
	return fmt.Sprintf(" *(found by %s, confidence %s)*", strings.Join(p.FoundByStyles, "+"), p.Confidence)
}
