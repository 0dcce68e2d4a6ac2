package types

import "time"

// ArtifactKind names a persisted artifact table partition. Kinds are the
// unit of identifier uniqueness within an analysis.
type ArtifactKind string

const (
	KindMission           ArtifactKind = "mission"
	KindLoss              ArtifactKind = "loss"
	KindLossDependency    ArtifactKind = "loss_dependency"
	KindHazard            ArtifactKind = "hazard"
	KindHazardLossMap     ArtifactKind = "hazard_loss_mapping"
	KindStakeholder       ArtifactKind = "stakeholder"
	KindAdversary         ArtifactKind = "adversary"
	KindConstraint        ArtifactKind = "security_constraint"
	KindConstraintMap     ArtifactKind = "constraint_hazard_mapping"
	KindSystemBoundary    ArtifactKind = "system_boundary"
	KindComponent         ArtifactKind = "component"
	KindControlHierarchy  ArtifactKind = "control_hierarchy"
	KindControlAction     ArtifactKind = "control_action"
	KindControlContext    ArtifactKind = "control_context"
	KindOperationalMode   ArtifactKind = "operational_mode"
	KindModeTransition    ArtifactKind = "mode_transition"
	KindFeedback          ArtifactKind = "feedback_mechanism"
	KindProcessModel      ArtifactKind = "process_model"
	KindTrustBoundary     ArtifactKind = "trust_boundary"
)

// AgentResult is the structured outcome of one agent run. Non-fatal
// failures flow through Success/Error instead of unwinding the phase.
type AgentResult struct {
	AgentType        string                 `json:"agent_type"`
	AnalysisID       string                 `json:"analysis_id"`
	Success          bool                   `json:"success"`
	Error            string                 `json:"error,omitempty"`
	Data             map[string]any         `json:"data,omitempty"`
	ValidationErrors []string               `json:"validation_errors,omitempty"`
	CognitiveStyle   string                 `json:"cognitive_style,omitempty"`
	StylesUsed       []string               `json:"styles_used,omitempty"`
	Synthesis        *SynthesisMetadata     `json:"synthesis_metadata,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	CompletedAt      time.Time              `json:"completed_at"`
	Metadata         map[string]any         `json:"metadata,omitempty"`
}

// SynthesisMetadata summarizes a cognitive-style merge.
type SynthesisMetadata struct {
	TotalUnique        int            `json:"total_unique"`
	ConsensusItems     int            `json:"consensus_items"`
	StyleContributions map[string]int `json:"style_contributions"`
}

// ActivityEntry is one row of the per-analysis activity log.
type ActivityEntry struct {
	AnalysisID string    `json:"analysis_id"`
	AgentType  string    `json:"agent_type"`
	Activity   string    `json:"activity"` // started | completed | failed | error detail
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProgressStatus is the state of one (phase, agent) unit of work.
type ProgressStatus string

const (
	ProgressStarted   ProgressStatus = "started"
	ProgressUpdate    ProgressStatus = "progress"
	ProgressCompleted ProgressStatus = "completed"
	ProgressFailed    ProgressStatus = "failed"
)

// ProgressEvent is emitted on the coordinator's callback channel.
type ProgressEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Phase     string         `json:"phase"`
	Agent     string         `json:"agent"`
	Status    ProgressStatus `json:"status"`
	Message   string         `json:"message,omitempty"`
}

// CompletenessCheck is the deterministic post-run artifact census.
type CompletenessCheck struct {
	IsComplete     bool           `json:"is_complete"`
	Counts         map[string]int `json:"counts"`
	MissingKinds   []string       `json:"missing_kinds,omitempty"`
	MissingFields  []string       `json:"missing_fields,omitempty"`
	BrokenRefs     []string       `json:"broken_refs,omitempty"`
}

// OverallStatus gates the transition to the next step.
type OverallStatus string

const (
	StatusReadyForStep2    OverallStatus = "ready_for_step2"
	StatusReadyMinorIssues OverallStatus = "ready_with_minor_issues"
	StatusReviewRecommended OverallStatus = "review_recommended"
	StatusRevisionRequired OverallStatus = "revision_required"
)

// AnalysisResult is the full serialized outcome handed back to callers,
// including on partial failure.
type AnalysisResult struct {
	Analysis          Analysis                `json:"analysis"`
	Status            AnalysisStatus          `json:"status"`
	OverallStatus     OverallStatus           `json:"overall_status,omitempty"`
	AgentResults      map[string]*AgentResult `json:"agent_results"`
	ExecutionLog      []ActivityEntry         `json:"execution_log"`
	CompletenessCheck *CompletenessCheck      `json:"completeness_check,omitempty"`
	Errors            []string                `json:"errors,omitempty"`
}

// ProcessedInput is the shape the input layer hands to the coordinator.
// The coordinator's only use of it is to populate the system description.
type ProcessedInput struct {
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	SourceType string            `json:"source_type,omitempty"`
	SourcePath string            `json:"source_path,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
	Assumptions []string         `json:"assumptions,omitempty"`
}
