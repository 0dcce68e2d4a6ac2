// Package types defines the artifact model shared by agents, the
// coordinator, the persistence gateway, and the validator. All entities
// carry a stable textual identifier (L-3, H-7, CA-14, ...) plus a
// database-assigned surrogate key owned by the store; agents only ever see
// identifiers.
package types

import "time"

// Step selects which analysis step an execution runs.
type Step int

const (
	Step1 Step = 1 // Problem framing
	Step2 Step = 2 // Control-structure analysis
)

// AnalysisStatus tracks the lifecycle of an analysis record.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisError     AnalysisStatus = "error"
	AnalysisTimeout   AnalysisStatus = "timeout"
)

// Analysis is the root record for one execution. Never mutated after commit
// except by adding child records.
type Analysis struct {
	ID            string         `json:"id"`
	Step          Step           `json:"step"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Status        AnalysisStatus `json:"status"`
	QualityScore  float64        `json:"quality_score,omitempty"`
	ParentID      string         `json:"parent_id,omitempty"` // Step 2 -> Step 1 link
	UserID        string         `json:"user_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	CompletedAt   time.Time      `json:"completed_at,omitempty"`
	ExecutionMode string         `json:"execution_mode"`
}

// Mission captures the problem framing. Exactly one per Step 1 analysis.
type Mission struct {
	Purpose          string   `json:"purpose"`
	Method           string   `json:"method"`
	Goals            []string `json:"goals"`
	Domain           string   `json:"domain,omitempty"`
	Criticality      string   `json:"criticality,omitempty"`
	OperationalTempo string   `json:"operational_tempo,omitempty"`
	KeyCapabilities  []string `json:"key_capabilities,omitempty"`
	Constraints      []string `json:"constraints,omitempty"`
	Assumptions      []string `json:"assumptions,omitempty"`
}

// LossCategory classifies a loss.
type LossCategory string

const (
	LossFinancial  LossCategory = "financial"
	LossRegulatory LossCategory = "regulatory"
	LossPrivacy    LossCategory = "privacy"
	LossReputation LossCategory = "reputation"
	LossMission    LossCategory = "mission"
)

// LossSeverity decomposes severity into the STPA-Sec dimensions.
type LossSeverity struct {
	Magnitude     string `json:"magnitude,omitempty"`
	Scope         string `json:"scope,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Reversibility string `json:"reversibility,omitempty"`
	Detection     string `json:"detection,omitempty"`
}

// Loss (L-n) describes an unacceptable outcome at mission level.
type Loss struct {
	Identifier    string        `json:"identifier"`
	Description   string        `json:"description"`
	Category      LossCategory  `json:"category"`
	Severity      LossSeverity  `json:"severity,omitempty"`
	MissionImpact string        `json:"mission_impact,omitempty"`
	Provenance    *StyleOrigins `json:"provenance,omitempty"`
}

// LossDependency relates a primary loss to a dependent loss.
type LossDependency struct {
	PrimaryID   string `json:"primary_id"`
	DependentID string `json:"dependent_id"`
	Type        string `json:"type"` // triggers | enables | amplifies
	Strength    string `json:"strength,omitempty"`
	Timing      string `json:"timing,omitempty"`
	Rationale   string `json:"rationale,omitempty"`
}

// HazardCategory classifies the system property a hazard threatens.
type HazardCategory string

const (
	HazardIntegrity       HazardCategory = "integrity"
	HazardConfidentiality HazardCategory = "confidentiality"
	HazardAvailability    HazardCategory = "availability"
	HazardCapability      HazardCategory = "capability"
)

// Hazard (H-n) describes a system state that can lead to a loss.
type Hazard struct {
	Identifier           string         `json:"identifier"`
	Description          string         `json:"description"` // state form
	Category             HazardCategory `json:"category"`
	AffectedProperty     string         `json:"affected_property,omitempty"`
	TemporalNature       string         `json:"temporal_nature,omitempty"`
	EnvironmentalFactors []string       `json:"environmental_factors,omitempty"`
	LossIDs              []string       `json:"loss_ids"` // hazards cite the losses they lead to
	Provenance           *StyleOrigins  `json:"provenance,omitempty"`
}

// HazardLossMapping links a hazard to a loss it can produce.
type HazardLossMapping struct {
	HazardID           string `json:"hazard_id"`
	LossID             string `json:"loss_id"`
	Relationship       string `json:"relationship"` // direct | conditional | indirect
	Rationale          string `json:"rationale,omitempty"`
	EnablingConditions string `json:"enabling_conditions,omitempty"`
}

// Stakeholder is a party with a stake in the mission.
type Stakeholder struct {
	Name               string        `json:"name"`
	Type               string        `json:"type"` // user, operator, regulator, partner, ...
	MissionPerspective string        `json:"mission_perspective,omitempty"`
	LossExposure       []string      `json:"loss_exposure,omitempty"` // loss identifiers
	Influence          string        `json:"influence,omitempty"`
	Interest           string        `json:"interest,omitempty"`
	Provenance         *StyleOrigins `json:"provenance,omitempty"`
}

// Adversary models a threat actor class.
type Adversary struct {
	Class        string        `json:"class"` // nation_state, organized_crime, insider, hacktivist, opportunist
	Profile      string        `json:"profile,omitempty"`
	Targets      []string      `json:"targets,omitempty"` // loss or hazard identifiers
	Capability   string        `json:"capability,omitempty"`
	Provenance   *StyleOrigins `json:"provenance,omitempty"`
}

// ConstraintType classifies how a security constraint acts.
type ConstraintType string

const (
	ConstraintPreventive   ConstraintType = "preventive"
	ConstraintDetective    ConstraintType = "detective"
	ConstraintCorrective   ConstraintType = "corrective"
	ConstraintCompensating ConstraintType = "compensating"
)

// SecurityConstraint (SC-n) is an objective, technology-agnostic statement.
type SecurityConstraint struct {
	Identifier       string         `json:"identifier"`
	Statement        string         `json:"statement"`
	Type             ConstraintType `json:"type"`
	EnforcementLevel string         `json:"enforcement_level,omitempty"` // mandatory | recommended
	Rationale        string         `json:"rationale,omitempty"`
	HazardIDs        []string       `json:"hazard_ids"`
	Provenance       *StyleOrigins  `json:"provenance,omitempty"`
}

// ConstraintHazardMapping links a constraint to a hazard it addresses.
type ConstraintHazardMapping struct {
	ConstraintID string `json:"constraint_id"`
	HazardID     string `json:"hazard_id"`
	Relationship string `json:"relationship"` // eliminates | detects | reduces | transfers
}

// BoundaryPosition tags where an element sits relative to a boundary.
type BoundaryPosition string

const (
	PositionInside    BoundaryPosition = "inside"
	PositionOutside   BoundaryPosition = "outside"
	PositionInterface BoundaryPosition = "interface"
	PositionCrossing  BoundaryPosition = "crossing"
)

// BoundaryElement is one element of a system boundary.
type BoundaryElement struct {
	Name        string           `json:"name"`
	Position    BoundaryPosition `json:"position"`
	Description string           `json:"description,omitempty"`
}

// BoundaryType classifies a system boundary.
type BoundaryType string

const (
	BoundarySystemScope    BoundaryType = "system_scope"
	BoundaryTrust          BoundaryType = "trust"
	BoundaryResponsibility BoundaryType = "responsibility"
	BoundaryDataGov        BoundaryType = "data_governance"
)

// SystemBoundary scopes the analysis.
type SystemBoundary struct {
	Name       string            `json:"name"`
	Type       BoundaryType      `json:"type"`
	Elements   []BoundaryElement `json:"elements"`
	Provenance *StyleOrigins     `json:"provenance,omitempty"`
}

// StyleOrigins records which cognitive styles produced an artifact and the
// confidence assigned during synthesis.
type StyleOrigins struct {
	FoundByStyles []string `json:"found_by_styles"`
	Confidence    string   `json:"confidence"` // very_high | high | medium
}
