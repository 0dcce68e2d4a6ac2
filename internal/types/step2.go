package types

// ComponentKind distinguishes the roles in the control structure.
type ComponentKind string

const (
	KindController        ComponentKind = "controller"
	KindControlledProcess ComponentKind = "controlled_process"
	KindDualRole          ComponentKind = "dual_role"
)

// Component is a node in the control structure.
type Component struct {
	Identifier       string        `json:"identifier"`
	Kind             ComponentKind `json:"kind"`
	Name             string        `json:"name"`
	Description      string        `json:"description,omitempty"`
	AuthorityLevel   string        `json:"authority_level,omitempty"`
	Criticality      string        `json:"criticality,omitempty"`
	AbstractionLevel string        `json:"abstraction_level,omitempty"`
	Source           string        `json:"source,omitempty"` // which agent emitted it
	SensorOnly       bool          `json:"sensor_only,omitempty"`
}

// ControlHierarchy is a supervision edge between two controllers.
type ControlHierarchy struct {
	ParentID     string `json:"parent_id"`
	ChildID      string `json:"child_id"`
	Relationship string `json:"relationship"` // supervises | coordinates | delegates
}

// ControlAction (CA-n) is a command a controller issues to a process.
type ControlAction struct {
	Identifier          string `json:"identifier"`
	ControllerID        string `json:"controller_id"`
	ControlledProcessID string `json:"controlled_process_id"`
	Name                string `json:"name"`
	Description         string `json:"description,omitempty"`
	ActionType          string `json:"action_type,omitempty"`
	AuthorityLevel      string `json:"authority_level,omitempty"`
	TimingRequirements  string `json:"timing_requirements,omitempty"`
	SecurityRelevance   string `json:"security_relevance,omitempty"`
}

// DecisionLogic describes how a controller decides to issue an action.
type DecisionLogic struct {
	Inputs             []string `json:"inputs,omitempty"`
	Criteria           string   `json:"criteria,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	ConflictResolution string   `json:"conflict_resolution,omitempty"`
}

// ControlContext scopes the execution context of a control action.
type ControlContext struct {
	ControlActionID      string        `json:"control_action_id"`
	Triggers             []string      `json:"triggers,omitempty"`
	Preconditions        []string      `json:"preconditions,omitempty"`
	EnvironmentalFactors []string      `json:"environmental_factors,omitempty"`
	Timing               string        `json:"timing,omitempty"`
	DecisionLogic        DecisionLogic `json:"decision_logic,omitempty"`
	ApplicableModes      []string      `json:"applicable_modes,omitempty"`
}

// OperationalMode names a distinct operating regime of the system.
type OperationalMode struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ModeTransition is an allowed transition between operational modes.
type ModeTransition struct {
	FromMode  string `json:"from_mode"`
	ToMode    string `json:"to_mode"`
	Trigger   string `json:"trigger,omitempty"`
	Condition string `json:"condition,omitempty"`
}

// FeedbackMechanism (FB-n) carries state information back to a controller.
type FeedbackMechanism struct {
	Identifier         string `json:"identifier"`
	SourceProcessID    string `json:"source_process_id"`
	TargetControllerID string `json:"target_controller_id"`
	InformationType    string `json:"information_type,omitempty"`
	InformationContent string `json:"information_content,omitempty"`
	Timing             string `json:"timing,omitempty"`
	Reliability        string `json:"reliability,omitempty"`
	SecurityRelevance  string `json:"security_relevance,omitempty"`
}

// StateVariable is one entry of a controller's process model.
type StateVariable struct {
	Name               string `json:"name"`
	UpdateSource       string `json:"update_source,omitempty"`
	UpdateFrequency    string `json:"update_frequency,omitempty"`
	StalenessTolerance string `json:"staleness_tolerance,omitempty"`
}

// ProcessModel is a controller's internal belief about what it controls.
type ProcessModel struct {
	ControllerID        string          `json:"controller_id"`
	StateVariables      []StateVariable `json:"state_variables,omitempty"`
	Assumptions         []string        `json:"assumptions,omitempty"`
	PotentialMismatches []string        `json:"potential_mismatches,omitempty"`
}

// TrustBoundary (TB-n) is a relation between two components at which
// authentication, authorization, or data classification changes.
type TrustBoundary struct {
	Identifier          string `json:"identifier"`
	ComponentAID        string `json:"component_a_id"`
	ComponentBID        string `json:"component_b_id"`
	Type                string `json:"type"` // network | organizational | privilege | data_classification
	Direction           string `json:"direction,omitempty"`
	AuthenticationReqs  string `json:"authentication_requirements,omitempty"`
	AuthorizationReqs   string `json:"authorization_requirements,omitempty"`
	DataProtectionReqs  string `json:"data_protection_requirements,omitempty"`
}
