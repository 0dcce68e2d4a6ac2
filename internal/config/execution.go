package config

// ExecutionMode selects how many cognitive styles fan out per agent.
type ExecutionMode string

const (
	ModeStandard  ExecutionMode = "standard"
	ModeEnhanced  ExecutionMode = "enhanced"
	ModeDreamTeam ExecutionMode = "dream_team"
)

// ExecutionConfig controls scheduling, deadlines, and capture.
type ExecutionConfig struct {
	Mode ExecutionMode `yaml:"mode"`

	// SavePrompts enables the prompt-capture sidecar. Fixed at coordinator
	// construction.
	SavePrompts bool `yaml:"save_prompts"`

	// PromptOverrideDir, when set, is watched for prompt template
	// overrides and hot-reloaded.
	PromptOverrideDir string `yaml:"prompt_override_dir"`

	// MaxConcurrentLLM caps in-flight LLM calls across all agents.
	MaxConcurrentLLM int `yaml:"max_concurrent_llm"`

	LLMTimeoutSeconds   int `yaml:"llm_timeout_seconds"`
	AgentTimeoutSeconds int `yaml:"agent_timeout_seconds"`
	TotalTimeoutSeconds int `yaml:"total_timeout_seconds"`
}
