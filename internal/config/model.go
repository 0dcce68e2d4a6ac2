package config

// Provider identifies an LLM backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGroq      Provider = "groq"
	ProviderOllama    Provider = "ollama"
)

// ModelConfig configures the LLM provider handle.
type ModelConfig struct {
	Provider  Provider `yaml:"provider"`
	Name      string   `yaml:"name"`
	APIKey    string   `yaml:"api_key"`
	APIKeyEnv string   `yaml:"api_key_env"`
	BaseURL   string   `yaml:"base_url"`
	// Deployment supports Azure-style deployments where the model id on
	// the wire differs from the configured name.
	Deployment string `yaml:"deployment"`
}

func defaultBaseURL(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return "https://api.openai.com/v1"
	case ProviderAnthropic:
		return "https://api.anthropic.com/v1"
	case ProviderGroq:
		return "https://api.groq.com/openai/v1"
	case ProviderOllama:
		return "http://localhost:11434/v1"
	default:
		return ""
	}
}

// InputType selects how system descriptions are supplied.
type InputType string

const (
	InputFile      InputType = "file"
	InputDirectory InputType = "directory"
	InputInline    InputType = "inputs"
)

// InputEntry is one explicit input when input.type = inputs.
type InputEntry struct {
	Path string `yaml:"path"`
	Type string `yaml:"type,omitempty"`
}

// InputConfig configures the input layer. The engine only consumes the
// resulting ProcessedInput; readers live outside the core.
type InputConfig struct {
	Type    InputType    `yaml:"type"`
	Path    string       `yaml:"path"`
	Inputs  []InputEntry `yaml:"inputs"`
	Exclude []string     `yaml:"exclude"`
}
