// Package config loads and validates the YAML analysis configuration.
// Any credential key supports an *_env variant that redirects to an
// environment variable; missing required keys abort startup with a
// diagnostic rather than failing mid-run.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"stpasec/internal/logging"
)

// ConfigError is fatal at startup and maps to CLI exit code 1.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

// Config holds all engine configuration.
type Config struct {
	Analysis  AnalysisConfig  `yaml:"analysis" validate:"required"`
	Model     ModelConfig     `yaml:"model" validate:"required"`
	Input     InputConfig     `yaml:"input"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AnalysisConfig names the run and its output location.
type AnalysisConfig struct {
	Name      string `yaml:"name" validate:"required"`
	OutputDir string `yaml:"output_dir"`
}

// LoggingConfig controls engine logging.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

var validate = validator.New()

// Load reads, resolves, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Key: path, Reason: fmt.Sprintf("cannot read config: %v", err)}
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Key: "yaml", Reason: err.Error()}
	}
	cfg.applyDefaults()
	if err := cfg.resolveEnv(); err != nil {
		return nil, err
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, &ConfigError{Key: "validation", Reason: err.Error()}
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}
	logging.L(logging.CategoryConfig).Debugw("configuration loaded",
		"analysis", cfg.Analysis.Name, "provider", cfg.Model.Provider, "mode", cfg.Execution.Mode)
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Analysis.OutputDir == "" {
		c.Analysis.OutputDir = "./analyses"
	}
	if c.Execution.Mode == "" {
		c.Execution.Mode = ModeStandard
	}
	if c.Execution.MaxConcurrentLLM == 0 {
		c.Execution.MaxConcurrentLLM = 8
	}
	if c.Execution.LLMTimeoutSeconds == 0 {
		c.Execution.LLMTimeoutSeconds = 120
	}
	if c.Execution.AgentTimeoutSeconds == 0 {
		c.Execution.AgentTimeoutSeconds = 600
	}
	if c.Execution.TotalTimeoutSeconds == 0 {
		c.Execution.TotalTimeoutSeconds = 3600
	}
	if c.Model.BaseURL == "" {
		c.Model.BaseURL = defaultBaseURL(c.Model.Provider)
	}
}

// resolveEnv applies *_env indirection for credential-bearing keys.
func (c *Config) resolveEnv() error {
	if c.Model.APIKeyEnv != "" {
		v := os.Getenv(c.Model.APIKeyEnv)
		if v == "" {
			return &ConfigError{Key: "model.api_key_env", Reason: fmt.Sprintf("environment variable %s is not set", c.Model.APIKeyEnv)}
		}
		c.Model.APIKey = v
	}
	return nil
}

func (c *Config) check() error {
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGroq, ProviderOllama:
	case "":
		return &ConfigError{Key: "model.provider", Reason: "required"}
	default:
		return &ConfigError{Key: "model.provider", Reason: fmt.Sprintf("unknown provider %q (valid: openai, anthropic, groq, ollama)", c.Model.Provider)}
	}
	if c.Model.Name == "" {
		return &ConfigError{Key: "model.name", Reason: "required"}
	}
	// Ollama runs locally and needs no credential.
	if c.Model.APIKey == "" && c.Model.Provider != ProviderOllama {
		return &ConfigError{Key: "model.api_key", Reason: "required (set model.api_key or model.api_key_env)"}
	}
	switch c.Execution.Mode {
	case ModeStandard, ModeEnhanced, ModeDreamTeam:
	default:
		return &ConfigError{Key: "execution.mode", Reason: fmt.Sprintf("unknown mode %q (valid: standard, enhanced, dream_team)", c.Execution.Mode)}
	}
	if c.Input.Type != "" {
		switch c.Input.Type {
		case InputFile, InputDirectory, InputInline:
		default:
			return &ConfigError{Key: "input.type", Reason: fmt.Sprintf("unknown input type %q", c.Input.Type)}
		}
	}
	return nil
}

// Redacted returns a copy safe to persist alongside results: credentials
// are stripped, the env indirection is kept.
func (c *Config) Redacted() *Config {
	out := *c
	out.Model.APIKey = ""
	return &out
}
