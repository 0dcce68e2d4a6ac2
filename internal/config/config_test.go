package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
analysis:
  name: payment network
model:
  provider: openai
  name: gpt-4o
  api_key: sk-test
`

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "./analyses", cfg.Analysis.OutputDir)
	assert.Equal(t, ModeStandard, cfg.Execution.Mode)
	assert.Equal(t, 8, cfg.Execution.MaxConcurrentLLM)
	assert.Equal(t, 120, cfg.Execution.LLMTimeoutSeconds)
	assert.Equal(t, 600, cfg.Execution.AgentTimeoutSeconds)
	assert.Equal(t, 3600, cfg.Execution.TotalTimeoutSeconds)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Model.BaseURL)
}

func TestParseAPIKeyEnvIndirection(t *testing.T) {
	t.Setenv("STPASEC_TEST_KEY", "sk-from-env")
	cfg, err := Parse([]byte(`
analysis:
  name: env test
model:
  provider: anthropic
  name: claude-sonnet-4-5
  api_key_env: STPASEC_TEST_KEY
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.Model.APIKey)
	assert.Equal(t, "https://api.anthropic.com/v1", cfg.Model.BaseURL)
}

func TestParseAPIKeyEnvMissing(t *testing.T) {
	_, err := Parse([]byte(`
analysis:
  name: env test
model:
  provider: openai
  name: gpt-4o
  api_key_env: STPASEC_UNSET_TEST_KEY
`))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "model.api_key_env", cerr.Key)
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		key  string
	}{
		{"unknown provider", `
analysis: {name: x}
model: {provider: cohere, name: m, api_key: k}
`, "model.provider"},
		{"missing model name", `
analysis: {name: x}
model: {provider: openai, api_key: k}
`, "model.name"},
		{"missing api key", `
analysis: {name: x}
model: {provider: openai, name: m}
`, "model.api_key"},
		{"unknown mode", `
analysis: {name: x}
model: {provider: openai, name: m, api_key: k}
execution: {mode: turbo}
`, "execution.mode"},
		{"unknown input type", `
analysis: {name: x}
model: {provider: openai, name: m, api_key: k}
input: {type: ftp}
`, "input.type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.key, cerr.Key)
		})
	}
}

func TestOllamaNeedsNoCredential(t *testing.T) {
	cfg, err := Parse([]byte(`
analysis: {name: local}
model: {provider: ollama, name: llama3}
`))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Model.BaseURL)
	assert.Empty(t, cfg.Model.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	var cerr *ConfigError
	assert.True(t, errors.As(err, &cerr))
}

func TestRedactedStripsCredential(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	red := cfg.Redacted()
	assert.Empty(t, red.Model.APIKey)
	assert.Equal(t, "sk-test", cfg.Model.APIKey, "original is untouched")
	assert.Equal(t, cfg.Model.Name, red.Model.Name)
}
