package llm

import (
	"context"
	"fmt"

	"stpasec/internal/config"
)

// NewClientFromConfig builds the transport client for the configured
// provider. The provider table is constructed once at startup and passed
// down; there are no process-wide singletons.
func NewClientFromConfig(cfg *config.Config) (Client, error) {
	model := cfg.Model.Name
	if cfg.Model.Deployment != "" {
		model = cfg.Model.Deployment
	}

	switch cfg.Model.Provider {
	case config.ProviderOpenAI, config.ProviderGroq, config.ProviderOllama:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:  cfg.Model.APIKey,
			BaseURL: cfg.Model.BaseURL,
			Model:   model,
		}), nil
	case config.ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:  cfg.Model.APIKey,
			BaseURL: cfg.Model.BaseURL,
			Model:   model,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Model.Provider)
	}
}

// VerifyClient issues a minimal generation to confirm the credentials and
// endpoint work. A failure here maps to CLI exit code 2.
func VerifyClient(ctx context.Context, client Client) error {
	_, err := client.Generate(ctx, []Message{
		{Role: RoleUser, Content: "Reply with the single word: ok"},
	}, Options{MaxTokens: 8})
	if err != nil {
		return fmt.Errorf("model verification failed: %w", err)
	}
	return nil
}
