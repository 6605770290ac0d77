package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/beacon/internal/model"
)

// NewProvider creates a new provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (reasoning disabled)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// NewTiers builds both tier providers
func NewTiers(cfg model.LLMTiersConfig) (Tiers, error) {
	fast, err := NewProvider(ConfigFromModel(cfg.Fast))
	if err != nil {
		return Tiers{}, fmt.Errorf("fast tier: %w", err)
	}
	capable, err := NewProvider(ConfigFromModel(cfg.Capable))
	if err != nil {
		return Tiers{}, fmt.Errorf("capable tier: %w", err)
	}
	return Tiers{Fast: fast, Capable: capable}, nil
}

// ConfigFromModel converts model.LLMConfig to llm.Config, filling credentials from the environment
func ConfigFromModel(modelConfig model.LLMConfig) Config {
	config := Config{
		Provider:   modelConfig.Provider,
		Model:      modelConfig.Model,
		APIKey:     modelConfig.APIKey,
		BaseURL:    modelConfig.BaseURL,
		Timeout:    modelConfig.Timeout,
		MaxTokens:  modelConfig.MaxTokens,
		HTTPProxy:  modelConfig.HTTPProxy,
		HTTPSProxy: modelConfig.HTTPSProxy,
		NoProxy:    modelConfig.NoProxy,
	}

	switch strings.ToLower(config.Provider) {
	case "openai":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	case "anthropic", "claude":
		if config.APIKey == "" {
			config.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	case "ollama":
		if config.BaseURL == "" {
			config.BaseURL = os.Getenv("OLLAMA_BASE_URL")
		}
	}
	return config
}
