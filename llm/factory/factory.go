// Package factory creates llm.Provider instances by name. It imports all
// provider sub-packages and maps string names to their constructors,
// breaking the import cycle that would occur if this logic lived in the
// llm package directly.
package factory

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/llm/providers/azure"
	"github.com/BaSui01/qaflow/llm/providers/openai"
	"github.com/BaSui01/qaflow/llm/providers/openaicompat"
)

// ProviderConfig is the generic configuration accepted by the factory.
// Azure-specific fields are ignored by other providers.
type ProviderConfig struct {
	APIKey     string        `json:"api_key" yaml:"api_key"`
	BaseURL    string        `json:"base_url" yaml:"base_url"`
	Model      string        `json:"model,omitempty" yaml:"model,omitempty"`
	Deployment string        `json:"deployment,omitempty" yaml:"deployment,omitempty"`
	APIVersion string        `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// NewProviderFromConfig creates a Provider based on the provider name.
//
// Supported names: azure, openai. Any other name with a base_url is treated
// as a generic OpenAI-compatible provider (Groq, OpenRouter, Ollama, vLLM).
func NewProviderFromConfig(name string, cfg ProviderConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch name {
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("azure provider requires base_url (resource endpoint)")
		}
		deployment := cfg.Deployment
		if deployment == "" {
			deployment = cfg.Model
		}
		if deployment == "" {
			return nil, fmt.Errorf("azure provider requires a deployment name")
		}
		return azure.New(azure.Config{
			Endpoint:   cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Deployment: deployment,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}, logger), nil

	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger), nil

	default:
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("unknown provider %q: built-in provider not found, and base_url is required for generic OpenAI-compatible provider", name)
		}
		logger.Info("creating generic OpenAI-compatible provider",
			zap.String("provider", name),
			zap.String("base_url", cfg.BaseURL))
		return openaicompat.New(openaicompat.Config{
			ProviderName: name,
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.BaseURL,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		}, logger), nil
	}
}
