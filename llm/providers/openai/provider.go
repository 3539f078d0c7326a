// Package openai implements the OpenAI chat provider.
package openai

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/llm/providers/openaicompat"
)

// Config holds OpenAI connection settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider is the OpenAI chat provider.
type Provider struct {
	*openaicompat.Provider
}

// New creates an OpenAI provider.
func New(cfg Config, logger *zap.Logger) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName:  "openai",
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			DefaultModel:  cfg.Model,
			FallbackModel: "gpt-4o-mini",
			Timeout:       cfg.Timeout,
		}, logger),
	}
}
