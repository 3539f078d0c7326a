// Package azure implements the Azure OpenAI chat provider.
// Azure exposes an OpenAI-compatible API behind per-deployment endpoints
// with "api-key" header auth and an api-version query parameter.
package azure

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/llm/providers/openaicompat"
)

// DefaultAPIVersion is used when the config does not pin one.
const DefaultAPIVersion = "2024-12-01-preview"

// Config holds Azure OpenAI connection settings.
type Config struct {
	// Endpoint is the resource endpoint, e.g. "https://myresource.openai.azure.com".
	Endpoint string
	// APIKey authenticates via the "api-key" header.
	APIKey string
	// Deployment is the model deployment name, e.g. "gpt-4o-mini".
	Deployment string
	// APIVersion selects the REST API version. Defaults to DefaultAPIVersion.
	APIVersion string
	// Timeout is the HTTP client timeout.
	Timeout time.Duration
}

// Provider is the Azure OpenAI chat provider.
type Provider struct {
	*openaicompat.Provider
}

// New creates an Azure OpenAI provider for a single deployment.
func New(cfg Config, logger *zap.Logger) *Provider {
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	return &Provider{
		Provider: openaicompat.New(openaicompat.Config{
			ProviderName: "azure",
			APIKey:       cfg.APIKey,
			BaseURL:      cfg.Endpoint,
			DefaultModel: cfg.Deployment,
			Timeout:      cfg.Timeout,
			EndpointPath: fmt.Sprintf("/openai/deployments/%s/chat/completions?api-version=%s",
				cfg.Deployment, apiVersion),
			ModelsEndpoint: fmt.Sprintf("/openai/models?api-version=%s", apiVersion),
			BuildHeaders:   azureHeaders,
		}, logger),
	}
}

// azureHeaders sets Azure's api-key auth header instead of Bearer tokens.
func azureHeaders(r *http.Request, apiKey string) {
	r.Header.Set("api-key", apiKey)
	r.Header.Set("Content-Type", "application/json")
}
