package factory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderFromConfig_Azure(t *testing.T) {
	p, err := NewProviderFromConfig("azure", ProviderConfig{
		APIKey:     "k",
		BaseURL:    "https://myresource.openai.azure.com",
		Deployment: "gpt-4o-mini",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "azure", p.Name())
}

func TestNewProviderFromConfig_AzureModelAsDeployment(t *testing.T) {
	p, err := NewProviderFromConfig("azure", ProviderConfig{
		APIKey:  "k",
		BaseURL: "https://myresource.openai.azure.com",
		Model:   "gpt-4o-mini",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "azure", p.Name())
}

func TestNewProviderFromConfig_AzureMissingFields(t *testing.T) {
	_, err := NewProviderFromConfig("azure", ProviderConfig{APIKey: "k"}, nil)
	assert.Error(t, err)

	_, err = NewProviderFromConfig("azure", ProviderConfig{APIKey: "k", BaseURL: "https://x"}, nil)
	assert.Error(t, err)
}

func TestNewProviderFromConfig_OpenAI(t *testing.T) {
	p, err := NewProviderFromConfig("openai", ProviderConfig{APIKey: "k", Model: "gpt-4o"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}

func TestNewProviderFromConfig_GenericCompat(t *testing.T) {
	p, err := NewProviderFromConfig("ollama", ProviderConfig{
		BaseURL: "http://localhost:11434",
		Model:   "llama3",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestNewProviderFromConfig_UnknownWithoutBaseURL(t *testing.T) {
	_, err := NewProviderFromConfig("mystery", ProviderConfig{APIKey: "k"}, nil)
	assert.Error(t, err)
}
