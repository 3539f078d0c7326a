package openaicompat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/llm/providers"
)

// ---------------------------------------------------------------------------
// New() constructor
// ---------------------------------------------------------------------------

func TestNew_Defaults(t *testing.T) {
	p := New(Config{ProviderName: "test"}, nil)
	require.NotNil(t, p)
	assert.Equal(t, "/v1/chat/completions", p.Cfg.EndpointPath)
	assert.Equal(t, "/v1/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, "test", p.Name())
	assert.NotNil(t, p.Client)
	assert.NotNil(t, p.Logger)
	assert.Equal(t, 30*time.Second, p.Client.Timeout)
}

func TestNew_CustomEndpoints(t *testing.T) {
	p := New(Config{
		ProviderName:   "custom",
		EndpointPath:   "/api/chat",
		ModelsEndpoint: "/api/models",
		Timeout:        10 * time.Second,
	}, zap.NewNop())
	assert.Equal(t, "/api/chat", p.Cfg.EndpointPath)
	assert.Equal(t, "/api/models", p.Cfg.ModelsEndpoint)
	assert.Equal(t, 10*time.Second, p.Client.Timeout)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestProvider_Completion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer test-key")

		var body providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body.Model)
		assert.False(t, body.Stream)

		resp := providers.OpenAICompatResponse{
			ID:    "chatcmpl-1",
			Model: body.Model,
			Choices: []providers.OpenAICompatChoice{
				{Index: 0, FinishReason: "stop", Message: providers.OpenAICompatMessage{
					Role: "assistant", Content: "import pytest",
				}},
			},
			Usage: &providers.OpenAICompatUsage{PromptTokens: 20, CompletionTokens: 5, TotalTokens: 25},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := New(Config{
		ProviderName: "test",
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "gpt-4o",
	}, zap.NewNop())
	p.Client = server.Client()

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "write a test"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "import pytest", resp.FirstContent())
	assert.Equal(t, "test", resp.Provider)
	assert.Equal(t, 25, resp.Usage.TotalTokens)
}

func TestProvider_Completion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"rate limit"}}`)
	}))
	defer server.Close()

	p := New(Config{ProviderName: "test", APIKey: "k", BaseURL: server.URL, DefaultModel: "m"}, nil)
	p.Client = server.Client()

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrRateLimited, llmErr.Code)
	assert.True(t, llmErr.Retryable)
}

func TestProvider_Completion_RequestHook(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body providers.OpenAICompatRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		_ = json.NewEncoder(w).Encode(providers.OpenAICompatResponse{Model: body.Model})
	}))
	defer server.Close()

	p := New(Config{
		ProviderName: "test",
		APIKey:       "k",
		BaseURL:      server.URL,
		DefaultModel: "base-model",
		RequestHook: func(req *llm.ChatRequest, body *providers.OpenAICompatRequest) {
			body.Model = "hooked-model"
		},
	}, nil)
	p.Client = server.Client()

	_, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hooked-model", gotModel)
}

// ---------------------------------------------------------------------------
// Stream
// ---------------------------------------------------------------------------

func TestProvider_Stream_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body providers.OpenAICompatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"def \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"id\":\"1\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"test():\"},\"finish_reason\":\"stop\"}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := New(Config{ProviderName: "test", APIKey: "k", BaseURL: server.URL, DefaultModel: "m"}, nil)
	p.Client = server.Client()

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.NoError(t, err)

	var content string
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		content += chunk.Delta.Content
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "def test():", content)
	assert.Equal(t, "stop", finish)
}

func TestProvider_Stream_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key"}}`)
	}))
	defer server.Close()

	p := New(Config{ProviderName: "test", APIKey: "k", BaseURL: server.URL, DefaultModel: "m"}, nil)
	p.Client = server.Client()

	_, err := p.Stream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrUnauthorized, llmErr.Code)
}

// ---------------------------------------------------------------------------
// HealthCheck
// ---------------------------------------------------------------------------

func TestProvider_HealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		fmt.Fprint(w, `{"object":"list","data":[]}`)
	}))
	defer server.Close()

	p := New(Config{ProviderName: "test", APIKey: "k", BaseURL: server.URL}, nil)
	p.Client = server.Client()

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Latency, time.Duration(0))
}

func TestProvider_HealthCheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := New(Config{ProviderName: "test", APIKey: "k", BaseURL: server.URL}, nil)
	p.Client = server.Client()

	status, err := p.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}
