package providers

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/qaflow/llm"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		wantCode  llm.ErrorCode
		wantRetry bool
	}{
		{"unauthorized", http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{"forbidden", http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{"rate limited", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"bad request", http.StatusBadRequest, "malformed", llm.ErrInvalidRequest, false},
		{"quota keyword", http.StatusBadRequest, "monthly quota exceeded", llm.ErrQuotaExceeded, false},
		{"bad gateway", http.StatusBadGateway, "upstream", llm.ErrUpstreamError, true},
		{"overloaded", 529, "overloaded", llm.ErrModelOverloaded, true},
		{"server error", http.StatusInternalServerError, "boom", llm.ErrUpstreamError, true},
		{"teapot", http.StatusTeapot, "odd", llm.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "azure")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.wantRetry, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "azure", err.Provider)
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	msg := ReadErrorMessage(strings.NewReader(`{"error":{"message":"model not found","type":"invalid_request_error"}}`))
	assert.Equal(t, "model not found (type: invalid_request_error)", msg)

	msg = ReadErrorMessage(strings.NewReader(`{"error":{"message":"plain"}}`))
	assert.Equal(t, "plain", msg)

	msg = ReadErrorMessage(strings.NewReader("not json at all"))
	assert.Equal(t, "not json at all", msg)
}

func TestChooseModel(t *testing.T) {
	req := &llm.ChatRequest{Model: "gpt-4o"}
	assert.Equal(t, "gpt-4o", ChooseModel(req, "default", "fallback"))
	assert.Equal(t, "default", ChooseModel(&llm.ChatRequest{}, "default", "fallback"))
	assert.Equal(t, "fallback", ChooseModel(nil, "", "fallback"))
}

func TestToLLMChatResponse(t *testing.T) {
	oa := OpenAICompatResponse{
		ID:    "chatcmpl-1",
		Model: "gpt-4o",
		Choices: []OpenAICompatChoice{
			{Index: 0, FinishReason: "stop", Message: OpenAICompatMessage{Role: "assistant", Content: "hello"}},
		},
		Usage: &OpenAICompatUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
	}

	resp := ToLLMChatResponse(oa, "openai")
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "hello", resp.FirstContent())
	assert.Equal(t, llm.RoleAssistant, resp.Choices[0].Message.Role)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
}
