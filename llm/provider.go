package llm

import (
	"context"
	"time"

	"github.com/BaSui01/qaflow/types"
)

// ErrorCode aligns provider failures with HTTP status, retryability and
// degradation policy.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrContentFiltered     ErrorCode = "LLM_CONTENT_FILTERED"
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
)

// Error is the structured error returned by providers.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Message is the conversation message type shared with the rest of the
// service.
type Message = types.Message

// Role aliases for convenience when building requests.
const (
	RoleSystem    = types.RoleSystem
	RoleUser      = types.RoleUser
	RoleAssistant = types.RoleAssistant
)

// ChatRequest is a provider-neutral chat completion request.
type ChatRequest struct {
	TraceID     string            `json:"trace_id,omitempty"`
	Model       string            `json:"model"`
	Messages    []Message         `json:"messages"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature float32           `json:"temperature,omitempty"`
	TopP        float32           `json:"top_p,omitempty"`
	Stop        []string          `json:"stop,omitempty"`
	Timeout     time.Duration     `json:"timeout,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ChatUsage reports token consumption for a single completion.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is one candidate completion.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// ChatResponse is a provider-neutral chat completion response.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstContent returns the content of the first choice, or "" when the
// response carries no choices.
func (r *ChatResponse) FirstContent() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StreamChunk is an incremental piece of a streaming completion.
type StreamChunk struct {
	ID           string     `json:"id,omitempty"`
	Provider     string     `json:"provider,omitempty"`
	Model        string     `json:"model,omitempty"`
	Index        int        `json:"index,omitempty"`
	Delta        Message    `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Usage        *ChatUsage `json:"usage,omitempty"`
	Err          *Error     `json:"error,omitempty"`
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Model describes a model exposed by a provider.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object,omitempty"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// Provider is the unified adapter interface for hosted chat models.
type Provider interface {
	// Completion issues a synchronous chat request and returns the full
	// response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream issues a streaming chat request and returns a channel of
	// incremental chunks. The channel is closed when the stream ends.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck performs a lightweight reachability probe.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}
