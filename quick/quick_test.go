package quick

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/types"
)

type stubProvider struct {
	response string
}

func (s *stubProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Model:   "stub-model",
		Choices: []llm.ChatChoice{{Message: llm.Message{Role: llm.RoleAssistant, Content: s.response}}},
	}, nil
}

func (s *stubProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *stubProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

type stubExecutor struct{}

func (stubExecutor) Execute(ctx context.Context, runID string, script types.Script) (types.Script, types.Transcript, error) {
	return script, types.Transcript{Stdout: "1 passed", ExitCode: 0}, nil
}

func TestNew_RequiresProvider(t *testing.T) {
	_, err := New()
	assert.ErrorContains(t, err, "provider is required")
}

func TestNew_ShortcutRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := New(WithOpenAI("gpt-4o-mini"))
	assert.ErrorContains(t, err, "API key is required")
}

func TestRun_WithStubs(t *testing.T) {
	state, err := Run(context.Background(), "1. Open the page\nExpected: it loads",
		WithProvider(&stubProvider{response: `{"verdict": "pass", "reason": "page loaded"}`}),
		WithExecutor(stubExecutor{}),
	)
	require.NoError(t, err)

	assert.NotEmpty(t, state.RunID)
	assert.Equal(t, types.VerdictPass, state.Report.Verdict)
	assert.Equal(t, "page loaded", state.Report.Reason)
	assert.Equal(t, "1 passed", state.Transcript.Stdout)
}
