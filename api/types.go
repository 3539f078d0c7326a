package api

import (
	"time"

	"github.com/BaSui01/qaflow/store"
)

// CreateRunRequest submits a manual test case for automation.
type CreateRunRequest struct {
	// Optional client-generated run ID (UUID). Supplying one lets the
	// client subscribe to the events endpoint before submitting, since
	// run creation is synchronous.
	ID string `json:"id,omitempty"`
	// Optional human-readable title.
	Title string `json:"title,omitempty"`
	// Plain-text test case body (steps and expected results).
	TestCase string `json:"test_case"`
}

// RunResponse is the API view of a persisted run.
type RunResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Title    string `json:"title,omitempty"`
	TestCase string `json:"test_case"`

	ScriptSource string `json:"script_source,omitempty"`
	ScriptCached bool   `json:"script_cached,omitempty"`

	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`

	Verdict string `json:"verdict,omitempty"`
	Reason  string `json:"reason,omitempty"`

	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`

	WriterDuration    string `json:"writer_duration,omitempty"`
	RunnerDuration    string `json:"runner_duration,omitempty"`
	ValidatorDuration string `json:"validator_duration,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunListResponse is a page of runs.
type RunListResponse struct {
	Runs   []RunSummary `json:"runs"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// RunSummary is the condensed list view of a run.
type RunSummary struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Title     string    `json:"title,omitempty"`
	TestCase  string    `json:"test_case"`
	Verdict   string    `json:"verdict,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRunResponse maps a stored run to its API representation.
func NewRunResponse(run *store.Run) *RunResponse {
	resp := &RunResponse{
		ID:           run.ID,
		Status:       run.Status,
		Title:        run.Title,
		TestCase:     run.TestCase,
		ScriptSource: run.ScriptSource,
		ScriptCached: run.ScriptCached,
		Stdout:       run.Stdout,
		Stderr:       run.Stderr,
		ExitCode:     run.ExitCode,
		TimedOut:     run.TimedOut,
		Verdict:      run.Verdict,
		Reason:       run.Reason,

		PromptTokens:     run.PromptTokens,
		CompletionTokens: run.CompletionTokens,
		TotalTokens:      run.TotalTokens,

		CreatedAt: run.CreatedAt,
		UpdatedAt: run.UpdatedAt,
	}
	if run.WriterDuration > 0 {
		resp.WriterDuration = run.WriterDuration.String()
	}
	if run.RunnerDuration > 0 {
		resp.RunnerDuration = run.RunnerDuration.String()
	}
	if run.ValidatorDuration > 0 {
		resp.ValidatorDuration = run.ValidatorDuration.String()
	}
	return resp
}

// NewRunSummary maps a stored run to its list representation. Long test
// cases are truncated to keep list payloads small.
func NewRunSummary(run *store.Run) RunSummary {
	const maxPreview = 200

	testCase := run.TestCase
	if len(testCase) > maxPreview {
		testCase = testCase[:maxPreview] + "…"
	}

	return RunSummary{
		ID:        run.ID,
		Status:    run.Status,
		Title:     run.Title,
		TestCase:  testCase,
		Verdict:   run.Verdict,
		Reason:    run.Reason,
		CreatedAt: run.CreatedAt,
	}
}
