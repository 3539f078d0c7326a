package types

import (
	"strings"
	"time"
)

// Verdict is the outcome of a validated run.
type Verdict string

const (
	// VerdictPass means all steps completed and validations passed.
	VerdictPass Verdict = "pass"
	// VerdictFail means the transcript shows an assertion failure or error.
	VerdictFail Verdict = "fail"
	// VerdictError means the validator response could not be parsed.
	VerdictError Verdict = "error"
)

// ParseVerdict normalizes a raw verdict string. Anything other than
// "pass" or "fail" (case-insensitive) collapses to VerdictError.
func ParseVerdict(s string) Verdict {
	switch {
	case strings.EqualFold(s, string(VerdictPass)):
		return VerdictPass
	case strings.EqualFold(s, string(VerdictFail)):
		return VerdictFail
	default:
		return VerdictError
	}
}

// RunStatus tracks a run through the pipeline.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// TestCase is a plain-text manual test case submitted by a user.
type TestCase struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Script is generated automation source produced by the script writer.
type Script struct {
	Language string `json:"language"`
	Source   string `json:"source"`
	Path     string `json:"path,omitempty"`
}

// Transcript is the captured output of a script execution.
type Transcript struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	TimedOut bool          `json:"timed_out"`
}

// Combined renders the transcript in the canonical form handed to the
// report validator: stdout and stderr under labeled section markers.
func (t Transcript) Combined() string {
	return "--- STDOUT ---\n" + t.Stdout + "\n\n--- STDERR ---\n" + t.Stderr
}

// Report is the validator's classification of a run.
type Report struct {
	Verdict Verdict `json:"verdict"`
	Reason  string  `json:"reason"`
	Raw     string  `json:"raw,omitempty"`
}

// Usage aggregates model token usage across pipeline stages.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add accumulates usage from a single stage.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}
