package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		in   string
		want Verdict
	}{
		{"pass", VerdictPass},
		{"PASS", VerdictPass},
		{"Pass", VerdictPass},
		{"fail", VerdictFail},
		{"FAIL", VerdictFail},
		{"unknown", VerdictError},
		{"", VerdictError},
		{"passed", VerdictError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseVerdict(tt.in), "input %q", tt.in)
	}
}

func TestTranscriptCombined(t *testing.T) {
	tr := Transcript{Stdout: "INFO: step 1\nSUCCESS: done", Stderr: "warning: slow"}

	combined := tr.Combined()
	assert.Contains(t, combined, "--- STDOUT ---\nINFO: step 1")
	assert.Contains(t, combined, "--- STDERR ---\nwarning: slow")
}

func TestUsageAdd(t *testing.T) {
	var u Usage
	u.Add(Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})
	u.Add(Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	assert.Equal(t, 110, u.PromptTokens)
	assert.Equal(t, 55, u.CompletionTokens)
	assert.Equal(t, 165, u.TotalTokens)
}
