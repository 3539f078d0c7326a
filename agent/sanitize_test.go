package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare code", "import pytest\n", "import pytest"},
		{"fenced with language", "```python\nimport pytest\n```", "import pytest"},
		{"fenced without language", "```\nimport pytest\n```", "import pytest"},
		{"leading whitespace", "  \n```python\nx = 1\n```\n", "x = 1"},
		{"fence chars inside code", "```python\ns = \"```\"\n```", "s = \"```\""},
		{"empty", "", ""},
		{"not a fence mid-text", "print('``` is a fence')", "print('``` is a fence')"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFences(tt.in))
		})
	}
}

func TestStripCodeFences_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.StringMatching(`[a-zA-Z0-9 .,:()'=_\n]{0,200}`).Draw(t, "body")
		lang := rapid.SampledFrom([]string{"", "python", "py"}).Draw(t, "lang")

		wrapped := "```" + lang + "\n" + body + "\n```"
		got := StripCodeFences(wrapped)

		if strings.HasPrefix(got, "```") {
			t.Fatalf("result still starts with a fence: %q", got)
		}
		if strings.HasSuffix(got, "```") {
			t.Fatalf("result still ends with a fence: %q", got)
		}
		if !strings.Contains(wrapped, got) {
			t.Fatalf("result %q is not a substring of the input", got)
		}
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"verdict":"pass"}`, `{"verdict":"pass"}`},
		{"surrounded by prose", `The result is {"verdict":"fail","reason":"timeout"} as shown.`, `{"verdict":"fail","reason":"timeout"}`},
		{"nested braces", `{"a":{"b":1}}`, `{"a":{"b":1}}`},
		{"braces in strings", `{"reason":"use {curly} text"}`, `{"reason":"use {curly} text"}`},
		{"escaped quote in string", `{"reason":"say \"hi\" {x}"}`, `{"reason":"say \"hi\" {x}"}`},
		{"no object", "no json here", ""},
		{"unbalanced", `{"verdict":"pass"`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSONObject(tt.in))
		})
	}
}

func TestExtractJSONObject_ValidJSONRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		verdict := rapid.SampledFrom([]string{"pass", "fail", "error"}).Draw(t, "verdict")
		reason := rapid.StringMatching(`[a-zA-Z0-9 .,]{0,80}`).Draw(t, "reason")
		prefix := rapid.StringMatching(`[a-zA-Z .:\n]{0,40}`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`[a-zA-Z .\n]{0,40}`).Draw(t, "suffix")

		obj, err := json.Marshal(map[string]string{"verdict": verdict, "reason": reason})
		if err != nil {
			t.Fatal(err)
		}

		extracted := ExtractJSONObject(prefix + string(obj) + suffix)

		var parsed map[string]string
		if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
			t.Fatalf("extracted %q is not valid JSON: %v", extracted, err)
		}
		if parsed["verdict"] != verdict {
			t.Fatalf("verdict lost: got %q want %q", parsed["verdict"], verdict)
		}
	})
}
