// Package openaicompat implements the shared base for OpenAI-compatible
// chat providers: request building, SSE stream parsing, error mapping.
package openaicompat
