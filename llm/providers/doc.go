// Package providers contains shared plumbing for concrete llm.Provider
// implementations: OpenAI-compatible wire types, message conversion and
// HTTP error mapping.
package providers
