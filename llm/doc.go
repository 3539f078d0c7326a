// Package llm defines the unified provider contract for hosted chat models.
//
// Concrete providers live under llm/providers; they translate the neutral
// ChatRequest/ChatResponse types to provider wire formats. Callers obtain a
// Provider through llm/factory and should treat all returned errors as
// *llm.Error for code and retryability inspection.
package llm
