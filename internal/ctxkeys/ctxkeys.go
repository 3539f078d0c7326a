// Package ctxkeys carries request-scoped identifiers across component
// boundaries. The pipeline stores the run ID here so components that do
// not take it as an argument (LLM agents, cache) can still tag their logs.
package ctxkeys

import "context"

type contextKey string

const (
	traceIDKey contextKey = "trace_id"
	runIDKey   contextKey = "run_id"
)

// WithTraceID stores a trace ID in the context.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID returns the trace ID, if one is set.
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithRunID stores a run ID in the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID returns the run ID, if one is set.
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
