package pipeline

import "context"

// EventType identifies a pipeline stream event.
type EventType string

const (
	// EventStageStart is emitted before a stage begins execution.
	EventStageStart EventType = "stage_start"
	// EventStageComplete is emitted after a stage finishes successfully.
	EventStageComplete EventType = "stage_complete"
	// EventStageError is emitted when a stage fails.
	EventStageError EventType = "stage_error"
	// EventRunComplete is emitted once after the last stage, carrying the
	// final verdict.
	EventRunComplete EventType = "run_complete"
)

// Event carries information about pipeline progress for live consumers.
type Event struct {
	Type    EventType `json:"type"`
	RunID   string    `json:"run_id,omitempty"`
	Stage   string    `json:"stage,omitempty"`
	Verdict string    `json:"verdict,omitempty"`
	Message string    `json:"message,omitempty"`
}

// Emitter is a callback that receives pipeline events.
type Emitter func(Event)

type emitterKey struct{}

// WithEmitter stores an Emitter in the context. Stages emit progress events
// through it; a missing emitter means events are dropped.
func WithEmitter(ctx context.Context, emitter Emitter) context.Context {
	if emitter == nil {
		return ctx
	}
	return context.WithValue(ctx, emitterKey{}, emitter)
}

func emitterFromContext(ctx context.Context) (Emitter, bool) {
	if ctx == nil {
		return nil, false
	}
	v := ctx.Value(emitterKey{})
	if v == nil {
		return nil, false
	}
	emit, ok := v.(Emitter)
	return emit, ok && emit != nil
}

func emit(ctx context.Context, ev Event) {
	if emitter, ok := emitterFromContext(ctx); ok {
		emitter(ev)
	}
}
