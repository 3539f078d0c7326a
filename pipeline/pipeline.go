// Package pipeline runs the three-stage QA workflow: script writer, script
// runner, report validator. The pipeline is a fixed linear chain; data
// flows through a shared RunState and each stage reads the previous
// stage's output.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/types"
)

// Stage names, in execution order.
const (
	StageScriptWriter    = "script_writer"
	StageScriptRunner    = "script_runner"
	StageReportValidator = "report_validator"
)

// RunState is the shared state passed between stages.
type RunState struct {
	RunID      string           `json:"run_id"`
	TestCase   types.TestCase   `json:"test_case"`
	Script     types.Script     `json:"script"`
	Transcript types.Transcript `json:"transcript"`
	Report     types.Report     `json:"report"`
	Usage      types.Usage      `json:"usage"`
	// ScriptCached records whether the writer served the script from cache.
	ScriptCached bool `json:"script_cached"`
	// StageDurations maps stage name to wall time.
	StageDurations map[string]time.Duration `json:"stage_durations"`
}

// Step is one unit of the chain.
type Step interface {
	Name() string
	Execute(ctx context.Context, state *RunState) error
}

// StepFunc adapts a function to the Step interface.
type StepFunc func(ctx context.Context, state *RunState) error

// FuncStep is a named function step.
type FuncStep struct {
	name string
	fn   StepFunc
}

// NewFuncStep creates a function step.
func NewFuncStep(name string, fn StepFunc) *FuncStep {
	return &FuncStep{name: name, fn: fn}
}

func (s *FuncStep) Name() string { return s.name }

func (s *FuncStep) Execute(ctx context.Context, state *RunState) error {
	return s.fn(ctx, state)
}

// Chain executes steps sequentially, checking context cancellation between
// steps and emitting progress events through the context emitter.
type Chain struct {
	name   string
	steps  []Step
	logger *zap.Logger
}

// NewChain creates a chain with the given steps.
func NewChain(name string, logger *zap.Logger, steps ...Step) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		name:   name,
		steps:  steps,
		logger: logger.With(zap.String("component", "pipeline")),
	}
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Steps returns the chain's steps.
func (c *Chain) Steps() []Step { return c.steps }

// Execute runs every step in order against the shared state.
func (c *Chain) Execute(ctx context.Context, state *RunState) error {
	if state.StageDurations == nil {
		state.StageDurations = make(map[string]time.Duration, len(c.steps))
	}

	for i, step := range c.steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		emit(ctx, Event{Type: EventStageStart, RunID: state.RunID, Stage: step.Name()})
		c.logger.Info("stage started",
			zap.String("run_id", state.RunID),
			zap.String("stage", step.Name()),
		)

		start := time.Now()
		err := step.Execute(ctx, state)
		state.StageDurations[step.Name()] = time.Since(start)

		if err != nil {
			emit(ctx, Event{
				Type:    EventStageError,
				RunID:   state.RunID,
				Stage:   step.Name(),
				Message: err.Error(),
			})
			c.logger.Error("stage failed",
				zap.String("run_id", state.RunID),
				zap.String("stage", step.Name()),
				zap.Error(err),
			)
			return fmt.Errorf("step %d (%s) failed: %w", i+1, step.Name(), err)
		}

		emit(ctx, Event{Type: EventStageComplete, RunID: state.RunID, Stage: step.Name()})
		c.logger.Info("stage completed",
			zap.String("run_id", state.RunID),
			zap.String("stage", step.Name()),
			zap.Duration("duration", state.StageDurations[step.Name()]),
		)
	}

	emit(ctx, Event{
		Type:    EventRunComplete,
		RunID:   state.RunID,
		Verdict: string(state.Report.Verdict),
	})

	return nil
}
