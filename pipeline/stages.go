package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/agent"
	"github.com/BaSui01/qaflow/internal/ctxkeys"
	"github.com/BaSui01/qaflow/types"
)

// ScriptGenerator produces an automation script from a manual test case.
// Implemented by agent.ScriptWriter.
type ScriptGenerator interface {
	Generate(ctx context.Context, testCase string) (*agent.GeneratedScript, error)
}

// ScriptExecutor runs a script and captures its transcript. Implemented by
// runner.Runner.
type ScriptExecutor interface {
	Execute(ctx context.Context, runID string, script types.Script) (types.Script, types.Transcript, error)
}

// RunValidator classifies a transcript against the test case. Implemented
// by agent.ReportValidator.
type RunValidator interface {
	Validate(ctx context.Context, testCase, transcript string) (*agent.ValidationResult, error)
}

// NewWriterStep wraps a ScriptGenerator as the first chain step.
func NewWriterStep(gen ScriptGenerator) Step {
	return NewFuncStep(StageScriptWriter, func(ctx context.Context, state *RunState) error {
		result, err := gen.Generate(ctx, state.TestCase.Body)
		if err != nil {
			return err
		}
		state.Script = result.Script
		state.ScriptCached = result.Cached
		state.Usage.Add(result.Usage)
		return nil
	})
}

// NewRunnerStep wraps a ScriptExecutor as the second chain step.
func NewRunnerStep(exec ScriptExecutor) Step {
	return NewFuncStep(StageScriptRunner, func(ctx context.Context, state *RunState) error {
		script, transcript, err := exec.Execute(ctx, state.RunID, state.Script)
		if err != nil {
			return err
		}
		state.Script = script
		state.Transcript = transcript
		return nil
	})
}

// NewValidatorStep wraps a RunValidator as the final chain step.
func NewValidatorStep(val RunValidator) Step {
	return NewFuncStep(StageReportValidator, func(ctx context.Context, state *RunState) error {
		result, err := val.Validate(ctx, state.TestCase.Body, state.Transcript.Combined())
		if err != nil {
			return err
		}
		state.Report = result.Report
		state.Usage.Add(result.Usage)
		return nil
	})
}

// Pipeline is the fixed writer → runner → validator chain.
type Pipeline struct {
	chain *Chain
}

// New assembles the QA pipeline.
func New(gen ScriptGenerator, exec ScriptExecutor, val RunValidator, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		chain: NewChain("qa", logger,
			NewWriterStep(gen),
			NewRunnerStep(exec),
			NewValidatorStep(val),
		),
	}
}

// Run executes the pipeline for one test case and returns the final state.
func (p *Pipeline) Run(ctx context.Context, runID string, testCase types.TestCase) (*RunState, error) {
	ctx = ctxkeys.WithRunID(ctx, runID)
	state := &RunState{
		RunID:    runID,
		TestCase: testCase,
	}
	if err := p.chain.Execute(ctx, state); err != nil {
		return state, err
	}
	return state, nil
}
