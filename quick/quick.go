// =============================================================================
// Package quick — One-Line Pipeline Construction
// =============================================================================
// Provides a convenience entry point for running a test case through the
// full writer → runner → validator pipeline with minimal boilerplate.
// Delegates to agent, runner, and llm/factory internally.
//
// Usage:
//
//	import "github.com/BaSui01/qaflow/quick"
//
//	state, err := quick.Run(ctx, testCase, quick.WithOpenAI("gpt-4o-mini"))
//	state, err := quick.Run(ctx, testCase, quick.WithAzure("https://my.openai.azure.com", "gpt-4o-mini"))
//
// =============================================================================
package quick

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/agent"
	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/llm/factory"
	"github.com/BaSui01/qaflow/pipeline"
	"github.com/BaSui01/qaflow/runner"
	"github.com/BaSui01/qaflow/types"
)

// Option configures the pipeline created by New.
type Option func(*options)

type options struct {
	model    string
	provider llm.Provider
	executor pipeline.ScriptExecutor
	logger   *zap.Logger

	runnerCommand []string
	runnerTimeout time.Duration
	workspace     string

	// Provider shortcut fields — used when provider is nil.
	providerName string
	apiKey       string
	baseURL      string
	deployment   string
}

// WithProvider sets a pre-built LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithOpenAI creates an OpenAI provider using the given model.
// API key is read from OPENAI_API_KEY environment variable.
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.providerName = "openai"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// WithAzure creates an Azure OpenAI provider against the given endpoint
// and deployment. API key is read from AZURE_OPENAI_API_KEY environment
// variable.
func WithAzure(endpoint, deployment string) Option {
	return func(o *options) {
		o.providerName = "azure"
		o.baseURL = endpoint
		o.deployment = deployment
		o.model = deployment
		if o.apiKey == "" {
			o.apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		}
	}
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel sets the model name. Overrides the model set by provider shortcuts.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithRunnerCommand overrides the command used to execute generated
// scripts. Defaults to pytest in headed mode.
func WithRunnerCommand(command ...string) Option {
	return func(o *options) { o.runnerCommand = command }
}

// WithRunnerTimeout overrides the script execution timeout.
func WithRunnerTimeout(timeout time.Duration) Option {
	return func(o *options) { o.runnerTimeout = timeout }
}

// WithWorkspace sets the directory scripts are written to before
// execution. Defaults to a temporary directory.
func WithWorkspace(dir string) Option {
	return func(o *options) { o.workspace = dir }
}

// WithExecutor sets a pre-built script executor, replacing the default
// subprocess runner.
func WithExecutor(exec pipeline.ScriptExecutor) Option {
	return func(o *options) { o.executor = exec }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New assembles a pipeline with minimal configuration.
func New(opts ...Option) (*pipeline.Pipeline, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	// Resolve provider.
	p := o.provider
	if p == nil {
		if o.providerName == "" {
			return nil, fmt.Errorf("provider is required: use WithProvider, WithOpenAI, or WithAzure")
		}
		if o.apiKey == "" {
			return nil, fmt.Errorf("API key is required for %s: set the environment variable or use WithAPIKey", o.providerName)
		}
		var err error
		p, err = factory.NewProviderFromConfig(o.providerName, factory.ProviderConfig{
			APIKey:     o.apiKey,
			BaseURL:    o.baseURL,
			Model:      o.model,
			Deployment: o.deployment,
		}, o.logger)
		if err != nil {
			return nil, fmt.Errorf("create %s provider: %w", o.providerName, err)
		}
	}

	writer := agent.NewScriptWriter(p, agent.WriterConfig{Model: o.model}, o.logger)
	validator := agent.NewReportValidator(p, agent.ValidatorConfig{Model: o.model}, o.logger)

	exec := o.executor
	if exec == nil {
		runnerCfg := runner.DefaultConfig()
		if len(o.runnerCommand) > 0 {
			runnerCfg.Command = o.runnerCommand
		}
		if o.runnerTimeout > 0 {
			runnerCfg.Timeout = o.runnerTimeout
		}
		if o.workspace != "" {
			runnerCfg.WorkspaceRoot = o.workspace
		}
		exec = runner.New(runnerCfg, o.logger)
	}

	return pipeline.New(writer, exec, validator, o.logger), nil
}

// Run builds a pipeline and executes one test case through it.
func Run(ctx context.Context, testCase string, opts ...Option) (*pipeline.RunState, error) {
	p, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, uuid.NewString(), types.TestCase{Body: testCase})
}
