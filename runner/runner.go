// Package runner executes generated automation scripts with an external
// test runner and captures their output. Runner failures (missing binary,
// timeout, non-zero exit) are recorded in the transcript rather than
// returned as errors, so the validator can classify them.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/types"
)

// DefaultScriptFileName is the file the generated script is written to
// inside the run workspace.
const DefaultScriptFileName = "test_generated.py"

// Config holds runner settings.
type Config struct {
	// Command is the test runner invocation. Defaults to
	// ["pytest", "--headed", "-rP"].
	Command []string `yaml:"command" json:"command"`
	// Timeout is the hard execution limit. Defaults to 120s.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// WorkspaceRoot is where per-run workspace directories are created.
	// Defaults to a "qaflow" directory under the system temp dir.
	WorkspaceRoot string `yaml:"workspace_root" json:"workspace_root"`
	// ScriptFileName overrides DefaultScriptFileName.
	ScriptFileName string `yaml:"script_file_name" json:"script_file_name"`
	// Env is appended to the inherited environment.
	Env []string `yaml:"env" json:"env"`
	// Metrics receives execution outcome counts. Nil disables recording.
	Metrics Metrics `yaml:"-" json:"-"`
}

// Metrics records script execution outcomes. Implemented by
// metrics.Collector.
type Metrics interface {
	RecordScriptExecution(outcome string)
}

// DefaultConfig returns the runner defaults matching the original workflow.
func DefaultConfig() Config {
	return Config{
		Command: []string{"pytest", "--headed", "-rP"},
		Timeout: 120 * time.Second,
	}
}

// Runner executes scripts in isolated per-run workspace directories.
type Runner struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a runner, applying defaults for unset fields.
func New(cfg Config, logger *zap.Logger) *Runner {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultConfig().Command
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = filepath.Join(os.TempDir(), "qaflow")
	}
	if cfg.ScriptFileName == "" {
		cfg.ScriptFileName = DefaultScriptFileName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "runner")),
	}
}

// Execute writes the script into a fresh workspace for runID and runs the
// configured command there. The returned script carries the on-disk path.
// Only workspace setup failures return an error.
func (r *Runner) Execute(ctx context.Context, runID string, script types.Script) (types.Script, types.Transcript, error) {
	workspace := filepath.Join(r.cfg.WorkspaceRoot, runID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return script, types.Transcript{}, types.NewError(types.ErrScriptExecution, "failed to create run workspace").WithCause(err)
	}

	scriptPath := filepath.Join(workspace, r.cfg.ScriptFileName)
	if err := os.WriteFile(scriptPath, []byte(script.Source), 0o644); err != nil {
		return script, types.Transcript{}, types.NewError(types.ErrScriptExecution, "failed to write script file").WithCause(err)
	}
	script.Path = scriptPath

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.cfg.Command[0], r.cfg.Command[1:]...)
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(), r.cfg.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Info("executing script",
		zap.String("run_id", runID),
		zap.Strings("command", r.cfg.Command),
		zap.String("workspace", workspace),
	)

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	transcript := types.Transcript{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: duration,
	}

	outcome := "ok"
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		transcript.TimedOut = true
		transcript.ExitCode = -1
		transcript.Stderr += fmt.Sprintf("\nError: execution timed out after %s.", r.cfg.Timeout)
		outcome = "timeout"
	case err != nil && errors.Is(err, exec.ErrNotFound):
		transcript.ExitCode = -1
		transcript.Stderr += fmt.Sprintf("\nError: %q command not found. Make sure the test runner is installed.", r.cfg.Command[0])
		outcome = "not_found"
	case err != nil:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			transcript.ExitCode = exitErr.ExitCode()
		} else {
			transcript.ExitCode = -1
			transcript.Stderr += fmt.Sprintf("\nError: unexpected execution failure: %v", err)
		}
		outcome = "nonzero_exit"
	default:
		transcript.ExitCode = 0
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.RecordScriptExecution(outcome)
	}

	r.logger.Info("execution complete",
		zap.String("run_id", runID),
		zap.Int("exit_code", transcript.ExitCode),
		zap.Bool("timed_out", transcript.TimedOut),
		zap.Duration("duration", duration),
	)

	return script, transcript, nil
}
