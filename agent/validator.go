package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/internal/ctxkeys"
	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/llm/retry"
	"github.com/BaSui01/qaflow/llm/tokenizer"
	"github.com/BaSui01/qaflow/types"
)

// unparsableReportReason is the fixed reason used when the model's
// validation response cannot be parsed.
const unparsableReportReason = "Could not parse the model's validation report."

// ValidatorConfig configures the report validator.
type ValidatorConfig struct {
	// Model overrides the provider's default model when non-empty.
	Model string
	// Temperature for the validation call.
	Temperature float32
	// Retryer wraps the provider call. Nil means a default backoff retryer.
	Retryer retry.Retryer
	// Metrics receives LLM request counts.
	Metrics Metrics
}

// ValidationResult is the validator's output for one run.
type ValidationResult struct {
	Report types.Report `json:"report"`
	Usage  types.Usage  `json:"usage"`
}

// ReportValidator asks a hosted model to classify an execution transcript
// against the original manual test case.
type ReportValidator struct {
	provider llm.Provider
	cfg      ValidatorConfig
	counter  tokenizer.Tokenizer
	retryer  retry.Retryer
	logger   *zap.Logger
}

// NewReportValidator creates a report validator over the given provider.
func NewReportValidator(provider llm.Provider, cfg ValidatorConfig, logger *zap.Logger) *ReportValidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryer := cfg.Retryer
	if retryer == nil {
		retryer = retry.NewBackoffRetryer(retry.DefaultPolicy(), logger)
	}
	return &ReportValidator{
		provider: provider,
		cfg:      cfg,
		counter:  tokenizer.ForModel(cfg.Model),
		retryer:  retryer,
		logger:   logger.With(zap.String("component", "report_validator")),
	}
}

// Validate classifies the transcript. An unparsable model response is not
// an error: it yields a report with verdict "error" and a fixed reason, so
// the run still completes and the raw response stays inspectable.
func (v *ReportValidator) Validate(ctx context.Context, testCase, transcript string) (*ValidationResult, error) {
	prompt := BuildValidatorPrompt(testCase, transcript)

	req := &llm.ChatRequest{
		Model:       v.cfg.Model,
		Temperature: v.cfg.Temperature,
		Messages: []llm.Message{
			types.NewSystemMessage(validatorSystemPrompt),
			types.NewUserMessage(prompt),
		},
	}

	start := time.Now()
	raw, err := v.retryer.DoWithResult(ctx, func() (any, error) {
		return v.provider.Completion(ctx, req)
	})
	if err != nil {
		if v.cfg.Metrics != nil {
			v.cfg.Metrics.RecordLLMRequest(v.provider.Name(), v.cfg.Model, "error", 0, 0)
		}
		return nil, types.NewError(types.ErrReportValidation, "report validation failed").
			WithCause(err).
			WithProvider(v.provider.Name())
	}
	resp := raw.(*llm.ChatResponse)

	content := resp.FirstContent()
	report := ParseReport(content)

	fields := []zap.Field{
		zap.String("verdict", string(report.Verdict)),
		zap.Duration("duration", time.Since(start)),
	}
	if runID, ok := ctxkeys.RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	v.logger.Info("run validated", fields...)

	usage := v.usageFor(resp, prompt, content)
	if v.cfg.Metrics != nil {
		v.cfg.Metrics.RecordLLMRequest(v.provider.Name(), resp.Model, "ok",
			usage.PromptTokens, usage.CompletionTokens)
	}

	return &ValidationResult{
		Report: report,
		Usage:  usage,
	}, nil
}

// ParseReport extracts the verdict object from a model response. Anything
// that does not contain a parsable {"verdict": ..., "reason": ...} object
// collapses to verdict "error" with a fixed reason.
func ParseReport(content string) types.Report {
	obj := ExtractJSONObject(content)
	if obj == "" {
		return types.Report{
			Verdict: types.VerdictError,
			Reason:  unparsableReportReason,
			Raw:     content,
		}
	}

	var parsed struct {
		Verdict string `json:"verdict"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil || parsed.Verdict == "" {
		return types.Report{
			Verdict: types.VerdictError,
			Reason:  unparsableReportReason,
			Raw:     content,
		}
	}

	return types.Report{
		Verdict: types.ParseVerdict(parsed.Verdict),
		Reason:  parsed.Reason,
		Raw:     content,
	}
}

func (v *ReportValidator) usageFor(resp *llm.ChatResponse, prompt, completion string) types.Usage {
	if resp.Usage.TotalTokens > 0 {
		return types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	promptTokens, _ := v.counter.CountTokens(prompt)
	completionTokens, _ := v.counter.CountTokens(completion)
	return types.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
