package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/qaflow/internal/ctxkeys"
	"github.com/BaSui01/qaflow/llm"
	"github.com/BaSui01/qaflow/llm/retry"
	"github.com/BaSui01/qaflow/llm/tokenizer"
	"github.com/BaSui01/qaflow/types"
)

// ScriptCache is the subset of the cache manager the writer needs. Any
// error from Get is treated as a miss.
type ScriptCache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Metrics records LLM and cache activity. Implemented by
// metrics.Collector. Nil disables recording.
type Metrics interface {
	RecordLLMRequest(provider, model, status string, promptTokens, completionTokens int)
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

// WriterConfig configures the script writer.
type WriterConfig struct {
	// Model overrides the provider's default model when non-empty.
	Model string
	// Temperature for generation. The original pinned 0 for determinism.
	Temperature float32
	// MaxPromptTokens rejects oversized test cases before calling the
	// model. Zero disables the check.
	MaxPromptTokens int
	// CacheTTL is how long generated scripts stay cached. Zero uses the
	// cache's default.
	CacheTTL time.Duration
	// Retryer wraps the provider call. Nil means a default backoff retryer.
	Retryer retry.Retryer
	// Cache memoizes generated scripts by (model, prompt revision, test
	// case). Nil disables caching.
	Cache ScriptCache
	// Metrics receives LLM request and cache hit/miss counts.
	Metrics Metrics
}

// GeneratedScript is the writer's output for one test case.
type GeneratedScript struct {
	Script types.Script `json:"script"`
	Usage  types.Usage  `json:"usage"`
	Cached bool         `json:"cached"`
}

// ScriptWriter converts manual test cases into Playwright/pytest scripts
// through a hosted model. Concurrent requests for the same test case are
// collapsed into a single upstream call.
type ScriptWriter struct {
	provider llm.Provider
	cfg      WriterConfig
	counter  tokenizer.Tokenizer
	retryer  retry.Retryer
	logger   *zap.Logger
	group    singleflight.Group
}

// NewScriptWriter creates a script writer over the given provider.
func NewScriptWriter(provider llm.Provider, cfg WriterConfig, logger *zap.Logger) *ScriptWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	retryer := cfg.Retryer
	if retryer == nil {
		retryer = retry.NewBackoffRetryer(retry.DefaultPolicy(), logger)
	}
	return &ScriptWriter{
		provider: provider,
		cfg:      cfg,
		counter:  tokenizer.ForModel(cfg.Model),
		retryer:  retryer,
		logger:   logger.With(zap.String("component", "script_writer")),
	}
}

// Generate produces an automation script for the manual test case.
func (w *ScriptWriter) Generate(ctx context.Context, testCase string) (*GeneratedScript, error) {
	prompt := BuildWriterPrompt(testCase)

	if w.cfg.MaxPromptTokens > 0 {
		count, err := w.counter.CountTokens(prompt)
		if err == nil && count > w.cfg.MaxPromptTokens {
			return nil, types.NewError(types.ErrScriptGeneration, "test case exceeds prompt token budget").
				WithHTTPStatus(400)
		}
	}

	key := w.cacheKey(testCase)

	if w.cfg.Cache != nil {
		var cached GeneratedScript
		if err := w.cfg.Cache.GetJSON(ctx, key, &cached); err == nil {
			w.logger.Debug("script cache hit", zap.String("key", key))
			if w.cfg.Metrics != nil {
				w.cfg.Metrics.RecordCacheHit("script")
			}
			cached.Cached = true
			return &cached, nil
		}
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordCacheMiss("script")
		}
	}

	result, err, _ := w.group.Do(key, func() (any, error) {
		return w.generate(ctx, prompt, key)
	})
	if err != nil {
		return nil, err
	}
	return result.(*GeneratedScript), nil
}

// generate performs the actual model call and caches the result.
func (w *ScriptWriter) generate(ctx context.Context, prompt, key string) (*GeneratedScript, error) {
	req := &llm.ChatRequest{
		Model:       w.cfg.Model,
		Temperature: w.cfg.Temperature,
		Messages: []llm.Message{
			types.NewSystemMessage(writerSystemPrompt),
			types.NewUserMessage(prompt),
		},
	}

	start := time.Now()
	raw, err := w.retryer.DoWithResult(ctx, func() (any, error) {
		return w.provider.Completion(ctx, req)
	})
	if err != nil {
		if w.cfg.Metrics != nil {
			w.cfg.Metrics.RecordLLMRequest(w.provider.Name(), w.cfg.Model, "error", 0, 0)
		}
		return nil, types.NewError(types.ErrScriptGeneration, "script generation failed").
			WithCause(err).
			WithProvider(w.provider.Name())
	}
	resp := raw.(*llm.ChatResponse)

	source := StripCodeFences(resp.FirstContent())
	if source == "" {
		return nil, types.NewError(types.ErrScriptGeneration, "model returned an empty script").
			WithProvider(w.provider.Name())
	}

	result := &GeneratedScript{
		Script: types.Script{Language: "python", Source: source},
		Usage:  w.usageFor(resp, prompt, source),
	}
	if w.cfg.Metrics != nil {
		w.cfg.Metrics.RecordLLMRequest(w.provider.Name(), resp.Model, "ok",
			result.Usage.PromptTokens, result.Usage.CompletionTokens)
	}

	fields := []zap.Field{
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int("total_tokens", result.Usage.TotalTokens),
	}
	if runID, ok := ctxkeys.RunID(ctx); ok {
		fields = append(fields, zap.String("run_id", runID))
	}
	w.logger.Info("script generated", fields...)

	if w.cfg.Cache != nil {
		if err := w.cfg.Cache.SetJSON(ctx, key, result, w.cfg.CacheTTL); err != nil {
			w.logger.Warn("script cache write failed", zap.Error(err))
		}
	}

	return result, nil
}

// usageFor prefers upstream-reported usage and falls back to local token
// counting when the provider omits it.
func (w *ScriptWriter) usageFor(resp *llm.ChatResponse, prompt, completion string) types.Usage {
	if resp.Usage.TotalTokens > 0 {
		return types.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	promptTokens, _ := w.counter.CountTokens(prompt)
	completionTokens, _ := w.counter.CountTokens(completion)
	return types.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}

// cacheKey derives the script cache key from everything that influences
// the generated script.
func (w *ScriptWriter) cacheKey(testCase string) string {
	h := sha256.New()
	h.Write([]byte(w.cfg.Model))
	h.Write([]byte{0})
	h.Write([]byte(promptRevision))
	h.Write([]byte{0})
	h.Write([]byte(testCase))
	sum := h.Sum(nil)
	return "qaflow:script:" + hex.EncodeToString(sum[:16])
}
