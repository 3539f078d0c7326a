// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records qaflow metrics. All collectors register with the
// default prometheus registry via promauto.
type Collector struct {
	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Run metrics
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	stageDuration *prometheus.HistogramVec

	// Runner metrics
	scriptExecutionsTotal *prometheus.CounterVec

	// LLM metrics
	llmRequestsTotal *prometheus.CounterVec
	llmTokensUsed    *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates and registers all metric collectors.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by verdict",
		},
		[]string{"verdict"},
	)

	c.runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End-to-end pipeline run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"verdict"},
	)

	c.stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	c.scriptExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "script_executions_total",
			Help:      "Total number of script executions by outcome",
		},
		[]string{"outcome"}, // ok, nonzero_exit, timeout, not_found
	)

	c.llmRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests",
		},
		[]string{"provider", "model", "status"},
	)

	c.llmTokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_used_total",
			Help:      "Total number of tokens used",
		},
		[]string{"provider", "model", "type"}, // type: prompt, completion
	)

	c.cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	c.cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RecordHTTPRequest records one HTTP request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRun records one completed pipeline run.
func (c *Collector) RecordRun(verdict string, duration time.Duration) {
	c.runsTotal.WithLabelValues(verdict).Inc()
	c.runDuration.WithLabelValues(verdict).Observe(duration.Seconds())
}

// RecordStage records the duration of one pipeline stage.
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordScriptExecution records one runner invocation by outcome.
func (c *Collector) RecordScriptExecution(outcome string) {
	c.scriptExecutionsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest records one LLM request with its token usage.
func (c *Collector) RecordLLMRequest(provider, model, status string, promptTokens, completionTokens int) {
	c.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	c.llmTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	c.llmTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit(cacheType string) {
	c.cacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss(cacheType string) {
	c.cacheMisses.WithLabelValues(cacheType).Inc()
}

// statusCode buckets an HTTP status code to its class.
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
