package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

// promauto registers with the global registry, so every test needs a
// fresh namespace.
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.runsTotal)
	assert.NotNil(t, collector.stageDuration)
	assert.NotNil(t, collector.llmTokensUsed)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/runs", 201, 100*time.Millisecond)

	count := testutil.CollectAndCount(collector.httpRequestsTotal)
	assert.Greater(t, count, 0)
}

func TestCollector_RecordRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordRun("pass", 12*time.Second)
	collector.RecordRun("fail", 8*time.Second)
	collector.RecordStage("script_writer", 2*time.Second)

	assert.Greater(t, testutil.CollectAndCount(collector.runsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.runDuration), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.stageDuration), 0)
}

func TestCollector_RecordScriptExecution(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordScriptExecution("ok")
	collector.RecordScriptExecution("timeout")

	assert.Greater(t, testutil.CollectAndCount(collector.scriptExecutionsTotal), 0)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("azure", "gpt-4o-mini", "success", 100, 50)

	assert.Greater(t, testutil.CollectAndCount(collector.llmRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.llmTokensUsed), 0)
}

func TestCollector_RecordCacheOperation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("script")
	collector.RecordCacheMiss("script")

	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.cacheMisses), 0)
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func() {
			collector.RecordHTTPRequest("GET", "/api/v1/runs", 200, 10*time.Millisecond)
			collector.RecordRun("pass", time.Second)
			collector.RecordCacheHit("script")
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Greater(t, testutil.CollectAndCount(collector.httpRequestsTotal), 0)
	assert.Greater(t, testutil.CollectAndCount(collector.runsTotal), 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(301))
	assert.Equal(t, "4xx", statusCode(422))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(99))
}
