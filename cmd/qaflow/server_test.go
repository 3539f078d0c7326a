package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/qaflow/config"
)

func TestWriteTimeoutFor_CoversWorstCaseRun(t *testing.T) {
	cfg := config.DefaultConfig()

	got := writeTimeoutFor(cfg)

	// Two model calls at 4 attempts x 2m each, plus the 120s runner limit
	// and 30s slack. The 5m configured default alone would cut a slow run
	// off mid-pipeline.
	want := 2*4*2*time.Minute + 120*time.Second + 30*time.Second
	assert.Equal(t, want, got)
	assert.Greater(t, got, cfg.Server.WriteTimeout)
}

func TestWriteTimeoutFor_ConfiguredValueWinsWhenLarger(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.WriteTimeout = time.Hour

	assert.Equal(t, time.Hour, writeTimeoutFor(cfg))
}

func TestWriteTimeoutFor_ZeroRetriesUsesDefaultPolicy(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.LLM.MaxRetries = 0
	cfg.LLM.Timeout = time.Minute
	cfg.Runner.Timeout = time.Minute

	// Default retry policy allows 3 retries, so 4 attempts per call.
	want := 2*4*time.Minute + time.Minute + 30*time.Second
	assert.Equal(t, want, writeTimeoutFor(cfg))
}
