package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/agent"
	"github.com/BaSui01/qaflow/api/handlers"
	"github.com/BaSui01/qaflow/config"
	"github.com/BaSui01/qaflow/internal/cache"
	"github.com/BaSui01/qaflow/internal/database"
	"github.com/BaSui01/qaflow/internal/metrics"
	"github.com/BaSui01/qaflow/internal/server"
	"github.com/BaSui01/qaflow/internal/telemetry"
	llmfactory "github.com/BaSui01/qaflow/llm/factory"
	"github.com/BaSui01/qaflow/llm/retry"
	"github.com/BaSui01/qaflow/pipeline"
	"github.com/BaSui01/qaflow/runner"
	"github.com/BaSui01/qaflow/store"
	"github.com/BaSui01/qaflow/web"
)

// Server wires the pipeline, storage, and HTTP surface together.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger
	otel   *telemetry.Providers

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler *handlers.HealthHandler
	runsHandler   *handlers.RunsHandler
	eventsHandler *handlers.EventsHandler

	metricsCollector *metrics.Collector
	hub              *pipeline.Hub
	runStore         *store.Store
	dbPool           *database.PoolManager
	cacheManager     *cache.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer creates a server instance. Call Start to bring it up.
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger,
		otel:   otel,
	}
}

// Start initializes all components and starts the HTTP and metrics
// servers without blocking.
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("qaflow", s.logger)
	s.hub = pipeline.NewHub(s.logger)

	if err := s.initStore(); err != nil {
		return fmt.Errorf("failed to init store: %w", err)
	}
	if err := s.initCache(); err != nil {
		// The cache is an optimization; a dead redis must not block boot.
		s.logger.Warn("script cache unavailable, continuing without it", zap.Error(err))
		s.cacheManager = nil
	}
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

func (s *Server) initStore() error {
	db, err := store.Open(s.cfg.Database.Driver, s.cfg.Database.DSN())
	if err != nil {
		return err
	}

	poolCfg := database.DefaultPoolConfig()
	poolCfg.MaxOpenConns = s.cfg.Database.MaxOpenConns
	poolCfg.MaxIdleConns = s.cfg.Database.MaxIdleConns
	poolCfg.ConnMaxLifetime = s.cfg.Database.ConnMaxLifetime
	s.dbPool, err = database.NewPoolManager(db, poolCfg, s.logger)
	if err != nil {
		return err
	}

	s.runStore, err = store.New(db, s.logger)
	if err != nil {
		return err
	}
	s.logger.Info("run store initialized", zap.String("driver", s.cfg.Database.Driver))
	return nil
}

func (s *Server) initCache() error {
	if !s.cfg.Redis.Enabled {
		s.logger.Info("redis disabled, script caching off")
		return nil
	}

	cacheCfg := cache.DefaultConfig()
	cacheCfg.Addr = s.cfg.Redis.Addr
	cacheCfg.Password = s.cfg.Redis.Password
	cacheCfg.DB = s.cfg.Redis.DB
	cacheCfg.PoolSize = s.cfg.Redis.PoolSize
	cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns
	cacheCfg.DefaultTTL = s.cfg.Redis.ScriptTTL

	manager, err := cache.NewManager(cacheCfg, s.logger)
	if err != nil {
		return err
	}
	s.cacheManager = manager
	return nil
}

func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.dbPool.Ping))
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cacheManager.Ping))
	}

	provider, err := llmfactory.NewProviderFromConfig(s.cfg.LLM.Provider, llmfactory.ProviderConfig{
		APIKey:     s.cfg.LLM.APIKey,
		BaseURL:    s.cfg.LLM.BaseURL,
		Model:      s.cfg.LLM.Model,
		Deployment: s.cfg.LLM.Deployment,
		APIVersion: s.cfg.LLM.APIVersion,
		Timeout:    s.cfg.LLM.Timeout,
	}, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider %q: %w", s.cfg.LLM.Provider, err)
	}

	policy := retry.DefaultPolicy()
	if s.cfg.LLM.MaxRetries > 0 {
		policy.MaxRetries = s.cfg.LLM.MaxRetries
	}
	retryer := retry.NewBackoffRetryer(policy, s.logger)

	var scriptCache agent.ScriptCache
	if s.cacheManager != nil {
		scriptCache = s.cacheManager
	}

	writer := agent.NewScriptWriter(provider, agent.WriterConfig{
		Model:           s.cfg.LLM.Model,
		Temperature:     float32(s.cfg.LLM.Temperature),
		MaxPromptTokens: s.cfg.LLM.MaxPromptTokens,
		CacheTTL:        s.cfg.Redis.ScriptTTL,
		Retryer:         retryer,
		Cache:           scriptCache,
		Metrics:         s.metricsCollector,
	}, s.logger)

	validator := agent.NewReportValidator(provider, agent.ValidatorConfig{
		Model:       s.cfg.LLM.Model,
		Temperature: float32(s.cfg.LLM.Temperature),
		Retryer:     retryer,
		Metrics:     s.metricsCollector,
	}, s.logger)

	scriptRunner := runner.New(runner.Config{
		Command:        s.cfg.Runner.Command,
		Timeout:        s.cfg.Runner.Timeout,
		WorkspaceRoot:  s.cfg.Runner.WorkspaceRoot,
		ScriptFileName: s.cfg.Runner.ScriptFileName,
		Metrics:        s.metricsCollector,
	}, s.logger)

	qaPipeline := pipeline.New(writer, scriptRunner, validator, s.logger)

	s.runsHandler = handlers.NewRunsHandler(qaPipeline, s.runStore, s.hub, s.metricsCollector, s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.hub, s.runStore, s.cfg.Server.CORSAllowedOrigins, s.logger)

	s.logger.Info("handlers initialized", zap.String("provider", provider.Name()))
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/runs", s.runsHandler.HandleCreate)
	mux.HandleFunc("GET /api/v1/runs", s.runsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/runs/{id}", s.runsHandler.HandleGet)
	mux.HandleFunc("GET /api/v1/runs/{id}/script", s.runsHandler.HandleScript)
	mux.HandleFunc("GET /api/v1/runs/{id}/events", s.eventsHandler.HandleEvents)

	mux.Handle("/", web.Handler())

	skipAuthPaths := []string{"/", "/health", "/healthz", "/ready", "/readyz", "/version"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	switch {
	case s.cfg.Auth.JWTSecret != "":
		middlewares = append(middlewares, JWTAuth(s.cfg.Auth.JWTSecret, skipAuthPaths, s.logger))
	case s.cfg.Auth.APIKey != "":
		middlewares = append(middlewares, APIKeyAuth([]string{s.cfg.Auth.APIKey}, skipAuthPaths, s.logger))
	}

	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    writeTimeoutFor(s.cfg),
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	return s.httpManager.Start()
}

// writeTimeoutFor returns the HTTP write timeout, raised when necessary to
// cover the worst-case synchronous run: two model calls (script writer and
// report validator) each with their full retry budget, plus the script
// execution limit and slack for storage writes. A run holds its request
// open through the whole pipeline, so a shorter write timeout would cut
// the response off mid-run.
func writeTimeoutFor(cfg *config.Config) time.Duration {
	retries := cfg.LLM.MaxRetries
	if retries <= 0 {
		retries = retry.DefaultPolicy().MaxRetries
	}
	attempts := time.Duration(retries + 1)
	budget := 2*attempts*cfg.LLM.Timeout + cfg.Runner.Timeout + 30*time.Second
	if cfg.Server.WriteTimeout > budget {
		return cfg.Server.WriteTimeout
	}
	return budget
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.ReadTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	return s.metricsManager.Start()
}

// WaitForShutdown blocks until a shutdown signal arrives, then closes
// everything down in order.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown gracefully stops all components.
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}
	if s.otel != nil {
		if err := s.otel.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
