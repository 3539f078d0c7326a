// =============================================================================
// QAFlow configuration
// =============================================================================
// Unified configuration with YAML file + environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("QAFLOW").
//	    Load()
//
// Precedence: defaults → YAML file → environment variables.
// =============================================================================
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete qaflow configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" env:"SERVER"`
	LLM       LLMConfig       `yaml:"llm" env:"LLM"`
	Runner    RunnerConfig    `yaml:"runner" env:"RUNNER"`
	Database  DatabaseConfig  `yaml:"database" env:"DATABASE"`
	Redis     RedisConfig     `yaml:"redis" env:"REDIS"`
	Auth      AuthConfig      `yaml:"auth" env:"AUTH"`
	Log       LogConfig       `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`

	// CORSAllowedOrigins lists origins allowed to call the API from a
	// browser. Empty means same-origin only.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// LLMConfig holds hosted model settings. Provider "azure" is the primary
// target; any OpenAI-compatible endpoint works via "openai" or a custom
// name with a base URL.
type LLMConfig struct {
	Provider        string        `yaml:"provider" env:"PROVIDER"`
	APIKey          string        `yaml:"api_key" env:"API_KEY"`
	BaseURL         string        `yaml:"base_url" env:"BASE_URL"`
	Model           string        `yaml:"model" env:"MODEL"`
	Deployment      string        `yaml:"deployment" env:"DEPLOYMENT"`
	APIVersion      string        `yaml:"api_version" env:"API_VERSION"`
	Timeout         time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries      int           `yaml:"max_retries" env:"MAX_RETRIES"`
	Temperature     float64       `yaml:"temperature" env:"TEMPERATURE"`
	MaxPromptTokens int           `yaml:"max_prompt_tokens" env:"MAX_PROMPT_TOKENS"`
}

// RunnerConfig holds test runner settings.
type RunnerConfig struct {
	Command        []string      `yaml:"command" env:"COMMAND"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	WorkspaceRoot  string        `yaml:"workspace_root" env:"WORKSPACE_ROOT"`
	ScriptFileName string        `yaml:"script_file_name" env:"SCRIPT_FILE_NAME"`
}

// DatabaseConfig holds run store settings.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig holds script cache settings. The cache is optional; leaving
// Enabled false runs the pipeline without script memoization.
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled" env:"ENABLED"`
	Addr         string        `yaml:"addr" env:"ADDR"`
	Password     string        `yaml:"password" env:"PASSWORD"`
	DB           int           `yaml:"db" env:"DB"`
	PoolSize     int           `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	ScriptTTL    time.Duration `yaml:"script_ttl" env:"SCRIPT_TTL"`
}

// AuthConfig holds API authentication settings. Empty values disable the
// corresponding middleware.
type AuthConfig struct {
	APIKey    string `yaml:"api_key" env:"API_KEY"`
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			MetricsPort:     9091,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		LLM: LLMConfig{
			Provider:    "azure",
			Model:       "gpt-4o-mini",
			Timeout:     2 * time.Minute,
			MaxRetries:  3,
			Temperature: 0,
		},
		Runner: RunnerConfig{
			Command: []string{"pytest", "--headed", "-rP"},
			Timeout: 120 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			Name:            "qaflow.db",
			Host:            "localhost",
			Port:            5432,
			User:            "qaflow",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:      false,
			Addr:         "localhost:6379",
			PoolSize:     10,
			MinIdleConns: 2,
			ScriptTTL:    24 * time.Hour,
		},
		Log: LogConfig{
			Level:            "info",
			Format:           "json",
			OutputPaths:      []string{"stdout"},
			EnableCaller:     true,
			EnableStacktrace: false,
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "qaflow",
			SampleRate:   0.1,
		},
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.LLM.Provider == "" {
		errs = append(errs, "llm provider is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if len(c.Runner.Command) == 0 {
		errs = append(errs, "runner command must not be empty")
	}
	if c.Runner.Timeout <= 0 {
		errs = append(errs, "runner timeout must be positive")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("unsupported database driver: %s", c.Database.Driver))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
