// Package config provides configuration management for the core runtime:
// typed settings, hierarchical loading from files and environment variables,
// validation, and hot reloading in development.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// DuplicatePolicy controls how a container reacts to re-registering an
// already-bound capability.
type DuplicatePolicy string

const (
	// DuplicateStrict rejects the second registration with an error.
	DuplicateStrict DuplicatePolicy = "strict"
	// DuplicateLastWins overwrites the existing binding and logs a warning.
	DuplicateLastWins DuplicatePolicy = "last_wins"
)

// Config is the root configuration for the core runtime.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment"`
	Version     string      `yaml:"version" json:"version"`
	LoadedFrom  []string    `yaml:"-" json:"-"`

	Container    Container    `yaml:"container" json:"container"`
	Locator      Locator      `yaml:"locator" json:"locator"`
	Orchestrator Orchestrator `yaml:"orchestrator" json:"orchestrator"`
	Logging      Logging      `yaml:"logging" json:"logging"`
	Metrics      Metrics      `yaml:"metrics" json:"metrics"`
	Tracing      Tracing      `yaml:"tracing" json:"tracing"`
	Server       Server       `yaml:"server" json:"server"`
	Persistence  Persistence  `yaml:"persistence" json:"persistence"`
}

// Container holds service-container settings.
type Container struct {
	// DuplicatePolicy is "strict" or "last_wins".
	DuplicatePolicy DuplicatePolicy `yaml:"duplicate_policy" json:"duplicatePolicy" validate:"oneof=strict last_wins"`
	// EmitEvents enables ServiceRegistered/ServiceResolved/ResolutionFailed
	// observer callbacks.
	EmitEvents bool `yaml:"emit_events" json:"emitEvents"`
}

// Locator holds legacy service-locator settings.
type Locator struct {
	EnableCaching       bool    `yaml:"enable_caching" json:"enableCaching"`
	EnableAutoDiscovery bool    `yaml:"enable_auto_discovery" json:"enableAutoDiscovery"`
	Breaker             Breaker `yaml:"breaker" json:"breaker"`
}

// Breaker configures the circuit breaker guarding auto-discovery scans.
type Breaker struct {
	MaxRequests      uint32        `yaml:"max_requests" json:"maxRequests"`
	Interval         time.Duration `yaml:"interval" json:"interval"`
	Timeout          time.Duration `yaml:"timeout" json:"timeout"`
	FailureThreshold float64       `yaml:"failure_threshold" json:"failureThreshold" validate:"gte=0,lte=1"`
	MinRequests      uint32        `yaml:"min_requests" json:"minRequests"`
}

// Orchestrator holds bring-up pipeline settings.
type Orchestrator struct {
	// MaxRecoveryAttempts bounds per-manager initialization retries.
	MaxRecoveryAttempts int `yaml:"max_recovery_attempts" json:"maxRecoveryAttempts" validate:"min=1,max=10"`
	// RetryBackoff is the delay between per-manager retry attempts.
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retryBackoff"`
	// PhaseSettleDelay elapses between phases so managers flagged not-yet-ready
	// can settle before the next phase reads their state.
	PhaseSettleDelay time.Duration `yaml:"phase_settle_delay" json:"phaseSettleDelay"`
	// ModuleInitTimeout bounds each builder module's Initialize pass.
	ModuleInitTimeout time.Duration `yaml:"module_init_timeout" json:"moduleInitTimeout"`
	// FailOnValidation promotes validation failures to a fatal bring-up error.
	// Default false: failures are logged and bring-up proceeds to Running.
	FailOnValidation bool `yaml:"fail_on_validation" json:"failOnValidation"`
	// AttemptServiceRecovery gives unfinished managers one more initialization
	// attempt during validation.
	AttemptServiceRecovery bool `yaml:"attempt_service_recovery" json:"attemptServiceRecovery"`
}

// Logging holds logger settings.
type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Metrics holds Prometheus settings.
type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required"`
	Path      string `yaml:"path" json:"path"`
}

// Tracing holds OpenTelemetry settings.
type Tracing struct {
	Enabled     bool    `yaml:"enabled" json:"enabled"`
	ServiceName string  `yaml:"service_name" json:"serviceName"`
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRate  float64 `yaml:"sample_rate" json:"sampleRate" validate:"gte=0,lte=1"`
}

// Server holds the host HTTP surface settings.
type Server struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdownTimeout"`
}

// Persistence holds the snapshot store settings.
type Persistence struct {
	SnapshotDir string `yaml:"snapshot_dir" json:"snapshotDir" validate:"required"`
}

var validate = validator.New()

// Validate checks the configuration for structural problems. It is called by
// the loader after all sources have been overlaid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if c.Orchestrator.ModuleInitTimeout <= 0 {
		return fmt.Errorf("orchestrator.module_init_timeout must be positive, got %v", c.Orchestrator.ModuleInitTimeout)
	}
	return nil
}

// IsDevelopment reports whether the runtime is in development mode.
func (c *Config) IsDevelopment() bool { return c.Environment == Development }

// applyEnvironmentDefaults adjusts settings that follow the environment when
// they were not set explicitly.
func (c *Config) applyEnvironmentDefaults() {
	if c.Environment == Production && c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "verdant-core"
	}
}

// getEnvironment determines the current environment from APP_ENV.
func getEnvironment() Environment {
	switch strings.ToLower(os.Getenv("APP_ENV")) {
	case "production", "prod":
		return Production
	case "staging", "stage":
		return Staging
	default:
		return Development
	}
}
