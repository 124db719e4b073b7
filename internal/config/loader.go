package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles loading configuration from multiple sources. Loading order,
// lowest to highest priority: defaults, base file, environment-specific file,
// local overrides (development only), environment variables.
type Loader struct {
	basePath    string
	environment Environment
	sources     []string
	fileLoaders map[string]FileLoader
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extension() string
}

// NewLoader creates a configuration loader rooted at basePath.
func NewLoader(basePath string, env Environment) *Loader {
	if basePath == "" {
		basePath = "config"
	}
	loader := &Loader{
		basePath:    basePath,
		environment: env,
		sources:     make([]string, 0),
		fileLoaders: make(map[string]FileLoader),
	}
	loader.RegisterLoader(&YAMLLoader{})
	loader.RegisterLoader(&JSONLoader{})
	return loader
}

// RegisterLoader registers a file loader for its extension.
func (l *Loader) RegisterLoader(loader FileLoader) {
	l.fileLoaders[loader.Extension()] = loader
}

// Load assembles the final configuration from all sources and validates it.
func (l *Loader) Load() (*Config, error) {
	cfg := l.defaultConfig()
	l.sources = append(l.sources, "defaults")

	if err := l.loadFile("base", cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load base config: %w", err)
	}

	envFile := strings.ToLower(string(l.environment))
	if err := l.loadFile(envFile, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load %s config: %w", envFile, err)
	}

	if l.environment == Development {
		if err := l.loadFile("local", cfg); err != nil && !os.IsNotExist(err) {
			// Local overrides are best-effort in development.
			fmt.Fprintf(os.Stderr, "Warning: failed to load local config: %v\n", err)
		}
	}

	l.loadEnvironmentVariables(cfg)
	l.sources = append(l.sources, "environment")

	cfg.LoadedFrom = l.sources
	cfg.Version = "1.0.0"
	cfg.applyEnvironmentDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile loads one named configuration file with format detection by
// extension, preferring whichever supported file exists.
func (l *Loader) loadFile(name string, cfg *Config) error {
	for ext, loader := range l.fileLoaders {
		filename := fmt.Sprintf("%s.%s", name, ext)
		path := filepath.Join(l.basePath, filename)

		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		defer file.Close()

		if err := loader.Load(file, cfg); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		l.sources = append(l.sources, path)
		return nil
	}
	return os.ErrNotExist
}

// loadEnvironmentVariables overlays environment variables, the highest
// priority source.
func (l *Loader) loadEnvironmentVariables(cfg *Config) {
	if val := os.Getenv("SERVER_PORT"); val != "" {
		if port := parseInt(val); port > 0 {
			cfg.Server.Port = port
		}
	}
	if val := os.Getenv("SERVER_HOST"); val != "" {
		cfg.Server.Host = val
	}
	if val := os.Getenv("DUPLICATE_POLICY"); val != "" {
		cfg.Container.DuplicatePolicy = DuplicatePolicy(val)
	}
	if val := os.Getenv("ENABLE_METRICS"); val != "" {
		cfg.Metrics.Enabled = parseBool(val)
	}
	if val := os.Getenv("ENABLE_TRACING"); val != "" {
		cfg.Tracing.Enabled = parseBool(val)
	}
	if val := os.Getenv("TRACING_ENDPOINT"); val != "" {
		cfg.Tracing.Endpoint = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("MAX_RECOVERY_ATTEMPTS"); val != "" {
		if n := parseInt(val); n > 0 {
			cfg.Orchestrator.MaxRecoveryAttempts = n
		}
	}
	if val := os.Getenv("FAIL_ON_VALIDATION"); val != "" {
		cfg.Orchestrator.FailOnValidation = parseBool(val)
	}
	if val := os.Getenv("SNAPSHOT_DIR"); val != "" {
		cfg.Persistence.SnapshotDir = val
	}
}

// defaultConfig returns a configuration with sensible defaults so the runtime
// can start without any configuration files.
func (l *Loader) defaultConfig() *Config {
	return &Config{
		Environment: l.environment,
		Container: Container{
			DuplicatePolicy: DuplicateStrict,
			EmitEvents:      true,
		},
		Locator: Locator{
			EnableCaching:       true,
			EnableAutoDiscovery: false,
			Breaker: Breaker{
				MaxRequests:      3,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 0.6,
				MinRequests:      5,
			},
		},
		Orchestrator: Orchestrator{
			MaxRecoveryAttempts:    3,
			RetryBackoff:           100 * time.Millisecond,
			PhaseSettleDelay:       16 * time.Millisecond, // one host-frame boundary
			ModuleInitTimeout:      30 * time.Second,
			FailOnValidation:       false,
			AttemptServiceRecovery: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "verdant",
			Path:      "/metrics",
		},
		Tracing: Tracing{
			Enabled:     false,
			ServiceName: "verdant-core",
			Endpoint:    "localhost:4317",
			SampleRate:  0.1,
		},
		Server: Server{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Persistence: Persistence{
			SnapshotDir: "snapshots",
		},
	}
}

// Default returns the built-in defaults for the current environment without
// consulting files or environment variables.
func Default() *Config {
	l := NewLoader("", getEnvironment())
	return l.defaultConfig()
}

// YAMLLoader loads configuration from YAML files.
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	decoder := yaml.NewDecoder(reader)
	return decoder.Decode(target)
}

func (y *YAMLLoader) Extension() string { return "yaml" }

// JSONLoader loads configuration from JSON files.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	return decoder.Decode(target)
}

func (j *JSONLoader) Extension() string { return "json" }

func parseInt(s string) int {
	val, _ := strconv.Atoi(s)
	return val
}

func parseBool(s string) bool {
	val, _ := strconv.ParseBool(s)
	return val
}

// Load loads configuration from the default location. This is the
// recommended entry point for the application shell.
func Load() (*Config, error) {
	env := getEnvironment()
	basePath := os.Getenv("CONFIG_DIR")
	loader := NewLoader(basePath, env)
	return loader.Load()
}

// MustLoad loads configuration and panics on error. Use only in main().
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
