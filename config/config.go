// Package config provides tripmesh configuration loading: defaults,
// optionally overridden by a YAML file, optionally overridden by
// TRIPMESH_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete tripmesh configuration.
type Config struct {
	// Server configures the HTTP boundary.
	Server ServerConfig `yaml:"server"`

	// Log configures the zap logger.
	Log LogConfig `yaml:"log"`

	// Registry configures the agent registry.
	Registry RegistryConfig `yaml:"registry"`

	// Discovery configures probing and the background refresh loop.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Negotiation configures the price negotiation policy.
	Negotiation NegotiationConfig `yaml:"negotiation"`

	// Coordination configures the feasibility model.
	Coordination CoordinationConfig `yaml:"coordination"`

	// Redis configures the optional redis registry store.
	Redis RedisConfig `yaml:"redis"`

	// Telemetry configures tracing export.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// RegistryConfig configures the agent registry.
type RegistryConfig struct {
	// Store selects the backend: memory or redis.
	Store string `yaml:"store"`
	// StalenessThreshold is how long an unseen agent survives a sweep.
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
	// Seeds are agents registered at startup, probed on the first cycle.
	Seeds []SeedAgent `yaml:"seeds"`
}

// SeedAgent is a statically configured agent endpoint.
type SeedAgent struct {
	AgentID  string `yaml:"agent_id"`
	Name     string `yaml:"name"`
	Endpoint string `yaml:"endpoint"`
}

// DiscoveryConfig configures probing and refresh.
type DiscoveryConfig struct {
	ProbeTimeout        time.Duration `yaml:"probe_timeout"`
	MaxConcurrentProbes int           `yaml:"max_concurrent_probes"`
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	ProbesPerSecond     float64       `yaml:"probes_per_second"`
}

// NegotiationConfig configures the negotiation policy.
type NegotiationConfig struct {
	BlendFactor float64 `yaml:"blend_factor"`
	FloorRatio  float64 `yaml:"floor_ratio"`
	MaxRounds   int     `yaml:"max_rounds"`
}

// CoordinationConfig configures the feasibility model.
type CoordinationConfig struct {
	DegradedConfidence float64 `yaml:"degraded_confidence"`
	ProbabilityFloor   float64 `yaml:"probability_floor"`
}

// RedisConfig configures the redis registry store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TelemetryConfig configures tracing export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Registry: RegistryConfig{
			Store:              "memory",
			StalenessThreshold: 5 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			ProbeTimeout:        3 * time.Second,
			MaxConcurrentProbes: 8,
			RefreshInterval:     60 * time.Second,
			ProbesPerSecond:     20,
		},
		Negotiation: NegotiationConfig{
			BlendFactor: 0.7,
			FloorRatio:  0.85,
			MaxRounds:   1,
		},
		Coordination: CoordinationConfig{
			DegradedConfidence: 0.6,
			ProbabilityFloor:   0.1,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			ServiceName:  "tripmesh",
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty), then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides configuration from TRIPMESH_* environment variables.
func applyEnv(cfg *Config) {
	envString("TRIPMESH_SERVER_ADDR", &cfg.Server.Addr)
	envString("TRIPMESH_LOG_LEVEL", &cfg.Log.Level)
	envString("TRIPMESH_LOG_FORMAT", &cfg.Log.Format)
	envString("TRIPMESH_REGISTRY_STORE", &cfg.Registry.Store)
	envDuration("TRIPMESH_REGISTRY_STALENESS_THRESHOLD", &cfg.Registry.StalenessThreshold)
	envDuration("TRIPMESH_DISCOVERY_PROBE_TIMEOUT", &cfg.Discovery.ProbeTimeout)
	envInt("TRIPMESH_DISCOVERY_MAX_CONCURRENT_PROBES", &cfg.Discovery.MaxConcurrentProbes)
	envDuration("TRIPMESH_DISCOVERY_REFRESH_INTERVAL", &cfg.Discovery.RefreshInterval)
	envFloat("TRIPMESH_NEGOTIATION_BLEND_FACTOR", &cfg.Negotiation.BlendFactor)
	envFloat("TRIPMESH_NEGOTIATION_FLOOR_RATIO", &cfg.Negotiation.FloorRatio)
	envInt("TRIPMESH_NEGOTIATION_MAX_ROUNDS", &cfg.Negotiation.MaxRounds)
	envFloat("TRIPMESH_COORDINATION_DEGRADED_CONFIDENCE", &cfg.Coordination.DegradedConfidence)
	envFloat("TRIPMESH_COORDINATION_PROBABILITY_FLOOR", &cfg.Coordination.ProbabilityFloor)
	envString("TRIPMESH_REDIS_ADDR", &cfg.Redis.Addr)
	envString("TRIPMESH_REDIS_PASSWORD", &cfg.Redis.Password)
	envInt("TRIPMESH_REDIS_DB", &cfg.Redis.DB)
	envBool("TRIPMESH_TELEMETRY_ENABLED", &cfg.Telemetry.Enabled)
	envString("TRIPMESH_TELEMETRY_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Registry.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("registry.store must be memory or redis, got %q", c.Registry.Store)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Discovery.ProbeTimeout <= 0 {
		return fmt.Errorf("discovery.probe_timeout must be positive")
	}
	if c.Negotiation.MaxRounds < 1 {
		return fmt.Errorf("negotiation.max_rounds must be at least 1")
	}
	if c.Coordination.ProbabilityFloor < 0 || c.Coordination.ProbabilityFloor > 1 {
		return fmt.Errorf("coordination.probability_floor must be in [0,1]")
	}
	for _, seed := range c.Registry.Seeds {
		if seed.AgentID == "" || seed.Endpoint == "" {
			return fmt.Errorf("registry seed agents need agent_id and endpoint")
		}
	}
	return nil
}
