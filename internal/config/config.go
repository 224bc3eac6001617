// Package config loads proofgate's runtime configuration from a YAML
// file and the environment, grounded on shared-publisher-leader-app's
// viper-based Config/Load/setDefaults/Validate shape.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	API         APIServerConfig   `mapstructure:"api"         yaml:"api"`
	Log         LogConfig         `mapstructure:"log"         yaml:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"     yaml:"metrics"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Prover      ProverConfig      `mapstructure:"prover"      yaml:"prover"`
	Artifacts   ArtifactsConfig   `mapstructure:"artifacts"   yaml:"artifacts"`
	Claim       ClaimConfig       `mapstructure:"claim"       yaml:"claim"`
}

// APIServerConfig holds HTTP API server configuration.
type APIServerConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"         yaml:"listen_addr"         env:"API_LISTEN_ADDR"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"        yaml:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"       yaml:"write_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"        yaml:"idle_timeout"`
	MaxHeaderBytes    int           `mapstructure:"max_header_bytes"    yaml:"max_header_bytes"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  env:"LOG_LEVEL"`
	Pretty bool   `mapstructure:"pretty" yaml:"pretty" env:"LOG_PRETTY"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Port    int    `mapstructure:"port"    yaml:"port"    env:"METRICS_PORT"`
	Path    string `mapstructure:"path"    yaml:"path"    env:"METRICS_PATH"`
}

// CoordinatorConfig mirrors coordinator.Config for wire/env purposes.
type CoordinatorConfig struct {
	MaxTapeBytes              int64         `mapstructure:"max_tape_bytes"                yaml:"max_tape_bytes"`
	MaxJobWallTime            time.Duration `mapstructure:"max_job_wall_time"             yaml:"max_job_wall_time"`
	MaxCompletedJobs          int           `mapstructure:"max_completed_jobs"            yaml:"max_completed_jobs"`
	CompletedJobRetention     time.Duration `mapstructure:"completed_job_retention"       yaml:"completed_job_retention"`
	PrunePageSize             int           `mapstructure:"prune_page_size"               yaml:"prune_page_size"`
	PollInterval              time.Duration `mapstructure:"poll_interval"                 yaml:"poll_interval"`
	SegmentLimitPo2Default    int           `mapstructure:"segment_limit_po2_default"     yaml:"segment_limit_po2_default"`
	MaxProverRecoveryAttempts int           `mapstructure:"max_prover_recovery_attempts"  yaml:"max_prover_recovery_attempts"`
	ExpectedImageID           string        `mapstructure:"expected_image_id"             yaml:"expected_image_id"`
	ExpectedRulesDigest       string        `mapstructure:"expected_rules_digest"         yaml:"expected_rules_digest"`
	ExpectedRuleset           string        `mapstructure:"expected_ruleset"              yaml:"expected_ruleset"`
}

// ProverConfig configures the zkVM prover HTTP client.
type ProverConfig struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url" env:"PROVER_BASE_URL"`
	Timeout time.Duration `mapstructure:"timeout"  yaml:"timeout"`
}

// ArtifactsConfig selects and configures the tape/result artifact store.
type ArtifactsConfig struct {
	Backend string `mapstructure:"backend"  yaml:"backend"` // "memory" or "fs"
	FSRoot  string `mapstructure:"fs_root"  yaml:"fs_root"`
}

// ClaimConfig configures the claim queue's consumer concurrency.
type ClaimConfig struct {
	QueueConcurrency int `mapstructure:"queue_concurrency" yaml:"queue_concurrency"`
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.listen_addr", ":8081")
	v.SetDefault("api.read_header_timeout", "5s")
	v.SetDefault("api.read_timeout", "15s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.idle_timeout", "120s")
	v.SetDefault("api.max_header_bytes", 1048576)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("coordinator.max_tape_bytes", 2<<20)
	v.SetDefault("coordinator.max_job_wall_time", "5m")
	v.SetDefault("coordinator.max_completed_jobs", 1000)
	v.SetDefault("coordinator.completed_job_retention", "24h")
	v.SetDefault("coordinator.prune_page_size", 100)
	v.SetDefault("coordinator.poll_interval", "500ms")
	v.SetDefault("coordinator.segment_limit_po2_default", 20)
	v.SetDefault("coordinator.max_prover_recovery_attempts", 3)
	v.SetDefault("coordinator.expected_image_id", "")
	v.SetDefault("coordinator.expected_rules_digest", "")
	v.SetDefault("coordinator.expected_ruleset", "")

	v.SetDefault("prover.base_url", "")
	v.SetDefault("prover.timeout", "30s")

	v.SetDefault("artifacts.backend", "memory")
	v.SetDefault("artifacts.fs_root", "./data/artifacts")

	v.SetDefault("claim.queue_concurrency", 4)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1-65535 when metrics enabled, got %d", c.Metrics.Port)
	}
	if c.Coordinator.MaxTapeBytes <= 0 {
		return fmt.Errorf("coordinator.max_tape_bytes must be positive")
	}
	if c.Coordinator.MaxJobWallTime <= 0 {
		return fmt.Errorf("coordinator.max_job_wall_time must be positive")
	}
	if c.Coordinator.PollInterval <= 0 {
		return fmt.Errorf("coordinator.poll_interval must be positive")
	}
	if strings.TrimSpace(c.Prover.BaseURL) == "" {
		return fmt.Errorf("prover.base_url is required")
	}
	switch c.Artifacts.Backend {
	case "memory", "fs":
	default:
		return fmt.Errorf("artifacts.backend must be \"memory\" or \"fs\", got %q", c.Artifacts.Backend)
	}
	if c.Artifacts.Backend == "fs" && strings.TrimSpace(c.Artifacts.FSRoot) == "" {
		return fmt.Errorf("artifacts.fs_root is required when artifacts.backend is \"fs\"")
	}
	return nil
}

// Default returns a default configuration suitable for local development.
func Default() *Config {
	return &Config{
		API: APIServerConfig{
			ListenAddr:        ":8081",
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		Log: LogConfig{Level: "info", Pretty: true},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Coordinator: CoordinatorConfig{
			MaxTapeBytes:              2 << 20,
			MaxJobWallTime:            5 * time.Minute,
			MaxCompletedJobs:          1000,
			CompletedJobRetention:     24 * time.Hour,
			PrunePageSize:             100,
			PollInterval:              500 * time.Millisecond,
			SegmentLimitPo2Default:    20,
			MaxProverRecoveryAttempts: 3,
		},
		Prover:    ProverConfig{Timeout: 30 * time.Second},
		Artifacts: ArtifactsConfig{Backend: "memory"},
		Claim:     ClaimConfig{QueueConcurrency: 4},
	}
}
