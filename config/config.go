package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/isdmx/safebox/policy"
)

// EnvPrefix prefixes environment overrides, e.g. SAFEBOX_SANDBOX_BACKEND
const EnvPrefix = "SAFEBOX"

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Policy  PolicyConfig  `mapstructure:"policy"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend             string        `mapstructure:"backend"`
	TimeoutSec          int           `mapstructure:"timeout_sec"`
	MemoryMB            int           `mapstructure:"memory_mb"`
	CPUQuota            float64       `mapstructure:"cpu_quota"`
	ProcessLimit        int           `mapstructure:"process_limit"`
	DroppedCapabilities []string      `mapstructure:"dropped_capabilities"`
	NetworkEnabled      bool          `mapstructure:"network_enabled"`
	ExecutionIdentity   string        `mapstructure:"execution_identity"`
	Image               string        `mapstructure:"image"`
	SessionMode         string        `mapstructure:"session_mode"`
	MaxSessions         int           `mapstructure:"max_sessions"`
	ProvisionRate       float64       `mapstructure:"provision_rate"`
	ProvisionBurst      int           `mapstructure:"provision_burst"`
	MicroVM             MicroVMConfig `mapstructure:"microvm"`
}

// MicroVMConfig addresses the micro-VM sandbox service
type MicroVMConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Template string `mapstructure:"template"`
}

// PolicyConfig holds the inline authorization policy. File, when set,
// names a standalone YAML policy that overrides the inline values.
type PolicyConfig struct {
	policy.Options `mapstructure:",squash"`
	File           string `mapstructure:"file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// New loads and validates the application configuration from config.yaml
// in . or ./config and from SAFEBOX_ environment variables.
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	return load(v)
}

// NewFromFile loads the configuration from an explicit file
func NewFromFile(filename string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", "local")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.memory_mb", 512)
	v.SetDefault("sandbox.cpu_quota", 1.0)
	v.SetDefault("sandbox.process_limit", 64)
	v.SetDefault("sandbox.dropped_capabilities", []string{"ALL"})
	v.SetDefault("sandbox.network_enabled", false)
	v.SetDefault("sandbox.execution_identity", "nobody")
	v.SetDefault("sandbox.image", "python:3.11-slim")
	v.SetDefault("sandbox.session_mode", "reuse")
	v.SetDefault("sandbox.max_sessions", 16)
	v.SetDefault("sandbox.provision_rate", 2.0)
	v.SetDefault("sandbox.provision_burst", 4)
	v.SetDefault("sandbox.microvm.endpoint", "")
	v.SetDefault("sandbox.microvm.api_key", "")
	v.SetDefault("sandbox.microvm.template", "python-3.11")

	v.SetDefault("policy.allowed_imports", policy.DefaultAllowedImports)
	v.SetDefault("policy.dangerous_patterns", policy.DefaultDangerousPatterns)
	v.SetDefault("policy.max_operations", policy.DefaultMaxOperations)
	v.SetDefault("policy.max_recursion_depth", policy.DefaultMaxRecursionDepth)
	v.SetDefault("policy.max_output_bytes", policy.DefaultMaxOutputBytes)
	v.SetDefault("policy.max_source_bytes", policy.DefaultMaxSourceBytes)
	v.SetDefault("policy.file", "")

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	switch c.Sandbox.Backend {
	case "local", "docker", "podman":
	case "microvm":
		if c.Sandbox.MicroVM.Endpoint == "" {
			return errors.New("sandbox.microvm.endpoint is required for the microvm backend")
		}
	default:
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.CPUQuota < 0 {
		return fmt.Errorf("sandbox.cpu_quota must not be negative, got: %g", c.Sandbox.CPUQuota)
	}

	if c.Sandbox.SessionMode != "reuse" && c.Sandbox.SessionMode != "fresh" {
		return fmt.Errorf("invalid sandbox.session_mode: %s, must be 'reuse' or 'fresh'", c.Sandbox.SessionMode)
	}

	if c.Sandbox.MaxSessions < 0 {
		return fmt.Errorf("sandbox.max_sessions must not be negative, got: %d", c.Sandbox.MaxSessions)
	}

	if c.Sandbox.ProvisionRate < 0 {
		return fmt.Errorf("sandbox.provision_rate must not be negative, got: %g", c.Sandbox.ProvisionRate)
	}

	if c.Metrics.Enabled && c.Metrics.ListenAddr == "" {
		return errors.New("metrics.listen_addr is required when metrics are enabled")
	}

	return nil
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// BuildPolicy returns the authorization policy: the standalone policy file
// on top of the inline section when one is configured, the inline section
// otherwise.
func (c *Config) BuildPolicy() (*policy.Policy, error) {
	if c.Policy.File != "" {
		pol, err := policy.LoadFile(c.Policy.File, c.Policy.Options)
		if err != nil {
			return nil, fmt.Errorf("policy.file: %w", err)
		}
		return pol, nil
	}
	pol, err := policy.New(c.Policy.Options)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return pol, nil
}
