package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/safebox/policy"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Transport: "http",
			HTTPPort:  8080,
		},
		Sandbox: SandboxConfig{
			Backend:     "docker",
			TimeoutSec:  30,
			MemoryMB:    512,
			CPUQuota:    1,
			SessionMode: "reuse",
			MaxSessions: 4,
		},
		Logging: LoggingConfig{
			Mode:  "production",
			Level: "info",
		},
	}
}

func TestConfigValidation(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		require.NoError(t, validConfig().validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"InvalidServerTransport", func(c *Config) { c.Server.Transport = "invalid" }, "invalid server.transport"},
		{"InvalidSandboxTimeout", func(c *Config) { c.Sandbox.TimeoutSec = 0 }, "sandbox.timeout_sec must be positive"},
		{"InvalidMemory", func(c *Config) { c.Sandbox.MemoryMB = -1 }, "sandbox.memory_mb must be positive"},
		{"UnsupportedBackend", func(c *Config) { c.Sandbox.Backend = "kubernetes" }, "unsupported sandbox.backend"},
		{"MicroVMWithoutEndpoint", func(c *Config) { c.Sandbox.Backend = "microvm" }, "sandbox.microvm.endpoint is required"},
		{"InvalidSessionMode", func(c *Config) { c.Sandbox.SessionMode = "pooled" }, "invalid sandbox.session_mode"},
		{"NegativeMaxSessions", func(c *Config) { c.Sandbox.MaxSessions = -2 }, "sandbox.max_sessions"},
		{"NegativeProvisionRate", func(c *Config) { c.Sandbox.ProvisionRate = -1 }, "sandbox.provision_rate"},
		{"MetricsWithoutAddr", func(c *Config) { c.Metrics.Enabled = true }, "metrics.listen_addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, "local", cfg.Sandbox.Backend)
	assert.Equal(t, 10, cfg.Sandbox.TimeoutSec)
	assert.Equal(t, []string{"ALL"}, cfg.Sandbox.DroppedCapabilities)
	assert.Equal(t, "reuse", cfg.Sandbox.SessionMode)
	assert.Equal(t, int64(policy.DefaultMaxOperations), cfg.Policy.MaxOperations)
	assert.Equal(t, policy.DefaultAllowedImports, cfg.Policy.AllowedImports)
	assert.Equal(t, "production", cfg.Logging.Mode)
	assert.Equal(t, 10*time.Second, cfg.GetTimeout())
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "safebox.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sandbox:
  backend: microvm
  session_mode: fresh
  microvm:
    endpoint: http://127.0.0.1:7000
    template: py311
policy:
  allowed_imports: [math]
  max_operations: 500
`), 0o600))

	cfg, err := NewFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "microvm", cfg.Sandbox.Backend)
	assert.Equal(t, "fresh", cfg.Sandbox.SessionMode)
	assert.Equal(t, "http://127.0.0.1:7000", cfg.Sandbox.MicroVM.Endpoint)
	assert.Equal(t, "py311", cfg.Sandbox.MicroVM.Template)
	assert.Equal(t, []string{"math"}, cfg.Policy.AllowedImports)
	assert.Equal(t, int64(500), cfg.Policy.MaxOperations)
	// keys absent from the file keep their defaults
	assert.Equal(t, 512, cfg.Sandbox.MemoryMB)

	pol, err := cfg.BuildPolicy()
	require.NoError(t, err)
	assert.True(t, pol.IsImportAllowed("math"))
	assert.False(t, pol.IsImportAllowed("json"))
	assert.Equal(t, int64(500), pol.MaxOperations())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SAFEBOX_SANDBOX_BACKEND", "podman")
	t.Setenv("SAFEBOX_SANDBOX_MEMORY_MB", "256")
	t.Setenv("SAFEBOX_POLICY_MAX_OPERATIONS", "42")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "podman", cfg.Sandbox.Backend)
	assert.Equal(t, 256, cfg.Sandbox.MemoryMB)
	assert.Equal(t, int64(42), cfg.Policy.MaxOperations)
}

func TestInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  transport: carrier-pigeon\n"), 0o600))

	_, err := NewFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validation error")
}

func TestBuildPolicyFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("allowed_imports: [json]\nmax_recursion_depth: 7\n"), 0o600))

	cfg := validConfig()
	cfg.Policy = PolicyConfig{Options: policy.DefaultOptions(), File: path}

	pol, err := cfg.BuildPolicy()
	require.NoError(t, err)
	assert.True(t, pol.IsImportAllowed("json"))
	assert.False(t, pol.IsImportAllowed("math"))
	assert.Equal(t, 7, pol.MaxRecursionDepth())

	cfg.Policy.File = filepath.Join(dir, "missing.yaml")
	_, err = cfg.BuildPolicy()
	assert.Error(t, err)
}
