package integration

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/logger"
	"github.com/isdmx/safebox/mcpserver"
	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
	"github.com/isdmx/safebox/sandbox"
)

func baseConfig(backend string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Transport: "stdio",
			HTTPPort:  8080,
		},
		Sandbox: config.SandboxConfig{
			Backend:             backend,
			TimeoutSec:          10,
			MemoryMB:            128,
			CPUQuota:            1,
			ProcessLimit:        32,
			DroppedCapabilities: []string{"ALL"},
			ExecutionIdentity:   "nobody",
			SessionMode:         "reuse",
			MaxSessions:         2,
		},
		Policy: config.PolicyConfig{Options: policy.DefaultOptions()},
		Logging: config.LoggingConfig{
			Mode:  "development",
			Level: "debug",
		},
	}
}

// TestIntegrationConfigLoggerSandbox wires config, logger, policy, metrics
// and the executor the way the server does.
func TestIntegrationConfigLoggerSandbox(t *testing.T) {
	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		cfg := baseConfig("local")
		testLogger, err := logger.NewFromConfig(cfg)
		require.NoError(t, err)
		require.NotNil(t, testLogger)

		testLogger.Info("Integration test started")
		_ = testLogger.Sync()
	})

	t.Run("LocalExecutorEndToEnd", func(t *testing.T) {
		cfg := baseConfig("local")
		pol, err := cfg.BuildPolicy()
		require.NoError(t, err)

		reg := prometheus.NewRegistry()
		executor, err := sandbox.NewExecutor(zaptest.NewLogger(t), cfg, pol, metrics.NewCollector(reg))
		require.NoError(t, err)
		defer func() { _ = executor.Teardown(context.Background()) }()

		res, err := executor.Submit(context.Background(), sandbox.Request{Code: "import math\nprint(math.sqrt(16))"})
		require.NoError(t, err)
		require.Nil(t, res.Err)
		assert.Equal(t, []string{"4.0"}, res.Output)

		res, err = executor.Submit(context.Background(), sandbox.Request{Code: "import os"})
		require.NoError(t, err)
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindImportDenied, res.Err.Kind)

		count, err := testutil.GatherAndCount(reg, "safebox_submissions_total")
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("RemoteExecutorRejectsDeniedImportsBeforeProvisioning", func(t *testing.T) {
		// No container runtime is touched: the denial happens before any
		// session is provisioned.
		cfg := baseConfig("docker")
		pol, err := cfg.BuildPolicy()
		require.NoError(t, err)

		executor, err := sandbox.NewExecutor(zaptest.NewLogger(t), cfg, pol, nil)
		require.NoError(t, err)
		remote, ok := executor.(*sandbox.RemoteExecutor)
		require.True(t, ok)

		res, err := remote.Submit(context.Background(), sandbox.Request{Code: "from subprocess import run"})
		require.NoError(t, err)
		require.NotNil(t, res.Err)
		assert.Equal(t, result.KindImportDenied, res.Err.Kind)
		assert.Equal(t, sandbox.BackendDocker, res.Backend)
		assert.Zero(t, remote.Manager().Len())

		require.NoError(t, remote.Teardown(context.Background()))
	})

	t.Run("MCPServerOnExecutor", func(t *testing.T) {
		cfg := baseConfig("local")
		pol, err := cfg.BuildPolicy()
		require.NoError(t, err)
		executor, err := sandbox.NewExecutor(zaptest.NewLogger(t), cfg, pol, nil)
		require.NoError(t, err)

		server, err := mcpserver.New(cfg, zaptest.NewLogger(t), executor)
		require.NoError(t, err)
		assert.NotNil(t, server.GetMCPServer())
	})

	t.Run("UnsupportedBackend", func(t *testing.T) {
		cfg := baseConfig("kubernetes")
		_, err := sandbox.NewExecutor(zaptest.NewLogger(t), cfg, policy.Default(), nil)
		assert.Error(t, err)
	})
}
