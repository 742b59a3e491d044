package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/logger"
	"github.com/isdmx/safebox/mcpserver"
	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/sandbox"
)

func main() {
	app := fx.New(
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			(*config.Config).BuildPolicy,
			newRegistry,
			func(reg *prometheus.Registry) *metrics.Collector {
				return metrics.NewCollector(reg)
			},
			sandbox.NewExecutor,
			mcpserver.New,
		),

		fx.Invoke(
			registerMetricsServer,
			registerTransport,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// registerTransport serves the MCP tools on the configured transport and
// tears the executor down on stop.
func registerTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger,
	server *mcpserver.MCPServer, executor sandbox.Executor,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				var err error
				switch cfg.Server.Transport {
				case "stdio":
					err = server.ServeStdio()
				case "http":
					err = server.ServeHTTP()
				}
				if err != nil {
					log.Error("transport stopped", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				// stdin closed or the HTTP server was shut down
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return errors.Join(server.Shutdown(ctx), executor.Teardown(ctx))
		},
	})
}

// registerMetricsServer exposes /metrics and /healthz when metrics are enabled
func registerMetricsServer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, reg *prometheus.Registry) {
	if !cfg.Metrics.Enabled {
		return
	}
	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           metrics.Handler(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				log.Info("serving metrics", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("metrics server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: srv.Shutdown,
	})
}
