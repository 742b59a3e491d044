package sandbox

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/interp"
	"github.com/isdmx/safebox/metrics"
	"github.com/isdmx/safebox/policy"
)

// LimitsFromConfig converts the sandbox section into session limits
func LimitsFromConfig(cfg *config.SandboxConfig) Limits {
	return Limits{
		MemoryMB:            cfg.MemoryMB,
		CPUQuota:            cfg.CPUQuota,
		ProcessLimit:        cfg.ProcessLimit,
		DroppedCapabilities: cfg.DroppedCapabilities,
		NetworkEnabled:      cfg.NetworkEnabled,
		ExecutionIdentity:   cfg.ExecutionIdentity,
	}
}

// responseHeadroom is room in a micro-VM exec response for the result
// payload and JSON framing on top of the captured output
const responseHeadroom = 1 << 20

// NewDriver creates the driver for a remote backend
func NewDriver(logger *zap.Logger, cfg *config.Config, pol *policy.Policy) (Driver, error) {
	if pol == nil {
		pol = policy.Default()
	}
	sb := &cfg.Sandbox
	switch sb.Backend {
	case BackendDocker:
		return NewDockerDriver(logger, WithImage(sb.Image)), nil
	case BackendPodman:
		return NewPodmanDriver(logger, WithImage(sb.Image)), nil
	case BackendMicroVM:
		return NewMicroVMDriver(logger, MicroVMConfig{
			Endpoint: sb.MicroVM.Endpoint,
			APIKey:   sb.MicroVM.APIKey,
			Template: sb.MicroVM.Template,
			// stdout and stderr may each fill the output cap
			MaxResponseBytes: 2*int64(pol.MaxOutputBytes()) + responseHeadroom,
		}, microVMClient(cfg.GetTimeout()))
	default:
		return nil, fmt.Errorf("unsupported remote backend: %s", sb.Backend)
	}
}

// microVMClient bounds every request to the service by the execution
// timeout plus the time a teardown may take. Without an execution timeout
// only the per-session destroy bound applies.
func microVMClient(execTimeout time.Duration) *http.Client {
	if execTimeout <= 0 {
		return &http.Client{}
	}
	return &http.Client{Timeout: execTimeout + killTimeout}
}

// NewExecutor creates an appropriate sandbox executor based on the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config, pol *policy.Policy, collector *metrics.Collector) (Executor, error) {
	if cfg.Sandbox.Backend == BackendLocal {
		return NewLocalExecutor(logger, interp.New(pol), cfg.GetTimeout(), collector), nil
	}

	driver, err := NewDriver(logger, cfg, pol)
	if err != nil {
		return nil, err
	}
	manager := NewManager(logger, driver, ManagerConfig{
		Limits:         LimitsFromConfig(&cfg.Sandbox),
		MaxSessions:    cfg.Sandbox.MaxSessions,
		ProvisionRate:  cfg.Sandbox.ProvisionRate,
		ProvisionBurst: cfg.Sandbox.ProvisionBurst,
	}, collector)
	return NewRemoteExecutor(logger, pol, manager, RemoteConfig{
		Timeout:     cfg.GetTimeout(),
		SessionMode: cfg.Sandbox.SessionMode,
	}, collector), nil
}
