package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// DefaultMaxResponseBytes caps a service response when MicroVMConfig sets
// no limit
const DefaultMaxResponseBytes = 4 << 20

// MicroVMConfig addresses a micro-VM sandbox service
type MicroVMConfig struct {
	Endpoint string
	APIKey   string
	Template string
	// MaxResponseBytes caps the size of any response body; zero selects
	// DefaultMaxResponseBytes
	MaxResponseBytes int64
}

// MicroVMDriver provisions sessions as micro-VMs through the service's
// JSON API.
type MicroVMDriver struct {
	logger *zap.Logger
	cfg    MicroVMConfig
	client *http.Client
}

// NewMicroVMDriver creates a MicroVMDriver. A nil client selects
// http.DefaultClient; per-request deadlines come from the caller's context.
func NewMicroVMDriver(logger *zap.Logger, cfg MicroVMConfig, client *http.Client) (*MicroVMDriver, error) {
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid micro-VM endpoint %q: %w", cfg.Endpoint, err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultMaxResponseBytes
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	return &MicroVMDriver{logger: logger, cfg: cfg, client: client}, nil
}

// Name returns the backend name
func (*MicroVMDriver) Name() string {
	return BackendMicroVM
}

type createSandboxRequest struct {
	Template       string   `json:"template,omitempty"`
	Session        string   `json:"session"`
	MemoryMB       int      `json:"memory_mb"`
	CPUQuota       float64  `json:"cpu_quota"`
	ProcessLimit   int      `json:"process_limit"`
	DropCaps       []string `json:"drop_capabilities,omitempty"`
	NetworkEnabled bool     `json:"network_enabled"`
	User           string   `json:"user,omitempty"`
}

type createSandboxResponse struct {
	ID string `json:"id"`
}

type execRequest struct {
	Command []string          `json:"command"`
	Stdin   string            `json:"stdin"`
	Env     map[string]string `json:"env,omitempty"`
}

type execResponse struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// errNotFound marks a 404 from the service
var errNotFound = errors.New("sandbox not found")

// Provision creates a micro-VM with the given limits
func (d *MicroVMDriver) Provision(ctx context.Context, id string, limits Limits) (Handle, error) {
	req := createSandboxRequest{
		Template:       d.cfg.Template,
		Session:        id,
		MemoryMB:       limits.MemoryMB,
		CPUQuota:       limits.CPUQuota,
		ProcessLimit:   limits.ProcessLimit,
		DropCaps:       limits.DroppedCapabilities,
		NetworkEnabled: limits.NetworkEnabled,
		User:           limits.ExecutionIdentity,
	}
	var resp createSandboxResponse
	if err := d.do(ctx, http.MethodPost, "/v1/sandboxes", req, &resp); err != nil {
		return "", fmt.Errorf("failed to create micro-VM: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("failed to create micro-VM: service returned no id")
	}
	d.logger.Debug("micro-VM created", zap.String("vm_id", resp.ID))
	return Handle(resp.ID), nil
}

// Exec runs program with python3 inside the micro-VM
func (d *MicroVMDriver) Exec(ctx context.Context, h Handle, program string, env map[string]string) (ExecOutput, error) {
	req := execRequest{
		Command: []string{"python3", "-"},
		Stdin:   program,
		Env:     env,
	}
	var resp execResponse
	if err := d.do(ctx, http.MethodPost, "/v1/sandboxes/"+url.PathEscape(string(h))+"/exec", req, &resp); err != nil {
		return ExecOutput{}, fmt.Errorf("failed to execute in micro-VM: %w", err)
	}
	return ExecOutput(resp), nil
}

// Destroy deletes the micro-VM. A micro-VM the service no longer knows is
// treated as already destroyed.
func (d *MicroVMDriver) Destroy(ctx context.Context, h Handle) error {
	if h == "" {
		return nil
	}
	err := d.do(ctx, http.MethodDelete, "/v1/sandboxes/"+url.PathEscape(string(h)), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return fmt.Errorf("failed to delete micro-VM: %w", err)
	}
	return nil
}

func (d *MicroVMDriver) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, d.cfg.Endpoint+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if d.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return errNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, d.cfg.MaxResponseBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(data)) > d.cfg.MaxResponseBytes {
		return fmt.Errorf("%s %s: response exceeds %d bytes", method, path, d.cfg.MaxResponseBytes)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
