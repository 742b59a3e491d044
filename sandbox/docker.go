package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultImage is the container image used when none is configured
const DefaultImage = "python:3.11-slim"

// ContainerDriver provisions long-lived containers through the docker or
// podman CLI. Each session is one detached container; submissions are
// piped to python3 with exec.
type ContainerDriver struct {
	logger    *zap.Logger
	binary    string
	image     string
	cmdRunner CommandRunner
	extraArgs []string
}

// ContainerDriverOption defines a functional option for ContainerDriver
type ContainerDriverOption func(*ContainerDriver)

// WithCommandRunner sets the CommandRunner for ContainerDriver
func WithCommandRunner(cmdRunner CommandRunner) ContainerDriverOption {
	return func(d *ContainerDriver) {
		d.cmdRunner = cmdRunner
	}
}

// WithImage sets the image new sessions start from
func WithImage(image string) ContainerDriverOption {
	return func(d *ContainerDriver) {
		if image != "" {
			d.image = image
		}
	}
}

// NewDockerDriver creates a ContainerDriver backed by the docker CLI
func NewDockerDriver(logger *zap.Logger, opts ...ContainerDriverOption) *ContainerDriver {
	return newContainerDriver(logger, BackendDocker, nil, opts)
}

func newContainerDriver(logger *zap.Logger, binary string, extraArgs []string, opts []ContainerDriverOption) *ContainerDriver {
	d := &ContainerDriver{
		logger:    logger,
		binary:    binary,
		image:     DefaultImage,
		cmdRunner: RealCommandRunner{},
		extraArgs: extraArgs,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the CLI the driver runs
func (d *ContainerDriver) Name() string {
	return d.binary
}

func containerName(id string) string {
	return "safebox-" + id
}

// runArgs builds the command that starts a session container
func (d *ContainerDriver) runArgs(id string, limits Limits) []string {
	args := []string{
		d.binary, "run", "-d",
		"--name", containerName(id),
		"--label", "safebox.session=" + id,
		"--memory", fmt.Sprintf("%dm", limits.MemoryMB),
		"--memory-swap", fmt.Sprintf("%dm", limits.MemoryMB),
	}
	if limits.CPUQuota > 0 {
		args = append(args, "--cpus", strconv.FormatFloat(limits.CPUQuota, 'f', -1, 64))
	}
	if limits.ProcessLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(limits.ProcessLimit))
	}
	for _, capability := range limits.DroppedCapabilities {
		args = append(args, "--cap-drop", capability)
	}
	if limits.ExecutionIdentity != "" {
		args = append(args, "--user", limits.ExecutionIdentity)
	}
	if !limits.NetworkEnabled {
		args = append(args, "--network", "none")
	}
	args = append(args,
		"--read-only",
		"--tmpfs", "/tmp:rw,size=64m",
		"--ulimit", "fsize=100000000", // 100MB per file
		"--security-opt", "no-new-privileges:true",
	)
	args = append(args, d.extraArgs...)
	return append(args, d.image, "sleep", "infinity")
}

// Provision starts a detached container that idles until submissions arrive
func (d *ContainerDriver) Provision(ctx context.Context, id string, limits Limits) (Handle, error) {
	args := d.runArgs(id, limits)
	d.logger.Debug("starting container", zap.Strings("args", args))

	stdout, stderr, exitCode, err := d.cmdRunner.RunCommand(ctx, args, nil)
	if err != nil {
		return "", fmt.Errorf("failed to start container: %w", err)
	}
	if exitCode != 0 {
		return "", fmt.Errorf("%s run exited with status %d: %s", d.binary, exitCode, strings.TrimSpace(stderr))
	}
	d.logger.Debug("container started", zap.String("container_id", strings.TrimSpace(stdout)))
	return Handle(containerName(id)), nil
}

// Exec pipes program into python3 inside the container
func (d *ContainerDriver) Exec(ctx context.Context, h Handle, program string, env map[string]string) (ExecOutput, error) {
	args := []string{d.binary, "exec", "-i"}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-e", k+"="+env[k])
	}
	args = append(args, string(h), "python3", "-")

	stdout, stderr, exitCode, err := d.cmdRunner.RunCommand(ctx, args, strings.NewReader(program))
	if err != nil {
		return ExecOutput{Stdout: stdout, Stderr: stderr}, fmt.Errorf("failed to execute in container: %w", err)
	}
	return ExecOutput{Stdout: stdout, Stderr: stderr, ExitCode: exitCode}, nil
}

// Destroy force-removes the container. Removing a container that is
// already gone is not an error.
func (d *ContainerDriver) Destroy(ctx context.Context, h Handle) error {
	if h == "" {
		return nil
	}
	_, stderr, exitCode, err := d.cmdRunner.RunCommand(ctx, []string{d.binary, "rm", "-f", string(h)}, nil)
	if err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	if exitCode != 0 && !strings.Contains(strings.ToLower(stderr), "no such container") {
		return fmt.Errorf("%s rm exited with status %d: %s", d.binary, exitCode, strings.TrimSpace(stderr))
	}
	return nil
}
