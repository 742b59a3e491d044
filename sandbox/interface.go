package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/isdmx/safebox/result"
)

// Backend names
const (
	BackendLocal   = "local"
	BackendDocker  = "docker"
	BackendPodman  = "podman"
	BackendMicroVM = "microvm"
)

// DefaultSessionKey names the shared session used when a request has none
const DefaultSessionKey = "default"

// ErrClosed is returned by Submit after the executor has been torn down
var ErrClosed = errors.New("sandbox: executor is closed")

// Request is one submission
type Request struct {
	Code string
	// Env is exposed to remote programs as environment variables and to
	// local evaluation as a read-only dict named env.
	Env map[string]string
	// Variables are bound as globals before evaluation
	Variables map[string]any
	// SessionID selects the remote session in reuse mode
	SessionID string
}

// Executor is the submission contract shared by every backend. All
// evaluation outcomes, failures included, travel inside the Result; the
// error return is reserved for ErrClosed.
type Executor interface {
	Submit(ctx context.Context, req Request) (*result.Result, error)
	// CloseSession tears down one remote session. Unknown sessions and
	// backends without sessions are a no-op.
	CloseSession(ctx context.Context, id string) error
	// Teardown releases every held resource. It is idempotent.
	Teardown(ctx context.Context) error
}

// Limits are the resource caps applied to a remote session
type Limits struct {
	MemoryMB            int
	CPUQuota            float64
	ProcessLimit        int
	DroppedCapabilities []string
	NetworkEnabled      bool
	ExecutionIdentity   string
}

// DefaultLimits returns conservative caps
func DefaultLimits() Limits {
	return Limits{
		MemoryMB:            512,
		CPUQuota:            1,
		ProcessLimit:        64,
		DroppedCapabilities: []string{"ALL"},
		ExecutionIdentity:   "nobody",
	}
}

// CommandRunner defines an interface for executing system commands
type CommandRunner interface {
	RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error)
}

// RealCommandRunner implements CommandRunner using actual exec commands
type RealCommandRunner struct{}

// RunCommand executes the given command with arguments
func (RealCommandRunner) RunCommand(ctx context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error) {
	if len(args) < 1 {
		return "", "", 0, fmt.Errorf("no command provided")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec // arguments are built by the drivers
	cmd.Stdin = stdin

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err = cmd.Run()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) && ctx.Err() == nil {
			return stdoutBuf.String(), stderrBuf.String(), exitError.ExitCode(), nil
		}
		if ctx.Err() != nil {
			return stdoutBuf.String(), stderrBuf.String(), -1, ctx.Err()
		}
		return "", "", 0, err
	}
	return stdoutBuf.String(), stderrBuf.String(), 0, nil
}

// Handle identifies a provisioned environment within its driver
type Handle string

// ExecOutput is the raw outcome of running a program in a session
type ExecOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Driver provisions and drives one kind of isolated environment
type Driver interface {
	Name() string
	Provision(ctx context.Context, id string, limits Limits) (Handle, error)
	Exec(ctx context.Context, h Handle, program string, env map[string]string) (ExecOutput, error)
	Destroy(ctx context.Context, h Handle) error
}
