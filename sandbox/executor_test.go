package sandbox

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockResult struct {
	stdout   string
	stderr   string
	exitCode int
	err      error
}

// MockCommandRunner implements CommandRunner for testing. Results are keyed
// by the CLI subcommand (run, exec, rm).
type MockCommandRunner struct {
	mu      sync.Mutex
	calls   [][]string
	stdins  []string
	results map[string]mockResult
}

func (m *MockCommandRunner) RunCommand(_ context.Context, args []string, stdin io.Reader) (stdout, stderr string, exitCode int, err error) {
	input := ""
	if stdin != nil {
		data, readErr := io.ReadAll(stdin)
		if readErr != nil {
			return "", "", 0, readErr
		}
		input = string(data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, args)
	m.stdins = append(m.stdins, input)

	if len(args) > 1 {
		if result, exists := m.results[args[1]]; exists {
			return result.stdout, result.stderr, result.exitCode, result.err
		}
	}
	return "", "", 0, nil
}

func (m *MockCommandRunner) call(i int) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[i]
}

// flagValue returns the argument following flag
func flagValue(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestContainerDriverProvision(t *testing.T) {
	t.Run("DefaultLimits", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {stdout: "3f2a\n"}}}
		driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner))

		h, err := driver.Provision(context.Background(), "abc", DefaultLimits())
		require.NoError(t, err)
		assert.Equal(t, Handle("safebox-abc"), h)

		args := runner.call(0)
		assert.Equal(t, []string{"docker", "run", "-d"}, args[:3])
		assert.Equal(t, "safebox-abc", flagValue(args, "--name"))
		assert.Equal(t, "512m", flagValue(args, "--memory"))
		assert.Equal(t, "1", flagValue(args, "--cpus"))
		assert.Equal(t, "64", flagValue(args, "--pids-limit"))
		assert.Equal(t, "ALL", flagValue(args, "--cap-drop"))
		assert.Equal(t, "nobody", flagValue(args, "--user"))
		assert.Equal(t, "none", flagValue(args, "--network"))
		assert.Equal(t, "no-new-privileges:true", flagValue(args, "--security-opt"))
		assert.Contains(t, args, "--read-only")
		assert.Equal(t, []string{DefaultImage, "sleep", "infinity"}, args[len(args)-3:])
	})

	t.Run("NetworkEnabledAndCustomImage", func(t *testing.T) {
		runner := &MockCommandRunner{}
		driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner), WithImage("python:3.12-alpine"))

		limits := DefaultLimits()
		limits.NetworkEnabled = true
		limits.CPUQuota = 0.5
		limits.DroppedCapabilities = []string{"NET_RAW", "SYS_ADMIN"}
		_, err := driver.Provision(context.Background(), "n1", limits)
		require.NoError(t, err)

		args := runner.call(0)
		assert.NotContains(t, args, "--network")
		assert.Equal(t, "0.5", flagValue(args, "--cpus"))
		assert.Equal(t, "python:3.12-alpine", args[len(args)-3])
		assert.Equal(t, 2, strings.Count(strings.Join(args, " "), "--cap-drop"))
	})

	t.Run("RuntimeFailure", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{
			"run": {stderr: "Unable to find image\n", exitCode: 125},
		}}
		driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner))

		_, err := driver.Provision(context.Background(), "x", DefaultLimits())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 125")
		assert.Contains(t, err.Error(), "Unable to find image")
	})

	t.Run("RunnerError", func(t *testing.T) {
		runner := &MockCommandRunner{results: map[string]mockResult{"run": {err: errors.New("docker: not found")}}}
		driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner))

		_, err := driver.Provision(context.Background(), "x", DefaultLimits())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to start container")
	})
}

func TestContainerDriverExec(t *testing.T) {
	runner := &MockCommandRunner{results: map[string]mockResult{
		"exec": {stdout: "hi\n", stderr: "warn\n", exitCode: 1},
	}}
	driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner))

	out, err := driver.Exec(context.Background(), "safebox-abc", "print('hi')", map[string]string{"B": "2", "A": "1"})
	require.NoError(t, err)
	assert.Equal(t, ExecOutput{Stdout: "hi\n", Stderr: "warn\n", ExitCode: 1}, out)

	assert.Equal(t, []string{
		"docker", "exec", "-i", "-e", "A=1", "-e", "B=2", "safebox-abc", "python3", "-",
	}, runner.call(0))
	assert.Equal(t, "print('hi')", runner.stdins[0])
}

func TestContainerDriverDestroy(t *testing.T) {
	tests := []struct {
		name    string
		result  mockResult
		handle  Handle
		calls   int
		wantErr bool
	}{
		{"Removed", mockResult{}, "safebox-a", 1, false},
		{"AlreadyGone", mockResult{stderr: "Error: No such container: safebox-a", exitCode: 1}, "safebox-a", 1, false},
		{"DaemonError", mockResult{stderr: "Cannot connect to the Docker daemon", exitCode: 1}, "safebox-a", 1, true},
		{"EmptyHandle", mockResult{}, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &MockCommandRunner{results: map[string]mockResult{"rm": tt.result}}
			driver := NewDockerDriver(zaptest.NewLogger(t), WithCommandRunner(runner))

			err := driver.Destroy(context.Background(), tt.handle)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Len(t, runner.calls, tt.calls)
			if tt.calls > 0 {
				assert.Equal(t, []string{"docker", "rm", "-f", string(tt.handle)}, runner.call(0))
			}
		})
	}
}

func TestPodmanDriver(t *testing.T) {
	runner := &MockCommandRunner{}
	driver := NewPodmanDriver(zaptest.NewLogger(t), WithCommandRunner(runner))
	assert.Equal(t, BackendPodman, driver.Name())

	_, err := driver.Provision(context.Background(), "p", DefaultLimits())
	require.NoError(t, err)

	args := runner.call(0)
	assert.Equal(t, "podman", args[0])
	assert.Equal(t, "auto", flagValue(args, "--userns"))
}
