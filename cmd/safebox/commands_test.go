package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Chdir(t.TempDir())

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		stdout  string
		stderr  string
		wantErr bool
	}{
		{
			name:   "Stdin",
			stdin:  "import math\nprint(math.sqrt(16))\nmath.floor(2.5)",
			args:   []string{"run", "-"},
			stdout: "4.0\n=> 2\n",
		},
		{
			name:    "ImportDenied",
			stdin:   "import os",
			args:    []string{"run"},
			stderr:  "error: ImportDenied: os (line 1)\n",
			wantErr: true,
		},
		{
			name:    "Budget",
			stdin:   "while True:\n    pass",
			args:    []string{"run", "--max-ops", "100"},
			wantErr: true,
		},
		{
			name:    "UnknownBackend",
			stdin:   "1",
			args:    []string{"run", "--backend", "kubernetes"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, stderr, err := execute(t, tt.stdin, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.stdout != "" {
				assert.Equal(t, tt.stdout, stdout)
			}
			if tt.stderr != "" {
				assert.Equal(t, tt.stderr, stderr)
			}
		})
	}
}

func TestRunCommandFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.py")
	require.NoError(t, os.WriteFile(path, []byte("print('from file')\n"), 0o600))

	stdout, _, err := execute(t, "", "run", "--json", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, `"output": [`)
	assert.Contains(t, stdout, `"from file"`)
	assert.Contains(t, stdout, `"backend": "local"`)
}

func TestCheckImportCommand(t *testing.T) {
	stdout, _, err := execute(t, "", "check-import", "math")
	require.NoError(t, err)
	assert.Equal(t, "allowed: math\n", stdout)

	stdout, _, err = execute(t, "", "check-import", "os.path")
	require.ErrorIs(t, err, errReported)
	assert.Equal(t, "denied: os.path (matches a dangerous pattern)\n", stdout)

	stdout, _, err = execute(t, "", "check-import", "numpy")
	require.Error(t, err)
	assert.Equal(t, "denied: numpy (not in allowed_imports)\n", stdout)
}
