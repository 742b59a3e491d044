package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/policy"
	"github.com/isdmx/safebox/result"
)

func newTestRemote(t *testing.T, d *fakeDriver, cfg RemoteConfig) *RemoteExecutor {
	m := newTestManager(t, d, ManagerConfig{})
	return NewRemoteExecutor(zaptest.NewLogger(t), policy.Default(), m, cfg, nil)
}

func respond(stdout, payload string) func(context.Context, string) (ExecOutput, error) {
	return func(context.Context, string) (ExecOutput, error) {
		return ExecOutput{Stdout: stdout, Stderr: resultMarker + payload + "\n"}, nil
	}
}

func TestRemoteSubmit(t *testing.T) {
	d := &fakeDriver{exec: respond("4.0\n", `{"return_value": "4.0"}`)}
	e := newTestRemote(t, d, RemoteConfig{Timeout: time.Second})

	res, err := e.Submit(context.Background(), Request{Code: "import math\nprint(math.sqrt(16))\nmath.sqrt(16)"})
	require.NoError(t, err)
	require.Nil(t, res.Err)
	assert.Equal(t, []string{"4.0"}, res.Output)
	require.NotNil(t, res.ReturnValue)
	assert.Equal(t, "4.0", *res.ReturnValue)
	assert.Equal(t, "fake", res.Backend)
	assert.Equal(t, DefaultSessionKey, res.SessionID)
	assert.Positive(t, res.Duration)
}

func TestRemoteImportPreCheck(t *testing.T) {
	d := &fakeDriver{}
	e := newTestRemote(t, d, RemoteConfig{})

	res, err := e.Submit(context.Background(), Request{Code: "x = 1\nimport os\nos.system('id')"})
	require.NoError(t, err)
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindImportDenied, res.Err.Kind)
	assert.Equal(t, "os", res.Err.Message)
	assert.Equal(t, 2, res.Err.Line)

	provisions, _ := d.counts()
	assert.Zero(t, provisions, "a denied import never reaches the backend")
	assert.Empty(t, d.executed())
}

func TestRemoteSessionReuse(t *testing.T) {
	d := &fakeDriver{}
	e := newTestRemote(t, d, RemoteConfig{})

	for range 3 {
		res, err := e.Submit(context.Background(), Request{Code: "x = 1", SessionID: "s1"})
		require.NoError(t, err)
		require.Nil(t, res.Err)
		assert.Equal(t, "s1", res.SessionID)
	}
	res, err := e.Submit(context.Background(), Request{Code: "x = 1", SessionID: "s2"})
	require.NoError(t, err)
	require.Nil(t, res.Err)

	provisions, destroys := d.counts()
	assert.Equal(t, 2, provisions)
	assert.Zero(t, destroys)

	require.NoError(t, e.CloseSession(context.Background(), "s1"))
	_, destroys = d.counts()
	assert.Equal(t, 1, destroys)
}

func TestRemoteFreshMode(t *testing.T) {
	d := &fakeDriver{}
	e := newTestRemote(t, d, RemoteConfig{SessionMode: SessionModeFresh})

	for range 2 {
		res, err := e.Submit(context.Background(), Request{Code: "x = 1"})
		require.NoError(t, err)
		require.Nil(t, res.Err)
		assert.NotEmpty(t, res.SessionID)
	}

	provisions, destroys := d.counts()
	assert.Equal(t, 2, provisions)
	assert.Equal(t, 2, destroys)
	assert.Zero(t, e.Manager().Len())
}

func TestRemoteTimeout(t *testing.T) {
	d := &fakeDriver{exec: blockUntilDone}
	e := newTestRemote(t, d, RemoteConfig{Timeout: 50 * time.Millisecond})

	res, err := e.Submit(context.Background(), Request{Code: "while True: pass"})
	require.NoError(t, err)
	require.NotNil(t, res.Err)
	assert.Equal(t, result.KindSandboxTimeout, res.Err.Kind)

	_, destroys := d.counts()
	assert.Equal(t, 1, destroys, "the timed out session is killed")

	d.mu.Lock()
	d.exec = respond("", `{}`)
	d.mu.Unlock()
	res, err = e.Submit(context.Background(), Request{Code: "x = 1"})
	require.NoError(t, err)
	require.Nil(t, res.Err)

	provisions, _ := d.counts()
	assert.Equal(t, 2, provisions, "the next submission provisions a fresh session")
}

func TestRemoteErrors(t *testing.T) {
	tests := []struct {
		name   string
		driver *fakeDriver
		kind   result.Kind
	}{
		{
			name:   "ProvisionFailure",
			driver: &fakeDriver{provisionErr: errors.New("image pull failed")},
			kind:   result.KindSandboxProvisionError,
		},
		{
			name:   "ExecTransportFailure",
			driver: &fakeDriver{exec: func(context.Context, string) (ExecOutput, error) { return ExecOutput{}, errors.New("connection reset") }},
			kind:   result.KindSandboxProvisionError,
		},
		{
			name:   "RuntimeError",
			driver: &fakeDriver{exec: respond("", `{"error": {"type": "KeyError", "message": "KeyError: 'x'", "line": 1}}`)},
			kind:   result.KindRuntimeEvaluationError,
		},
		{
			name:   "SyntaxError",
			driver: &fakeDriver{exec: respond("", `{"error": {"type": "SyntaxError", "message": "invalid syntax", "line": 1}}`)},
			kind:   result.KindSyntaxError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestRemote(t, tt.driver, RemoteConfig{})
			res, err := e.Submit(context.Background(), Request{Code: "d = {}\nd['x']"})
			require.NoError(t, err)
			require.NotNil(t, res.Err)
			assert.Equal(t, tt.kind, res.Err.Kind)
			assert.Equal(t, "fake", res.Backend)
		})
	}
}

func TestRemoteTeardown(t *testing.T) {
	d := &fakeDriver{}
	e := newTestRemote(t, d, RemoteConfig{})

	_, err := e.Submit(context.Background(), Request{Code: "x = 1"})
	require.NoError(t, err)

	require.NoError(t, e.Teardown(context.Background()))
	require.NoError(t, e.Teardown(context.Background()))

	_, destroys := d.counts()
	assert.Equal(t, 1, destroys)

	_, err = e.Submit(context.Background(), Request{Code: "x = 1"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRemoteSubmitAfterManagerShutdown(t *testing.T) {
	for _, mode := range []string{SessionModeReuse, SessionModeFresh} {
		t.Run(mode, func(t *testing.T) {
			d := &fakeDriver{}
			e := newTestRemote(t, d, RemoteConfig{SessionMode: mode})

			// Teardown has shut the manager down but Submit already passed
			// its own closed check
			require.NoError(t, e.Manager().Shutdown(context.Background()))

			res, err := e.Submit(context.Background(), Request{Code: "x = 1"})
			require.ErrorIs(t, err, ErrClosed)
			assert.Nil(t, res)

			provisions, _ := d.counts()
			assert.Zero(t, provisions)
		})
	}
}
