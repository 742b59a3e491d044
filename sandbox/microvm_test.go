package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/config"
	"github.com/isdmx/safebox/policy"
)

// fakeVMService emulates the micro-VM sandbox API
type fakeVMService struct {
	mu       sync.Mutex
	token    string
	next     int
	vms      map[string]createSandboxRequest
	lastExec execRequest
	// stdout replaces the default exec output when set
	stdout string
}

func newFakeVMService(token string) *fakeVMService {
	return &fakeVMService{token: token, vms: map[string]createSandboxRequest{}}
}

func (f *fakeVMService) router() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer "+f.token {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Post("/v1/sandboxes", f.create)
	r.Post("/v1/sandboxes/{id}/exec", f.exec)
	r.Delete("/v1/sandboxes/{id}", f.destroy)
	return r
}

func (f *fakeVMService) create(w http.ResponseWriter, r *http.Request) {
	var req createSandboxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.next++
	id := fmt.Sprintf("vm-%d", f.next)
	f.vms[id] = req
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createSandboxResponse{ID: id})
}

func (f *fakeVMService) exec(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req execRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	_, ok := f.vms[id]
	f.lastExec = req
	stdout := f.stdout
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	if stdout == "" {
		stdout = "from " + id + "\n"
	}
	_ = json.NewEncoder(w).Encode(execResponse{
		Stdout: stdout,
		Stderr: resultMarker + `{"return_value": "42"}` + "\n",
	})
}

func (f *fakeVMService) destroy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	f.mu.Lock()
	_, ok := f.vms[id]
	delete(f.vms, id)
	f.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeVMService) vm(id string) createSandboxRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vms[id]
}

func (f *fakeVMService) lastExecRequest() execRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastExec
}

func (f *fakeVMService) live() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vms)
}

func TestMicroVMDriver(t *testing.T) {
	svc := newFakeVMService("secret")
	srv := httptest.NewServer(svc.router())
	defer srv.Close()

	driver, err := NewMicroVMDriver(zaptest.NewLogger(t), MicroVMConfig{
		Endpoint: srv.URL + "/",
		APIKey:   "secret",
		Template: "python-3.11",
	}, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, BackendMicroVM, driver.Name())

	ctx := context.Background()
	h, err := driver.Provision(ctx, "sess", DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, Handle("vm-1"), h)
	assert.Equal(t, "python-3.11", svc.vm("vm-1").Template)
	assert.Equal(t, 512, svc.vm("vm-1").MemoryMB)

	out, err := driver.Exec(ctx, h, "print(1)", map[string]string{"K": "v"})
	require.NoError(t, err)
	assert.Equal(t, "from vm-1\n", out.Stdout)
	last := svc.lastExecRequest()
	assert.Equal(t, []string{"python3", "-"}, last.Command)
	assert.Equal(t, "print(1)", last.Stdin)
	assert.Equal(t, "v", last.Env["K"])

	require.NoError(t, driver.Destroy(ctx, h))
	assert.Zero(t, svc.live())
	require.NoError(t, driver.Destroy(ctx, h), "a vanished micro-VM counts as destroyed")

	_, err = driver.Exec(ctx, h, "print(1)", nil)
	require.Error(t, err)
}

func TestMicroVMDriverUnauthorized(t *testing.T) {
	srv := httptest.NewServer(newFakeVMService("secret").router())
	defer srv.Close()

	driver, err := NewMicroVMDriver(zaptest.NewLogger(t), MicroVMConfig{Endpoint: srv.URL, APIKey: "wrong"}, srv.Client())
	require.NoError(t, err)

	_, err = driver.Provision(context.Background(), "sess", DefaultLimits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}

func TestMicroVMDriverInvalidEndpoint(t *testing.T) {
	_, err := NewMicroVMDriver(zaptest.NewLogger(t), MicroVMConfig{Endpoint: "not a url"}, nil)
	assert.Error(t, err)
}

func TestMicroVMRemoteExecutor(t *testing.T) {
	svc := newFakeVMService("k")
	srv := httptest.NewServer(svc.router())
	defer srv.Close()

	driver, err := NewMicroVMDriver(zaptest.NewLogger(t), MicroVMConfig{Endpoint: srv.URL, APIKey: "k"}, srv.Client())
	require.NoError(t, err)
	m := NewManager(zaptest.NewLogger(t), driver, ManagerConfig{Limits: DefaultLimits()}, nil)
	e := NewRemoteExecutor(zaptest.NewLogger(t), policy.Default(), m, RemoteConfig{}, nil)

	res, err := e.Submit(context.Background(), Request{Code: "40 + 2", SessionID: "calc"})
	require.NoError(t, err)
	require.Nil(t, res.Err)
	assert.Equal(t, []string{"from vm-1"}, res.Output)
	require.NotNil(t, res.ReturnValue)
	assert.Equal(t, "42", *res.ReturnValue)
	assert.Equal(t, BackendMicroVM, res.Backend)
	assert.Equal(t, 1, svc.live())

	require.NoError(t, e.Teardown(context.Background()))
	assert.Zero(t, svc.live())
}

func TestMicroVMDriverResponseLimit(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		wantErr string
	}{
		{name: "WithinLimit", stdout: strings.Repeat("x", 512)},
		{name: "Oversized", stdout: strings.Repeat("x", 4096), wantErr: "response exceeds 1024 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeVMService("k")
			svc.stdout = tt.stdout
			srv := httptest.NewServer(svc.router())
			defer srv.Close()

			driver, err := NewMicroVMDriver(zaptest.NewLogger(t), MicroVMConfig{
				Endpoint:         srv.URL,
				APIKey:           "k",
				MaxResponseBytes: 1024,
			}, srv.Client())
			require.NoError(t, err)

			ctx := context.Background()
			h, err := driver.Provision(ctx, "sess", DefaultLimits())
			require.NoError(t, err)

			out, err := driver.Exec(ctx, h, "print('x' * 4096)", nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stdout, out.Stdout)
		})
	}
}

func TestNewDriverMicroVM(t *testing.T) {
	tests := []struct {
		name        string
		timeoutSec  int
		wantTimeout time.Duration
	}{
		{name: "WithExecutionTimeout", timeoutSec: 30, wantTimeout: 30*time.Second + killTimeout},
		{name: "WithoutExecutionTimeout", timeoutSec: 0, wantTimeout: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Sandbox.Backend = BackendMicroVM
			cfg.Sandbox.TimeoutSec = tt.timeoutSec
			cfg.Sandbox.MicroVM.Endpoint = "http://127.0.0.1:9000"
			pol, err := policy.New(policy.Options{MaxOutputBytes: 1000})
			require.NoError(t, err)

			d, err := NewDriver(zaptest.NewLogger(t), cfg, pol)
			require.NoError(t, err)
			vm, ok := d.(*MicroVMDriver)
			require.True(t, ok)
			assert.Equal(t, tt.wantTimeout, vm.client.Timeout)
			assert.Equal(t, int64(2000+responseHeadroom), vm.cfg.MaxResponseBytes)
		})
	}
}
