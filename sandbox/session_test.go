package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/safebox/result"
)

// fakeDriver is an in-memory Driver
type fakeDriver struct {
	mu            sync.Mutex
	provisions    int
	destroyed     []Handle
	programs      []string
	provisionErr  error
	provisionGate chan struct{}
	exec          func(ctx context.Context, program string) (ExecOutput, error)
	destroy       func(ctx context.Context) error
}

func (*fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Provision(ctx context.Context, _ string, _ Limits) (Handle, error) {
	if d.provisionGate != nil {
		select {
		case <-d.provisionGate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.provisionErr != nil {
		return "", d.provisionErr
	}
	d.provisions++
	return Handle(fmt.Sprintf("h-%d", d.provisions)), nil
}

func (d *fakeDriver) Exec(ctx context.Context, _ Handle, program string, _ map[string]string) (ExecOutput, error) {
	d.mu.Lock()
	d.programs = append(d.programs, program)
	fn := d.exec
	d.mu.Unlock()
	if fn != nil {
		return fn(ctx, program)
	}
	return ExecOutput{Stderr: resultMarker + "{}\n"}, nil
}

func (d *fakeDriver) Destroy(ctx context.Context, h Handle) error {
	d.mu.Lock()
	d.destroyed = append(d.destroyed, h)
	fn := d.destroy
	d.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

func (d *fakeDriver) counts() (provisions, destroys int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.provisions, len(d.destroyed)
}

func (d *fakeDriver) executed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.programs...)
}

func blockUntilDone(ctx context.Context, _ string) (ExecOutput, error) {
	<-ctx.Done()
	return ExecOutput{}, ctx.Err()
}

func newTestSession(t *testing.T, d *fakeDriver) *Session {
	return newSession("id-1", "k", d, DefaultLimits(), zaptest.NewLogger(t), nil)
}

func TestSessionLifecycle(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, d)
	assert.Equal(t, StateUninitialized, s.State())

	_, err := s.Run(context.Background(), "a", nil)
	require.NoError(t, err)
	assert.Equal(t, StateReady, s.State())

	_, err = s.Run(context.Background(), "b", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Uses())

	provisions, destroys := d.counts()
	assert.Equal(t, 1, provisions, "a ready session is reused")
	assert.Equal(t, 0, destroys)

	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, StateTerminated, s.State())

	require.NoError(t, s.Teardown(context.Background()))
	_, destroys = d.counts()
	assert.Equal(t, 1, destroys, "teardown releases the environment exactly once")

	_, err = s.Run(context.Background(), "c", nil)
	assert.ErrorIs(t, err, errSessionTerminated)
}

func TestSessionTeardownBeforeProvision(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, d)

	require.NoError(t, s.Teardown(context.Background()))
	assert.Equal(t, StateTerminated, s.State())
	provisions, destroys := d.counts()
	assert.Zero(t, provisions)
	assert.Zero(t, destroys)
}

func TestSessionProvisionFailure(t *testing.T) {
	d := &fakeDriver{provisionErr: errors.New("no capacity")}
	s := newTestSession(t, d)

	_, err := s.Run(context.Background(), "a", nil)
	var rerr *result.Error
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, result.KindSandboxProvisionError, rerr.Kind)
	assert.Contains(t, rerr.Message, "no capacity")
	assert.Equal(t, StateTerminated, s.State())
	assert.Empty(t, d.executed())
}

func TestSessionThrottle(t *testing.T) {
	d := &fakeDriver{}
	s := newTestSession(t, d)
	s.throttle = func(context.Context) error { return errors.New("rate exceeded") }

	_, err := s.Run(context.Background(), "a", nil)
	assert.Equal(t, result.KindSandboxProvisionError, result.KindOf(err))
	provisions, _ := d.counts()
	assert.Zero(t, provisions)
}

func TestSessionDeadlineKillsEnvironment(t *testing.T) {
	d := &fakeDriver{exec: blockUntilDone}
	s := newTestSession(t, d)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := s.Run(ctx, "while True: pass", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, StateTerminated, s.State())
	_, destroys := d.counts()
	assert.Equal(t, 1, destroys)
}

func TestSessionDestroyIsBounded(t *testing.T) {
	hang := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	tests := []struct {
		name string
		end  func(s *Session) error
	}{
		{
			name: "Teardown",
			end:  func(s *Session) error { return s.Teardown(context.Background()) },
		},
		{
			name: "TeardownWithoutCancel",
			end: func(s *Session) error {
				return s.Teardown(context.WithoutCancel(context.Background()))
			},
		},
		{
			name: "InterruptedRun",
			end: func(s *Session) error {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				defer cancel()
				_, err := s.Run(ctx, "while True: pass", nil)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDriver{destroy: hang}
			s := newTestSession(t, d)
			s.destroyTimeout = 30 * time.Millisecond
			_, err := s.Run(context.Background(), "x", nil)
			require.NoError(t, err)
			d.exec = blockUntilDone

			done := make(chan error, 1)
			go func() { done <- tt.end(s) }()
			select {
			case err := <-done:
				require.Error(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("destroy of an unresponsive environment was not bounded")
			}
			assert.Equal(t, StateTerminated, s.State())
		})
	}
}

func TestSessionFIFO(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDriver{}
	d.exec = func(_ context.Context, program string) (ExecOutput, error) {
		if program == "first" {
			<-release
		}
		return ExecOutput{}, nil
	}
	s := newTestSession(t, d)

	var wg sync.WaitGroup
	submit := func(program string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Run(context.Background(), program, nil)
			assert.NoError(t, err)
		}()
	}

	submit("first")
	require.Eventually(t, func() bool { return s.State() == StateBusy }, time.Second, time.Millisecond)

	want := []string{"first"}
	for i := range 5 {
		program := fmt.Sprintf("queued-%d", i)
		want = append(want, program)
		submit(program)
		// each waiter must be queued before the next arrives
		time.Sleep(20 * time.Millisecond)
	}

	close(release)
	wg.Wait()
	assert.Equal(t, want, d.executed())
}

func TestSessionTeardownWaitsForSubmission(t *testing.T) {
	release := make(chan struct{})
	d := &fakeDriver{exec: func(context.Context, string) (ExecOutput, error) {
		<-release
		return ExecOutput{Stdout: "done\n"}, nil
	}}
	s := newTestSession(t, d)

	done := make(chan ExecOutput, 1)
	go func() {
		out, err := s.Run(context.Background(), "slow", nil)
		assert.NoError(t, err)
		done <- out
	}()
	require.Eventually(t, func() bool { return s.State() == StateBusy }, time.Second, time.Millisecond)

	torn := make(chan error, 1)
	go func() { torn <- s.Teardown(context.Background()) }()

	select {
	case <-torn:
		t.Fatal("teardown finished while a submission was running")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	assert.Equal(t, "done\n", (<-done).Stdout)
	require.NoError(t, <-torn)
	assert.Equal(t, StateTerminated, s.State())
}

func TestSessionForcedTeardownDuringProvision(t *testing.T) {
	gate := make(chan struct{})
	d := &fakeDriver{provisionGate: gate}
	s := newTestSession(t, d)

	runErr := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), "a", nil)
		runErr <- err
	}()
	require.Eventually(t, func() bool { return s.State() == StateProvisioning }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Teardown(ctx))
	assert.Equal(t, StateTerminating, s.State())

	close(gate)
	assert.ErrorIs(t, <-runErr, errSessionTerminated)
	assert.Equal(t, StateTerminated, s.State())

	provisions, destroys := d.counts()
	assert.Equal(t, 1, provisions)
	assert.Equal(t, 1, destroys, "the environment provisioned under a teardown is released")
	assert.Empty(t, d.executed())
}
