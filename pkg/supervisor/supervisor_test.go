package supervisor

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escalaflow/scalegate/pkg/engine"
	"github.com/escalaflow/scalegate/pkg/engine/enginetest"
	"github.com/escalaflow/scalegate/pkg/retry"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

type versionFunc func(ctx context.Context) (string, error)

func (f versionFunc) Version(ctx context.Context) (string, error) { return f(ctx) }

var fastPolicy = retry.BackoffPolicy{BaseMs: 1, MaxMs: 1, MaxAttempts: 5}

func TestStartAdoptsRunningEngine(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("GET /health", enginetest.JSON(map[string]any{"status": "ok"}))
	client, err := engine.New(f.URL())
	require.NoError(t, err)

	s := New(Config{Command: []string{"/nonexistent/engine"}}, client, WithPolicy(fastPolicy))
	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.Running())
	require.NoError(t, s.Stop(context.Background()))
}

func TestWaitHealthyBounded(t *testing.T) {
	var calls atomic.Int32
	s := New(Config{}, healthFunc(func(context.Context) error {
		calls.Add(1)
		return errors.New("connection refused")
	}), WithPolicy(fastPolicy))

	err := s.WaitHealthy(context.Background())
	require.ErrorIs(t, err, ErrNotHealthy)
	assert.Equal(t, int32(5), calls.Load())
}

func TestWaitHealthyEventually(t *testing.T) {
	f := enginetest.New()
	defer f.Close()
	f.On("GET /health",
		enginetest.Detail(503, "starting"),
		enginetest.Detail(503, "starting"),
		enginetest.JSON(map[string]any{"status": "ok"}),
	)
	client, err := engine.New(f.URL())
	require.NoError(t, err)

	s := New(Config{}, client, WithPolicy(fastPolicy))
	require.NoError(t, s.WaitHealthy(context.Background()))
	assert.Equal(t, 3, f.Calls("GET /health"))
}

func TestStartSpawnsAndStops(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX sleep binary")
	}
	sleep, err := exec.LookPath("sleep")
	if err != nil {
		t.Skip("sleep not available")
	}

	var calls atomic.Int32
	checker := healthFunc(func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("down")
		}
		return nil
	})
	s := New(Config{Command: []string{sleep, "30"}, StopTimeout: 2 * time.Second}, checker, WithPolicy(fastPolicy))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.Running())
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.Stop(context.Background()))
	assert.Eventually(t, func() bool { return !s.Running() }, 2*time.Second, 10*time.Millisecond)
}

func TestStartReportsSpawnFailure(t *testing.T) {
	s := New(Config{Command: []string{"/nonexistent/engine-binary"}},
		healthFunc(func(context.Context) error { return errors.New("down") }), WithPolicy(fastPolicy))
	require.Error(t, s.Start(context.Background()))
	assert.False(t, s.Running())
}

func TestCheckVersion(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		version string
		wantErr bool
	}{
		{"1.0.0", false},
		{"1.4.2", false},
		{"2.0.0", true},
		{"0.9.1", true},
		{"latest", true},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			got, err := CheckVersion(ctx, versionFunc(func(context.Context) (string, error) { return tt.version, nil }), "")
			assert.Equal(t, tt.version, got)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrIncompatible)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	_, err := CheckVersion(ctx, versionFunc(func(context.Context) (string, error) { return "1.0.0", nil }), "not a constraint")
	assert.Error(t, err)
}
