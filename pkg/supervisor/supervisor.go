// Package supervisor starts the local scheduling engine, waits for it to
// report healthy and stops it on shutdown.
package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/escalaflow/scalegate/pkg/retry"
)

// DefaultVersionConstraint is the engine API range this client speaks.
const DefaultVersionConstraint = ">=1.0.0, <2.0.0"

var (
	ErrNotHealthy   = errors.New("engine did not become healthy")
	ErrIncompatible = errors.New("engine version incompatible")
)

// DefaultCommand runs the engine API with uvicorn on the loopback interface.
func DefaultCommand() []string {
	return []string{"python3", "-m", "uvicorn", "apps.backend.main:app", "--host", "127.0.0.1", "--port", "8000"}
}

// HealthChecker is satisfied by *engine.Client.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Versioner is satisfied by *engine.Client.
type Versioner interface {
	Version(ctx context.Context) (string, error)
}

// Config describes how to launch the engine.
type Config struct {
	Command []string
	// Dir is the engine project root. It is also exported as PYTHONPATH.
	Dir         string
	Env         []string
	StopTimeout time.Duration
}

// Supervisor owns at most one engine process.
type Supervisor struct {
	cfg     Config
	checker HealthChecker
	policy  retry.BackoffPolicy
	logger  *slog.Logger

	mu      sync.Mutex
	cmd     *exec.Cmd
	exited  chan struct{}
	adopted bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithPolicy overrides the health polling policy.
func WithPolicy(p retry.BackoffPolicy) Option { return func(s *Supervisor) { s.policy = p } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Supervisor) { s.logger = l } }

// New creates a supervisor. An empty command uses DefaultCommand.
func New(cfg Config, checker HealthChecker, opts ...Option) *Supervisor {
	if len(cfg.Command) == 0 {
		cfg.Command = DefaultCommand()
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	s := &Supervisor{
		cfg:     cfg,
		checker: checker,
		policy:  retry.EngineStartupPolicy(),
		logger:  slog.Default().With("component", "supervisor"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Running reports whether a process started by this supervisor is alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Start launches the engine unless one is already running or an external
// engine already answers health checks, then waits for it to become healthy.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil || s.adopted {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.checker.Health(ctx); err == nil {
		s.mu.Lock()
		s.adopted = true
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "engine already running, not spawning")
		return nil
	}

	if err := s.spawn(ctx); err != nil {
		return err
	}
	return s.WaitHealthy(ctx)
}

func (s *Supervisor) spawn(ctx context.Context) error {
	//nolint:gosec // G204: command comes from operator configuration
	cmd := exec.Command(s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Dir = s.cfg.Dir
	cmd.Env = append(os.Environ(), s.cfg.Env...)
	if s.cfg.Dir != "" {
		cmd.Env = append(cmd.Env, "PYTHONPATH="+s.cfg.Dir)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("engine stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("engine stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine %q: %w", strings.Join(s.cfg.Command, " "), err)
	}

	exited := make(chan struct{})
	s.mu.Lock()
	s.cmd = cmd
	s.exited = exited
	s.mu.Unlock()

	logger := s.logger.With("pid", cmd.Process.Pid)
	var pipes sync.WaitGroup
	pipes.Add(2)
	go s.pump(&pipes, logger.With("stream", "stdout"), stdout)
	go s.pump(&pipes, logger.With("stream", "stderr"), stderr)
	go func() {
		pipes.Wait()
		werr := cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		close(exited)
		logger.Info("engine exited", "error", werr)
	}()

	logger.InfoContext(ctx, "engine started", "command", s.cfg.Command)
	return nil
}

func (s *Supervisor) pump(wg *sync.WaitGroup, logger *slog.Logger, r io.Reader) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		logger.Debug(sc.Text())
	}
}

// WaitHealthy polls the health endpoint under the backoff policy. It always
// terminates: after the last attempt it returns ErrNotHealthy.
func (s *Supervisor) WaitHealthy(ctx context.Context) error {
	err := retry.Poll(ctx, s.policy, "engine-health", s.checker.Health)
	if err == nil {
		s.logger.InfoContext(ctx, "engine healthy")
		return nil
	}
	if errors.Is(err, retry.ErrExhausted) {
		return fmt.Errorf("%w: %w", ErrNotHealthy, err)
	}
	return err
}

// Stop interrupts the engine and kills it if it does not exit in time.
// Stopping an adopted or stopped engine is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, exited := s.cmd, s.exited
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		_ = cmd.Process.Kill()
	}
	timer := time.NewTimer(s.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-exited:
	case <-timer.C:
		s.logger.WarnContext(ctx, "engine did not stop in time, killing")
		_ = cmd.Process.Kill()
		<-exited
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		return ctx.Err()
	}
	return nil
}

// CheckVersion verifies the engine API version against constraint. An empty
// constraint uses DefaultVersionConstraint.
func CheckVersion(ctx context.Context, v Versioner, constraint string) (string, error) {
	if constraint == "" {
		constraint = DefaultVersionConstraint
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return "", fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	raw, err := v.Version(ctx)
	if err != nil {
		return "", fmt.Errorf("read engine version: %w", err)
	}
	ver, err := semver.NewVersion(raw)
	if err != nil {
		return raw, fmt.Errorf("%w: unparseable version %q", ErrIncompatible, raw)
	}
	if !c.Check(ver) {
		return raw, fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatible, ver, constraint)
	}
	return raw, nil
}
