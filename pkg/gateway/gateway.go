// Package gateway obtains preflight verdicts from the engine and classifies
// them into execution states.
//
// Verdicts are held per request key (period + sector) in a bounded cache, so
// switching to a period that was never checked yields NOT_RUN. A preflight
// failure never replaces the held verdict.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// ErrPreflightFailed wraps every preflight failure. No operation may proceed on it.
var ErrPreflightFailed = errors.New("preflight failed")

// DefaultCacheSize bounds the number of request keys whose verdict is held.
const DefaultCacheSize = 64

// Preflighter is the engine capability the gateway needs.
type Preflighter interface {
	Preflight(ctx context.Context, req contracts.ScaleRequest) (contracts.PreflightVerdict, error)
}

// Gateway holds preflight verdicts and the loading flag.
type Gateway struct {
	engine Preflighter
	logger *slog.Logger

	mu       sync.Mutex
	verdicts *lru.Cache[string, contracts.PreflightVerdict]
	inflight map[string]int
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates a Gateway holding at most size verdicts (DefaultCacheSize if size <= 0).
func New(engine Preflighter, size int, opts ...Option) (*Gateway, error) {
	if engine == nil {
		return nil, errors.New("gateway: nil preflighter")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, contracts.PreflightVerdict](size)
	if err != nil {
		return nil, fmt.Errorf("gateway cache: %w", err)
	}
	g := &Gateway{
		engine:   engine,
		logger:   slog.Default().With("component", "gateway"),
		verdicts: cache,
		inflight: make(map[string]int),
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// RunPreflight asks the engine for a verdict and holds it for req. The loading
// flag covers the whole call and is cleared on every exit path.
func (g *Gateway) RunPreflight(ctx context.Context, req contracts.ScaleRequest) (contracts.PreflightVerdict, error) {
	key := req.Key()
	g.begin(key)
	defer g.end(key)

	v, err := g.engine.Preflight(ctx, req)
	if err != nil {
		g.logger.WarnContext(ctx, "preflight failed", "request", key, "error", err)
		return contracts.PreflightVerdict{}, fmt.Errorf("%w: %w", ErrPreflightFailed, err)
	}
	if verr := v.Validate(); verr != nil {
		// Held as received; Classify resolves it conservatively.
		g.logger.WarnContext(ctx, "inconsistent verdict", "request", key, "error", verr)
	}

	g.mu.Lock()
	g.verdicts.Add(key, v.Clone())
	g.mu.Unlock()

	g.logger.DebugContext(ctx, "preflight applied",
		"request", key,
		"mode", v.Mode,
		"blockers", len(v.Blockers),
		"critical_warnings", len(v.CriticalWarnings),
		"state", Classify(Snapshot{Verdict: &v}),
	)
	return v.Clone(), nil
}

func (g *Gateway) begin(key string) {
	g.mu.Lock()
	g.inflight[key]++
	g.mu.Unlock()
}

func (g *Gateway) end(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[key] <= 1 {
		delete(g.inflight, key)
		return
	}
	g.inflight[key]--
}

// Snapshot returns the classification input for req.
func (g *Gateway) Snapshot(req contracts.ScaleRequest) Snapshot {
	key := req.Key()
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{Loading: g.inflight[key] > 0}
	if v, ok := g.verdicts.Peek(key); ok {
		c := v.Clone()
		s.Verdict = &c
	}
	return s
}

// State classifies the held verdict for req.
func (g *Gateway) State(req contracts.ScaleRequest) ExecutionState {
	return Classify(g.Snapshot(req))
}

// Verdict returns the held verdict for req, if any.
func (g *Gateway) Verdict(req contracts.ScaleRequest) (contracts.PreflightVerdict, bool) {
	s := g.Snapshot(req)
	if s.Verdict == nil {
		return contracts.PreflightVerdict{}, false
	}
	return *s.Verdict, true
}

// Loading reports whether any preflight is in flight.
func (g *Gateway) Loading() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inflight) > 0
}

// MergeConflict folds the warnings of an execution-time conflict into the held
// verdict and forces acknowledgment. A nil warnings list keeps the held
// warnings. With no held verdict, one is synthesized from the conflict.
func (g *Gateway) MergeConflict(req contracts.ScaleRequest, warnings []contracts.Issue) contracts.PreflightVerdict {
	key := req.Key()
	g.mu.Lock()
	defer g.mu.Unlock()

	v, ok := g.verdicts.Peek(key)
	if !ok {
		v = contracts.PreflightVerdict{CanProceed: true}
	}
	v = v.Clone()
	if warnings != nil {
		v.CriticalWarnings = append([]contracts.Issue(nil), warnings...)
	}
	v.AckRequired = true
	g.verdicts.Add(key, v)
	g.logger.Info("conflict merged into verdict", "request", key, "critical_warnings", len(v.CriticalWarnings))
	return v.Clone()
}

// Forget drops the held verdict for req.
func (g *Gateway) Forget(req contracts.ScaleRequest) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verdicts.Remove(req.Key())
}
