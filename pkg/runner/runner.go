// Package runner executes generate and simulate behind the preflight gate.
//
// Every Execute re-runs the preflight synchronously, then branches on the
// verdict: blocked operations never reach the engine, risky ones wait for an
// acknowledgment, and the rest run with the acknowledgment attached when one
// exists. An execution-time conflict re-opens the acknowledgment for the same
// pending operation instead of failing.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/escalaflow/scalegate/pkg/ack"
	"github.com/escalaflow/scalegate/pkg/contracts"
	"github.com/escalaflow/scalegate/pkg/engine"
	"github.com/escalaflow/scalegate/pkg/gateway"
	"github.com/escalaflow/scalegate/pkg/inflight"
	"github.com/escalaflow/scalegate/pkg/notify"
	"github.com/escalaflow/scalegate/pkg/observability"
	"github.com/escalaflow/scalegate/pkg/reconcile"
	"github.com/escalaflow/scalegate/pkg/store"
)

var (
	// ErrInFlight is returned when the kind already has a call in flight.
	ErrInFlight = errors.New("operation already in flight")
	// ErrBlocked wraps the first blocker message of a blocked operation.
	ErrBlocked = errors.New("operation blocked")
)

// Engine is the engine surface the runner drives.
type Engine interface {
	Run(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, ack *contracts.RiskAcknowledgment) (contracts.OperationResult, error)
	Assignments(ctx context.Context) ([]contracts.Assignment, error)
	Violations(ctx context.Context) ([]contracts.Violation, error)
	WeeklyAnalysis(ctx context.Context, req contracts.ScaleRequest, mode contracts.AnalysisMode) (contracts.WeeklyAnalysis, error)
}

// Result describes one Execute call.
type Result struct {
	Kind      contracts.OperationKind
	Outcome   Outcome
	Verdict   *contracts.PreflightVerdict
	Operation *contracts.OperationResult
	Message   string
	ReceiptID string
}

// Runner is safe for concurrent use. GENERATE and SIMULATE have separate slots.
type Runner struct {
	engine   Engine
	gateway  *gateway.Gateway
	ack      *ack.Controller
	rec      *reconcile.Reconciler
	guard    inflight.Guard
	journal  store.Journal
	obs      *observability.Provider
	notifier notify.Notifier
	clock    func() time.Time
	logger   *slog.Logger

	mu     sync.Mutex
	states map[contracts.OperationKind]KindState
}

// Option configures a Runner.
type Option func(*Runner)

// WithGuard adds a shared in-flight guard on top of the local per-kind slots.
func WithGuard(g inflight.Guard) Option { return func(r *Runner) { r.guard = g } }

// WithJournal records a receipt for every finished execution.
func WithJournal(j store.Journal) Option { return func(r *Runner) { r.journal = j } }

// WithObservability traces executions and records RED metrics.
func WithObservability(p *observability.Provider) Option { return func(r *Runner) { r.obs = p } }

// WithNotifier sets where operator notices go.
func WithNotifier(n notify.Notifier) Option { return func(r *Runner) { r.notifier = n } }

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option { return func(r *Runner) { r.clock = clock } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// New wires a runner.
func New(eng Engine, gw *gateway.Gateway, ackc *ack.Controller, rec *reconcile.Reconciler, opts ...Option) *Runner {
	r := &Runner{
		engine:   eng,
		gateway:  gw,
		ack:      ackc,
		rec:      rec,
		notifier: notify.Log{},
		clock:    time.Now,
		logger:   slog.Default().With("component", "runner"),
		states:   make(map[contracts.OperationKind]KindState),
	}
	for _, o := range opts {
		o(r)
	}
	if r.obs == nil {
		r.obs, _ = observability.New(context.Background(), nil)
	}
	return r
}

// State returns the state of one kind.
func (r *Runner) State(kind contracts.OperationKind) KindState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[kind]
}

// States returns a copy of all kind states.
func (r *Runner) States() States {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(States, len(r.states))
	for k, v := range r.states {
		out[k] = v
	}
	return out
}

func (r *Runner) dispatch(kind contracts.OperationKind, ev kindEvent) KindState {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := reduce(r.states[kind], ev)
	r.states[kind] = s
	return s
}

// begin claims the local slot for kind.
func (r *Runner) begin(kind contracts.OperationKind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.states[kind].Loading {
		return false
	}
	r.states[kind] = reduce(r.states[kind], kindEvent{typ: evStart, at: r.clock()})
	return true
}

// Execute runs kind for req behind the preflight gate. ack may be nil.
func (r *Runner) Execute(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, riskAck *contracts.RiskAcknowledgment) (res Result, err error) {
	if !kind.Valid() {
		return Result{Kind: kind, Outcome: OutcomeFailed}, fmt.Errorf("unknown operation kind %q", kind)
	}
	if riskAck != nil {
		// A submission ends with this call, whichever way it returns.
		defer r.settleAck(kind, req)
	}
	if !r.begin(kind) {
		return Result{Kind: kind, Outcome: OutcomeFailed}, ErrInFlight
	}
	res = Result{Kind: kind}
	defer func() {
		r.dispatch(kind, kindEvent{typ: evFinish, at: r.clock(), outcome: res.Outcome, err: err})
	}()

	if r.guard != nil {
		release, gerr := r.guard.TryAcquire(ctx, req.Sector()+":"+string(kind))
		if gerr != nil {
			res.Outcome = OutcomeFailed
			if errors.Is(gerr, inflight.ErrHeld) {
				return res, fmt.Errorf("%w: held by another client", ErrInFlight)
			}
			return res, fmt.Errorf("acquire in-flight slot: %w", gerr)
		}
		defer release()
	}

	ctx, done := r.obs.TrackOperation(ctx, "scalegate.execute",
		attribute.String("scalegate.kind", string(kind)),
		attribute.String("scalegate.sector", req.Sector()),
		attribute.Bool("scalegate.ack_attached", riskAck != nil),
	)
	defer func() { done(string(res.Outcome), err) }()

	res, err = r.execute(ctx, kind, req, riskAck)
	return res, err
}

func (r *Runner) execute(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, riskAck *contracts.RiskAcknowledgment) (Result, error) {
	res := Result{Kind: kind}
	logger := r.logger.With("kind", kind, "request", req.Key())

	verdict, err := r.gateway.RunPreflight(ctx, req)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Message = notify.MsgPreflightFailed
		notify.Failure(ctx, r.notifier, notify.MsgPreflightFailed)
		res.ReceiptID = r.record(ctx, kind, req, res, nil, riskAck != nil)
		return res, err
	}
	res.Verdict = &verdict

	switch gateway.Classify(gateway.Snapshot{Verdict: &verdict}) {
	case gateway.StateBlocked:
		msg := verdict.FirstBlockerMessage()
		if msg == "" {
			msg = notify.MsgBlockedFallback
		}
		res.Outcome = OutcomeBlocked
		res.Message = msg
		logger.WarnContext(ctx, "operation blocked by preflight", "blockers", len(verdict.Blockers))
		notify.Failure(ctx, r.notifier, notify.MsgBlockedAtRun)
		res.ReceiptID = r.record(ctx, kind, req, res, &verdict, riskAck != nil)
		return res, fmt.Errorf("%w: %s", ErrBlocked, msg)
	case gateway.StateAckRequired:
		if riskAck == nil {
			if err := r.ack.RequestAck(kind, req); err != nil {
				res.Outcome = OutcomeFailed
				return res, fmt.Errorf("open acknowledgment: %w", err)
			}
			res.Outcome = OutcomeAwaitingAck
			res.Message = notify.MsgAckRequired
			logger.InfoContext(ctx, "acknowledgment required", "critical_warnings", verdict.WarningCodes())
			return res, nil
		}
	}

	out, err := r.engine.Run(ctx, kind, req, riskAck)
	if err != nil {
		return r.handleRunError(ctx, kind, req, riskAck, res, err)
	}
	res.Operation = &out

	r.reconcile(ctx, kind, req, out)

	res.Outcome = OutcomeCompleted
	if kind == contracts.OperationGenerate {
		res.Message = notify.MsgGenerateSucceeded
	} else {
		res.Message = notify.MsgSimulateSucceeded
	}
	notify.Success(ctx, r.notifier, res.Message)
	logger.InfoContext(ctx, "operation completed",
		"assignments", out.AssignmentsCount,
		"violations", out.ViolationsCount,
		"ack_attached", riskAck != nil,
	)
	res.ReceiptID = r.record(ctx, kind, req, res, &verdict, riskAck != nil)
	return res, nil
}

func (r *Runner) handleRunError(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, riskAck *contracts.RiskAcknowledgment, res Result, err error) (Result, error) {
	if d, ok := engine.IsConflict(err); ok {
		v := r.gateway.MergeConflict(req, d.CriticalWarnings)
		res.Verdict = &v
		res.Outcome = OutcomeAwaitingAck
		res.Message = d.Message
		if d.DecodeErr != nil {
			r.logger.DebugContext(ctx, "conflict detail not understood", "kind", kind, "error", d.DecodeErr)
		}
		if rerr := r.ack.Reopen(kind, req); rerr != nil {
			r.logger.WarnContext(ctx, "ack re-open after conflict failed", "error", rerr)
		}
		r.logger.WarnContext(ctx, "engine conflict, acknowledgment re-requested",
			"kind", kind, "request", req.Key(), "critical_warnings", v.WarningCodes())
		res.ReceiptID = r.record(ctx, kind, req, res, &v, riskAck != nil)
		return res, nil
	}

	if d, ok := engine.IsBlocked(err); ok {
		res.Outcome = OutcomeBlocked
		res.Message = d.Message
		if len(d.Blockers) > 0 && d.Blockers[0].Message != "" {
			res.Message = d.Blockers[0].Message
		}
		notify.Failure(ctx, r.notifier, notify.MsgBlockedAtRun)
		res.ReceiptID = r.record(ctx, kind, req, res, res.Verdict, riskAck != nil)
		return res, fmt.Errorf("%w: %s", ErrBlocked, res.Message)
	}

	res.Outcome = OutcomeFailed
	res.Message = err.Error()
	if kind == contracts.OperationGenerate {
		notify.Failure(ctx, r.notifier, notify.MsgGenerateFailed)
	} else {
		notify.Failure(ctx, r.notifier, notify.MsgSimulateFailed)
	}
	r.logger.ErrorContext(ctx, "operation failed", "kind", kind, "request", req.Key(), "error", err)
	res.ReceiptID = r.record(ctx, kind, req, res, res.Verdict, riskAck != nil)
	return res, fmt.Errorf("%s %s: %w", kind, req.Key(), err)
}

// reconcile applies a successful result. Reload failures are tolerated: the
// previous data stays in place.
func (r *Runner) reconcile(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, out contracts.OperationResult) {
	if kind == contracts.OperationSimulate {
		var weekly *contracts.WeeklyAnalysis
		if w, err := r.engine.WeeklyAnalysis(ctx, req, contracts.AnalysisSimulation); err == nil {
			weekly = &w
		} else {
			r.logger.WarnContext(ctx, "simulation weekly analysis unavailable", "error", err)
		}
		r.rec.ApplySimulate(req, out, weekly)
		return
	}

	var reload reconcile.OfficialReload
	if a, err := r.engine.Assignments(ctx); err == nil {
		reload.Assignments = nonNil(a)
	} else {
		r.logger.WarnContext(ctx, "assignments reload failed", "error", err)
	}
	if v, err := r.engine.Violations(ctx); err == nil {
		reload.Violations = nonNil(v)
	} else {
		r.logger.WarnContext(ctx, "violations reload failed", "error", err)
	}
	if w, err := r.engine.WeeklyAnalysis(ctx, req, contracts.AnalysisOfficial); err == nil {
		reload.Weekly = &w
	} else {
		r.logger.WarnContext(ctx, "official weekly analysis unavailable", "error", err)
	}
	r.rec.ApplyGenerate(req, out, reload)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// settleAck closes the submission for kind and req if it is still in progress.
func (r *Runner) settleAck(kind contracts.OperationKind, req contracts.ScaleRequest) {
	if r.ack.Settle(kind, req) {
		r.logger.Debug("acknowledgment settled", "kind", kind, "request", req.Key())
	}
}

// record journals a receipt and returns its ID, or "" when nothing was stored.
func (r *Runner) record(ctx context.Context, kind contracts.OperationKind, req contracts.ScaleRequest, res Result, verdict *contracts.PreflightVerdict, ackAttached bool) string {
	if r.journal == nil {
		return ""
	}
	rc := store.NewReceipt(kind, req, r.clock())
	rc.Outcome = string(res.Outcome)
	rc.AckAttached = ackAttached
	rc.Message = res.Message
	if verdict != nil {
		rc.Mode = string(verdict.Mode)
		rc.WarningCodes = verdict.WarningCodes()
	}
	if res.Operation != nil {
		rc.AssignmentsCount = res.Operation.AssignmentsCount
		rc.ViolationsCount = res.Operation.ViolationsCount
	}
	if err := r.journal.Append(ctx, rc); err != nil {
		r.logger.WarnContext(ctx, "receipt not journaled", "kind", kind, "error", err)
		return ""
	}
	return rc.ReceiptID
}

// SubmitAck validates reason for the pending operation and, when accepted,
// re-runs it with the acknowledgment attached. A rejected reason never
// reaches the engine.
func (r *Runner) SubmitAck(ctx context.Context, reason string) (Result, error) {
	pending, ok := r.ack.Pending()
	if !ok {
		return Result{}, ack.ErrNoPendingOperation
	}
	if r.State(pending.Kind).Loading {
		return Result{Kind: pending.Kind}, ErrInFlight
	}
	riskAck, op, err := r.ack.Submit(reason)
	if err != nil {
		if errors.Is(err, ack.ErrReasonRejected) {
			notify.Failure(ctx, r.notifier, notify.MsgReasonInvalid)
		}
		return Result{Kind: pending.Kind, Outcome: OutcomeAwaitingAck}, err
	}
	return r.Execute(ctx, op.Kind, op.Request, &riskAck)
}

// CancelAck closes the acknowledgment dialog without running anything.
func (r *Runner) CancelAck() { r.ack.Cancel() }

// Refresh reloads the official projection for req. The weekly analysis is
// optional; its failure is logged and the previous one kept.
func (r *Runner) Refresh(ctx context.Context, req contracts.ScaleRequest) error {
	assignments, err := r.engine.Assignments(ctx)
	if err != nil {
		return fmt.Errorf("load assignments: %w", err)
	}
	violations, err := r.engine.Violations(ctx)
	if err != nil {
		return fmt.Errorf("load violations: %w", err)
	}
	var weekly *contracts.WeeklyAnalysis
	if w, werr := r.engine.WeeklyAnalysis(ctx, req, contracts.AnalysisOfficial); werr == nil {
		weekly = &w
	} else {
		r.logger.WarnContext(ctx, "official weekly analysis unavailable", "request", req.Key(), "error", werr)
	}
	r.rec.LoadOfficial(nonNil(assignments), nonNil(violations), weekly)
	return nil
}
