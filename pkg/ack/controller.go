// Package ack collects the human justification required to run an operation
// under legal/compliance risk.
//
// The controller is a small state machine (CLOSED, OPEN_AWAITING_REASON,
// SUBMITTING) holding the pending operation. It never stores the reason text:
// Submit hands the acknowledgment back to the caller and forgets it.
package ack

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

var (
	ErrReasonRejected     = errors.New("acknowledgment reason rejected")
	ErrNoPendingOperation = errors.New("no pending operation")
)

// Pending is the operation waiting for acknowledgment.
type Pending struct {
	Kind    contracts.OperationKind
	Request contracts.ScaleRequest
}

// View is a read-only copy of the controller state.
type View struct {
	State    State
	Pending  *Pending
	AckID    string
	OpenedAt time.Time
	// Conflicts counts re-opens caused by an engine conflict for this ack.
	Conflicts int
}

// Controller is safe for concurrent use.
type Controller struct {
	mu        sync.Mutex
	state     State
	pending   *Pending
	ackID     string
	openedAt  time.Time
	conflicts int

	actor  contracts.Actor
	policy *ReasonPolicy
	clock  func() time.Time
	logger *slog.Logger
}

// NewController creates a closed controller acting for actor. A nil policy
// uses DefaultPolicy.
func NewController(actor contracts.Actor, policy *ReasonPolicy) *Controller {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if actor.Role == "" {
		actor.Role = contracts.RoleOperator
	}
	return &Controller{
		state:  StateClosed,
		actor:  actor,
		policy: policy,
		clock:  time.Now,
		logger: slog.Default().With("component", "ack"),
	}
}

// WithClock overrides the clock for deterministic testing.
func (c *Controller) WithClock(clock func() time.Time) *Controller {
	c.clock = clock
	return c
}

// WithLogger overrides the logger.
func (c *Controller) WithLogger(l *slog.Logger) *Controller {
	c.logger = l
	return c
}

// Policy returns the reason policy in force.
func (c *Controller) Policy() *ReasonPolicy { return c.policy }

func (c *Controller) apply(ev Event) error {
	to, err := Transition(c.state, ev)
	if err != nil {
		return err
	}
	if to != c.state {
		c.logger.Debug("ack transition", "from", c.state, "to", to, "event", ev, "ack_id", c.ackID)
	}
	c.state = to
	return nil
}

// RequestAck opens the dialog for kind/req. Requesting while open, or while
// another operation is submitting, replaces the pending operation.
func (c *Controller) RequestAck(kind contracts.OperationKind, req contracts.ScaleRequest) error {
	if !kind.Valid() {
		return fmt.Errorf("request ack: unknown operation kind %q", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.request(kind, req)
}

func (c *Controller) request(kind contracts.OperationKind, req contracts.ScaleRequest) error {
	same := c.pendingFor(kind, req)
	if err := c.apply(EventRequest); err != nil {
		return err
	}
	c.pending = &Pending{Kind: kind, Request: req}
	if !same {
		c.ackID = uuid.New().String()
		c.openedAt = c.clock()
		c.conflicts = 0
	}
	c.logger.Info("acknowledgment requested", "ack_id", c.ackID, "kind", kind, "request", req.Key())
	return nil
}

func (c *Controller) pendingFor(kind contracts.OperationKind, req contracts.ScaleRequest) bool {
	return c.state != StateClosed && c.pending != nil &&
		c.pending.Kind == kind && c.pending.Request.Key() == req.Key()
}

// Reopen asks again for kind/req after the engine rejected it with a
// conflict. If the submission in progress is for that same operation the
// dialog goes back to OPEN keeping its ack ID. Otherwise kind/req is
// requested afresh and replaces whatever was pending.
func (c *Controller) Reopen(kind contracts.OperationKind, req contracts.ScaleRequest) error {
	if !kind.Valid() {
		return fmt.Errorf("reopen ack: unknown operation kind %q", kind)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateSubmitting && c.pendingFor(kind, req) {
		return c.conflict()
	}
	return c.request(kind, req)
}

// Settle closes the submission for kind/req, if that is the one in progress.
// It reports whether anything was closed.
func (c *Controller) Settle(kind contracts.OperationKind, req contracts.ScaleRequest) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateSubmitting || !c.pendingFor(kind, req) {
		return false
	}
	if err := c.apply(EventResolved); err != nil {
		return false
	}
	c.reset()
	return true
}

// Submit checks reason against the policy. On acceptance the controller moves
// to SUBMITTING and returns the acknowledgment and the operation to run. On
// rejection it stays open and returns an error wrapping ErrReasonRejected.
func (c *Controller) Submit(reason string) (contracts.RiskAcknowledgment, Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen {
		return contracts.RiskAcknowledgment{}, Pending{}, fmt.Errorf("%w: submit in %s", ErrInvalidTransition, c.state)
	}
	if c.pending == nil {
		return contracts.RiskAcknowledgment{}, Pending{}, ErrNoPendingOperation
	}

	res := c.policy.Check(reason, c.actor.Role)
	if !res.Valid {
		_ = c.apply(EventSubmitInvalid)
		return contracts.RiskAcknowledgment{}, Pending{}, fmt.Errorf("%w: %s", ErrReasonRejected, res.Reason)
	}
	if err := c.apply(EventSubmitValid); err != nil {
		return contracts.RiskAcknowledgment{}, Pending{}, err
	}

	a := contracts.RiskAcknowledgment{
		ActorRole: c.actor.Role,
		ActorName: strings.TrimSpace(c.actor.Name),
		Reason:    strings.TrimSpace(reason),
	}
	c.logger.Info("acknowledgment submitted", "ack_id", c.ackID, "kind", c.pending.Kind, "actor_role", a.ActorRole)
	return a, *c.pending, nil
}

// Resolve ends a submission. A conflict re-opens the dialog with the same
// pending operation; any other outcome closes it.
func (c *Controller) Resolve(conflict bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if conflict {
		return c.conflict()
	}
	if err := c.apply(EventResolved); err != nil {
		return err
	}
	c.reset()
	return nil
}

func (c *Controller) conflict() error {
	if err := c.apply(EventConflict); err != nil {
		return err
	}
	c.conflicts++
	c.logger.Warn("acknowledgment re-opened after conflict", "ack_id", c.ackID, "conflicts", c.conflicts)
	return nil
}

// Cancel closes the dialog from any state and clears the pending operation.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.apply(EventCancel)
	if c.pending != nil {
		c.logger.Info("acknowledgment cancelled", "ack_id", c.ackID, "kind", c.pending.Kind)
	}
	c.reset()
}

func (c *Controller) reset() {
	c.pending = nil
	c.ackID = ""
	c.openedAt = time.Time{}
	c.conflicts = 0
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the pending operation, if any.
func (c *Controller) Pending() (Pending, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return Pending{}, false
	}
	return *c.pending, true
}

// Snapshot returns a copy of the full controller state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := View{State: c.state, AckID: c.ackID, OpenedAt: c.openedAt, Conflicts: c.conflicts}
	if c.pending != nil {
		p := *c.pending
		v.Pending = &p
	}
	return v
}
