package gateway

import "github.com/escalaflow/scalegate/pkg/contracts"

// ExecutionState is the single state the client is in with respect to a request.
type ExecutionState string

const (
	StateValidating  ExecutionState = "VALIDATING"
	StateNotRun      ExecutionState = "NOT_RUN"
	StateBlocked     ExecutionState = "BLOCKED"
	StateAckRequired ExecutionState = "ACK_REQUIRED"
	StateReady       ExecutionState = "READY"
)

// Snapshot is the input of Classify: the held verdict (nil when none) and
// whether a preflight is in flight.
type Snapshot struct {
	Verdict *contracts.PreflightVerdict
	Loading bool
}

// Classify maps a snapshot to exactly one state. Rules are checked in order;
// an inconsistent verdict falls into the most conservative matching state.
func Classify(s Snapshot) ExecutionState {
	switch {
	case s.Loading:
		return StateValidating
	case s.Verdict == nil:
		return StateNotRun
	case len(s.Verdict.Blockers) > 0 || !s.Verdict.CanProceed:
		return StateBlocked
	case s.Verdict.AckRequired:
		return StateAckRequired
	default:
		return StateReady
	}
}

// CanExecute reports whether an operation may be attempted in this state,
// with or without acknowledgment.
func (s ExecutionState) CanExecute() bool {
	return s == StateReady || s == StateAckRequired
}
