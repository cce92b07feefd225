package runner

import (
	"time"

	"github.com/escalaflow/scalegate/pkg/contracts"
)

// Outcome is how an Execute call ended.
type Outcome string

const (
	OutcomeCompleted   Outcome = "COMPLETED"
	OutcomeBlocked     Outcome = "BLOCKED"
	OutcomeAwaitingAck Outcome = "AWAITING_ACK"
	OutcomeFailed      Outcome = "FAILED"
)

// KindState is the per-operation-kind record. It is only ever changed by reduce.
type KindState struct {
	Loading     bool
	LastError   string
	LastOutcome Outcome
	StartedAt   time.Time
	FinishedAt  time.Time
}

type eventType int

const (
	evStart eventType = iota
	evFinish
)

type kindEvent struct {
	typ     eventType
	at      time.Time
	outcome Outcome
	err     error
}

// reduce returns the next state for one kind.
func reduce(s KindState, ev kindEvent) KindState {
	switch ev.typ {
	case evStart:
		s.Loading = true
		s.LastError = ""
		s.StartedAt = ev.at
	case evFinish:
		s.Loading = false
		s.LastOutcome = ev.outcome
		s.FinishedAt = ev.at
		s.LastError = ""
		if ev.err != nil {
			s.LastError = ev.err.Error()
		}
	}
	return s
}

// States is a copy of every kind's state.
type States map[contracts.OperationKind]KindState
