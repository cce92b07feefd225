package ack

import (
	"errors"
	"fmt"
)

// State is the acknowledgment dialog state.
type State string

const (
	StateClosed     State = "CLOSED"
	StateOpen       State = "OPEN_AWAITING_REASON"
	StateSubmitting State = "SUBMITTING"
)

// Event drives a transition.
type Event string

const (
	EventRequest       Event = "REQUEST"
	EventSubmitValid   Event = "SUBMIT_VALID"
	EventSubmitInvalid Event = "SUBMIT_INVALID"
	EventResolved      Event = "RESOLVED"
	EventConflict      Event = "CONFLICT"
	EventCancel        Event = "CANCEL"
)

var ErrInvalidTransition = errors.New("invalid acknowledgment transition")

type edge struct {
	from State
	ev   Event
}

var transitions = map[edge]State{
	{StateClosed, EventRequest}:      StateOpen,
	{StateOpen, EventRequest}:        StateOpen,
	{StateOpen, EventSubmitValid}:    StateSubmitting,
	{StateOpen, EventSubmitInvalid}:  StateOpen,
	{StateSubmitting, EventRequest}:  StateOpen,
	{StateSubmitting, EventResolved}: StateClosed,
	{StateSubmitting, EventConflict}: StateOpen,
}

// Transition returns the state reached from `from` on ev. CANCEL closes from any state.
func Transition(from State, ev Event) (State, error) {
	if ev == EventCancel {
		return StateClosed, nil
	}
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, from, ev)
	}
	return to, nil
}
