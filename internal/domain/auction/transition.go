package auction

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned for a status/event pair the state machine does not allow
var ErrInvalidTransition = errors.New("invalid auction status transition")

// Event drives the auction status state machine
type Event string

const (
	// EventEnd closes an auction without a transfer
	EventEnd Event = "end"
	// EventSubmit records that a ledger transaction id was persisted before submission
	EventSubmit Event = "submit"
	// EventConfirm records a ledger-confirmed transfer committed to storage
	EventConfirm Event = "confirm"
	// EventAbandon returns a SETTLING auction to ACTIVE when its transaction can never confirm
	EventAbandon Event = "abandon"
)

var transitions = map[Status]map[Event]Status{
	StatusActive: {
		EventEnd:     StatusEnded,
		EventSubmit:  StatusSettling,
		EventConfirm: StatusSettled,
	},
	StatusSettling: {
		EventConfirm: StatusSettled,
		EventAbandon: StatusActive,
	},
}

// Transition returns the status reached from 'from' on event e.
// ENDED and SETTLED are terminal.
func Transition(from Status, e Event) (Status, error) {
	next, ok := transitions[from][e]
	if !ok {
		return from, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, from)
	}
	return next, nil
}
