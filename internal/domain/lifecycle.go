package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a transaction.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusFinal     Status = "final"
	StatusCancelled Status = "cancelled"
)

// transitions lists every allowed edge. Final and Cancelled are terminal;
// a final transaction can only be offset by a compensating one.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusPending, StatusCancelled},
	StatusPending: {StatusFinal, StatusCancelled},
}

// ParseStatus converts a stored or user-supplied value to a Status.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusDraft, StatusPending, StatusFinal, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// AffectsBalance reports whether a transaction in this state counts
// towards its entity's value.
func (s Status) AffectsBalance() bool {
	return s == StatusFinal
}

// Transition moves the transaction to status `to`, or returns
// ErrInvalidStateTransition when the edge does not exist.
func (t *Transaction) Transition(to Status, now time.Time) error {
	if !CanTransition(t.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, t.Status, to)
	}
	t.Status = to
	t.UpdatedAt = now
	if to == StatusFinal {
		t.FinalizedAt = &now
	}
	return nil
}

// PathToFinal returns the remaining edges needed to finalize a transaction in
// state s. Approving a draft passes through pending.
func PathToFinal(s Status) ([]Status, error) {
	switch s {
	case StatusDraft:
		return []Status{StatusPending, StatusFinal}, nil
	case StatusPending:
		return []Status{StatusFinal}, nil
	}
	return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s, StatusFinal)
}
