package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusFinal, false},
		{StatusPending, StatusFinal, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusDraft, false},
		{StatusFinal, StatusCancelled, false},
		{StatusFinal, StatusDraft, false},
		{StatusCancelled, StatusDraft, false},
		{StatusCancelled, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTransaction_Transition(t *testing.T) {
	now := time.Now()
	tx := &Transaction{Status: StatusDraft}

	if err := tx.Transition(StatusPending, now); err != nil {
		t.Fatalf("draft -> pending: %v", err)
	}
	if err := tx.Transition(StatusFinal, now); err != nil {
		t.Fatalf("pending -> final: %v", err)
	}
	if tx.FinalizedAt == nil || !tx.FinalizedAt.Equal(now) {
		t.Fatalf("expected FinalizedAt to be set")
	}

	err := tx.Transition(StatusCancelled, now)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if tx.Status != StatusFinal {
		t.Fatalf("failed transition must not change status, got %s", tx.Status)
	}
}

func TestPathToFinal(t *testing.T) {
	path, err := PathToFinal(StatusDraft)
	if err != nil || len(path) != 2 || path[1] != StatusFinal {
		t.Fatalf("unexpected draft path %v (%v)", path, err)
	}

	path, err = PathToFinal(StatusPending)
	if err != nil || len(path) != 1 {
		t.Fatalf("unexpected pending path %v (%v)", path, err)
	}

	for _, s := range []Status{StatusFinal, StatusCancelled} {
		if _, err := PathToFinal(s); !errors.Is(err, ErrInvalidStateTransition) {
			t.Fatalf("%s: expected ErrInvalidStateTransition, got %v", s, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("final"); err != nil || s != StatusFinal {
		t.Fatalf("expected final, got %s (%v)", s, err)
	}
	if _, err := ParseStatus("approved"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if StatusDraft.IsTerminal() || StatusPending.IsTerminal() {
		t.Fatal("draft and pending are not terminal")
	}
	if !StatusFinal.IsTerminal() || !StatusCancelled.IsTerminal() {
		t.Fatal("final and cancelled are terminal")
	}
}
