package model

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusCancellationRequested, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusMissed, true},
		{StatusPending, StatusCancelled, false},
		{StatusCancellationRequested, StatusCancelled, true},
		// The overdue sweep may retire an appointment whose cancellation
		// was never confirmed.
		{StatusCancellationRequested, StatusMissed, true},
		{StatusCancellationRequested, StatusCompleted, false},
		{StatusCancellationRequested, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCompleted, StatusMissed, false},
		{StatusMissed, StatusCompleted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.want {
			t.Fatalf("%s -> %s = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusCancelled, StatusCompleted, StatusMissed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusCancellationRequested} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	if Status("bogus").Terminal() {
		t.Fatal("unknown status must not report terminal")
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("pending"); err != nil {
		t.Fatalf("ParseStatus(pending) failed: %v", err)
	}
	if _, err := ParseStatus("archived"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestCancellable(t *testing.T) {
	if !StatusPending.Cancellable() {
		t.Fatal("pending must be cancellable")
	}
	for _, s := range []Status{StatusCancellationRequested, StatusCancelled, StatusCompleted, StatusMissed} {
		if s.Cancellable() {
			t.Fatalf("%s must not be cancellable", s)
		}
	}
}
