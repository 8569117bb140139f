package model

import "fmt"

// Status is the closed set of appointment states. Transitions outside the
// table below are rejected; staff direct edits go through the same table
// with the override flag.
type Status string

const (
	StatusPending               Status = "pending"
	StatusCancellationRequested Status = "cancellation_requested"
	StatusCancelled             Status = "cancelled"
	StatusCompleted             Status = "completed"
	StatusMissed                Status = "missed"
)

var transitions = map[Status][]Status{
	StatusPending:               {StatusCancellationRequested, StatusCompleted, StatusMissed},
	StatusCancellationRequested: {StatusCancelled, StatusMissed},
	StatusCancelled:             {},
	StatusCompleted:             {},
	StatusMissed:                {},
}

func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown appointment status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Cancellable reports whether a cancellation request may still be raised.
// A group cancellation requires every member to pass this check.
func (s Status) Cancellable() bool {
	return s == StatusPending
}

// GroupStatus is the lifecycle of an appointment group.
type GroupStatus string

const (
	GroupStatusDraft     GroupStatus = "draft"
	GroupStatusPending   GroupStatus = "pending"
	GroupStatusFinalized GroupStatus = "finalized"
)

func (s GroupStatus) Valid() bool {
	switch s {
	case GroupStatusDraft, GroupStatusPending, GroupStatusFinalized:
		return true
	}
	return false
}

// Origin tags which entry point created a booking. It is plain metadata;
// the lifecycle state stays unified across entry points.
type Origin string

const (
	OriginWeb    Origin = "web"
	OriginMobile Origin = "mobile"
)

func (o Origin) Valid() bool {
	return o == OriginWeb || o == OriginMobile
}
