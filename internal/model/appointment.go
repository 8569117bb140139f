package model

import "time"

// Appointment is one booked service occupying an exact minute-granular slot.
// At most one non-cancelled slot-holder row may exist per timestamp
// clinic-wide; members of the same group share the slot through their
// group's designated holder.
type Appointment struct {
	ID             int64
	PetID          int64
	CategoryID     *int64
	SubtypeID      *int64
	StartAt        time.Time
	Status         Status
	Origin         Origin
	GroupID        *int64
	SlotHolder     bool
	Notes          string
	AdministeredBy string
	DueDate        *time.Time
	Reminders      ReminderCounters
	Synced         bool
	CreatedAt      time.Time
}

// ReminderCounters carries the per-appointment reminder throttle state.
// Counters are day-scoped: ResetOn records the clinic-local date the
// counters belong to.
type ReminderCounters struct {
	SMSSentToday   int
	EmailSentToday int
	LastSMSAt      *time.Time
	LastEmailAt    *time.Time
	ResetOn        time.Time
}

// AppointmentGroup bundles appointments sharing one timestamp, booked and
// cancelled as a unit. Finalized is one-way: after it, only staff may touch
// membership.
type AppointmentGroup struct {
	ID          int64
	StartAt     time.Time
	Status      GroupStatus
	Notes       string
	FinalizedAt *time.Time
	CreatedAt   time.Time
}

// AppointmentDraft is a staged, uncommitted booking candidate. Drafts
// sharing a GroupKey (at most three) convert into one group.
type AppointmentDraft struct {
	ID          int64
	CreatedBy   string
	OwnerID     int64
	PetID       int64
	CategoryID  int64
	SubtypeID   *int64
	ScheduledOn time.Time // date only, clinic local
	TimeOfDay   string    // "HH:mm"
	Notes       string
	GroupKey    string
	CreatedAt   time.Time
}

// MaxDraftsPerGroup caps how many drafts one draft-group key may bind.
const MaxDraftsPerGroup = 3
