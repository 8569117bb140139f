// Package reminder triggers manual reminder sends for an appointment,
// throttled per channel so owners are not spammed.
package reminder

import (
	"time"

	"github.com/whiskerwell/scheduling/internal/model"
)

// Channel throttle limits. Counters are scoped to the clinic-local day
// and reset on the first send after midnight.
const (
	MaxSMSPerDay   = 3
	MinSMSGap      = 6 * time.Hour
	MaxEmailPerDay = 5
	MinEmailGap    = 1 * time.Hour
)

// Gate decides, from an appointment's persisted counters, whether each
// channel may send right now. It is pure; callers persist the counters
// it returns.
type Gate struct {
	loc *time.Location
}

func NewGate(loc *time.Location) *Gate {
	return &Gate{loc: loc}
}

// sameClinicDay compares two instants on the clinic calendar.
func (g *Gate) sameClinicDay(a, b time.Time) bool {
	ay, am, ad := a.In(g.loc).Date()
	by, bm, bd := b.In(g.loc).Date()
	return ay == by && am == bm && ad == bd
}

// Normalize rolls day-scoped counters over when now has crossed clinic
// midnight since ResetOn.
func (g *Gate) Normalize(c model.ReminderCounters, now time.Time) model.ReminderCounters {
	if c.ResetOn.IsZero() || !g.sameClinicDay(c.ResetOn, now) {
		c.SMSSentToday = 0
		c.EmailSentToday = 0
		c.ResetOn = now.In(g.loc)
	}
	return c
}

// AllowSMS reports whether an SMS may go out now, and why not if it
// cannot. Counters must already be normalized.
func (g *Gate) AllowSMS(c model.ReminderCounters, now time.Time) (bool, string) {
	if c.SMSSentToday >= MaxSMSPerDay {
		return false, "daily SMS limit reached"
	}
	if c.LastSMSAt != nil && now.Sub(*c.LastSMSAt) < MinSMSGap {
		return false, "last SMS too recent"
	}
	return true, ""
}

// AllowEmail reports whether an email may go out now. Counters must
// already be normalized.
func (g *Gate) AllowEmail(c model.ReminderCounters, now time.Time) (bool, string) {
	if c.EmailSentToday >= MaxEmailPerDay {
		return false, "daily email limit reached"
	}
	if c.LastEmailAt != nil && now.Sub(*c.LastEmailAt) < MinEmailGap {
		return false, "last email too recent"
	}
	return true, ""
}

// RecordSMS returns the counters after a successful SMS send.
func (g *Gate) RecordSMS(c model.ReminderCounters, now time.Time) model.ReminderCounters {
	c.SMSSentToday++
	at := now
	c.LastSMSAt = &at
	return c
}

// RecordEmail returns the counters after a successful email send.
func (g *Gate) RecordEmail(c model.ReminderCounters, now time.Time) model.ReminderCounters {
	c.EmailSentToday++
	at := now
	c.LastEmailAt = &at
	return c
}
