package reminder

import (
	"testing"
	"time"

	"github.com/whiskerwell/scheduling/internal/model"
)

func TestGate_SMSDailyCap(t *testing.T) {
	g := NewGate(time.UTC)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	c := g.Normalize(model.ReminderCounters{}, now)
	for i := 0; i < MaxSMSPerDay; i++ {
		ok, _ := g.AllowSMS(c, now)
		if !ok {
			t.Fatalf("send %d should be allowed", i+1)
		}
		c = g.RecordSMS(c, now)
		now = now.Add(MinSMSGap)
	}
	if ok, reason := g.AllowSMS(c, now); ok || reason != "daily SMS limit reached" {
		t.Fatalf("fourth SMS should hit the daily cap, got ok=%v reason=%q", ok, reason)
	}
}

func TestGate_SMSGap(t *testing.T) {
	g := NewGate(time.UTC)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	c := g.Normalize(model.ReminderCounters{}, now)
	c = g.RecordSMS(c, now)

	if ok, _ := g.AllowSMS(c, now.Add(5*time.Hour+59*time.Minute)); ok {
		t.Fatal("SMS before the 6h gap should be throttled")
	}
	if ok, _ := g.AllowSMS(c, now.Add(6*time.Hour)); !ok {
		t.Fatal("SMS at the 6h mark should pass")
	}
}

func TestGate_EmailLimits(t *testing.T) {
	g := NewGate(time.UTC)
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	c := g.Normalize(model.ReminderCounters{}, now)
	for i := 0; i < MaxEmailPerDay; i++ {
		ok, _ := g.AllowEmail(c, now)
		if !ok {
			t.Fatalf("email %d should be allowed", i+1)
		}
		c = g.RecordEmail(c, now)
		now = now.Add(MinEmailGap)
	}
	if ok, _ := g.AllowEmail(c, now); ok {
		t.Fatal("sixth email should hit the daily cap")
	}

	// Gap check independent of the cap.
	c2 := g.Normalize(model.ReminderCounters{}, now)
	c2 = g.RecordEmail(c2, now)
	if ok, _ := g.AllowEmail(c2, now.Add(30*time.Minute)); ok {
		t.Fatal("email before the 1h gap should be throttled")
	}
}

func TestGate_DayRollover(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	g := NewGate(loc)

	yesterday := time.Date(2026, 3, 10, 23, 50, 0, 0, loc)
	c := g.Normalize(model.ReminderCounters{}, yesterday)
	for i := 0; i < MaxSMSPerDay; i++ {
		c = g.RecordSMS(c, yesterday)
	}
	if ok, _ := g.AllowSMS(c, yesterday); ok {
		t.Fatal("cap reached before midnight")
	}

	// Ten minutes later it is a new clinic day; counters reset but the
	// last-send gap still applies.
	next := yesterday.Add(10 * time.Minute)
	c = g.Normalize(c, next)
	if c.SMSSentToday != 0 || c.EmailSentToday != 0 {
		t.Fatalf("counters should reset at midnight, got %+v", c)
	}
	if ok, reason := g.AllowSMS(c, next); ok || reason != "last SMS too recent" {
		t.Fatalf("gap should survive rollover, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := g.AllowSMS(c, next.Add(MinSMSGap)); !ok {
		t.Fatal("SMS after gap on the new day should pass")
	}
}

func TestGate_RolloverComparesClinicDates(t *testing.T) {
	g := NewGate(time.UTC)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	c := g.Normalize(model.ReminderCounters{SMSSentToday: 2, ResetOn: now.Add(-time.Hour)}, now)
	if c.SMSSentToday != 2 {
		t.Fatal("same-day normalize must not reset counters")
	}
}
