// Package slotgrid computes the fixed clinic-day booking grid. The clinic
// day runs 09:00 to 18:00 inclusive in five-minute ticks, which is 109
// slots. The slot is the unit of booking contention: admission is decided
// by exact-timestamp equality, never interval overlap.
package slotgrid

import (
	"fmt"
	"time"
)

const (
	OpenHour  = 9
	CloseHour = 18
	StepMins  = 5

	// SlotsPerDay is the grid size: both endpoints inclusive.
	SlotsPerDay = (CloseHour-OpenHour)*60/StepMins + 1
)

// Slot is one grid tick with its availability for a given day.
type Slot struct {
	Start     time.Time
	TimeOfDay string // "HH:mm"
	Available bool
}

// Availability returns the full ordered grid for day. A slot is unavailable
// when an occupied timestamp matches it exactly, or when the slot lies at
// or before now and day is today. Read-only: recomputing never mutates
// anything.
func Availability(day time.Time, occupied []time.Time, now time.Time) []Slot {
	taken := make(map[int64]struct{}, len(occupied))
	for _, t := range occupied {
		taken[t.Truncate(time.Minute).Unix()] = struct{}{}
	}

	loc := day.Location()
	sameDay := day.Year() == now.Year() && day.YearDay() == now.YearDay()

	slots := make([]Slot, 0, SlotsPerDay)
	start := time.Date(day.Year(), day.Month(), day.Day(), OpenHour, 0, 0, 0, loc)
	for i := 0; i < SlotsPerDay; i++ {
		t := start.Add(time.Duration(i*StepMins) * time.Minute)
		_, isTaken := taken[t.Unix()]
		past := sameDay && !t.After(now)
		slots = append(slots, Slot{
			Start:     t,
			TimeOfDay: t.Format("15:04"),
			Available: !isTaken && !past,
		})
	}
	return slots
}

// CombineDateTime joins a date-only string and an "HH:mm" time-of-day into
// one minute-granular timestamp in the clinic location.
func CombineDateTime(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", date)
	}
	clock, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q", timeOfDay)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

// InGrid reports whether t falls on a grid tick within clinic hours.
func InGrid(t time.Time) bool {
	if t.Minute()%StepMins != 0 || t.Second() != 0 {
		return false
	}
	mins := t.Hour()*60 + t.Minute()
	return mins >= OpenHour*60 && mins <= CloseHour*60
}
