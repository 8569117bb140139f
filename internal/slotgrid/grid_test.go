package slotgrid

import (
	"testing"
	"time"
)

func TestAvailability_FullGrid(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, loc)

	slots := Availability(day, nil, now)
	if len(slots) != 109 {
		t.Fatalf("expected 109 slots, got %d", len(slots))
	}
	if slots[0].TimeOfDay != "09:00" {
		t.Fatalf("expected first slot 09:00, got %s", slots[0].TimeOfDay)
	}
	if slots[len(slots)-1].TimeOfDay != "18:00" {
		t.Fatalf("expected last slot 18:00, got %s", slots[len(slots)-1].TimeOfDay)
	}
	for i, s := range slots {
		if !s.Available {
			t.Fatalf("slot %d (%s) should be available on an empty future day", i, s.TimeOfDay)
		}
		if i > 0 && s.Start.Sub(slots[i-1].Start) != 5*time.Minute {
			t.Fatalf("slot %d not 5 minutes after its predecessor", i)
		}
	}
}

func TestAvailability_OccupiedExactMatch(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, loc)
	occupied := []time.Time{
		time.Date(2026, 3, 10, 9, 30, 0, 0, loc),
		// Stray seconds from the DB must still land on the tick.
		time.Date(2026, 3, 10, 14, 0, 42, 0, loc),
	}

	slots := Availability(day, occupied, now)
	for _, s := range slots {
		switch s.TimeOfDay {
		case "09:30", "14:00":
			if s.Available {
				t.Fatalf("slot %s should be taken", s.TimeOfDay)
			}
		case "09:25", "09:35":
			// Adjacent slots are untouched: equality, not overlap.
			if !s.Available {
				t.Fatalf("slot %s should be free", s.TimeOfDay)
			}
		}
	}
}

func TestAvailability_PastCutoffSameDay(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	now := time.Date(2026, 3, 10, 11, 2, 0, 0, loc)

	slots := Availability(day, nil, now)
	for _, s := range slots {
		switch s.TimeOfDay {
		case "11:00":
			if s.Available {
				t.Fatal("11:00 is in the past at 11:02")
			}
		case "11:05":
			if !s.Available {
				t.Fatal("11:05 is still bookable at 11:02")
			}
		}
	}
}

func TestAvailability_NowExactlyOnSlot(t *testing.T) {
	loc := time.UTC
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, loc)
	now := time.Date(2026, 3, 10, 11, 5, 0, 0, loc)

	slots := Availability(day, nil, now)
	for _, s := range slots {
		switch s.TimeOfDay {
		case "11:05":
			// The slot equal to now has already begun.
			if s.Available {
				t.Fatal("11:05 is not bookable at exactly 11:05")
			}
		case "11:10":
			if !s.Available {
				t.Fatal("11:10 is still bookable at 11:05")
			}
		}
	}
}

func TestCombineDateTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	at, err := CombineDateTime("2026-03-10", "09:35", loc)
	if err != nil {
		t.Fatalf("CombineDateTime failed: %v", err)
	}
	want := time.Date(2026, 3, 10, 9, 35, 0, 0, loc)
	if !at.Equal(want) {
		t.Fatalf("expected %s, got %s", want, at)
	}

	if _, err := CombineDateTime("10.03.2026", "09:35", loc); err == nil {
		t.Fatal("expected error for malformed date")
	}
	if _, err := CombineDateTime("2026-03-10", "9:35pm", loc); err == nil {
		t.Fatal("expected error for malformed time")
	}
}

func TestInGrid(t *testing.T) {
	loc := time.UTC
	cases := []struct {
		hour, min int
		want      bool
	}{
		{9, 0, true},
		{18, 0, true},
		{8, 55, false},
		{18, 5, false},
		{12, 3, false},
		{12, 5, true},
	}
	for _, c := range cases {
		at := time.Date(2026, 3, 10, c.hour, c.min, 0, 0, loc)
		if got := InGrid(at); got != c.want {
			t.Fatalf("InGrid(%02d:%02d) = %v, want %v", c.hour, c.min, got, c.want)
		}
	}
	if InGrid(time.Date(2026, 3, 10, 9, 5, 30, 0, loc)) {
		t.Fatal("timestamps with seconds are off-grid")
	}
}
