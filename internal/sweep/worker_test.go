package sweep

import (
	"testing"
	"time"
)

func TestOverdue(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	if Overdue(start, start.Add(29*time.Minute)) {
		t.Fatal("T+29m is inside the grace period")
	}
	if Overdue(start, start.Add(30*time.Minute)) {
		t.Fatal("exactly T+30m is still inside the grace period")
	}
	if !Overdue(start, start.Add(31*time.Minute)) {
		t.Fatal("T+31m should be overdue")
	}
	if Overdue(start, start.Add(-time.Hour)) {
		t.Fatal("future appointments are never overdue")
	}
}
