package group

import "testing"

func TestDiffMembers_MixedEdit(t *testing.T) {
	existing := []int64{101, 102, 103}
	incoming := []Item{
		{AppointmentID: 101, PetID: 1, CategoryID: 2},
		{AppointmentID: 103, PetID: 3, CategoryID: 2},
		{PetID: 9, CategoryID: 4},
		{PetID: 10, CategoryID: 4},
	}

	d := diffMembers(existing, incoming)
	if len(d.Updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(d.Updates))
	}
	if len(d.Inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(d.Inserts))
	}
	if len(d.Deletes) != 1 || d.Deletes[0] != 102 {
		t.Fatalf("expected delete of 102, got %v", d.Deletes)
	}
}

func TestDiffMembers_AllNew(t *testing.T) {
	d := diffMembers(nil, []Item{{PetID: 1, CategoryID: 1}, {PetID: 2, CategoryID: 1}})
	if len(d.Updates) != 0 || len(d.Deletes) != 0 {
		t.Fatalf("expected inserts only, got %+v", d)
	}
	if len(d.Inserts) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(d.Inserts))
	}
}

func TestDiffMembers_EmptyIncomingDeletesAll(t *testing.T) {
	d := diffMembers([]int64{5, 6}, nil)
	if len(d.Deletes) != 2 {
		t.Fatalf("expected 2 deletes, got %v", d.Deletes)
	}
	if len(d.Updates) != 0 || len(d.Inserts) != 0 {
		t.Fatalf("expected no updates or inserts, got %+v", d)
	}
}

func TestDiffMembers_UnknownIDStillUpdates(t *testing.T) {
	// An id the group does not own is the coordinator's problem; the diff
	// itself only classifies.
	d := diffMembers([]int64{1}, []Item{{AppointmentID: 99, PetID: 1, CategoryID: 1}})
	if len(d.Updates) != 1 || d.Updates[0].AppointmentID != 99 {
		t.Fatalf("expected update of 99, got %+v", d.Updates)
	}
	if len(d.Deletes) != 1 || d.Deletes[0] != 1 {
		t.Fatalf("expected delete of 1, got %v", d.Deletes)
	}
}
