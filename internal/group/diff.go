package group

// membershipDiff is the three-way reconciliation applied on group edit:
// incoming items carrying an appointment id update that member in place,
// items without an id become new members, and existing members absent from
// the incoming set are removed.
type membershipDiff struct {
	Updates []Item
	Inserts []Item
	Deletes []int64
}

func diffMembers(existingIDs []int64, incoming []Item) membershipDiff {
	var d membershipDiff

	seen := make(map[int64]struct{}, len(incoming))
	for _, it := range incoming {
		if it.AppointmentID > 0 {
			seen[it.AppointmentID] = struct{}{}
			d.Updates = append(d.Updates, it)
		} else {
			d.Inserts = append(d.Inserts, it)
		}
	}
	for _, id := range existingIDs {
		if _, ok := seen[id]; !ok {
			d.Deletes = append(d.Deletes, id)
		}
	}
	return d
}
