// Package group implements the appointment-group lifecycle: atomic bundle
// creation, membership reconciliation on edit, group cancellation requests,
// and the one-way finalize lock.
package group

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/booking"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/notify"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/slotgrid"
	"github.com/whiskerwell/scheduling/internal/storage"
)

type Coordinator struct {
	repo    *storage.Repository
	guard   *booking.Guard
	catalog catalog.Store
	sink    notify.Sink
	audit   *audit.Repository
	logger  *slog.Logger
	loc     *time.Location
}

func NewCoordinator(repo *storage.Repository, guard *booking.Guard, cat catalog.Store, sink notify.Sink, auditRepo *audit.Repository, logger *slog.Logger, loc *time.Location) *Coordinator {
	return &Coordinator{
		repo:    repo,
		guard:   guard,
		catalog: cat,
		sink:    sink,
		audit:   auditRepo,
		logger:  logger,
		loc:     loc,
	}
}

// Create books a bundle of services under one slot. The shared timestamp
// comes from the first structurally valid item; items that fail the shape
// check are dropped, and the request is rejected only when none qualify.
// The group occupies its slot exactly once regardless of member count: the
// first member is the slot holder.
func (c *Coordinator) Create(ctx context.Context, actor authz.Actor, items []Item, notes string, origin model.Origin) (int64, error) {
	var valid []Item
	for i, it := range items {
		if !it.structurallyValid(c.loc) {
			c.logger.Warn("dropping structurally invalid booking item", "index", i)
			continue
		}
		if err := validate(ctx, c.catalog, i, it, c.loc); err != nil {
			return 0, err
		}
		pet, err := c.catalog.Pet(ctx, it.PetID)
		if err != nil {
			return 0, err
		}
		if !actor.OwnsPet(pet.OwnerID) {
			return 0, schederr.Forbidden("pet %d does not belong to the caller", it.PetID)
		}
		valid = append(valid, it)
	}
	if len(valid) == 0 {
		return 0, schederr.Validation("items", "no structurally valid booking item")
	}
	if !origin.Valid() {
		origin = model.OriginWeb
	}

	at, err := slotgrid.CombineDateTime(valid[0].Date, valid[0].TimeOfDay, c.loc)
	if err != nil {
		return 0, schederr.Validation("time", err.Error())
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return 0, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := c.guard.Admit(ctx, tx, at, nil, ""); err != nil {
		return 0, err
	}

	groupID, err := c.repo.InsertGroup(ctx, tx, &model.AppointmentGroup{
		StartAt: at,
		Status:  model.GroupStatusPending,
		Notes:   notes,
	})
	if err != nil {
		return 0, schederr.Persistence("insert group", err)
	}

	for i, it := range valid {
		appt := &model.Appointment{
			PetID:      it.PetID,
			CategoryID: optionalID(it.CategoryID),
			SubtypeID:  optionalID(it.SubtypeID),
			StartAt:    at,
			Status:     model.StatusPending,
			Origin:     origin,
			GroupID:    &groupID,
			SlotHolder: i == 0,
			Notes:      it.Notes,
		}
		if _, err := c.repo.InsertAppointment(ctx, tx, appt); err != nil {
			if storage.IsSlotTaken(err) {
				return 0, schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
			}
			return 0, schederr.Persistence("insert group member", err)
		}
	}

	if err := c.sink.Publish(ctx, tx, notify.Message{
		Text:       fmt.Sprintf("Group booking %d created with %d services at %s", groupID, len(valid), at.Format("2006-01-02 15:04")),
		Type:       "group_booked",
		TargetRole: string(authz.RoleStaff),
	}); err != nil {
		return 0, schederr.Persistence("publish notification", err)
	}
	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "create",
		Module:      "appointment_groups",
		Description: fmt.Sprintf("created group %d with %d members at %s", groupID, len(valid), at.Format("2006-01-02 15:04")),
		PerformedBy: actor.UserID,
	}); err != nil {
		return 0, schederr.Persistence("record audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsSlotTaken(err) {
			return 0, schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
		}
		return 0, schederr.Persistence("commit", err)
	}
	return groupID, nil
}

// ensureOwnsPets rejects non-staff actors touching a pet they do not own.
func (c *Coordinator) ensureOwnsPets(ctx context.Context, actor authz.Actor, petIDs []int64) error {
	if actor.IsStaff() {
		return nil
	}
	checked := make(map[int64]struct{}, len(petIDs))
	for _, id := range petIDs {
		if _, done := checked[id]; done {
			continue
		}
		checked[id] = struct{}{}
		pet, err := c.catalog.Pet(ctx, id)
		if err != nil {
			return err
		}
		if !actor.OwnsPet(pet.OwnerID) {
			return schederr.Forbidden("pet %d does not belong to the caller", id)
		}
	}
	return nil
}

// Edit moves a group to a new timestamp and reconciles its membership with
// the incoming item set in one transaction. A finalized group may only be
// edited by staff, and owners may only edit groups made up of their own
// pets.
func (c *Coordinator) Edit(ctx context.Context, actor authz.Actor, groupID int64, date, timeOfDay, notes string, items []Item) error {
	at, err := slotgrid.CombineDateTime(date, timeOfDay, c.loc)
	if err != nil {
		return schederr.Validation("time", err.Error())
	}
	for i, it := range items {
		if err := validate(ctx, c.catalog, i, it, c.loc); err != nil {
			return err
		}
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	g, err := c.repo.GetGroupForUpdate(ctx, tx, groupID)
	if err != nil {
		if storage.IsNoRows(err) {
			return schederr.NotFound("group", groupID)
		}
		return schederr.Persistence("load group", err)
	}
	if g.Status == model.GroupStatusFinalized && !actor.IsStaff() {
		return schederr.Forbidden("group %d is finalized; only staff may edit it", groupID)
	}

	members, err := c.repo.ListGroupMembersForUpdate(ctx, tx, groupID)
	if err != nil {
		return schederr.Persistence("load group members", err)
	}
	byID := make(map[int64]model.Appointment, len(members))
	existingIDs := make([]int64, 0, len(members))
	petIDs := make([]int64, 0, len(members)+len(items))
	for _, m := range members {
		byID[m.ID] = m
		existingIDs = append(existingIDs, m.ID)
		petIDs = append(petIDs, m.PetID)
	}
	for _, it := range items {
		petIDs = append(petIDs, it.PetID)
	}
	if err := c.ensureOwnsPets(ctx, actor, petIDs); err != nil {
		return err
	}

	// Re-admit the slot, ignoring this group's own current reservation.
	if err := c.guard.Admit(ctx, tx, at, &groupID, ""); err != nil {
		return err
	}

	d := diffMembers(existingIDs, items)

	for _, it := range d.Updates {
		current, ok := byID[it.AppointmentID]
		if !ok {
			return schederr.NotFound("appointment", it.AppointmentID)
		}
		status := current.Status
		if it.Status != "" {
			if !actor.IsStaff() {
				return schederr.Forbidden("only staff may set appointment status directly")
			}
			status, _ = model.ParseStatus(it.Status)
		}
		updated := current
		updated.PetID = it.PetID
		updated.CategoryID = optionalID(it.CategoryID)
		updated.SubtypeID = optionalID(it.SubtypeID)
		updated.Notes = it.Notes
		updated.Status = status
		updated.StartAt = at // member timestamps follow the group, always
		if err := c.repo.UpdateAppointmentFields(ctx, tx, &updated); err != nil {
			return schederr.Persistence("update group member", err)
		}
	}

	for _, it := range d.Inserts {
		appt := &model.Appointment{
			PetID:      it.PetID,
			CategoryID: optionalID(it.CategoryID),
			SubtypeID:  optionalID(it.SubtypeID),
			StartAt:    at,
			Status:     model.StatusPending,
			Origin:     model.OriginWeb,
			GroupID:    &groupID,
			SlotHolder: false,
			Notes:      it.Notes,
		}
		if _, err := c.repo.InsertAppointment(ctx, tx, appt); err != nil {
			if storage.IsSlotTaken(err) {
				return schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
			}
			return schederr.Persistence("insert group member", err)
		}
	}

	if err := c.repo.DeleteAppointments(ctx, tx, d.Deletes); err != nil {
		return schederr.Persistence("remove group members", err)
	}
	if err := c.repo.EnsureSlotHolder(ctx, tx, groupID); err != nil {
		return schederr.Persistence("reassign slot holder", err)
	}
	if err := c.repo.UpdateGroupSchedule(ctx, tx, groupID, at, notes); err != nil {
		return schederr.Persistence("update group", err)
	}

	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "update",
		Module:      "appointment_groups",
		Description: fmt.Sprintf("edited group %d: %d updated, %d added, %d removed", groupID, len(d.Updates), len(d.Inserts), len(d.Deletes)),
		PerformedBy: actor.UserID,
	}); err != nil {
		return schederr.Persistence("record audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsSlotTaken(err) {
			return schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
		}
		return schederr.Persistence("commit", err)
	}
	return nil
}

// RequestCancellation raises a cancellation request for the whole group.
// Every member must still be cancellable; otherwise nothing changes.
func (c *Coordinator) RequestCancellation(ctx context.Context, actor authz.Actor, groupID int64) error {
	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := c.repo.GetGroupForUpdate(ctx, tx, groupID); err != nil {
		if storage.IsNoRows(err) {
			return schederr.NotFound("group", groupID)
		}
		return schederr.Persistence("load group", err)
	}
	members, err := c.repo.ListGroupMembersForUpdate(ctx, tx, groupID)
	if err != nil {
		return schederr.Persistence("load group members", err)
	}
	if len(members) == 0 {
		return schederr.NotFound("group", groupID)
	}

	memberPets := make([]int64, 0, len(members))
	for _, m := range members {
		memberPets = append(memberPets, m.PetID)
	}
	if err := c.ensureOwnsPets(ctx, actor, memberPets); err != nil {
		return err
	}
	for _, m := range members {
		if !m.Status.Cancellable() {
			return schederr.Conflict("appointment %d is %s; the group cannot be cancelled", m.ID, m.Status)
		}
	}

	for _, m := range members {
		if err := c.repo.UpdateAppointmentStatus(ctx, tx, m.ID, model.StatusCancellationRequested); err != nil {
			return schederr.Persistence("update member status", err)
		}
	}

	if err := c.sink.Publish(ctx, tx, notify.Message{
		Text:       fmt.Sprintf("Cancellation requested for group %d (%d services)", groupID, len(members)),
		Type:       "group_cancellation_requested",
		TargetRole: string(authz.RoleStaff),
	}); err != nil {
		return schederr.Persistence("publish notification", err)
	}
	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "update",
		Module:      "appointment_groups",
		Description: fmt.Sprintf("cancellation requested for group %d", groupID),
		PerformedBy: actor.UserID,
	}); err != nil {
		return schederr.Persistence("record audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return schederr.Persistence("commit", err)
	}
	return nil
}

// ConfirmCancellation moves a group's members from cancellation-requested
// to cancelled. Staff action.
func (c *Coordinator) ConfirmCancellation(ctx context.Context, actor authz.Actor, groupID int64) error {
	if !actor.IsStaff() {
		return schederr.Forbidden("only staff may confirm cancellations")
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	members, err := c.repo.ListGroupMembersForUpdate(ctx, tx, groupID)
	if err != nil {
		return schederr.Persistence("load group members", err)
	}
	if len(members) == 0 {
		return schederr.NotFound("group", groupID)
	}
	for _, m := range members {
		if !m.Status.CanTransitionTo(model.StatusCancelled) {
			return schederr.Conflict("appointment %d is %s and cannot be cancelled", m.ID, m.Status)
		}
	}
	for _, m := range members {
		if err := c.repo.UpdateAppointmentStatus(ctx, tx, m.ID, model.StatusCancelled); err != nil {
			return schederr.Persistence("update member status", err)
		}
	}
	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "update",
		Module:      "appointment_groups",
		Description: fmt.Sprintf("cancelled group %d", groupID),
		PerformedBy: actor.UserID,
	}); err != nil {
		return schederr.Persistence("record audit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return schederr.Persistence("commit", err)
	}
	return nil
}

// Finalize flips the given groups to finalized. Already-finalized groups
// are skipped silently, so re-running is harmless. Returns how many groups
// actually changed.
func (c *Coordinator) Finalize(ctx context.Context, actor authz.Actor, groupIDs []int64) (int, error) {
	if !actor.IsStaff() {
		return 0, schederr.Forbidden("only staff may finalize groups")
	}
	if len(groupIDs) == 0 {
		return 0, schederr.Validation("group_ids", "at least one group id is required")
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return 0, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	changed := 0
	for _, id := range groupIDs {
		flipped, err := c.repo.FinalizeGroup(ctx, tx, id)
		if err != nil {
			return 0, schederr.Persistence("finalize group", err)
		}
		if !flipped {
			continue
		}
		changed++
		if err := c.audit.Record(ctx, tx, audit.Entry{
			ActionType:  "update",
			Module:      "appointment_groups",
			Description: fmt.Sprintf("finalized group %d", id),
			PerformedBy: actor.UserID,
		}); err != nil {
			return 0, schederr.Persistence("record audit", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, schederr.Persistence("commit", err)
	}
	return changed, nil
}

// Delete removes a group and its members. This is the only hard-delete
// path for appointments. Staff action.
func (c *Coordinator) Delete(ctx context.Context, actor authz.Actor, groupID int64) error {
	if !actor.IsStaff() {
		return schederr.Forbidden("only staff may delete groups")
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := c.repo.DeleteGroup(ctx, tx, groupID); err != nil {
		if storage.IsNoRows(err) {
			return schederr.NotFound("group", groupID)
		}
		return schederr.Persistence("delete group", err)
	}
	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "delete",
		Module:      "appointment_groups",
		Description: fmt.Sprintf("deleted group %d and its members", groupID),
		PerformedBy: actor.UserID,
	}); err != nil {
		return schederr.Persistence("record audit", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return schederr.Persistence("commit", err)
	}
	return nil
}

// List returns recent groups with their members for management views.
func (c *Coordinator) List(ctx context.Context, limit int) ([]GroupWithMembers, error) {
	groups, err := c.repo.ListGroups(ctx, limit)
	if err != nil {
		return nil, schederr.Persistence("list groups", err)
	}
	out := make([]GroupWithMembers, 0, len(groups))
	for _, g := range groups {
		members, err := c.repo.ListGroupMembers(ctx, g.ID)
		if err != nil {
			return nil, schederr.Persistence("list group members", err)
		}
		out = append(out, GroupWithMembers{Group: g, Members: members})
	}
	return out, nil
}

type GroupWithMembers struct {
	Group   model.AppointmentGroup
	Members []model.Appointment
}
