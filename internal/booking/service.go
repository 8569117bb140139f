// Package booking implements single-appointment booking, batch completion,
// and the slot admission guard shared with the group and draft flows.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/notify"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/slotgrid"
	"github.com/whiskerwell/scheduling/internal/storage"
)

type Service struct {
	repo    *storage.Repository
	guard   *Guard
	catalog catalog.Store
	sink    notify.Sink
	audit   *audit.Repository
	logger  *slog.Logger
	loc     *time.Location
}

func NewService(repo *storage.Repository, guard *Guard, cat catalog.Store, sink notify.Sink, auditRepo *audit.Repository, logger *slog.Logger, loc *time.Location) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		catalog: cat,
		sink:    sink,
		audit:   auditRepo,
		logger:  logger,
		loc:     loc,
	}
}

type BookRequest struct {
	PetID      int64
	CategoryID *int64
	SubtypeID  *int64
	Date       string // "2006-01-02"
	TimeOfDay  string // "HH:mm"
	Notes      string
	Origin     model.Origin
}

// Book creates one ungrouped appointment. Validation and admission happen
// before any write; the insert and its notifications are one transaction.
func (s *Service) Book(ctx context.Context, actor authz.Actor, req BookRequest) (int64, error) {
	if req.PetID <= 0 {
		return 0, schederr.Validation("pet", "is required")
	}
	at, err := slotgrid.CombineDateTime(req.Date, req.TimeOfDay, s.loc)
	if err != nil {
		return 0, schederr.Validation("time", err.Error())
	}
	if !req.Origin.Valid() {
		req.Origin = model.OriginWeb
	}

	pet, err := s.catalog.Pet(ctx, req.PetID)
	if err != nil {
		return 0, err
	}
	if !actor.OwnsPet(pet.OwnerID) {
		return 0, schederr.Forbidden("pet %d does not belong to the caller", req.PetID)
	}
	if req.CategoryID != nil {
		category, err := s.catalog.Category(ctx, *req.CategoryID)
		if err != nil {
			return 0, err
		}
		if category.RequiresSubtype && req.SubtypeID == nil {
			return 0, schederr.Validation("subtype", "is required for this category")
		}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return 0, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.guard.Admit(ctx, tx, at, nil, ""); err != nil {
		return 0, err
	}

	appt := &model.Appointment{
		PetID:      req.PetID,
		CategoryID: req.CategoryID,
		SubtypeID:  req.SubtypeID,
		StartAt:    at,
		Status:     model.StatusPending,
		Origin:     req.Origin,
		SlotHolder: true,
		Notes:      req.Notes,
	}
	id, err := s.repo.InsertAppointment(ctx, tx, appt)
	if err != nil {
		if storage.IsSlotTaken(err) {
			return 0, schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
		}
		return 0, schederr.Persistence("insert appointment", err)
	}

	if err := s.sink.Publish(ctx, tx, notify.Message{
		Text:       fmt.Sprintf("Appointment booked for %s on %s", pet.Name, at.Format("2006-01-02 15:04")),
		Type:       "appointment_booked",
		TargetRole: string(authz.RoleStaff),
	}); err != nil {
		return 0, schederr.Persistence("publish notification", err)
	}
	if err := s.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "create",
		Module:      "appointments",
		Description: fmt.Sprintf("booked appointment %d for pet %d at %s", id, req.PetID, at.Format("2006-01-02 15:04")),
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
	return id, nil
}

// Complete marks a batch of appointments completed, recording who
// administered them and an optional due date for recurring care. Staff only;
// each appointment must be in a state the transition table allows.
func (s *Service) Complete(ctx context.Context, actor authz.Actor, ids []int64, administeredBy string, dueDate *time.Time) error {
	if !actor.IsStaff() {
		return schederr.Forbidden("only staff may complete appointments")
	}
	if len(ids) == 0 {
		return schederr.Validation("ids", "at least one appointment id is required")
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, id := range ids {
		appt, err := s.repo.GetAppointmentForUpdate(ctx, tx, id)
		if err != nil {
			if storage.IsNoRows(err) {
				return schederr.NotFound("appointment", id)
			}
			return schederr.Persistence("load appointment", err)
		}
		if !appt.Status.CanTransitionTo(model.StatusCompleted) {
			return schederr.Conflict("appointment %d is %s and cannot be completed", id, appt.Status)
		}
		if err := s.repo.CompleteAppointment(ctx, tx, id, administeredBy, dueDate); err != nil {
			return schederr.Persistence("complete appointment", err)
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			ActionType:  "update",
			Module:      "appointments",
			Description: fmt.Sprintf("completed appointment %d", id),
			PerformedBy: actor.UserID,
		}); err != nil {
			return schederr.Persistence("record audit", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return schederr.Persistence("commit", err)
	}
	return nil
}

// Availability returns the full day grid with occupancy for date.
func (s *Service) Availability(ctx context.Context, date string) ([]slotgrid.Slot, error) {
	day, err := time.ParseInLocation("2006-01-02", date, s.loc)
	if err != nil {
		return nil, schederr.Validation("date", fmt.Sprintf("invalid date %q", date))
	}
	occupied, err := s.repo.ListOccupied(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, schederr.Persistence("list occupied slots", err)
	}
	for i, t := range occupied {
		occupied[i] = t.In(s.loc)
	}
	return slotgrid.Availability(day, occupied, time.Now().In(s.loc)), nil
}
