// Package draft is the pre-commit staging area. Owners (and staff, in
// bulk) park candidate appointments in a cart; drafts sharing a group key
// later convert into one appointment group, atomically per key.
package draft

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
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

// store is the slice of the scheduling repository the cart touches.
type store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertDraft(ctx context.Context, tx pgx.Tx, d *model.AppointmentDraft) (int64, error)
	DraftExists(ctx context.Context, tx pgx.Tx, d *model.AppointmentDraft) (bool, error)
	CountDraftsByKey(ctx context.Context, tx pgx.Tx, key string) (int, error)
	DraftsByKeyForUpdate(ctx context.Context, tx pgx.Tx, key string) ([]model.AppointmentDraft, error)
	DeleteDraftsByKey(ctx context.Context, tx pgx.Tx, key string) error
	GetDraft(ctx context.Context, id int64) (model.AppointmentDraft, error)
	DeleteDraft(ctx context.Context, id int64) (bool, error)
	ListDraftsByUser(ctx context.Context, createdBy string) ([]model.AppointmentDraft, error)
	InsertGroup(ctx context.Context, tx pgx.Tx, g *model.AppointmentGroup) (int64, error)
	InsertAppointment(ctx context.Context, tx pgx.Tx, a *model.Appointment) (int64, error)
}

// admitter decides whether a candidate slot may be taken.
type admitter interface {
	Admit(ctx context.Context, tx pgx.Tx, at time.Time, excludeGroupID *int64, excludeDraftKey string) error
}

type Cart struct {
	repo    store
	guard   admitter
	catalog catalog.Store
	sink    notify.Sink
	audit   *audit.Repository
	logger  *slog.Logger
	loc     *time.Location
}

func NewCart(repo *storage.Repository, guard *booking.Guard, cat catalog.Store, sink notify.Sink, auditRepo *audit.Repository, logger *slog.Logger, loc *time.Location) *Cart {
	return &Cart{
		repo:    repo,
		guard:   guard,
		catalog: cat,
		sink:    sink,
		audit:   auditRepo,
		logger:  logger,
		loc:     loc,
	}
}

// Item is one draft in a save request. GroupKey may be empty; a fresh key
// is minted so the draft forms its own group until others join it.
type Item struct {
	PetID      int64
	CategoryID int64
	SubtypeID  int64
	Date       string // "2006-01-02"
	TimeOfDay  string // "HH:mm"
	Notes      string
	GroupKey   string
}

func (c *Cart) validateItem(ctx context.Context, idx int, it Item) (time.Time, error) {
	if it.PetID <= 0 {
		return time.Time{}, schederr.ValidationAt(idx, "pet", "is required")
	}
	if it.CategoryID <= 0 {
		return time.Time{}, schederr.ValidationAt(idx, "category", "is required")
	}
	at, err := slotgrid.CombineDateTime(it.Date, it.TimeOfDay, c.loc)
	if err != nil {
		return time.Time{}, schederr.ValidationAt(idx, "time", err.Error())
	}
	if !slotgrid.InGrid(at) {
		return time.Time{}, schederr.ValidationAt(idx, "time", fmt.Sprintf("%s is outside the booking grid", it.TimeOfDay))
	}
	category, err := c.catalog.Category(ctx, it.CategoryID)
	if err != nil {
		return time.Time{}, err
	}
	if category.RequiresSubtype && it.SubtypeID <= 0 {
		return time.Time{}, schederr.ValidationAt(idx, "subtype", "is required for this category")
	}
	return at, nil
}

// Save stages the items. Items without a group key get a fresh one;
// re-submitting an identical item is a no-op; a key may never bind more
// than three drafts. Returns the ids of the drafts actually inserted.
func (c *Cart) Save(ctx context.Context, actor authz.Actor, items []Item) ([]int64, error) {
	if len(items) == 0 {
		return nil, schederr.Validation("items", "at least one draft item is required")
	}

	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return nil, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var inserted []int64
	for i, it := range items {
		at, err := c.validateItem(ctx, i, it)
		if err != nil {
			return nil, err
		}
		pet, err := c.catalog.Pet(ctx, it.PetID)
		if err != nil {
			return nil, err
		}
		if !actor.OwnsPet(pet.OwnerID) {
			return nil, schederr.Forbidden("pet %d does not belong to the caller", it.PetID)
		}

		key := it.GroupKey
		if key == "" {
			key = uuid.NewString()
		}

		day, _ := time.ParseInLocation("2006-01-02", it.Date, c.loc)
		d := &model.AppointmentDraft{
			CreatedBy:   actor.UserID,
			OwnerID:     pet.OwnerID,
			PetID:       it.PetID,
			CategoryID:  it.CategoryID,
			SubtypeID:   optionalID(it.SubtypeID),
			ScheduledOn: day,
			TimeOfDay:   it.TimeOfDay,
			Notes:       it.Notes,
			GroupKey:    key,
		}

		exists, err := c.repo.DraftExists(ctx, tx, d)
		if err != nil {
			return nil, schederr.Persistence("draft dedupe lookup", err)
		}
		if exists {
			continue
		}

		// Drafts sharing this key share the slot on purpose; everything
		// else, committed or staged, blocks it.
		if err := c.guard.Admit(ctx, tx, at, nil, key); err != nil {
			return nil, err
		}

		n, err := c.repo.CountDraftsByKey(ctx, tx, key)
		if err != nil {
			return nil, schederr.Persistence("draft group count", err)
		}
		if n >= model.MaxDraftsPerGroup {
			return nil, schederr.Conflict("draft group %s already holds %d drafts (max %d)", key, n, model.MaxDraftsPerGroup)
		}

		id, err := c.repo.InsertDraft(ctx, tx, d)
		if err != nil {
			return nil, schederr.Persistence("insert draft", err)
		}
		inserted = append(inserted, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, schederr.Persistence("commit", err)
	}
	return inserted, nil
}

// ConvertResult reports what one Convert call produced.
type ConvertResult struct {
	GroupIDs  map[string]int64 // draft-group key -> created group id
	Converted int              // appointments created
	Skipped   []string         // keys that had nothing to convert
}

// Convert turns each draft group into one appointment group plus one
// appointment per draft, then deletes the source drafts. Each key runs in
// its own transaction: one key failing does not undo the keys already
// converted, but the call as a whole fails when no key converts.
func (c *Cart) Convert(ctx context.Context, actor authz.Actor, keys []string) (ConvertResult, error) {
	if len(keys) == 0 {
		return ConvertResult{}, schederr.Validation("keys", "at least one draft group key is required")
	}

	res := ConvertResult{GroupIDs: map[string]int64{}}
	var firstErr error
	for _, key := range keys {
		n, groupID, err := c.convertOne(ctx, actor, key)
		if err != nil {
			c.logger.Error("draft group conversion failed", "key", key, "err", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if n == 0 {
			res.Skipped = append(res.Skipped, key)
			continue
		}
		res.GroupIDs[key] = groupID
		res.Converted += n
	}

	if res.Converted == 0 && firstErr != nil {
		return res, firstErr
	}
	if res.Converted == 0 && len(res.Skipped) == len(keys) {
		// Nothing staged under any key; calling again after a successful
		// conversion lands here and is a harmless no-op.
		return res, nil
	}
	return res, nil
}

func (c *Cart) convertOne(ctx context.Context, actor authz.Actor, key string) (int, int64, error) {
	tx, err := c.repo.Begin(ctx)
	if err != nil {
		return 0, 0, schederr.Persistence("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	drafts, err := c.repo.DraftsByKeyForUpdate(ctx, tx, key)
	if err != nil {
		return 0, 0, schederr.Persistence("load drafts", err)
	}
	if len(drafts) == 0 {
		return 0, 0, nil
	}

	first := drafts[0]
	at, err := slotgrid.CombineDateTime(first.ScheduledOn.Format("2006-01-02"), first.TimeOfDay, c.loc)
	if err != nil {
		return 0, 0, schederr.Validation("time", err.Error())
	}

	if err := c.guard.Admit(ctx, tx, at, nil, key); err != nil {
		return 0, 0, err
	}

	groupID, err := c.repo.InsertGroup(ctx, tx, &model.AppointmentGroup{
		StartAt: at,
		Status:  model.GroupStatusPending,
		Notes:   first.Notes,
	})
	if err != nil {
		return 0, 0, schederr.Persistence("insert group", err)
	}

	unique := dedupeDrafts(drafts)
	converted := 0
	for _, d := range unique {
		appt := &model.Appointment{
			PetID:      d.PetID,
			CategoryID: optionalID(d.CategoryID),
			SubtypeID:  d.SubtypeID,
			StartAt:    at,
			Status:     model.StatusPending,
			Origin:     model.OriginMobile,
			GroupID:    &groupID,
			SlotHolder: converted == 0,
			Notes:      d.Notes,
		}
		apptID, err := c.repo.InsertAppointment(ctx, tx, appt)
		if err != nil {
			if storage.IsSlotTaken(err) {
				return 0, 0, schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
			}
			return 0, 0, schederr.Persistence("insert appointment", err)
		}
		converted++

		if err := c.sink.Publish(ctx, tx, notify.Message{
			Text:       fmt.Sprintf("Appointment %d confirmed for %s", apptID, at.Format("2006-01-02 15:04")),
			Type:       "draft_converted",
			TargetRole: string(authz.RoleStaff),
		}); err != nil {
			return 0, 0, schederr.Persistence("publish notification", err)
		}
	}

	if err := c.repo.DeleteDraftsByKey(ctx, tx, key); err != nil {
		return 0, 0, schederr.Persistence("delete drafts", err)
	}

	if err := c.sink.Publish(ctx, tx, notify.Message{
		Text:       fmt.Sprintf("Group booking %d confirmed (%d services) at %s", groupID, converted, at.Format("2006-01-02 15:04")),
		Type:       "group_booked",
		TargetRole: string(authz.RoleStaff),
	}); err != nil {
		return 0, 0, schederr.Persistence("publish notification", err)
	}
	if err := c.audit.Record(ctx, tx, audit.Entry{
		ActionType:  "create",
		Module:      "appointment_drafts",
		Description: fmt.Sprintf("converted draft group %s into group %d (%d appointments)", key, groupID, converted),
		PerformedBy: actor.UserID,
	}); err != nil {
		return 0, 0, schederr.Persistence("record audit", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if storage.IsSlotTaken(err) {
			return 0, 0, schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
		}
		return 0, 0, schederr.Persistence("commit", err)
	}
	return converted, groupID, nil
}

// Remove deletes one draft from the cart. Owners may only remove their own.
func (c *Cart) Remove(ctx context.Context, actor authz.Actor, id int64) error {
	d, err := c.repo.GetDraft(ctx, id)
	if err != nil {
		if storage.IsNoRows(err) {
			return schederr.NotFound("draft", id)
		}
		return schederr.Persistence("load draft", err)
	}
	if !actor.IsStaff() && !actor.OwnsPet(d.OwnerID) {
		return schederr.Forbidden("draft %d does not belong to the caller", id)
	}
	deleted, err := c.repo.DeleteDraft(ctx, id)
	if err != nil {
		return schederr.Persistence("delete draft", err)
	}
	if !deleted {
		return schederr.NotFound("draft", id)
	}
	return nil
}

// List returns the caller's staged drafts grouped by key.
func (c *Cart) List(ctx context.Context, actor authz.Actor) ([]model.AppointmentDraft, error) {
	drafts, err := c.repo.ListDraftsByUser(ctx, actor.UserID)
	if err != nil {
		return nil, schederr.Persistence("list drafts", err)
	}
	return drafts, nil
}

// draftIdentity collapses duplicate drafts under one key. Two identical
// drafts would otherwise become duplicate appointments on conversion.
type draftIdentity struct {
	pet, category, subtype int64
}

func dedupeDrafts(drafts []model.AppointmentDraft) []model.AppointmentDraft {
	seen := make(map[draftIdentity]struct{}, len(drafts))
	var out []model.AppointmentDraft
	for _, d := range drafts {
		id := draftIdentity{pet: d.PetID, category: d.CategoryID}
		if d.SubtypeID != nil {
			id.subtype = *d.SubtypeID
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, d)
	}
	return out
}

func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
