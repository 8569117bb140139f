package group

import (
	"context"
	"time"

	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/slotgrid"
)

// Item is one candidate service in a group booking request. An item with
// AppointmentID set refers to an existing member; without it, a new member
// is created.
type Item struct {
	AppointmentID int64
	PetID         int64
	CategoryID    int64
	SubtypeID     int64
	Date          string // "2006-01-02"
	TimeOfDay     string // "HH:mm"
	Notes         string
	Status        string // optional staff status override on edit
}

// structurallyValid is the cheap shape check used to pick the item that
// fixes the group timestamp: references present and the schedule parseable.
func (it Item) structurallyValid(loc *time.Location) bool {
	if it.PetID <= 0 || it.CategoryID <= 0 {
		return false
	}
	_, err := slotgrid.CombineDateTime(it.Date, it.TimeOfDay, loc)
	return err == nil
}

// validate runs the full per-item checks, consulting the catalog for
// subtype requirements. Index goes into the error so callers can point at
// the offending row.
func validate(ctx context.Context, cat catalog.Store, idx int, it Item, loc *time.Location) error {
	if it.PetID <= 0 {
		return schederr.ValidationAt(idx, "pet", "is required")
	}
	if it.CategoryID <= 0 {
		return schederr.ValidationAt(idx, "category", "is required")
	}
	if _, err := slotgrid.CombineDateTime(it.Date, it.TimeOfDay, loc); err != nil {
		return schederr.ValidationAt(idx, "time", err.Error())
	}
	category, err := cat.Category(ctx, it.CategoryID)
	if err != nil {
		return err
	}
	if category.RequiresSubtype && it.SubtypeID <= 0 {
		return schederr.ValidationAt(idx, "subtype", "is required for this category")
	}
	if it.Status != "" {
		if _, err := model.ParseStatus(it.Status); err != nil {
			return schederr.ValidationAt(idx, "status", err.Error())
		}
	}
	return nil
}

func optionalID(v int64) *int64 {
	if v <= 0 {
		return nil
	}
	return &v
}
