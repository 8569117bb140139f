package booking

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/slotgrid"
	"github.com/whiskerwell/scheduling/internal/storage"
)

// Guard decides whether a candidate timestamp may be booked. Admission is
// exact-timestamp equality against committed appointments and against
// drafts staged in other draft-groups; the five-minute grid quantization
// is what prevents practical overlap. The check runs inside the caller's
// transaction, with the database's unique slot index behind it for the
// race a plain check-then-act cannot close.
type Guard struct {
	repo *storage.Repository
}

func NewGuard(repo *storage.Repository) *Guard {
	return &Guard{repo: repo}
}

// Admit returns a ConflictError when the slot at `at` is unavailable.
// excludeGroupID ignores a group's own current slot during edits;
// excludeDraftKey ignores the draft-group currently being converted.
func (g *Guard) Admit(ctx context.Context, tx pgx.Tx, at time.Time, excludeGroupID *int64, excludeDraftKey string) error {
	if !slotgrid.InGrid(at) {
		return schederr.Conflict("time %s is outside the booking grid", at.Format("15:04"))
	}

	taken, err := g.repo.SlotTaken(ctx, tx, at, excludeGroupID)
	if err != nil {
		return schederr.Persistence("slot lookup", err)
	}
	if taken {
		return schederr.Conflict("slot %s is already booked", at.Format("2006-01-02 15:04"))
	}

	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	staged, err := g.repo.DraftPendingAt(ctx, tx, day, at.Format("15:04"), excludeDraftKey)
	if err != nil {
		return schederr.Persistence("draft lookup", err)
	}
	if staged {
		return schederr.Conflict("slot %s is held by a staged draft", at.Format("2006-01-02 15:04"))
	}
	return nil
}
