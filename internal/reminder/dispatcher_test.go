package reminder

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/audit"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/email"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/schederr"
	"github.com/whiskerwell/scheduling/internal/sms"
)

type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type fakeRepo struct {
	tx        fakeTx
	appt      model.Appointment
	persisted *model.ReminderCounters
}

func (r *fakeRepo) Begin(context.Context) (pgx.Tx, error) { return &r.tx, nil }

func (r *fakeRepo) GetAppointmentForUpdate(_ context.Context, _ pgx.Tx, id int64) (model.Appointment, error) {
	return r.appt, nil
}

func (r *fakeRepo) UpdateReminderCounters(_ context.Context, _ pgx.Tx, _ int64, c model.ReminderCounters) error {
	r.persisted = &c
	return nil
}

type fakeAuditor struct {
	entries []audit.Entry
}

func (a *fakeAuditor) Record(_ context.Context, _ pgx.Tx, e audit.Entry) error {
	a.entries = append(a.entries, e)
	return nil
}

type stubCatalog struct {
	pet catalog.Pet
}

func (s stubCatalog) Pet(context.Context, int64) (catalog.Pet, error) { return s.pet, nil }

func (s stubCatalog) Category(_ context.Context, id int64) (catalog.Category, error) {
	return catalog.Category{}, schederr.NotFound("category", id)
}

func (s stubCatalog) Subtype(_ context.Context, id int64) (catalog.Subtype, error) {
	return catalog.Subtype{}, schederr.NotFound("subtype", id)
}

func testDispatcher(t *testing.T, pet catalog.Pet) (*Dispatcher, *fakeRepo, *fakeAuditor) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	repo := &fakeRepo{appt: model.Appointment{
		ID:      1,
		PetID:   pet.ID,
		StartAt: time.Now().In(loc).Add(2 * time.Hour),
	}}
	auditor := &fakeAuditor{}
	d := &Dispatcher{
		repo:    repo,
		gate:    NewGate(loc),
		catalog: stubCatalog{pet: pet},
		sms:     sms.NewNoopSender(),
		email:   email.NewNoopSender(),
		audit:   auditor,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return d, repo, auditor
}

var staff = authz.Actor{UserID: "s-1", Role: authz.RoleStaff}

func TestDispatchBothChannels(t *testing.T) {
	pet := catalog.Pet{ID: 7, Name: "Maja", OwnerID: 42, OwnerPhone: "+4917612345678", OwnerEmail: "maja@pets.example"}
	d, repo, auditor := testDispatcher(t, pet)

	res, err := d.Dispatch(context.Background(), staff, 1)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !res.SMSSent || !res.EmailSent {
		t.Fatalf("sent sms=%t email=%t, want both", res.SMSSent, res.EmailSent)
	}
	if repo.persisted == nil || repo.persisted.SMSSentToday != 1 || repo.persisted.EmailSentToday != 1 {
		t.Fatalf("persisted counters = %+v, want 1/1", repo.persisted)
	}
	if !repo.tx.committed {
		t.Fatal("dispatch transaction not committed")
	}
	if len(auditor.entries) != 1 {
		t.Fatalf("audit entries = %d, want 1", len(auditor.entries))
	}
}

func TestDispatchNoContactIsConflict(t *testing.T) {
	pet := catalog.Pet{ID: 7, Name: "Maja", OwnerID: 42}
	d, repo, _ := testDispatcher(t, pet)

	res, err := d.Dispatch(context.Background(), staff, 1)
	if !schederr.IsConflict(err) {
		t.Fatalf("got %v, want conflict when the owner has no contact on file", err)
	}
	if res.SMSSent || res.EmailSent {
		t.Fatal("nothing should have been sent")
	}
	if repo.persisted != nil {
		t.Fatal("counters must not advance when nothing was sent")
	}
	if repo.tx.committed {
		t.Fatal("dispatch transaction must not commit when nothing was sent")
	}
}

func TestDispatchRequiresStaff(t *testing.T) {
	pet := catalog.Pet{ID: 7, OwnerID: 42, OwnerPhone: "+4917612345678"}
	d, _, _ := testDispatcher(t, pet)

	owner := authz.Actor{UserID: "u-42", Role: authz.RoleOwner, OwnerID: 42}
	if _, err := d.Dispatch(context.Background(), owner, 1); !schederr.IsAuthorization(err) {
		t.Fatalf("got %v, want authorization error", err)
	}
}
