package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/whiskerwell/scheduling/internal/authz"
	"github.com/whiskerwell/scheduling/internal/catalog"
	"github.com/whiskerwell/scheduling/internal/model"
	"github.com/whiskerwell/scheduling/internal/schederr"
)

type stubCatalog struct {
	pets       map[int64]catalog.Pet
	categories map[int64]catalog.Category
}

func (s stubCatalog) Pet(_ context.Context, id int64) (catalog.Pet, error) {
	p, ok := s.pets[id]
	if !ok {
		return catalog.Pet{}, schederr.NotFound("pet", id)
	}
	return p, nil
}

func (s stubCatalog) Category(_ context.Context, id int64) (catalog.Category, error) {
	c, ok := s.categories[id]
	if !ok {
		return catalog.Category{}, schederr.NotFound("category", id)
	}
	return c, nil
}

func (s stubCatalog) Subtype(_ context.Context, id int64) (catalog.Subtype, error) {
	return catalog.Subtype{}, schederr.NotFound("subtype", id)
}

// fakeTx satisfies pgx.Tx for paths that only begin, commit, and roll back.
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (t *fakeTx) Commit(context.Context) error   { t.committed = true; return nil }
func (t *fakeTx) Rollback(context.Context) error { return nil }

type admitCall struct {
	at  time.Time
	key string
}

type fakeAdmitter struct {
	calls  []admitCall
	reject error
}

func (a *fakeAdmitter) Admit(_ context.Context, _ pgx.Tx, at time.Time, _ *int64, excludeDraftKey string) error {
	a.calls = append(a.calls, admitCall{at: at, key: excludeDraftKey})
	return a.reject
}

// fakeStore keeps drafts in memory; only what Save needs is implemented.
type fakeStore struct {
	store
	tx       fakeTx
	perKey   map[string]int
	existing map[string]bool // "key@HH:mm" of already-staged drafts
	inserted []*model.AppointmentDraft
}

func (s *fakeStore) Begin(context.Context) (pgx.Tx, error) { return &s.tx, nil }

func (s *fakeStore) DraftExists(_ context.Context, _ pgx.Tx, d *model.AppointmentDraft) (bool, error) {
	return s.existing[d.GroupKey+"@"+d.TimeOfDay], nil
}

func (s *fakeStore) CountDraftsByKey(_ context.Context, _ pgx.Tx, key string) (int, error) {
	return s.perKey[key], nil
}

func (s *fakeStore) InsertDraft(_ context.Context, _ pgx.Tx, d *model.AppointmentDraft) (int64, error) {
	s.inserted = append(s.inserted, d)
	s.perKey[d.GroupKey]++
	return int64(len(s.inserted)), nil
}

func newFakeStore() *fakeStore {
	return &fakeStore{perKey: map[string]int{}, existing: map[string]bool{}}
}

func testClinicCatalog() stubCatalog {
	return stubCatalog{
		pets: map[int64]catalog.Pet{
			7: {ID: 7, Name: "Maja", OwnerID: 42},
			8: {ID: 8, Name: "Rex", OwnerID: 43},
		},
		categories: map[int64]catalog.Category{
			1: {ID: 1, Name: "checkup"},
			2: {ID: 2, Name: "vaccination", RequiresSubtype: true},
		},
	}
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func testCart(t *testing.T) *Cart {
	t.Helper()
	return &Cart{catalog: testClinicCatalog(), loc: testLocation(t)}
}

func testSaveCart(t *testing.T) (*Cart, *fakeStore, *fakeAdmitter) {
	t.Helper()
	fs := newFakeStore()
	fa := &fakeAdmitter{}
	c := &Cart{repo: fs, guard: fa, catalog: testClinicCatalog(), loc: testLocation(t)}
	return c, fs, fa
}

var owner42 = authz.Actor{UserID: "u-42", Role: authz.RoleOwner, OwnerID: 42}

func TestSaveAdmitsEverySlot(t *testing.T) {
	c, fs, fa := testSaveCart(t)
	items := []Item{
		{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05", GroupKey: "key-a"},
		{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "11:30", GroupKey: "key-b"},
	}

	ids, err := c.Save(context.Background(), owner42, items)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(ids) != 2 || len(fs.inserted) != 2 {
		t.Fatalf("inserted %d drafts, want 2", len(fs.inserted))
	}
	if len(fa.calls) != 2 {
		t.Fatalf("admission ran %d times, want once per item", len(fa.calls))
	}
	for i, call := range fa.calls {
		if got := call.at.Format("15:04"); got != items[i].TimeOfDay {
			t.Fatalf("admission %d at %s, want %s", i, got, items[i].TimeOfDay)
		}
		if call.key != items[i].GroupKey {
			t.Fatalf("admission %d excluded key %q, want the item's own %q", i, call.key, items[i].GroupKey)
		}
	}
	if !fs.tx.committed {
		t.Fatal("save transaction not committed")
	}
}

func TestSaveRejectsTakenSlot(t *testing.T) {
	c, fs, fa := testSaveCart(t)
	fa.reject = schederr.Conflict("slot 2026-09-14 10:05 is already booked")

	_, err := c.Save(context.Background(), owner42, []Item{
		{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05", GroupKey: "key-a"},
	})
	if !schederr.IsConflict(err) {
		t.Fatalf("got %v, want conflict", err)
	}
	if len(fs.inserted) != 0 {
		t.Fatal("draft staged despite an occupied slot")
	}
	if fs.tx.committed {
		t.Fatal("save transaction committed despite an occupied slot")
	}
}

func TestSaveRejectsFourthDraftOnKey(t *testing.T) {
	c, fs, _ := testSaveCart(t)
	fs.perKey["key-a"] = model.MaxDraftsPerGroup

	_, err := c.Save(context.Background(), owner42, []Item{
		{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05", GroupKey: "key-a"},
	})
	if !schederr.IsConflict(err) {
		t.Fatalf("got %v, want conflict at the per-key cap", err)
	}
	if len(fs.inserted) != 0 {
		t.Fatal("draft staged past the per-key cap")
	}
}

func TestSaveSkipsResubmittedDraft(t *testing.T) {
	c, fs, fa := testSaveCart(t)
	fs.existing["key-a@10:05"] = true

	ids, err := c.Save(context.Background(), owner42, []Item{
		{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05", GroupKey: "key-a"},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if len(ids) != 0 || len(fs.inserted) != 0 {
		t.Fatal("identical resubmit should be a no-op")
	}
	if len(fa.calls) != 0 {
		t.Fatal("already-staged draft should not be re-admitted")
	}
}

func TestSaveRejectsForeignPet(t *testing.T) {
	c, fs, _ := testSaveCart(t)

	_, err := c.Save(context.Background(), owner42, []Item{
		{PetID: 8, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05", GroupKey: "key-a"},
	})
	if !schederr.IsAuthorization(err) {
		t.Fatalf("got %v, want authorization error", err)
	}
	if len(fs.inserted) != 0 {
		t.Fatal("draft staged for a foreign pet")
	}
}

func TestValidateItem(t *testing.T) {
	c := testCart(t)
	ctx := context.Background()

	ok := Item{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05"}
	at, err := c.validateItem(ctx, 0, ok)
	if err != nil {
		t.Fatalf("valid item rejected: %v", err)
	}
	if at.Hour() != 10 || at.Minute() != 5 {
		t.Fatalf("combined timestamp = %v, want 10:05", at)
	}

	cases := []struct {
		name string
		item Item
	}{
		{"missing pet", Item{CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05"}},
		{"missing category", Item{PetID: 7, Date: "2026-09-14", TimeOfDay: "10:05"}},
		{"off-grid time", Item{PetID: 7, CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:07"}},
		{"subtype required", Item{PetID: 7, CategoryID: 2, Date: "2026-09-14", TimeOfDay: "10:05"}},
	}
	for _, tc := range cases {
		if _, err := c.validateItem(ctx, 3, tc.item); !schederr.IsValidation(err) {
			t.Fatalf("%s: got %v, want validation error", tc.name, err)
		}
	}
}

func TestValidateItemReportsIndex(t *testing.T) {
	c := testCart(t)
	_, err := c.validateItem(context.Background(), 2, Item{CategoryID: 1, Date: "2026-09-14", TimeOfDay: "10:05"})
	var ve *schederr.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("got %v, want ValidationError", err)
	}
	if ve.Index != 2 {
		t.Fatalf("Index = %d, want 2", ve.Index)
	}
}

func TestDedupeDrafts(t *testing.T) {
	sub := int64(9)
	drafts := []model.AppointmentDraft{
		{ID: 1, PetID: 7, CategoryID: 1},
		{ID: 2, PetID: 7, CategoryID: 1},           // identical, dropped
		{ID: 3, PetID: 7, CategoryID: 2},           // different category
		{ID: 4, PetID: 7, CategoryID: 2, SubtypeID: &sub}, // subtype distinguishes
		{ID: 5, PetID: 7, CategoryID: 2, SubtypeID: &sub}, // dup of 4, dropped
		{ID: 6, PetID: 8, CategoryID: 1},           // different pet
	}
	out := dedupeDrafts(drafts)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	want := []int64{1, 3, 4, 6}
	for i, d := range out {
		if d.ID != want[i] {
			t.Fatalf("out[%d].ID = %d, want %d", i, d.ID, want[i])
		}
	}
}

func TestDedupeDraftsEmpty(t *testing.T) {
	if out := dedupeDrafts(nil); out != nil {
		t.Fatalf("dedupe of nil = %v, want nil", out)
	}
}

func TestOptionalID(t *testing.T) {
	if optionalID(0) != nil {
		t.Fatal("optionalID(0) should be nil")
	}
	if p := optionalID(5); p == nil || *p != 5 {
		t.Fatalf("optionalID(5) = %v", p)
	}
}
