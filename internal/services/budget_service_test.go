package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/go-budget-api/internal/apperr"
	"github.com/tbourn/go-budget-api/internal/domain"
	"github.com/tbourn/go-budget-api/internal/repo"
	"github.com/tbourn/go-budget-api/internal/validation"
)

func fields(t *testing.T, body string) validation.Fields {
	t.Helper()
	f, err := validation.DecodeBody([]byte(body))
	if err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return f
}

func asAppErr(t *testing.T, err error) *apperr.Error {
	t.Helper()
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected *apperr.Error, got %T (%v)", err, err)
	}
	return ae
}

func newSeeded() *BudgetService {
	return NewBudgetService(repo.NewMemoryBudgets(domain.SeedBudgets()...), repo.NewMemoryIdempotency(), time.Hour)
}

// failingRepo fails every call with err.
type failingRepo struct{ err error }

func (f failingRepo) ListBudgets(context.Context) ([]domain.Budget, error) { return nil, f.err }
func (f failingRepo) GetBudget(context.Context, int64) (*domain.Budget, error) {
	return nil, f.err
}
func (f failingRepo) CreateBudget(context.Context, domain.NewBudget) (*domain.Budget, error) {
	return nil, f.err
}
func (f failingRepo) UpdateBudget(context.Context, int64, domain.BudgetPatch) (*domain.Budget, error) {
	return nil, f.err
}
func (f failingRepo) DeleteBudget(context.Context, int64) error { return f.err }

// countingRepo records whether a write reached the store.
type countingRepo struct {
	*repo.MemoryBudgets
	updates int
}

func (c *countingRepo) UpdateBudget(ctx context.Context, id int64, p domain.BudgetPatch) (*domain.Budget, error) {
	c.updates++
	return c.MemoryBudgets.UpdateBudget(ctx, id, p)
}

func TestNewBudgetService_DefaultTTL(t *testing.T) {
	svc := NewBudgetService(repo.NewMemoryBudgets(), nil, 0)
	if svc.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("TTL = %v; want 24h", svc.IdempotencyTTL)
	}
}

func TestList_AllAndFiltered(t *testing.T) {
	svc := newSeeded()
	ctx := context.Background()

	all, err := svc.List(ctx, ListFilter{})
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %v, %v", all, err)
	}
	if all[0].ID != 1 || all[1].ID != 2 {
		t.Fatalf("unexpected order: %+v", all)
	}

	byName, err := svc.List(ctx, ListFilter{Name: "month*"})
	if err != nil || len(byName) != 1 || byName[0].Name != "Monthly Budget" {
		t.Fatalf("name filter: %+v, %v", byName, err)
	}

	byCat, _ := svc.List(ctx, ListFilter{Category: "FOOD"})
	if len(byCat) != 1 || byCat[0].Name != "Groceries" {
		t.Fatalf("category filter: %+v", byCat)
	}

	none, _ := svc.List(ctx, ListFilter{Name: "*budget", Category: "food"})
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}

func TestGet(t *testing.T) {
	svc := newSeeded()
	ctx := context.Background()

	b, err := svc.Get(ctx, "2")
	if err != nil || b.Name != "Groceries" {
		t.Fatalf("get: %+v, %v", b, err)
	}

	ae := asAppErr(t, func() error { _, err := svc.Get(ctx, "99"); return err }())
	if ae.Kind != apperr.KindNotFound || ae.Message != "Budget with ID 99 not found" {
		t.Fatalf("missing id: %+v", ae)
	}

	ae = asAppErr(t, func() error { _, err := svc.Get(ctx, "abc"); return err }())
	if ae.Kind != apperr.KindValidation || ae.Message != validation.MsgIDNotNumber {
		t.Fatalf("bad id: %+v", ae)
	}
}

func TestCreate_ValidatesAndInserts(t *testing.T) {
	svc := newSeeded()
	ctx := context.Background()

	b, err := svc.Create(ctx, fields(t, `{"name":"Travel","amount":250.5,"category":"leisure"}`), "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID != 3 || !b.Amount.Equal(decimal.RequireFromString("250.5")) {
		t.Fatalf("unexpected budget: %+v", b)
	}

	cases := []struct {
		body string
		msg  string
	}{
		{`{}`, validation.MsgMissingFields},
		{`{"name":"Travel2","amount":-1,"category":"x"}`, validation.MsgAmountPositive},
		{`{"name":"ab","amount":1,"category":"x"}`, validation.MsgNameTooShort},
		{`{"name":"monthly budget","amount":1,"category":"x"}`, validation.MsgNameExists},
	}
	for _, tc := range cases {
		_, err := svc.Create(ctx, fields(t, tc.body), "")
		ae := asAppErr(t, err)
		if ae.Kind != apperr.KindValidation || ae.Message != tc.msg {
			t.Errorf("%s: got %+v; want validation %q", tc.body, ae, tc.msg)
		}
	}

	all, _ := svc.List(ctx, ListFilter{})
	if len(all) != 3 {
		t.Fatalf("rejected creates must not insert, have %d budgets", len(all))
	}
}

func TestCreate_RecordsAndReplays(t *testing.T) {
	svc := newSeeded()
	ctx := context.Background()

	if _, err := svc.Replay(ctx, "k1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before create, got %v", err)
	}

	b, err := svc.Create(ctx, fields(t, `{"name":"Travel","amount":300,"category":"leisure"}`), "k1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	rec, err := svc.Idem.GetIdempotency(ctx, "k1", time.Now().UTC())
	if err != nil || rec.Status != http.StatusCreated || rec.BudgetID != b.ID {
		t.Fatalf("record: %+v, %v", rec, err)
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(rec.Body), &snap); err != nil || snap["name"] != "Travel" {
		t.Fatalf("record body: %s, %v", rec.Body, err)
	}

	got, err := svc.Replay(ctx, "k1")
	if err != nil || got.ID != b.ID || got.Name != "Travel" || !got.Amount.Equal(b.Amount) {
		t.Fatalf("replay: %+v, %v", got, err)
	}
}

func TestReplay_NoStore(t *testing.T) {
	svc := NewBudgetService(repo.NewMemoryBudgets(), nil, time.Hour)
	if _, err := svc.Replay(context.Background(), "k"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// a key without a store is ignored
	if _, err := svc.Create(context.Background(), fields(t, `{"name":"Rent","amount":1,"category":"x"}`), "k"); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestUpdate_Ordering(t *testing.T) {
	ctx := context.Background()
	store := &countingRepo{MemoryBudgets: repo.NewMemoryBudgets(domain.SeedBudgets()...)}
	svc := NewBudgetService(store, nil, time.Hour)

	// invalid id wins over a bad body
	ae := asAppErr(t, func() error { _, err := svc.Update(ctx, "x1", fields(t, `{"amount":-5}`)); return err }())
	if ae.Kind != apperr.KindValidation || ae.Message != validation.MsgIDNotNumber {
		t.Fatalf("bad id: %+v", ae)
	}

	// missing budget wins over a bad body
	ae = asAppErr(t, func() error { _, err := svc.Update(ctx, "42", fields(t, `{"amount":-5}`)); return err }())
	if ae.Kind != apperr.KindNotFound {
		t.Fatalf("missing: %+v", ae)
	}

	ae = asAppErr(t, func() error { _, err := svc.Update(ctx, "1", fields(t, `{"amount":0}`)); return err }())
	if ae.Message != validation.MsgAmountPositive {
		t.Fatalf("amount: %+v", ae)
	}
	ae = asAppErr(t, func() error { _, err := svc.Update(ctx, "1", fields(t, `{"name":7}`)); return err }())
	if ae.Message != validation.MsgNameNotString {
		t.Fatalf("name type: %+v", ae)
	}
	if store.updates != 0 {
		t.Fatalf("rejected updates reached the store %d times", store.updates)
	}

	b, err := svc.Update(ctx, "1", fields(t, `{"amount":6000,"name":null}`))
	if err != nil || b.Name != "Monthly Budget" || !b.Amount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("update: %+v, %v", b, err)
	}
}

func TestUpdate_DuplicateNameIsUniqueViolation(t *testing.T) {
	svc := newSeeded()
	_, err := svc.Update(context.Background(), "2", fields(t, `{"name":"MONTHLY BUDGET"}`))
	ae := asAppErr(t, err)
	if ae.Kind != apperr.KindDatabase || ae.Code != apperr.CodeUniqueViolation {
		t.Fatalf("expected database error with unique code, got %+v", ae)
	}
}

func TestDelete(t *testing.T) {
	svc := newSeeded()
	ctx := context.Background()

	if err := svc.Delete(ctx, "1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ae := asAppErr(t, svc.Delete(ctx, "1"))
	if ae.Kind != apperr.KindNotFound || ae.Message != "Budget with ID 1 not found" {
		t.Fatalf("second delete: %+v", ae)
	}
	ae = asAppErr(t, svc.Delete(ctx, "1.5"))
	if ae.Kind != apperr.KindNotFound {
		t.Fatalf("fractional id: %+v", ae)
	}
}

func TestStoreFailures(t *testing.T) {
	boom := errors.New("disk I/O error")
	svc := NewBudgetService(failingRepo{err: boom}, nil, time.Hour)
	ctx := context.Background()

	_, err := svc.List(ctx, ListFilter{})
	ae := asAppErr(t, err)
	if ae.Kind != apperr.KindDatabase || !errors.Is(err, boom) {
		t.Fatalf("list: %+v", ae)
	}

	_, err = svc.Get(ctx, "1")
	if ae = asAppErr(t, err); ae.Kind != apperr.KindDatabase {
		t.Fatalf("get: %+v", ae)
	}

	canceled := NewBudgetService(failingRepo{err: context.Canceled}, nil, time.Hour)
	_, err = canceled.List(ctx, ListFilter{})
	if ae = asAppErr(t, err); ae.Kind != apperr.KindUnclassified {
		t.Fatalf("canceled: %+v", ae)
	}
}
