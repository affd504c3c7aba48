package dashboard

import (
	"context"
	"testing"
	"time"

	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/records"
	"finrecords/internal/remote/memory"
	"finrecords/internal/view"
)

func fixedClock() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }

func draft(y, m, d int, t core.RecordType, cents int64) core.Draft {
	return core.Draft{
		UserID:        "u1",
		Date:          core.NewDate(y, m, d),
		Description:   "x",
		Amount:        core.Money{Cents: cents},
		Category:      core.Salary,
		PaymentMethod: core.BankTransfer,
		Type:          t,
	}
}

func TestDashboardFollowsStore(t *testing.T) {
	ctx := context.Background()
	store := records.New(memory.New(), log.Discard())
	projector := view.NewProjector(store)

	var updates int
	d := New(store, projector, log.Discard(),
		WithClock(fixedClock),
		WithOnUpdate(func(View) { updates++ }))
	defer d.Close()

	if v := d.Current(); len(v.Rows) != 0 || len(v.Trend.Buckets) != 0 {
		t.Fatalf("expected empty initial view, got %+v", v)
	}

	if err := store.Load(ctx, "u1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := store.Create(ctx, draft(2025, 1, 10, core.Income, 100000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Create(ctx, draft(2025, 1, 20, core.Expense, 40000)); err != nil {
		t.Fatalf("create: %v", err)
	}
	feb, err := store.Create(ctx, draft(2025, 2, 3, core.Income, 50000))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	v := d.Current()
	if v.UserID != "u1" || len(v.Rows) != 3 || len(v.Trend.Buckets) != 2 {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Trend.TotalIncome.Cents != 150000 || v.Trend.TotalExpenses.Cents != 40000 || v.Trend.NetFlow != 110000 {
		t.Fatalf("unexpected totals: %+v", v.Trend)
	}
	if len(v.Breakdown.Income) != 1 || v.Breakdown.Income[0].Amount.Cents != 150000 {
		t.Fatalf("unexpected breakdown: %+v", v.Breakdown)
	}

	if _, err := store.Delete(ctx, feb.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if v := d.Current(); len(v.Trend.Buckets) != 1 || v.Trend.NetFlow != 60000 {
		t.Fatalf("delete not reflected: %+v", v.Trend)
	}
	// initial compute, load, three creates, one delete
	if updates != 6 {
		t.Fatalf("expected 6 updates, got %d", updates)
	}
}

func TestDashboardRefreshAppliesParams(t *testing.T) {
	ctx := context.Background()
	store := records.New(memory.New(), log.Discard())
	_ = store.Load(ctx, "u1")
	_, _ = store.Create(ctx, draft(2025, 1, 10, core.Income, 100))
	_, _ = store.Create(ctx, draft(2025, 1, 11, core.Expense, 200))

	projector := view.NewProjector(store)
	d := New(store, projector, nil, WithClock(fixedClock))
	defer d.Close()

	projector.ToggleFilter()
	projector.ToggleFilter()
	v := d.Refresh()
	if len(v.Rows) != 1 || v.Rows[0].Type != core.Expense || v.Params.Filter != view.FilterExpense {
		t.Fatalf("unexpected rows: %+v", v.Rows)
	}
	// Aggregates ignore the table filter.
	if v.Trend.TotalIncome.Cents != 100 {
		t.Fatalf("trend should cover all records: %+v", v.Trend)
	}
}

func TestDashboardStopsAfterClose(t *testing.T) {
	ctx := context.Background()
	store := records.New(memory.New(), log.Discard())
	d := New(store, view.NewProjector(store), nil, WithClock(fixedClock))
	d.Close()

	_ = store.Load(ctx, "u1")
	_, _ = store.Create(ctx, draft(2025, 1, 10, core.Income, 100))
	if v := d.Current(); v.Seq != 0 || len(v.Rows) != 0 {
		t.Fatalf("closed dashboard still updated: %+v", v)
	}
}
