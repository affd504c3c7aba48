package records

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/remote/memory"
)

// fakeRemote wraps the memory store with failure injection and an optional
// hook that runs before each update response is returned.
type fakeRemote struct {
	*memory.Store

	mu          sync.Mutex
	fail        error
	calls       int
	beforeReply func(id string, p core.Patch)
	deleteReply *core.FinancialRecord
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{Store: memory.New()}
}

func (f *fakeRemote) failWith(err error) {
	f.mu.Lock()
	f.fail = err
	f.mu.Unlock()
}

func (f *fakeRemote) enter() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.fail
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeRemote) FetchByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	return f.Store.FetchByOwner(ctx, userID)
}

func (f *fakeRemote) Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error) {
	if err := f.enter(); err != nil {
		return core.FinancialRecord{}, err
	}
	return f.Store.Create(ctx, d)
}

func (f *fakeRemote) Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error) {
	if err := f.enter(); err != nil {
		return core.FinancialRecord{}, err
	}
	rec, err := f.Store.Update(ctx, id, p)
	if err != nil {
		return rec, err
	}
	if f.beforeReply != nil {
		f.beforeReply(id, p)
		// Reply with the state this call produced, not the latest one.
		return p.Apply(rec), nil
	}
	return rec, nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) (core.FinancialRecord, error) {
	if err := f.enter(); err != nil {
		return core.FinancialRecord{}, err
	}
	if f.deleteReply != nil {
		return *f.deleteReply, nil
	}
	return f.Store.Delete(ctx, id)
}

func draft(user, desc string, cents int64, t core.RecordType) core.Draft {
	return core.Draft{
		UserID:        user,
		Date:          core.NewDate(2025, 1, 15),
		Description:   desc,
		Amount:        core.Money{Cents: cents},
		Category:      core.Food,
		PaymentMethod: core.Cash,
		Type:          t,
	}
}

func newStore(t *testing.T) (*Store, *fakeRemote) {
	t.Helper()
	rs := newFakeRemote()
	return New(rs, log.Discard()), rs
}

func TestLoadReplacesCollection(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	rs.Seed(
		draft("u1", "a", 100, core.Income).Record(""),
		draft("u2", "b", 200, core.Expense).Record(""),
		draft("u1", "c", 300, core.Expense).Record(""),
	)

	if err := s.Load(ctx, "u1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	got := s.Records()
	if len(got) != 2 || got[0].Description != "a" || got[1].Description != "c" {
		t.Fatalf("unexpected records: %+v", got)
	}
	if s.UserID() != "u1" {
		t.Fatalf("expected active user u1, got %q", s.UserID())
	}

	if err := s.Load(ctx, "u2"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Records(); len(got) != 1 || got[0].UserID != "u2" {
		t.Fatalf("expected u2 records only, got %+v", got)
	}

	if err := s.Load(ctx, "nobody"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := s.Records(); len(got) != 0 {
		t.Fatalf("expected empty collection, got %+v", got)
	}
}

func TestLoadEmptyUserClearsWithoutRemoteCall(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	rs.Seed(draft("u1", "a", 100, core.Income).Record(""))
	if err := s.Load(ctx, "u1"); err != nil {
		t.Fatalf("load: %v", err)
	}
	calls := rs.callCount()

	if err := s.Load(ctx, ""); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(s.Records()) != 0 || s.UserID() != "" {
		t.Fatalf("expected cleared store")
	}
	if rs.callCount() != calls {
		t.Fatalf("clearing must not contact the remote store")
	}
}

func TestCreateUpdateDeleteSequence(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	if err := s.Load(ctx, "u1"); err != nil {
		t.Fatalf("load: %v", err)
	}

	rec, err := s.Create(ctx, draft("u1", "lunch", 1200, core.Expense))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got := s.Records()
	if len(got) != 1 || got[0] != rec || rec.ID == "" {
		t.Fatalf("created record not cached: %+v", got)
	}

	amount := core.Money{Cents: 1500}
	updated, err := s.Update(ctx, rec.ID, core.Patch{Amount: &amount})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got = s.Records()
	if len(got) != 1 || got[0].Amount.Cents != 1500 || got[0].Description != "lunch" || got[0] != updated {
		t.Fatalf("update not merged: %+v", got)
	}

	if _, err := s.Delete(ctx, rec.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := s.Records(); len(got) != 0 {
		t.Fatalf("expected empty collection, got %+v", got)
	}
}

func TestUpdateKeepsCachedIdentity(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	_ = s.Load(ctx, "u1")
	rec, _ := s.Create(ctx, draft("u1", "a", 100, core.Income))

	// The remote answers with a different owner; the cached owner is kept.
	rs.beforeReply = func(string, core.Patch) {}
	other := rec
	other.UserID = "intruder"
	rs.Seed(other)

	desc := "b"
	if _, err := s.Update(ctx, rec.ID, core.Patch{Description: &desc}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := s.Records()[0]
	if got.UserID != "u1" || got.ID != rec.ID || got.Description != "b" {
		t.Fatalf("identity not preserved: %+v", got)
	}
}

func TestDeleteOfUncachedIDIsNoOp(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	_ = s.Load(ctx, "u1")
	keep, _ := s.Create(ctx, draft("u1", "keep", 100, core.Income))

	ghost := draft("u1", "ghost", 1, core.Income).Record("ghost")
	rs.deleteReply = &ghost

	var notified int
	cancel := s.Subscribe(func(Snapshot) { notified++ })
	defer cancel()

	if _, err := s.Delete(ctx, "ghost"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := s.Records(); len(got) != 1 || got[0] != keep {
		t.Fatalf("collection changed: %+v", got)
	}
	if notified != 0 {
		t.Fatalf("no-op delete notified %d times", notified)
	}
}

func TestFailuresLeaveCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	_ = s.Load(ctx, "u1")
	rec, _ := s.Create(ctx, draft("u1", "a", 100, core.Income))
	before := s.Records()

	var notified int
	cancel := s.Subscribe(func(Snapshot) { notified++ })
	defer cancel()

	rs.failWith(fmt.Errorf("%w: connection refused", core.ErrNetwork))
	desc := "b"

	if err := s.Load(ctx, "u1"); !core.IsNetwork(err) {
		t.Fatalf("load: expected network error, got %v", err)
	}
	if _, err := s.Create(ctx, draft("u1", "new", 1, core.Income)); !core.IsNetwork(err) {
		t.Fatalf("create: expected network error, got %v", err)
	}
	if _, err := s.Update(ctx, rec.ID, core.Patch{Description: &desc}); !core.IsNetwork(err) {
		t.Fatalf("update: expected network error, got %v", err)
	}
	if _, err := s.Delete(ctx, rec.ID); !core.IsNetwork(err) {
		t.Fatalf("delete: expected network error, got %v", err)
	}

	after := s.Records()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatalf("collection changed after failures: %+v", after)
	}
	if notified != 0 {
		t.Fatalf("failed operations notified %d times", notified)
	}
	if s.UserID() != "u1" {
		t.Fatalf("active user changed after failed load")
	}
}

func TestUpdateNotFoundIsReported(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_ = s.Load(ctx, "u1")
	desc := "x"
	if _, err := s.Update(ctx, "missing", core.Patch{Description: &desc}); !core.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateRejectsInvalidDraftLocally(t *testing.T) {
	s, rs := newStore(t)
	if _, err := s.Create(context.Background(), draft("u1", "a", -5, core.Income)); !core.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if rs.callCount() != 0 {
		t.Fatalf("invalid draft reached the remote store")
	}
}

func TestCreateForOtherUserIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_ = s.Load(ctx, "u1")
	if _, err := s.Create(ctx, draft("u2", "a", 1, core.Income)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(s.Records()) != 0 {
		t.Fatalf("foreign record cached")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	var snaps []Snapshot
	cancel := s.Subscribe(func(snap Snapshot) { snaps = append(snaps, snap) })

	_ = s.Load(ctx, "u1")
	rec, _ := s.Create(ctx, draft("u1", "a", 100, core.Income))
	_, _ = s.Delete(ctx, rec.ID)

	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	for i, snap := range snaps {
		if snap.Seq != uint64(i+1) || snap.UserID != "u1" {
			t.Fatalf("snapshot %d: unexpected %+v", i, snap)
		}
	}
	if len(snaps[1].Records) != 1 || len(snaps[2].Records) != 0 {
		t.Fatalf("unexpected snapshot contents: %+v", snaps)
	}

	// Mutating a snapshot must not reach the store.
	snaps[1].Records[0].Description = "tampered"

	cancel()
	cancel()
	_, _ = s.Create(ctx, draft("u1", "b", 1, core.Income))
	if len(snaps) != 3 {
		t.Fatalf("cancelled listener still notified")
	}
	for _, r := range s.Records() {
		if r.Description == "tampered" {
			t.Fatalf("snapshot aliases the store")
		}
	}
}

func TestRecordsReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_ = s.Load(ctx, "u1")
	_, _ = s.Create(ctx, draft("u1", "a", 100, core.Income))

	got := s.Records()
	got[0].Amount.Cents = 1
	if s.Records()[0].Amount.Cents != 100 {
		t.Fatalf("Records exposed internal state")
	}
}

func TestConcurrentUpdatesLastResponseWins(t *testing.T) {
	ctx := context.Background()
	s, rs := newStore(t)
	_ = s.Load(ctx, "u1")
	rec, _ := s.Create(ctx, draft("u1", "start", 100, core.Income))

	first, second := "first", "second"
	firstDispatched := make(chan struct{})
	releaseFirst := make(chan struct{})
	rs.beforeReply = func(_ string, p core.Patch) {
		if *p.Description == first {
			close(firstDispatched)
			<-releaseFirst
		}
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, rec.ID, core.Patch{Description: &first})
		done <- err
	}()
	<-firstDispatched

	// The second update is dispatched later but answered first.
	if _, err := s.Update(ctx, rec.ID, core.Patch{Description: &second}); err != nil {
		t.Fatalf("second update: %v", err)
	}
	if got := s.Records()[0].Description; got != second {
		t.Fatalf("expected %q after second response, got %q", second, got)
	}

	close(releaseFirst)
	if err := <-done; err != nil {
		t.Fatalf("first update: %v", err)
	}
	if got := s.Records()[0].Description; got != first {
		t.Fatalf("expected last response %q to win, got %q", first, got)
	}
}

func TestConcurrentCreatesAllApplied(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)
	_ = s.Load(ctx, "u1")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Create(ctx, draft("u1", fmt.Sprint(i), int64(i), core.Expense)); err != nil {
				t.Errorf("create %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got := s.Records()
	if len(got) != 20 {
		t.Fatalf("expected 20 records, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, r := range got {
		if seen[r.ID] {
			t.Fatalf("duplicate id %s", r.ID)
		}
		seen[r.ID] = true
	}
	if s.Snapshot().Seq != 21 {
		t.Fatalf("expected seq 21, got %d", s.Snapshot().Seq)
	}
}
