// Package records holds the client-side working copy of one user's
// financial records and keeps it in step with the remote document store.
//
// Every mutation is confirmed by the remote store before it touches the
// collection; nothing is applied optimistically. Calls are not serialized
// against each other: the remote call runs without holding the store lock,
// so two concurrent updates of the same record resolve in favour of the
// response that arrives last.
package records

import (
	"context"
	"fmt"
	"sync"

	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/remote"
)

// Snapshot is a copy of the collection taken right after a mutation was
// applied. Seq grows by one with every applied mutation.
type Snapshot struct {
	UserID  string
	Records []core.FinancialRecord
	Seq     uint64
}

type Listener func(Snapshot)

type subscription struct {
	id int
	fn Listener
}

type Store struct {
	remote remote.RecordSync
	logger *log.Logger

	mu      sync.Mutex
	userID  string
	records []core.FinancialRecord
	seq     uint64

	// Update dispatch bookkeeping, used to detect responses that arrive
	// after a later update of the same record was already applied.
	dispatched uint64
	applied    map[string]uint64

	listenersMu  sync.Mutex
	listeners    []subscription
	nextListener int

	// Held while listeners run so snapshots are delivered in apply order.
	notifyMu sync.Mutex
}

func New(rs remote.RecordSync, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		remote:  rs,
		logger:  logger.WithComponent(log.ComponentRecords),
		applied: make(map[string]uint64),
	}
}

// Subscribe registers fn to be called after every applied mutation. Calls
// happen on the goroutine that performed the mutation; fn may read the
// store but must not mutate it synchronously. The returned func removes fn.
func (s *Store) Subscribe(fn Listener) (cancel func()) {
	s.listenersMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.listenersMu.Lock()
			defer s.listenersMu.Unlock()
			for i, sub := range s.listeners {
				if sub.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Records returns a copy of the collection.
func (s *Store) Records() []core.FinancialRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRecords(s.records)
}

// UserID returns the active user, empty when none is loaded.
func (s *Store) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Snapshot returns the current state without waiting for a mutation.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Load replaces the collection with every record owned by userID. An empty
// userID clears the collection without contacting the remote store. On
// failure the collection is left as it was.
func (s *Store) Load(ctx context.Context, userID string) error {
	if userID == "" {
		s.mu.Lock()
		s.userID = ""
		s.records = nil
		s.applied = make(map[string]uint64)
		s.commitLocked()
		return nil
	}

	fetched, err := s.remote.FetchByOwner(ctx, userID)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load records", err, log.OpLoad, log.NewFields().WithUser(userID))
		return fmt.Errorf("load records of %s: %w", userID, err)
	}

	s.mu.Lock()
	s.userID = userID
	s.records = copyRecords(fetched)
	s.applied = make(map[string]uint64)
	s.logger.InfoContext(ctx, "Records loaded",
		log.FieldUserID, userID,
		log.FieldCount, len(fetched))
	s.commitLocked()
	return nil
}

// Create sends the draft to the remote store and appends the record the
// store returns. A record owned by someone other than the active user is
// not appended.
func (s *Store) Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error) {
	if err := d.Validate(); err != nil {
		return core.FinancialRecord{}, err
	}
	rec, err := s.remote.Create(ctx, d)
	if err != nil {
		s.logger.LogError(ctx, "Failed to create record", err, log.OpCreate, log.NewFields().WithUser(d.UserID))
		return core.FinancialRecord{}, fmt.Errorf("create record: %w", err)
	}

	s.mu.Lock()
	if active := s.userID; active != "" && active != rec.UserID {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Created record belongs to another user, not cached",
			log.FieldRecordID, rec.ID,
			log.FieldUserID, rec.UserID,
			"active_user_id", active)
		return rec, nil
	}
	s.records = append(s.records, rec)
	s.logger.LogRecordChange(ctx, log.OpCreate, rec, s.seq+1)
	s.commitLocked()
	return rec, nil
}

// Update sends the patch and merges the returned record into the cached
// record with the same id. ID and UserID of the cached record never change.
// If no cached record matches, the collection is untouched.
func (s *Store) Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error) {
	s.mu.Lock()
	s.dispatched++
	dispatch := s.dispatched
	s.mu.Unlock()

	rec, err := s.remote.Update(ctx, id, p)
	if err != nil {
		s.logger.LogError(ctx, "Failed to update record", err, log.OpUpdate,
			log.NewFields().WithRecordID(id).WithUser(s.UserID()))
		return core.FinancialRecord{}, fmt.Errorf("update record %s: %w", id, err)
	}

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Updated record not cached", log.FieldRecordID, id)
		return rec, nil
	}
	if last := s.applied[id]; last > dispatch {
		s.logger.WarnContext(ctx, "Stale update response applied over a newer one",
			log.FieldRecordID, id,
			log.FieldVersion, dispatch,
			"newer_version", last)
	} else {
		s.applied[id] = dispatch
	}
	merged := core.PatchFrom(rec).Apply(s.records[idx])
	s.records[idx] = merged
	s.logger.LogRecordChange(ctx, log.OpUpdate, merged, s.seq+1)
	s.commitLocked()
	return merged, nil
}

// Delete removes the record the remote store reports as deleted. A response
// naming a record that is not cached is a no-op.
func (s *Store) Delete(ctx context.Context, id string) (core.FinancialRecord, error) {
	rec, err := s.remote.Delete(ctx, id)
	if err != nil {
		s.logger.LogError(ctx, "Failed to delete record", err, log.OpDelete,
			log.NewFields().WithRecordID(id).WithUser(s.UserID()))
		return core.FinancialRecord{}, fmt.Errorf("delete record %s: %w", id, err)
	}

	s.mu.Lock()
	idx := s.indexLocked(rec.ID)
	if idx < 0 {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Deleted record not cached", log.FieldRecordID, rec.ID)
		return rec, nil
	}
	s.records = append(s.records[:idx:idx], s.records[idx+1:]...)
	delete(s.applied, rec.ID)
	s.logger.LogRecordChange(ctx, log.OpDelete, rec, s.seq+1)
	s.commitLocked()
	return rec, nil
}

func (s *Store) indexLocked(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{UserID: s.userID, Records: copyRecords(s.records), Seq: s.seq}
}

// commitLocked bumps the sequence, releases s.mu and notifies listeners.
// It must be called with s.mu held.
func (s *Store) commitLocked() {
	s.seq++
	snap := s.snapshotLocked()
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.listenersMu.Lock()
	subs := s.listeners
	s.listenersMu.Unlock()

	for _, sub := range subs {
		sub.fn(Snapshot{UserID: snap.UserID, Records: copyRecords(snap.Records), Seq: snap.Seq})
	}
}

func copyRecords(in []core.FinancialRecord) []core.FinancialRecord {
	out := make([]core.FinancialRecord, len(in))
	copy(out, in)
	return out
}
