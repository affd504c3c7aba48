// Package memory is an in-process document store for records, used by
// tests, the CLI demo mode and the server's memory backend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"finrecords/internal/core"
)

type Store struct {
	mu    sync.Mutex
	order []string
	items map[string]core.FinancialRecord
	newID func() string
}

func New() *Store {
	return &Store{
		items: make(map[string]core.FinancialRecord),
		newID: func() string { return uuid.NewString() },
	}
}

// Seed inserts records as-is, assigning ids to those that have none.
func (s *Store) Seed(records ...core.FinancialRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			r.ID = s.newID()
		}
		if _, ok := s.items[r.ID]; !ok {
			s.order = append(s.order, r.ID)
		}
		s.items[r.ID] = r
	}
}

// FetchByOwner returns the user's records in insertion order.
func (s *Store) FetchByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.FinancialRecord, 0)
	for _, id := range s.order {
		if r := s.items[id]; r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	if err := d.Validate(); err != nil {
		return core.FinancialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := d.Record(s.newID())
	s.order = append(s.order, r.ID)
	s.items[r.ID] = r
	return r, nil
}

func (s *Store) Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	if err := p.Validate(); err != nil {
		return core.FinancialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.FinancialRecord{}, fmt.Errorf("update %s: %w", id, core.ErrNotFound)
	}
	r = p.Apply(r)
	s.items[id] = r
	return r, nil
}

func (s *Store) Delete(ctx context.Context, id string) (core.FinancialRecord, error) {
	if err := ctx.Err(); err != nil {
		return core.FinancialRecord{}, fmt.Errorf("%w: %v", core.ErrNetwork, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.FinancialRecord{}, fmt.Errorf("delete %s: %w", id, core.ErrNotFound)
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return r, nil
}

// Get returns a single record by id.
func (s *Store) Get(_ context.Context, id string) (core.FinancialRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.items[id]
	if !ok {
		return core.FinancialRecord{}, fmt.Errorf("get %s: %w", id, core.ErrNotFound)
	}
	return r, nil
}

// Len reports how many records are stored across all users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Ping reports whether the store can serve requests.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}
