package memory

import (
	"context"
	"fmt"
	"sync"

	"finrecords/internal/core"
	"finrecords/internal/sheets"
)

var _ sheets.RecordMirror = (*Store)(nil)

// Row is a mirrored record with the version it was written at.
type Row struct {
	Record  core.FinancialRecord
	Version int64
}

// Store is an in-process mirror used when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	order []string
	rows  map[string]Row
}

func New() *Store {
	return &Store{rows: map[string]Row{}}
}

// Upsert stores the record and returns a synthetic row reference.
func (s *Store) Upsert(ctx context.Context, r core.FinancialRecord, version int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if r.ID == "" {
		return "", fmt.Errorf("%w: mirrored record without id", core.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[r.ID]; !ok {
		s.order = append(s.order, r.ID)
	}
	s.rows[r.ID] = Row{Record: r, Version: version}
	return fmt.Sprintf("mem:%d", s.indexLocked(r.ID)+1), nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return nil
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.rows, id)
	return nil
}

// Get returns the mirrored row for id.
func (s *Store) Get(id string) (Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return row, ok
}

// Rows returns the mirrored rows in first-write order.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.rows[id])
	}
	return out
}

func (s *Store) indexLocked(id string) int {
	for i, v := range s.order {
		if v == id {
			return i
		}
	}
	return -1
}
