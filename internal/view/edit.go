package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finrecords/internal/core"
)

// Mutator is the part of the record store the table writes through.
type Mutator interface {
	Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error)
	Delete(ctx context.Context, id string) (core.FinancialRecord, error)
}

type State int

const (
	Viewing State = iota
	Editing
)

func (s State) String() string {
	if s == Editing {
		return "editing"
	}
	return "viewing"
}

// Cell identifies one editable value in the table.
type Cell struct {
	RecordID string
	Column   Column
}

var (
	ErrNotEditable = fmt.Errorf("%w: column is not editable", core.ErrValidation)
	ErrNotEditing  = fmt.Errorf("%w: cell is not being edited", core.ErrValidation)
)

// Editor tracks which cells are being edited and their buffers. Cells are
// independent of each other; each one is either Viewing or Editing.
type Editor struct {
	store Mutator

	mu      sync.Mutex
	buffers map[Cell]string
}

func NewEditor(store Mutator) *Editor {
	return &Editor{store: store, buffers: make(map[Cell]string)}
}

// Activate puts the cell of r in column col into the editing state with
// the raw cached value as its buffer. Activating a cell that is already
// being edited keeps its buffer.
func (e *Editor) Activate(r core.FinancialRecord, col Column) (Cell, error) {
	if !col.Editable() {
		return Cell{}, ErrNotEditable
	}
	c := Cell{RecordID: r.ID, Column: col}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[c]; !ok {
		e.buffers[c] = Raw(r, col)
	}
	return c, nil
}

func (e *Editor) State(c Cell) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[c]; ok {
		return Editing
	}
	return Viewing
}

// Buffer returns the pending value of a cell being edited.
func (e *Editor) Buffer(c Cell) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.buffers[c]
	return v, ok
}

// Set replaces the buffer of a cell being edited.
func (e *Editor) Set(c Cell, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.buffers[c]; !ok {
		return ErrNotEditing
	}
	e.buffers[c] = value
	return nil
}

// Cancel discards the buffer and returns the cell to viewing.
func (e *Editor) Cancel(c Cell) {
	e.mu.Lock()
	delete(e.buffers, c)
	e.mu.Unlock()
}

// Commit parses the buffer and sends it as a single-field update. A value
// that does not parse is a validation error: nothing is sent and the cell
// stays in editing. Otherwise the cell returns to viewing whatever the
// outcome of the update.
func (e *Editor) Commit(ctx context.Context, c Cell) (core.FinancialRecord, error) {
	e.mu.Lock()
	value, ok := e.buffers[c]
	e.mu.Unlock()
	if !ok {
		return core.FinancialRecord{}, ErrNotEditing
	}

	patch, err := PatchFor(c.Column, value)
	if err != nil {
		return core.FinancialRecord{}, err
	}

	e.Cancel(c)
	return e.store.Update(ctx, c.RecordID, patch)
}

// Editing lists the cells currently being edited.
func (e *Editor) Editing() []Cell {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Cell, 0, len(e.buffers))
	for c := range e.buffers {
		out = append(out, c)
	}
	return out
}

// Forget drops every edit of the given record, e.g. once it is deleted.
func (e *Editor) Forget(recordID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for c := range e.buffers {
		if c.RecordID == recordID {
			delete(e.buffers, c)
		}
	}
}

// PatchFor parses value as the new content of col.
func PatchFor(col Column, value string) (core.Patch, error) {
	var p core.Patch
	switch col {
	case ColumnDate:
		d, err := core.ParseDate(value)
		if err != nil {
			return p, err
		}
		p.Date = &d
	case ColumnDescription:
		s := strings.TrimSpace(value)
		p.Description = &s
	case ColumnType:
		t, err := core.ParseRecordType(value)
		if err != nil {
			return p, err
		}
		p.Type = &t
	case ColumnAmount:
		m, err := core.ParseMoney(value)
		if err != nil {
			return p, err
		}
		p.Amount = &m
	case ColumnCategory:
		c, err := core.ParseCategory(value)
		if err != nil {
			return p, err
		}
		p.Category = &c
	case ColumnPaymentMethod:
		m, err := core.ParsePaymentMethod(value)
		if err != nil {
			return p, err
		}
		p.PaymentMethod = &m
	default:
		return p, ErrNotEditable
	}
	return p, nil
}
