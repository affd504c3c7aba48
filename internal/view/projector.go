package view

import (
	"context"
	"sync"

	"finrecords/internal/core"
)

// Projector owns the table settings of one view and routes cell edits and
// row deletes to the record store.
type Projector struct {
	*Editor
	store Mutator

	mu     sync.Mutex
	params Params
}

func NewProjector(store Mutator) *Projector {
	return &Projector{Editor: NewEditor(store), store: store}
}

func (p *Projector) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params
}

func (p *Projector) SetParams(params Params) {
	p.mu.Lock()
	p.params = params
	p.mu.Unlock()
}

func (p *Projector) ToggleFilter() Params { return p.apply(Params.ToggleFilter) }

func (p *Projector) ClearFilter() Params { return p.apply(Params.ClearFilter) }

func (p *Projector) ToggleSort(col Column) Params {
	return p.apply(func(params Params) Params { return params.ToggleSort(col) })
}

// Rows projects records with the current settings.
func (p *Projector) Rows(records []core.FinancialRecord) []core.FinancialRecord {
	return Rows(records, p.Params())
}

// DeleteRow deletes the record behind a row and drops its pending edits.
func (p *Projector) DeleteRow(ctx context.Context, id string) (core.FinancialRecord, error) {
	rec, err := p.store.Delete(ctx, id)
	if err != nil {
		return core.FinancialRecord{}, err
	}
	p.Forget(id)
	return rec, nil
}

func (p *Projector) apply(fn func(Params) Params) Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.params = fn(p.params)
	return p.params
}
