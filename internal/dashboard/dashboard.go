// Package dashboard keeps the derived views of the record store current:
// the monthly trend, the category breakdown and the table rows are
// recomputed from scratch after every applied mutation.
package dashboard

import (
	"sync"
	"time"

	"finrecords/internal/aggregate"
	"finrecords/internal/core"
	"finrecords/internal/log"
	"finrecords/internal/records"
	"finrecords/internal/view"
)

// Source is the record store as seen by the dashboard.
type Source interface {
	Subscribe(fn records.Listener) (cancel func())
	Snapshot() records.Snapshot
}

// View is one computed state of the dashboard.
type View struct {
	UserID     string
	Seq        uint64
	Trend      aggregate.Trend
	Breakdown  aggregate.Breakdown
	Rows       []core.FinancialRecord
	Params     view.Params
	ComputedAt time.Time
}

type Option func(*Dashboard)

// WithClock overrides the time used to place the trend window.
func WithClock(now func() time.Time) Option {
	return func(d *Dashboard) { d.now = now }
}

// WithOnUpdate registers fn to receive every recomputed view.
func WithOnUpdate(fn func(View)) Option {
	return func(d *Dashboard) { d.onUpdate = fn }
}

type Dashboard struct {
	projector *view.Projector
	logger    *log.Logger
	now       func() time.Time
	onUpdate  func(View)
	cancel    func()

	mu   sync.RWMutex
	snap records.Snapshot
	last View
}

// New computes the dashboard for the current state of src and keeps it
// current until Close is called.
func New(src Source, projector *view.Projector, logger *log.Logger, opts ...Option) *Dashboard {
	if logger == nil {
		logger = log.Discard()
	}
	d := &Dashboard{
		projector: projector,
		logger:    logger.WithComponent(log.ComponentDashboard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cancel = src.Subscribe(d.handle)
	d.handle(src.Snapshot())
	return d
}

// Current returns the last computed view.
func (d *Dashboard) Current() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.last
}

// Refresh recomputes the view from the last snapshot, e.g. after the table
// filter or sort changed.
func (d *Dashboard) Refresh() View {
	d.mu.Lock()
	v := d.compute(d.snap)
	d.last = v
	d.mu.Unlock()
	d.publish(v)
	return v
}

// Close stops following the store.
func (d *Dashboard) Close() {
	if d.cancel != nil {
		d.cancel()
	}
}

func (d *Dashboard) handle(snap records.Snapshot) {
	d.mu.Lock()
	if snap.Seq < d.snap.Seq {
		d.mu.Unlock()
		d.logger.Debug("Ignoring out of order snapshot",
			"seq", snap.Seq,
			"current_seq", d.snap.Seq)
		return
	}
	d.snap = snap
	v := d.compute(snap)
	d.last = v
	d.mu.Unlock()

	d.logger.Debug("Dashboard recomputed",
		log.FieldUserID, v.UserID,
		log.FieldCount, len(snap.Records),
		"seq", v.Seq,
		"net_flow_cents", v.Trend.NetFlow)
	d.publish(v)
}

func (d *Dashboard) compute(snap records.Snapshot) View {
	now := d.now()
	params := d.projector.Params()
	return View{
		UserID:     snap.UserID,
		Seq:        snap.Seq,
		Trend:      aggregate.Compute(snap.Records, now),
		Breakdown:  aggregate.ByCategory(snap.Records),
		Rows:       view.Rows(snap.Records, params),
		Params:     params,
		ComputedAt: now,
	}
}

func (d *Dashboard) publish(v View) {
	if d.onUpdate != nil {
		d.onUpdate(v)
	}
}
