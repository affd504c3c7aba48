// Package remote declares the port to the document store that owns the
// canonical copy of every financial record.
package remote

import (
	"context"

	"finrecords/internal/core"
)

// RecordSync is implemented by every adapter that can persist records.
// Misses are reported as core.ErrNotFound and transport problems as
// core.ErrNetwork. Implementations never retry.
type RecordSync interface {
	// FetchByOwner returns every record owned by userID, possibly none.
	FetchByOwner(ctx context.Context, userID string) ([]core.FinancialRecord, error)
	// Create persists the draft and returns it with its assigned id.
	Create(ctx context.Context, d core.Draft) (core.FinancialRecord, error)
	// Update applies the patch and returns the full record as stored.
	Update(ctx context.Context, id string, p core.Patch) (core.FinancialRecord, error)
	// Delete removes the record and returns what was removed.
	Delete(ctx context.Context, id string) (core.FinancialRecord, error)
}
