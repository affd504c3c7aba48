package sheets

import (
	"context"

	"finrecords/internal/core"
)

// RecordMirror keeps a spreadsheet copy of the record collection, one row
// per record keyed by id.
type RecordMirror interface {
	// Upsert writes the record at version, replacing any existing row for
	// the same id. It returns a reference to the written row.
	Upsert(ctx context.Context, r core.FinancialRecord, version int64) (rowRef string, err error)

	// Remove clears the row for id. Removing an id with no row is not an error.
	Remove(ctx context.Context, id string) error
}
