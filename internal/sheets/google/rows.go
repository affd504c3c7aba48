package google

import (
	"fmt"
	"strings"

	"finrecords/internal/core"
)

// recordRow lays a record out in header column order.
func recordRow(r core.FinancialRecord, version int64) []any {
	return []any{
		r.ID,
		r.UserID,
		r.Date.String(),
		r.Description,
		r.Amount.Float(),
		string(r.Category),
		string(r.PaymentMethod),
		string(r.Type),
		version,
	}
}

// indexRows maps record ids in column A to their 1-based row numbers and
// returns the number of rows in use. Blank cells and the header are skipped.
func indexRows(values [][]any) (map[string]int, int) {
	index := make(map[string]int, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, fmt.Sprint(header[0]))) {
			continue
		}
		index[id] = i + 1
	}
	return index, len(values)
}
