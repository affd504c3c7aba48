package view

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"finrecords/internal/core"
)

// Rows filters then sorts records according to p. The result is a fresh
// slice; records is never reordered. Sorting is stable, so records with
// equal keys keep their collection order.
func Rows(records []core.FinancialRecord, p Params) []core.FinancialRecord {
	out := make([]core.FinancialRecord, 0, len(records))
	for _, r := range records {
		if p.Filter.Matches(r) {
			out = append(out, r)
		}
	}
	if !p.Sort.IsSet() {
		return out
	}
	cmp := compareBy(p.Sort.Column)
	if cmp == nil {
		return out
	}
	if p.Sort.Direction == Desc {
		asc := cmp
		cmp = func(a, b core.FinancialRecord) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, cmp)
	return out
}

func compareBy(col Column) func(a, b core.FinancialRecord) int {
	switch col {
	case ColumnDate:
		return func(a, b core.FinancialRecord) int { return a.Date.Compare(b.Date.Time) }
	case ColumnAmount:
		return func(a, b core.FinancialRecord) int { return compareInt(a.Amount.Cents, b.Amount.Cents) }
	case ColumnDescription:
		return func(a, b core.FinancialRecord) int { return strings.Compare(a.Description, b.Description) }
	case ColumnType:
		return func(a, b core.FinancialRecord) int { return strings.Compare(string(a.Type), string(b.Type)) }
	case ColumnCategory:
		return func(a, b core.FinancialRecord) int { return strings.Compare(string(a.Category), string(b.Category)) }
	case ColumnPaymentMethod:
		return func(a, b core.FinancialRecord) int {
			return strings.Compare(string(a.PaymentMethod), string(b.PaymentMethod))
		}
	}
	return nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// FormatAmount renders the amount with its sign, thousands separators and
// two decimals: +1,000.00 for income, -400.00 for expenses.
func FormatAmount(r core.FinancialRecord) string {
	sign := "-"
	if r.Type == core.Income {
		sign = "+"
	}
	cents := r.Amount.Cents
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}

// Display is the text shown in a cell. It is never fed back into an update.
func Display(r core.FinancialRecord, col Column) string {
	if col == ColumnAmount {
		return FormatAmount(r)
	}
	return Raw(r, col)
}

// Raw is the unformatted cell value an edit starts from.
func Raw(r core.FinancialRecord, col Column) string {
	switch col {
	case ColumnDate:
		return r.Date.String()
	case ColumnDescription:
		return r.Description
	case ColumnType:
		return string(r.Type)
	case ColumnAmount:
		return r.Amount.String()
	case ColumnCategory:
		return string(r.Category)
	case ColumnPaymentMethod:
		return string(r.PaymentMethod)
	}
	return ""
}
