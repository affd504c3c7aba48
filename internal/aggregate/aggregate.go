// Package aggregate derives the monthly income/expense trend and the
// per-category breakdown from a record collection.
//
// Every function is a full recompute over the collection it is given. There
// is no incremental path; callers recompute after each change.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"finrecords/internal/core"
)

// WindowMonths is how many months before the current one the trend covers.
const WindowMonths = 6

type (
	// Bucket holds the totals of one calendar month.
	Bucket struct {
		MonthKey  string // YYYY-MM
		Year      int
		Month     time.Month
		MonthName string // Jan, Feb, ...
		Income    core.Money
		Expenses  core.Money
	}

	// Trend is the bucketed series plus its totals. NetFlow is signed cents.
	Trend struct {
		Buckets       []Bucket
		TotalIncome   core.Money
		TotalExpenses core.Money
		NetFlow       int64
	}

	// Point is one value of a single-kind series, ready for a chart.
	Point struct {
		Label string
		Cents int64
	}

	CategoryTotal struct {
		Category core.Category
		Amount   core.Money
	}

	// Breakdown holds per-category totals, each list in category
	// declaration order with categories that have no records left out.
	Breakdown struct {
		Income   []CategoryTotal
		Expenses []CategoryTotal
	}
)

// WindowStart returns the first day of the month WindowMonths before now's
// month, at UTC midnight.
func WindowStart(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month()-WindowMonths, 1, 0, 0, 0, 0, time.UTC)
}

// Compute buckets every record dated on or after WindowStart(now) by
// calendar month. Records after now are kept. Buckets are ascending and
// months without records are absent.
func Compute(records []core.FinancialRecord, now time.Time) Trend {
	start := WindowStart(now)
	byMonth := make(map[string]*Bucket)

	for _, r := range records {
		if r.Date.Before(start) {
			continue
		}
		key := monthKey(r.Date.Year(), time.Month(r.Date.Month()))
		b, ok := byMonth[key]
		if !ok {
			month := time.Month(r.Date.Month())
			b = &Bucket{
				MonthKey:  key,
				Year:      r.Date.Year(),
				Month:     month,
				MonthName: MonthName(month),
			}
			byMonth[key] = b
		}
		switch r.Type {
		case core.Income:
			b.Income.Cents += r.Amount.Cents
		case core.Expense:
			b.Expenses.Cents += r.Amount.Cents
		}
	}

	t := Trend{Buckets: make([]Bucket, 0, len(byMonth))}
	for _, b := range byMonth {
		t.Buckets = append(t.Buckets, *b)
	}
	// Keys are zero padded, so lexical order is chronological.
	sort.Slice(t.Buckets, func(i, j int) bool { return t.Buckets[i].MonthKey < t.Buckets[j].MonthKey })

	for _, b := range t.Buckets {
		t.TotalIncome.Cents += b.Income.Cents
		t.TotalExpenses.Cents += b.Expenses.Cents
	}
	t.NetFlow = t.TotalIncome.Cents - t.TotalExpenses.Cents
	return t
}

// Series returns the income or the expense line of the trend.
func (t Trend) Series(kind core.RecordType) []Point {
	out := make([]Point, 0, len(t.Buckets))
	for _, b := range t.Buckets {
		p := Point{Label: b.MonthName}
		if kind == core.Income {
			p.Cents = b.Income.Cents
		} else {
			p.Cents = b.Expenses.Cents
		}
		out = append(out, p)
	}
	return out
}

// ByCategory totals the whole collection per category, separately for
// income and expenses. No date window applies.
func ByCategory(records []core.FinancialRecord) Breakdown {
	income := make(map[core.Category]int64)
	expenses := make(map[core.Category]int64)
	var extra []core.Category

	for _, r := range records {
		if !r.Category.Valid() && !contains(extra, r.Category) {
			extra = append(extra, r.Category)
		}
		switch r.Type {
		case core.Income:
			income[r.Category] += r.Amount.Cents
		case core.Expense:
			expenses[r.Category] += r.Amount.Cents
		}
	}

	order := append(append([]core.Category(nil), core.Categories...), extra...)
	return Breakdown{
		Income:   collect(order, income),
		Expenses: collect(order, expenses),
	}
}

// MonthName returns the short English name of m.
func MonthName(m time.Month) string {
	return m.String()[:3]
}

func monthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

func collect(order []core.Category, totals map[core.Category]int64) []CategoryTotal {
	out := make([]CategoryTotal, 0, len(totals))
	for _, c := range order {
		if cents, ok := totals[c]; ok {
			out = append(out, CategoryTotal{Category: c, Amount: core.Money{Cents: cents}})
		}
	}
	return out
}

func contains(list []core.Category, c core.Category) bool {
	for _, v := range list {
		if v == c {
			return true
		}
	}
	return false
}
