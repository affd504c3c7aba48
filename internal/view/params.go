// Package view projects a record collection into table rows: type filter,
// stable column sort, per-cell editing and display formatting.
package view

import (
	"fmt"
	"strings"

	"finrecords/internal/core"
)

type Filter int

const (
	FilterNone Filter = iota
	FilterIncome
	FilterExpense
)

// Toggle moves None to Income and flips between Income and Expense. It
// never returns to None; use Clear for that.
func (f Filter) Toggle() Filter {
	if f == FilterIncome {
		return FilterExpense
	}
	return FilterIncome
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r core.FinancialRecord) bool {
	switch f {
	case FilterIncome:
		return r.Type == core.Income
	case FilterExpense:
		return r.Type == core.Expense
	default:
		return true
	}
}

func (f Filter) String() string {
	switch f {
	case FilterIncome:
		return string(core.Income)
	case FilterExpense:
		return string(core.Expense)
	default:
		return "All"
	}
}

// ParseFilter accepts "", "all", "income" or "expense" in any case.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "none":
		return FilterNone, nil
	case "income":
		return FilterIncome, nil
	case "expense":
		return FilterExpense, nil
	}
	return FilterNone, fmt.Errorf("%w: unknown filter %q", core.ErrValidation, s)
}

type Column string

const (
	ColumnDate          Column = "date"
	ColumnDescription   Column = "description"
	ColumnType          Column = "type"
	ColumnAmount        Column = "amount"
	ColumnCategory      Column = "category"
	ColumnPaymentMethod Column = "paymentMethod"
)

// Columns lists the table columns in display order.
var Columns = []Column{
	ColumnDescription, ColumnType, ColumnAmount, ColumnCategory, ColumnPaymentMethod, ColumnDate,
}

// Editable reports whether cells of c may enter the editing state.
func (c Column) Editable() bool {
	switch c {
	case ColumnDate, ColumnDescription, ColumnType, ColumnAmount, ColumnCategory, ColumnPaymentMethod:
		return true
	}
	return false
}

// Title is the column header.
func (c Column) Title() string {
	switch c {
	case ColumnDate:
		return "Date"
	case ColumnDescription:
		return "Description"
	case ColumnType:
		return "Type"
	case ColumnAmount:
		return "Amount"
	case ColumnCategory:
		return "Category"
	case ColumnPaymentMethod:
		return "Payment Method"
	}
	return string(c)
}

// ParseColumn matches a column by its key, case-insensitively.
func ParseColumn(s string) (Column, error) {
	s = strings.TrimSpace(s)
	for _, c := range Columns {
		if strings.EqualFold(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: unknown column %q", core.ErrValidation, s)
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

func (d Direction) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// Sort is unset when Column is empty.
type Sort struct {
	Column    Column
	Direction Direction
}

func (s Sort) IsSet() bool { return s.Column != "" }

// Params are the user-controlled projection settings.
type Params struct {
	Filter Filter
	Sort   Sort
}

// ToggleFilter returns p with the filter toggled.
func (p Params) ToggleFilter() Params {
	p.Filter = p.Filter.Toggle()
	return p
}

// ClearFilter returns p without a filter.
func (p Params) ClearFilter() Params {
	p.Filter = FilterNone
	return p
}

// ToggleSort sorts by col ascending, or flips the direction when col is
// already the sort column.
func (p Params) ToggleSort(col Column) Params {
	if p.Sort.Column == col {
		if p.Sort.Direction == Asc {
			p.Sort.Direction = Desc
		} else {
			p.Sort.Direction = Asc
		}
		return p
	}
	p.Sort = Sort{Column: col, Direction: Asc}
	return p
}

// ClearSort returns p with collection order restored.
func (p Params) ClearSort() Params {
	p.Sort = Sort{}
	return p
}
