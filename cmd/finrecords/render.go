package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"finrecords/internal/aggregate"
	"finrecords/internal/dashboard"
	"finrecords/internal/view"
)

func render(w io.Writer, v dashboard.View) error {
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)

	fmt.Fprintf(tw, "Dashboard of %s\n\n", v.UserID)

	fmt.Fprintf(tw, "Monthly trend\n")
	fmt.Fprintf(tw, "  MONTH\tINCOME\tEXPENSES\n")
	for _, b := range v.Trend.Buckets {
		fmt.Fprintf(tw, "  %s %d\t%s\t%s\n", b.MonthName, b.Year, money(b.Income.Cents), money(b.Expenses.Cents))
	}
	fmt.Fprintf(tw, "  TOTAL\t%s\t%s\n", money(v.Trend.TotalIncome.Cents), money(v.Trend.TotalExpenses.Cents))
	fmt.Fprintf(tw, "  Net flow: %s\n\n", signed(v.Trend.NetFlow))

	renderCategories(tw, "Income by category", v.Breakdown.Income)
	renderCategories(tw, "Expenses by category", v.Breakdown.Expenses)

	fmt.Fprintf(tw, "Records (%d, filter: %s)\n", len(v.Rows), v.Params.Filter)
	if len(v.Rows) == 0 {
		fmt.Fprintf(tw, "  no records\n")
		return tw.Flush()
	}
	titles := make([]string, len(view.Columns))
	for i, col := range view.Columns {
		titles[i] = strings.ToUpper(col.Title())
		if v.Params.Sort.Column == col {
			titles[i] += " (" + v.Params.Sort.Direction.String() + ")"
		}
	}
	fmt.Fprintf(tw, "  ID\t%s\n", strings.Join(titles, "\t"))
	for _, r := range v.Rows {
		cells := make([]string, len(view.Columns))
		for i, col := range view.Columns {
			cells[i] = view.Display(r, col)
		}
		fmt.Fprintf(tw, "  %s\t%s\n", r.ID, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func renderCategories(w io.Writer, title string, totals []aggregate.CategoryTotal) {
	fmt.Fprintf(w, "%s\n", title)
	if len(totals) == 0 {
		fmt.Fprintf(w, "  none\n\n")
		return
	}
	fmt.Fprintf(w, "  CATEGORY\tAMOUNT\n")
	for _, ct := range totals {
		fmt.Fprintf(w, "  %s\t%s\n", ct.Category, money(ct.Amount.Cents))
	}
	fmt.Fprintln(w)
}

// money formats non-negative cents as 1,234.56.
func money(cents int64) string {
	return fmt.Sprintf("%s.%02d", humanize.Comma(cents/100), cents%100)
}

func signed(cents int64) string {
	if cents < 0 {
		return "-" + money(-cents)
	}
	return "+" + money(cents)
}
