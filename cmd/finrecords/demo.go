package main

import (
	"time"

	"finrecords/internal/core"
)

const demoUser = "demo"

// demoRecords spreads a few months of typical activity before now.
func demoRecords(userID string, now time.Time) []core.FinancialRecord {
	day := func(monthsAgo, d int) core.Date {
		t := time.Date(now.Year(), now.Month()-time.Month(monthsAgo), d, 0, 0, 0, 0, time.UTC)
		return core.DateOf(t)
	}
	rec := func(date core.Date, desc string, cents int64, cat core.Category, pm core.PaymentMethod, t core.RecordType) core.FinancialRecord {
		return core.FinancialRecord{
			UserID:        userID,
			Date:          date,
			Description:   desc,
			Amount:        core.Money{Cents: cents},
			Category:      cat,
			PaymentMethod: pm,
			Type:          t,
		}
	}

	var out []core.FinancialRecord
	for m := 3; m >= 0; m-- {
		out = append(out,
			rec(day(m, 1), "Salary", 320000, core.Salary, core.BankTransfer, core.Income),
			rec(day(m, 3), "Rent", 120000, core.Rent, core.BankTransfer, core.Expense),
			rec(day(m, 9), "Groceries", 18550+int64(m)*725, core.Food, core.DebitCard, core.Expense),
			rec(day(m, 14), "Electricity", 6400, core.Utilities, core.UPI, core.Expense),
		)
	}
	out = append(out,
		rec(day(2, 20), "Train pass", 4500, core.Transportation, core.CreditCard, core.Expense),
		rec(day(1, 22), "Freelance work", 85000, core.Salary, core.BankTransfer, core.Income),
	)
	return out
}
