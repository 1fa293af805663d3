package core

import (
	"sort"
	"strings"
)

// MonthSummary is the per-month income/expenses/balance row derived from
// a (possibly filtered) record set.
type MonthSummary struct {
	Month    string `json:"month"`
	Income   Amount `json:"income"`
	Expenses Amount `json:"expenses"`
	Balance  Amount `json:"balance"`
}

// Summarize groups records by month key and totals income and expenses
// per group. Records whose type is neither income nor an expense spelling
// contribute to neither total. Balance is income minus expenses within
// the month, never accumulated across months. Rows come back ordered by
// the raw month key ascending, which for "YYYY-MM" keys is chronological.
func Summarize(records []Record) []MonthSummary {
	type totals struct {
		income   Amount
		expenses Amount
	}
	byMonth := make(map[string]*totals)
	for _, r := range records {
		if r.Month == "" {
			continue
		}
		t, ok := byMonth[r.Month]
		if !ok {
			t = &totals{}
			byMonth[r.Month] = t
		}
		switch strings.ToLower(r.Type) {
		case "income":
			t.income = t.income.Add(r.Amount)
		case "expense", "expenses":
			t.expenses = t.expenses.Add(r.Amount)
		}
	}

	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]MonthSummary, 0, len(keys))
	for _, k := range keys {
		t := byMonth[k]
		out = append(out, MonthSummary{
			Month:    k,
			Income:   t.income,
			Expenses: t.expenses,
			Balance:  t.income.Sub(t.expenses),
		})
	}
	return out
}
