package core

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func rec(id int64, date, name, category, amount, status, typ string) Record {
	return Record{
		ID:       id,
		Date:     date,
		Name:     name,
		Category: category,
		Amount:   ParseAmount(amount),
		Status:   status,
		Type:     typ,
		Month:    MonthKey(date),
	}
}

func TestApplyANDSemantics(t *testing.T) {
	records := []Record{
		rec(1, "2024-01-05", "Alice", "Rent", "1000", "paid", "expenses"),
		rec(2, "2024-01-20", "Bob", "Salary", "2500", "paid", "income"),
		rec(3, "2024-02-05", "Alice", "Rent", "1000", "pending", "expenses"),
		rec(4, "2024-02-14", "Carol", "Food", "55.30", "paid", "expenses"),
	}

	cases := []struct {
		name    string
		filters Filters
		wantIDs []int64
	}{
		{"no filters", Filters{}, []int64{1, 2, 3, 4}},
		{"sentinel All is inactive", Filters{Type: All, Status: All, Name: All, Category: All}, []int64{1, 2, 3, 4}},
		{"month only", Filters{Month: "2024-01"}, []int64{1, 2}},
		{"type case-insensitive", Filters{Type: "EXPENSES"}, []int64{1, 3, 4}},
		{"date exact", Filters{Date: "2024-02-14"}, []int64{4}},
		{"status case-insensitive", Filters{Status: "Paid"}, []int64{1, 2, 4}},
		{"name exact", Filters{Name: "Alice"}, []int64{1, 3}},
		{"name is case-sensitive", Filters{Name: "alice"}, []int64{}},
		{"all six combined", Filters{
			Month: "2024-01", Type: "expenses", Date: "2024-01-05",
			Status: "paid", Name: "Alice", Category: "Rent",
		}, []int64{1}},
		{"one failing selector excludes", Filters{Month: "2024-01", Name: "Carol"}, []int64{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Apply(records, tc.filters)
			ids := make([]int64, 0, len(got))
			for _, r := range got {
				ids = append(ids, r.ID)
			}
			if !reflect.DeepEqual(ids, tc.wantIDs) {
				t.Fatalf("expected ids %v, got %v", tc.wantIDs, ids)
			}
		})
	}
}

// TestApplyRandomized cross-checks Apply against a naive per-record
// re-evaluation over random record sets and selector combinations.
func TestApplyRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	months := []string{"2024-01", "2024-02", "2024-03"}
	names := []string{"Alice", "Bob", "Carol"}
	categories := []string{"Rent", "Food", "Salary"}
	statuses := []string{"paid", "pending"}
	types := []string{"income", "expenses", "Expense", "transfer"}
	pick := func(vals []string) string { return vals[rng.Intn(len(vals))] }
	pickOrSentinel := func(vals []string) string {
		switch rng.Intn(3) {
		case 0:
			return ""
		case 1:
			return All
		default:
			return pick(vals)
		}
	}

	for trial := 0; trial < 100; trial++ {
		n := rng.Intn(30)
		records := make([]Record, 0, n)
		for i := 0; i < n; i++ {
			m := pick(months)
			day := fmt.Sprintf("%02d", 1+rng.Intn(28))
			records = append(records, rec(int64(i+1), m+"-"+day,
				pick(names), pick(categories), "10", pick(statuses), pick(types)))
		}
		f := Filters{
			Month:    pickOrSentinel(months),
			Type:     pickOrSentinel(types),
			Date:     pickOrSentinel([]string{"2024-01-05", "2024-02-10"}),
			Status:   pickOrSentinel(statuses),
			Name:     pickOrSentinel(names),
			Category: pickOrSentinel(categories),
		}

		got := Apply(records, f)
		want := make([]Record, 0, len(records))
		for _, r := range records {
			ok := true
			if f.Month != "" && f.Month != All && r.Month != f.Month {
				ok = false
			}
			if f.Type != "" && f.Type != All && !strings.EqualFold(r.Type, f.Type) {
				ok = false
			}
			if f.Date != "" && f.Date != All && r.Date != f.Date {
				ok = false
			}
			if f.Status != "" && f.Status != All && !strings.EqualFold(r.Status, f.Status) {
				ok = false
			}
			if f.Name != "" && f.Name != All && r.Name != f.Name {
				ok = false
			}
			if f.Category != "" && f.Category != All && r.Category != f.Category {
				ok = false
			}
			if ok {
				want = append(want, r)
			}
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("trial %d: filters %+v: expected %d records, got %d", trial, f, len(want), len(got))
		}
	}
}

// Clearing all selectors must reproduce the never-filtered result.
func TestClearedFiltersMatchFreshLoad(t *testing.T) {
	records := []Record{
		rec(1, "2024-01-05", "Alice", "Rent", "1000", "paid", "expenses"),
		rec(2, "2024-01-20", "Bob", "Salary", "2500", "paid", "income"),
		rec(3, "2024-02-05", "Alice", "Rent", "1000", "pending", "expenses"),
	}
	fresh := Apply(records, Filters{})

	f := Filters{Month: "2024-01", Name: "Alice"}
	_ = Apply(records, f)
	f = Filters{Type: "income"}
	_ = Apply(records, f)

	f = Filters{} // cleared
	cleared := Apply(records, f)
	if !reflect.DeepEqual(cleared, fresh) {
		t.Fatalf("cleared filters diverge from fresh load")
	}
	// Idempotent: clearing again changes nothing.
	if again := Apply(records, Filters{}); !reflect.DeepEqual(again, cleared) {
		t.Fatalf("clearing is not idempotent")
	}
}

func TestSortForDisplay(t *testing.T) {
	records := []Record{
		rec(9, "2024-02-05", "A", "C", "1", "s", "income"),
		rec(7, "2024-01-05", "A", "C", "1", "s", "income"),
		rec(8, "2024-01-05", "A", "C", "1", "s", "income"),
	}
	sorted := SortForDisplay(records)
	gotIDs := []int64{sorted[0].ID, sorted[1].ID, sorted[2].ID}
	if !reflect.DeepEqual(gotIDs, []int64{7, 8, 9}) {
		t.Fatalf("expected date asc then id asc, got %v", gotIDs)
	}
	// Input order untouched.
	if records[0].ID != 9 {
		t.Fatalf("input slice was mutated")
	}
}

func TestOptionDerivation(t *testing.T) {
	records := []Record{
		rec(1, "2024-01-05", "bob", "Rent", "1", "paid", "expenses"),
		rec(2, "2024-01-06", "Alice", "Rent", "1", "pending", "expenses"),
		rec(3, "2024-01-07", "Alice", "Food", "1", "paid", "income"),
	}
	if got := NameOptions(records); !reflect.DeepEqual(got, []string{"Alice", "bob"}) {
		t.Fatalf("name options: %v", got)
	}
	if got := CategoryOptions(records); !reflect.DeepEqual(got, []string{"Food", "Rent"}) {
		t.Fatalf("category options: %v", got)
	}
	if got := StatusOptions(records); !reflect.DeepEqual(got, []string{"paid", "pending"}) {
		t.Fatalf("status options: %v", got)
	}
	// A dimension value with zero transactions never shows up: options
	// come from records, not the dimension tables.
	if got := NameOptions(nil); len(got) != 0 {
		t.Fatalf("expected no options for empty record set, got %v", got)
	}
}
