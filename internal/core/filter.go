package core

import (
	"sort"
	"strings"
)

// All is the sentinel selector value meaning "unconstrained". The empty
// string is treated the same way.
const All = "All"

// Filters holds the six independent selectors. A zero Filters imposes no
// constraint at all.
type Filters struct {
	Month    string // exact "YYYY-MM"
	Type     string // case-insensitive
	Date     string // exact "YYYY-MM-DD"
	Status   string // case-insensitive
	Name     string // exact, case-sensitive as stored
	Category string // exact, case-sensitive as stored
}

func active(v string) bool {
	return v != "" && v != All
}

// Match reports whether the record satisfies every active selector.
func (f Filters) Match(r Record) bool {
	if active(f.Month) && r.Month != f.Month {
		return false
	}
	if active(f.Type) && !strings.EqualFold(r.Type, f.Type) {
		return false
	}
	if active(f.Date) && r.Date != f.Date {
		return false
	}
	if active(f.Status) && !strings.EqualFold(r.Status, f.Status) {
		return false
	}
	if active(f.Name) && r.Name != f.Name {
		return false
	}
	if active(f.Category) && r.Category != f.Category {
		return false
	}
	return true
}

// Apply returns the subsequence of records matching every active selector.
// It is a pure function of its inputs and is re-evaluated in full on every
// selector change; the input slice is never mutated.
func Apply(records []Record, f Filters) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortForDisplay returns a copy ordered by date ascending, then id
// ascending. The store hands records out newest-first; the display order
// is the opposite and is a separate contract.
func SortForDisplay(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// distinctValues collects the distinct non-blank values of one field over
// the loaded record set, sorted lexicographically.
func distinctValues(records []Record, field func(Record) string) []string {
	seen := make(map[string]struct{})
	for _, r := range records {
		v := strings.TrimSpace(field(r))
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// NameOptions derives the name selector options from records in use.
// Dimension rows with zero transactions never appear as options.
func NameOptions(records []Record) []string {
	return distinctValues(records, func(r Record) string { return r.Name })
}

// CategoryOptions derives the category selector options from records in use.
func CategoryOptions(records []Record) []string {
	return distinctValues(records, func(r Record) string { return r.Category })
}

// StatusOptions derives the status selector options from records in use.
func StatusOptions(records []Record) []string {
	return distinctValues(records, func(r Record) string { return r.Status })
}

// MonthOptions derives the month selector options, sorted ascending.
func MonthOptions(records []Record) []string {
	return distinctValues(records, func(r Record) string { return r.Month })
}
