package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/log"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", log.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	names, err := s.store.ListNames(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List names error", log.FieldError, err)
	}
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", log.FieldError, err)
	}

	// Filter options come from the records in use, not the dimension
	// tables: a name with zero transactions is not offered as a filter.
	records, err := s.loadRecords(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Load records error", log.FieldError, err)
	}

	data := struct {
		Today           string
		Names           []core.Name
		Categories      []core.Category
		MonthOptions    []string
		NameOptions     []string
		CategoryOptions []string
		StatusOptions   []string
	}{
		Today:           time.Now().Format(core.DateLayout),
		Names:           names,
		Categories:      categories,
		MonthOptions:    core.MonthOptions(records),
		NameOptions:     core.NameOptions(records),
		CategoryOptions: core.CategoryOptions(records),
		StatusOptions:   core.StatusOptions(records),
	}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", log.FieldError, err, "template", "index.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type recordRow struct {
	ID          int64
	Date        string
	Name        string
	Category    string
	Amount      string
	Status      string
	Type        string
	Description string
}

type summaryRow struct {
	Month    string
	Income   string
	Expenses string
	Balance  string
}

// parseFilters reads the six selectors from the query string. Absent
// parameters and the "All" sentinel both mean unconstrained.
func parseFilters(r *http.Request) core.Filters {
	q := r.URL.Query()
	get := func(key string) string { return strings.TrimSpace(q.Get(key)) }
	return core.Filters{
		Month:    get("month"),
		Type:     get("type"),
		Date:     get("date"),
		Status:   get("status"),
		Name:     get("name"),
		Category: get("category"),
	}
}

// handleRecordsPartial renders the filtered record table plus the monthly
// summary of the selection. Filtering and aggregation run over the fully
// loaded record set on every request.
func (s *Server) handleRecordsPartial(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	records, err := s.loadRecords(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Records partial error", log.FieldError, err)
		_, _ = w.Write([]byte(`<section id="records" class="records"><div class="error">Failed to load transactions. Please try again.</div></section>`))
		return
	}

	filters := parseFilters(r)
	filtered := core.Apply(records, filters)
	display := core.SortForDisplay(filtered)
	summaries := core.Summarize(filtered)

	// The partial also carries the four derived filter selects as
	// out-of-band swaps, so options track the loaded record set on every
	// refresh instead of going stale until a full page reload.
	data := struct {
		Shown           int
		Total           int
		Rows            []recordRow
		Summaries       []summaryRow
		Filters         core.Filters
		MonthOptions    []string
		StatusOptions   []string
		NameOptions     []string
		CategoryOptions []string
	}{
		Shown:           len(display),
		Total:           len(records),
		Filters:         filters,
		MonthOptions:    core.MonthOptions(records),
		StatusOptions:   core.StatusOptions(records),
		NameOptions:     core.NameOptions(records),
		CategoryOptions: core.CategoryOptions(records),
	}
	for _, rec := range display {
		data.Rows = append(data.Rows, recordRow{
			ID:          rec.ID,
			Date:        rec.Date,
			Name:        rec.Name,
			Category:    rec.Category,
			Amount:      rec.Amount.Display(),
			Status:      rec.Status,
			Type:        rec.Type,
			Description: rec.Description,
		})
	}
	for _, sum := range summaries {
		data.Summaries = append(data.Summaries, summaryRow{
			Month:    sum.Month,
			Income:   sum.Income.Display(),
			Expenses: sum.Expenses.Display(),
			Balance:  sum.Balance.Display(),
		})
	}

	if s.templates == nil {
		_, _ = w.Write([]byte(`<section id="records" class="records"><div class="error">Templates not loaded</div></section>`))
		return
	}
	if err := s.templates.ExecuteTemplate(w, "records.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Records template execution failed", log.FieldError, err, "template", "records.html")
		_, _ = w.Write([]byte(`<section id="records" class="records"><div class="error">Failed to render transactions</div></section>`))
	}
}
