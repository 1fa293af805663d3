package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	srv := NewServer(":0", repo, nil, Options{})
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		_ = repo.Close()
	})
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(raw)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func createDimensions(t *testing.T, srv *Server) (nameID, categoryID int64) {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/names", map[string]string{"label": "Alice"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create name status=%d body=%s", rr.Code, rr.Body.String())
	}
	name := decodeBody[core.Name](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/categories", map[string]string{"label": "Rent"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create category status=%d body=%s", rr.Code, rr.Body.String())
	}
	category := decodeBody[core.Category](t, rr)
	return name.ID, category.ID
}

func transactionPayload(nameID, categoryID int64) map[string]any {
	return map[string]any{
		"date":        "2024-03-15",
		"nameId":      nameID,
		"categoryId":  categoryID,
		"amount":      1200.50,
		"status":      "paid",
		"type":        "expenses",
		"description": "March rent",
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestIndexRenders(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Finance Tracker") {
		t.Fatalf("index body missing heading")
	}
}

func TestNamesAPI(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodGet, "/api/names", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	// Empty store must produce an empty array, not null.
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/names", map[string]string{"label": "Alice"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody[core.Name](t, rr)
	if created.ID == 0 || created.Label != "Alice" {
		t.Fatalf("unexpected created name %+v", created)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/names", map[string]string{"label": "Alice"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate status=%d body=%s", rr.Code, rr.Body.String())
	}
	errBody := decodeBody[apiError](t, rr)
	if errBody.Error == "" {
		t.Fatalf("conflict response missing error message")
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/names", map[string]string{"label": "  "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("blank label status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodPost, "/api/names", map[string]string{"name_value": "Bob"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	nameID, categoryID := createDimensions(t, srv)

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", transactionPayload(nameID, categoryID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody[core.Transaction](t, rr)
	if created.Month != "2024-03" {
		t.Fatalf("month not derived, got %q", created.Month)
	}

	// The denormalized list resolves labels and reflects the new write.
	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	records := decodeBody[[]core.Record](t, rr)
	if len(records) != 1 || records[0].Name != "Alice" || records[0].Category != "Rent" {
		t.Fatalf("unexpected records %+v", records)
	}

	update := transactionPayload(nameID, categoryID)
	update["date"] = "2024-04-02"
	update["amount"] = 1300.0
	rr = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/transactions/%d", created.ID), update)
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[core.Transaction](t, rr)
	if updated.Month != "2024-04" {
		t.Fatalf("month not re-derived on update, got %q", updated.Month)
	}

	// Cached list was invalidated by the update.
	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	records = decodeBody[[]core.Record](t, rr)
	if len(records) != 1 || records[0].Date != "2024-04-02" {
		t.Fatalf("stale list after update: %+v", records)
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	msg := decodeBody[apiMessage](t, rr)
	if msg.Message == "" {
		t.Fatalf("delete response missing message")
	}

	rr = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", created.ID), nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list after delete, got %s", rr.Body.String())
	}
}

func TestTransactionValidation(t *testing.T) {
	srv := newTestServer(t)
	nameID, categoryID := createDimensions(t, srv)

	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   int
	}{
		{
			name:   "missing amount",
			mutate: func(p map[string]any) { delete(p, "amount") },
			want:   http.StatusBadRequest,
		},
		{
			name:   "string amount",
			mutate: func(p map[string]any) { p["amount"] = "12.50" },
			want:   http.StatusBadRequest,
		},
		{
			name:   "bad date",
			mutate: func(p map[string]any) { p["date"] = "15/03/2024" },
			want:   http.StatusBadRequest,
		},
		{
			name:   "month mismatch",
			mutate: func(p map[string]any) { p["month"] = "2024-07" },
			want:   http.StatusBadRequest,
		},
		{
			name:   "unknown type",
			mutate: func(p map[string]any) { p["type"] = "transfer" },
			want:   http.StatusBadRequest,
		},
		{
			name:   "negative amount",
			mutate: func(p map[string]any) { p["amount"] = -5.0 },
			want:   http.StatusBadRequest,
		},
		{
			name:   "dangling name reference",
			mutate: func(p map[string]any) { p["nameId"] = nameID + 99 },
			want:   http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := transactionPayload(nameID, categoryID)
			tt.mutate(payload)
			rr := doJSON(t, srv, http.MethodPost, "/api/transactions", payload)
			if rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
			errBody := decodeBody[apiError](t, rr)
			if errBody.Error == "" {
				t.Fatalf("error response missing message")
			}
		})
	}

	// A rejected write leaves the store empty.
	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", nil)
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("rejected writes persisted: %s", rr.Body.String())
	}
}

func TestTransactionTypeSynonym(t *testing.T) {
	srv := newTestServer(t)
	nameID, categoryID := createDimensions(t, srv)

	payload := transactionPayload(nameID, categoryID)
	payload["type"] = "Expense"
	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", payload)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decodeBody[core.Transaction](t, rr)
	if created.Type != "expenses" {
		t.Fatalf("type not canonicalized, got %q", created.Type)
	}
}

func TestInvalidTransactionID(t *testing.T) {
	srv := newTestServer(t)

	rr := doJSON(t, srv, http.MethodDelete, "/api/transactions/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("alpha id status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodPut, "/api/transactions/0", map[string]any{"amount": 1.0})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("zero id status=%d", rr.Code)
	}
}

func TestRecordsPartialFilters(t *testing.T) {
	srv := newTestServer(t)
	nameID, categoryID := createDimensions(t, srv)

	expense := transactionPayload(nameID, categoryID)
	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", expense); rr.Code != http.StatusCreated {
		t.Fatalf("create expense status=%d", rr.Code)
	}
	income := transactionPayload(nameID, categoryID)
	income["type"] = "income"
	income["amount"] = 3000.0
	income["description"] = "Salary"
	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", income); rr.Code != http.StatusCreated {
		t.Fatalf("create income status=%d", rr.Code)
	}

	rr := doJSON(t, srv, http.MethodGet, "/ui/records", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("partial status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Showing 2 of 2 records") {
		t.Fatalf("unfiltered count missing: %s", body)
	}
	if !strings.Contains(body, "Month-wise Summary") {
		t.Fatalf("summary table missing")
	}

	rr = doJSON(t, srv, http.MethodGet, "/ui/records?type=income", nil)
	body = rr.Body.String()
	if !strings.Contains(body, "Showing 1 of 2 records") {
		t.Fatalf("filtered count missing: %s", body)
	}
	if !strings.Contains(body, "Salary") || strings.Contains(body, "March rent") {
		t.Fatalf("type filter not applied: %s", body)
	}

	// "All" sentinels behave like absent parameters.
	rr = doJSON(t, srv, http.MethodGet, "/ui/records?type=All&status=All&name=All&category=All", nil)
	if !strings.Contains(rr.Body.String(), "Showing 2 of 2 records") {
		t.Fatalf("sentinel filters constrained the set: %s", rr.Body.String())
	}
}

func TestRecordsPartialRefreshesFilterOptions(t *testing.T) {
	srv := newTestServer(t)
	nameID, categoryID := createDimensions(t, srv)

	rr := doJSON(t, srv, http.MethodGet, "/ui/records", nil)
	if strings.Contains(rr.Body.String(), `<option value="Alice"`) {
		t.Fatalf("name option present before any transaction uses it")
	}

	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", transactionPayload(nameID, categoryID)); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	// The partial alone must surface the new options; the page is never
	// reloaded after a mutation.
	rr = doJSON(t, srv, http.MethodGet, "/ui/records", nil)
	body := rr.Body.String()
	for _, want := range []string{
		`id="month-filter" hx-swap-oob="true"`,
		`id="status-filter" hx-swap-oob="true"`,
		`id="name-filter" hx-swap-oob="true"`,
		`id="category-filter" hx-swap-oob="true"`,
		`<option value="Alice"`,
		`<option value="Rent"`,
		`<option value="2024-03"`,
		`<option value="paid"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("partial missing %q: %s", want, body)
		}
	}

	// An active selector survives the option refresh.
	rr = doJSON(t, srv, http.MethodGet, "/ui/records?name=Alice", nil)
	if !strings.Contains(rr.Body.String(), `<option value="Alice" selected`) {
		t.Fatalf("active name selector not preserved: %s", rr.Body.String())
	}
}

func TestRecordsPartialNoMatches(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/ui/records?month=1999-01", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("partial status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "No transactions match") {
		t.Fatalf("empty state missing: %s", rr.Body.String())
	}
}

func TestSecurityHeadersApplied(t *testing.T) {
	srv := newTestServer(t)
	rr := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing X-Content-Type-Options header")
	}
	if rr.Header().Get("Content-Security-Policy") == "" {
		t.Fatalf("missing Content-Security-Policy header")
	}
}
