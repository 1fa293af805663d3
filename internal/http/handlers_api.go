package http

import (
	"net/http"
	"strconv"

	"fintrack/internal/core"
	"fintrack/internal/events"
)

type labelRequest struct {
	Label string `json:"label"`
}

// transactionRequest is the write payload for transactions. Amount is a
// pointer so a missing or mistyped amount is rejected instead of being
// coerced to zero; that leniency belongs to the filter engine, not the API.
type transactionRequest struct {
	Date        string   `json:"date"`
	NameID      int64    `json:"nameId"`
	CategoryID  int64    `json:"categoryId"`
	Amount      *float64 `json:"amount"`
	Status      string   `json:"status"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Month       string   `json:"month"`
}

func (s *Server) handleListNames(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.ListNames(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if names == nil {
		names = []core.Name{}
	}
	respondJSON(w, http.StatusOK, names)
}

func (s *Server) handleCreateName(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	name, err := s.store.CreateName(r.Context(), sanitizeInput(req.Label))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateRecords()
	respondJSON(w, http.StatusCreated, name)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.store.ListCategories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if categories == nil {
		categories = []core.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	category, err := s.store.CreateCategory(r.Context(), sanitizeInput(req.Label))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.invalidateRecords()
	respondJSON(w, http.StatusCreated, category)
}

// handleListTransactions returns the full denormalized record set. The
// API never filters; selection happens in the UI layer over the loaded set.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	records, err := s.loadRecords(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []core.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

// toTransaction builds and normalizes the domain transaction. Callers
// must have checked Amount for nil.
func (req *transactionRequest) toTransaction() (core.Transaction, error) {
	t := core.Transaction{
		Date:        sanitizeInput(req.Date),
		NameID:      req.NameID,
		CategoryID:  req.CategoryID,
		Amount:      *req.Amount,
		Status:      sanitizeInput(req.Status),
		Type:        sanitizeInput(req.Type),
		Description: sanitizeInput(req.Description),
		Month:       sanitizeInput(req.Month),
	}
	if err := t.Normalize(); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Amount == nil {
		respondErrorMessage(w, http.StatusBadRequest, "amount is required and must be a number")
		return
	}

	t, err := req.toTransaction()
	if err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.store.CreateTransaction(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateRecords()
	s.publishEvent(r.Context(), events.KindCreated, created.ID, created.Month)
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondErrorMessage(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.Amount == nil {
		respondErrorMessage(w, http.StatusBadRequest, "amount is required and must be a number")
		return
	}

	t, err := req.toTransaction()
	if err != nil {
		respondError(w, r, err)
		return
	}
	t.ID = id

	updated, err := s.store.UpdateTransaction(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateRecords()
	s.publishEvent(r.Context(), events.KindUpdated, updated.ID, updated.Month)
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondErrorMessage(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	// Fetch first so the delete event can carry the affected month.
	existing, err := s.store.GetTransaction(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.store.DeleteTransaction(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.invalidateRecords()
	s.publishEvent(r.Context(), events.KindDeleted, id, existing.Month)
	respondJSON(w, http.StatusOK, apiMessage{Message: "transaction deleted"})
}
