package core

import (
	"errors"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format for transaction dates.
	DateLayout = "2006-01-02"

	// UnknownLabel is shown for transactions whose dimension row is
	// missing. Orphans are surfaced, never dropped from read results.
	UnknownLabel = "(unknown)"
)

type (
	// Name is a payee dimension row. Labels are unique, case-sensitive.
	Name struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
	}

	// Category is a category dimension row, an independent namespace
	// from Name.
	Category struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
	}

	// TransactionType is the closed set of transaction kinds accepted at
	// the API boundary.
	TransactionType string

	// Transaction is the normalized storage shape: dimension references
	// by id, month denormalized from the date at write time.
	Transaction struct {
		ID          int64   `json:"id"`
		Date        string  `json:"date"`
		NameID      int64   `json:"nameId"`
		CategoryID  int64   `json:"categoryId"`
		Amount      float64 `json:"amount"`
		Status      string  `json:"status"`
		Type        string  `json:"type"`
		Description string  `json:"description,omitempty"`
		Month       string  `json:"month"`
	}

	// Record is the denormalized, client-visible transaction: dimension
	// ids resolved to their labels. This is the shape the filter and
	// summary engine operates on.
	Record struct {
		ID          int64  `json:"id"`
		Date        string `json:"date"`
		Name        string `json:"name"`
		Category    string `json:"category"`
		Amount      Amount `json:"amount"`
		Status      string `json:"status"`
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
		Month       string `json:"month"`
	}
)

const (
	TypeIncome   TransactionType = "income"
	TypeExpenses TransactionType = "expenses"
)

var (
	ErrEmptyLabel     = errors.New("label cannot be empty")
	ErrInvalidDate    = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidNameRef = errors.New("nameId must reference an existing name")
	ErrInvalidCatRef  = errors.New("categoryId must reference an existing category")
	ErrNegativeAmount = errors.New("amount cannot be negative")
	ErrEmptyStatus    = errors.New("status cannot be empty")
	ErrInvalidType    = errors.New("type must be income or expenses")
	ErrMonthMismatch  = errors.New("month does not match date")
)

// ParseTransactionType normalizes a free-text type to the closed set.
// "expense" and "expenses" are synonyms; matching is case-insensitive.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income":
		return TypeIncome, nil
	case "expense", "expenses":
		return TypeExpenses, nil
	default:
		return "", ErrInvalidType
	}
}

// MonthKey derives the "YYYY-MM" aggregation key from a wire-format date.
func MonthKey(date string) string {
	if len(date) < 7 {
		return ""
	}
	return date[:7]
}

// ValidateLabel checks a dimension label for create requests.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return ErrEmptyLabel
	}
	return nil
}

// Normalize validates the transaction, canonicalizes its type spelling
// and derives the stored month from the date. A client-supplied month
// that disagrees with the date is rejected rather than overwritten.
func (t *Transaction) Normalize() error {
	if _, err := time.Parse(DateLayout, t.Date); err != nil {
		return ErrInvalidDate
	}
	if t.NameID <= 0 {
		return ErrInvalidNameRef
	}
	if t.CategoryID <= 0 {
		return ErrInvalidCatRef
	}
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	if strings.TrimSpace(t.Status) == "" {
		return ErrEmptyStatus
	}
	typ, err := ParseTransactionType(t.Type)
	if err != nil {
		return err
	}
	derived := MonthKey(t.Date)
	if t.Month != "" && t.Month != derived {
		return ErrMonthMismatch
	}

	t.Type = string(typ)
	t.Status = strings.TrimSpace(t.Status)
	t.Description = strings.TrimSpace(t.Description)
	t.Month = derived
	return nil
}
