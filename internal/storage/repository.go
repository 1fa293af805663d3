// Package storage implements the SQLite-backed transaction and dimension
// stores. It owns referential integrity, label uniqueness and the
// denormalizing join between transactions and their dimension tables.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"fintrack/internal/core"

	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound signals a mutate or read on an absent id.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate signals a dimension label that already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrMissingReference signals a transaction pointing at a dimension
	// row that does not exist. Such writes are rejected, never nulled.
	ErrMissingReference = errors.New("referenced row does not exist")
)

// SQLiteRepository is the single source of truth for financial rows.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath,
// runs migrations and enables foreign key enforcement.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Dimension stores -------------------------------------------------

// ListNames returns all names sorted by label.
func (r *SQLiteRepository) ListNames(ctx context.Context) ([]core.Name, error) {
	return r.listDimension(ctx, "names")
}

// ListCategories returns all categories sorted by label.
func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.listDimension(ctx, "categories")
	if err != nil {
		return nil, err
	}
	out := make([]core.Category, len(rows))
	for i, n := range rows {
		out[i] = core.Category{ID: n.ID, Label: n.Label}
	}
	return out, nil
}

func (r *SQLiteRepository) listDimension(ctx context.Context, table string) ([]core.Name, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, label FROM `+table+` ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := make([]core.Name, 0)
	for rows.Next() {
		var n core.Name
		if err := rows.Scan(&n.ID, &n.Label); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", table, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// CreateName inserts a new payee label. Duplicates yield ErrDuplicate.
func (r *SQLiteRepository) CreateName(ctx context.Context, label string) (core.Name, error) {
	id, err := r.createDimension(ctx, "names", label)
	if err != nil {
		return core.Name{}, err
	}
	return core.Name{ID: id, Label: strings.TrimSpace(label)}, nil
}

// CreateCategory inserts a new category label. Duplicates yield ErrDuplicate.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, label string) (core.Category, error) {
	id, err := r.createDimension(ctx, "categories", label)
	if err != nil {
		return core.Category{}, err
	}
	return core.Category{ID: id, Label: strings.TrimSpace(label)}, nil
}

func (r *SQLiteRepository) createDimension(ctx context.Context, table, label string) (int64, error) {
	if err := core.ValidateLabel(label); err != nil {
		return 0, err
	}
	label = strings.TrimSpace(label)

	res, err := r.db.ExecContext(ctx, `INSERT INTO `+table+` (label) VALUES (?)`, label)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%s label %q: %w", table, label, ErrDuplicate)
		}
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	slog.InfoContext(ctx, "Dimension row created", "table", table, "id", id, "label", label)
	return id, nil
}

// --- Transaction store ------------------------------------------------

const joinedSelect = `
SELECT t.id, t.date, n.label, c.label, t.amount, t.status, t.type, t.description, t.month
FROM transactions t
LEFT JOIN names n ON t.name_id = n.id
LEFT JOIN categories c ON t.category_id = c.id`

// ListTransactions returns the full denormalized record set ordered by
// date descending, then id descending. Rows whose dimension reference is
// missing come back with the unknown label instead of being dropped.
func (r *SQLiteRepository) ListTransactions(ctx context.Context) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, joinedSelect+` ORDER BY t.date DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListTransactionsByMonth returns the denormalized records for one month
// key, same ordering as ListTransactions.
func (r *SQLiteRepository) ListTransactionsByMonth(ctx context.Context, month string) ([]core.Record, error) {
	rows, err := r.db.QueryContext(ctx, joinedSelect+` WHERE t.month = ? ORDER BY t.date DESC, t.id DESC`, month)
	if err != nil {
		return nil, fmt.Errorf("list transactions for month %s: %w", month, err)
	}
	defer rows.Close()

	out := make([]core.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(rows *sql.Rows) (core.Record, error) {
	var (
		rec         core.Record
		name, cat   sql.NullString
		amount      float64
		description sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.Date, &name, &cat, &amount, &rec.Status, &rec.Type, &description, &rec.Month); err != nil {
		return core.Record{}, fmt.Errorf("scan transaction row: %w", err)
	}
	rec.Name = core.UnknownLabel
	if name.Valid {
		rec.Name = name.String
	}
	rec.Category = core.UnknownLabel
	if cat.Valid {
		rec.Category = cat.String
	}
	rec.Amount = core.AmountFromFloat(amount)
	rec.Description = description.String
	return rec, nil
}

// GetTransaction returns one normalized row by id.
func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	var (
		t           core.Transaction
		description sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
SELECT id, date, name_id, category_id, amount, status, type, description, month
FROM transactions WHERE id = ?`, id).
		Scan(&t.ID, &t.Date, &t.NameID, &t.CategoryID, &t.Amount, &t.Status, &t.Type, &description, &t.Month)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	t.Description = description.String
	return t, nil
}

// checkReferences verifies both dimension references exist, so a write
// against a missing row fails with a clear error instead of a bare
// constraint violation.
func (r *SQLiteRepository) checkReferences(ctx context.Context, t core.Transaction) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM names WHERE id = ?)`, t.NameID).Scan(&exists); err != nil {
		return fmt.Errorf("check name reference: %w", err)
	}
	if !exists {
		return fmt.Errorf("name %d: %w", t.NameID, ErrMissingReference)
	}
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM categories WHERE id = ?)`, t.CategoryID).Scan(&exists); err != nil {
		return fmt.Errorf("check category reference: %w", err)
	}
	if !exists {
		return fmt.Errorf("category %d: %w", t.CategoryID, ErrMissingReference)
	}
	return nil
}

// CreateTransaction inserts a normalized row and returns it with the
// generated id. The caller is expected to have run Normalize already;
// referential integrity is enforced here.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := r.checkReferences(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO transactions (date, name_id, category_id, amount, status, type, description, month)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Date, t.NameID, t.CategoryID, t.Amount, t.Status, t.Type, t.Description, t.Month)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("last insert id: %w", err)
	}
	t.ID = id

	slog.InfoContext(ctx, "Transaction created",
		"id", t.ID, "date", t.Date, "amount", t.Amount, "type", t.Type, "month", t.Month)
	return t, nil
}

// UpdateTransaction replaces the row with the given id. ErrNotFound when
// the id does not exist.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := r.checkReferences(ctx, t); err != nil {
		return core.Transaction{}, err
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE transactions
SET date = ?, name_id = ?, category_id = ?, amount = ?, status = ?, type = ?, description = ?, month = ?
WHERE id = ?`,
		t.Date, t.NameID, t.CategoryID, t.Amount, t.Status, t.Type, t.Description, t.Month, t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, fmt.Errorf("transaction %d: %w", t.ID, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction updated", "id", t.ID, "month", t.Month)
	return t, nil
}

// DeleteTransaction removes the row with the given id. ErrNotFound when
// the id does not exist; the store is left unchanged in that case.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	return nil
}
