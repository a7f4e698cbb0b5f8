package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"outlay/internal/core"

	_ "modernc.org/sqlite"
)

// Export lifecycle values for the expenses.export_status column.
const (
	ExportStatusPending  = "pending"
	ExportStatusExported = "exported"
	ExportStatusError    = "error"
)

// ErrDuplicateName is returned when a write trips the unique index on
// categories.name. The application-level pre-check catches duplicates
// first; this is the store-layer backstop for racing writers.
var ErrDuplicateName = errors.New("category name already exists")

// Repository is the persistence handle for categories and expenses.
// It is constructed once at startup and closed on shutdown.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListCategories returns all categories in store-native order.
func (r *Repository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	categories := make([]core.Category, 0)
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return categories, nil
}

// GetCategory returns the category with the given id, or nil if absent.
func (r *Repository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category %d: %w", id, err)
	}
	return &c, nil
}

// GetCategoryByName returns the category with the exact (case-sensitive)
// name, or nil if absent.
func (r *Repository) GetCategoryByName(ctx context.Context, name string) (*core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx, `SELECT id, name FROM categories WHERE name = ?`, name).
		Scan(&c.ID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get category by name %q: %w", name, err)
	}
	return &c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name string) (*core.Category, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, name)
	if err != nil {
		if isUniqueNameViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("category insert id: %w", err)
	}
	return &core.Category{ID: id, Name: name}, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id int64, name string) (*core.Category, error) {
	_, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		if isUniqueNameViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update category %d: %w", id, err)
	}
	return &core.Category{ID: id, Name: name}, nil
}

func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category %d: %w", id, err)
	}
	return nil
}

// CountExpensesByCategory backs the referential guard on category deletion.
func (r *Repository) CountExpensesByCategory(ctx context.Context, categoryID int64) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE category_id = ?`, categoryID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expenses for category %d: %w", categoryID, err)
	}
	return count, nil
}

const expenseJoinQuery = `
SELECT e.id, e.amount, e.description, e.date, e.category_id, c.id, c.name
FROM expenses e
LEFT JOIN categories c ON c.id = e.category_id`

// ListExpenses returns all expenses, each joined with its owning category,
// in store-native order.
func (r *Repository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, expenseJoinQuery+` ORDER BY e.id`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanJoinedExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// GetExpense returns the expense with the given id joined with its
// category, or nil if absent.
func (r *Repository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, expenseJoinQuery+` WHERE e.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query expense %d: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("query expense %d: %w", id, err)
		}
		return nil, nil
	}
	return scanJoinedExpense(rows)
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (*core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (amount, description, date, category_id, export_status)
		 VALUES (?, ?, ?, ?, ?)`,
		e.Amount, e.Description, e.Date.String(), e.CategoryID, ExportStatusPending)
	if err != nil {
		return nil, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("expense insert id: %w", err)
	}
	created := e
	created.ID = id
	created.Category = nil
	return &created, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET amount = ?, description = ?, date = ?, category_id = ? WHERE id = ?`,
		e.Amount, e.Description, e.Date.String(), e.CategoryID, e.ID)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	return nil
}

func (r *Repository) DeleteExpense(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	return nil
}

// ListPendingExportExpenses returns expenses not yet mirrored to the
// export target, oldest first.
func (r *Repository) ListPendingExportExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		expenseJoinQuery+` WHERE e.export_status = ? ORDER BY e.id LIMIT ?`,
		ExportStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending export expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanJoinedExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending export expenses: %w", err)
	}
	return expenses, nil
}

// MarkExported records a successful export of the expense.
func (r *Repository) MarkExported(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = ?, exported_at = CURRENT_TIMESTAMP WHERE id = ?`,
		ExportStatusExported, id)
	if err != nil {
		return fmt.Errorf("mark expense %d exported: %w", id, err)
	}
	return nil
}

// MarkExportError records a failed export attempt. The periodic sweep does
// not retry rows in the error state; they need operator attention.
func (r *Repository) MarkExportError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET export_status = ? WHERE id = ?`, ExportStatusError, id)
	if err != nil {
		return fmt.Errorf("mark expense %d export error: %w", id, err)
	}
	return nil
}

func scanJoinedExpense(rows *sql.Rows) (*core.Expense, error) {
	var (
		e       core.Expense
		dateStr string
		catID   sql.NullInt64
		catName sql.NullString
	)
	if err := rows.Scan(&e.ID, &e.Amount, &e.Description, &dateStr, &e.CategoryID, &catID, &catName); err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("expense %d has malformed date: %w", e.ID, err)
	}
	e.Date = date

	// The category row can be gone if it was removed outside the guarded
	// delete path; the expense is still returned, just without the join.
	if catID.Valid {
		e.Category = &core.Category{ID: catID.Int64, Name: catName.String}
	}
	return &e, nil
}

func isUniqueNameViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: categories.name")
}
