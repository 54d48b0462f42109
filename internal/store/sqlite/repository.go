package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dailyexpense/internal/core"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/store"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so that TEXT ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const expenseColumns = "id, owner_key, amount_cents, category, note, date, created_at"

type Repository struct {
	db *sql.DB
}

var (
	_ store.ExpenseStore  = (*Repository)(nil)
	_ store.AccountStore  = (*Repository)(nil)
	_ store.HealthChecker = (*Repository)(nil)
)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer; serialize through one connection.
	db.SetMaxOpenConns(1)

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

// Ping implements store.HealthChecker
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ListExpenses implements store.ExpenseStore
func (r *Repository) ListExpenses(ctx context.Context, owner string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE owner_key = ? ORDER BY date DESC, rowid ASC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// CreateExpense implements store.ExpenseStore
func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	e.Date = e.Date.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.Amount.Cents(), string(e.Category), e.Note,
		formatTime(e.Date), formatTime(e.CreatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentStorage).DebugContext(ctx, "Expense saved to SQLite",
		applog.FieldExpenseID, e.ID,
		"amount_cents", e.Amount.Cents(),
		applog.FieldCategory, e.Category)

	return e, nil
}

// UpdateExpense implements store.ExpenseStore
func (r *Repository) UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error) {
	var (
		amount   sql.NullInt64
		category sql.NullString
		note     sql.NullString
		date     sql.NullString
	)
	if p.Amount != nil {
		amount = sql.NullInt64{Int64: p.Amount.Cents(), Valid: true}
	}
	if p.Category != nil {
		category = sql.NullString{String: string(*p.Category), Valid: true}
	}
	if p.Note != nil {
		note = sql.NullString{String: *p.Note, Valid: true}
	}
	if p.Date != nil {
		date = sql.NullString{String: formatTime(*p.Date), Valid: true}
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE expenses SET
			amount_cents = COALESCE(?, amount_cents),
			category     = COALESCE(?, category),
			note         = COALESCE(?, note),
			date         = COALESCE(?, date)
		WHERE id = ? AND owner_key = ?
		RETURNING `+expenseColumns,
		amount, category, note, date, id, owner)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %s: %w", id, err)
	}
	return e, nil
}

// DeleteExpense implements store.ExpenseStore
func (r *Repository) DeleteExpense(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND owner_key = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	if n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

// SummarizeByCategory implements store.ExpenseStore
func (r *Repository) SummarizeByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents) FROM expenses WHERE owner_key = ? GROUP BY category`, owner)
	if err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}
	defer rows.Close()

	out := []core.CategoryTotal{}
	for rows.Next() {
		var (
			category string
			cents    int64
		)
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, core.CategoryTotal{Category: core.Category(category), Total: core.MoneyFromCents(cents)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	core.SortTotals(out)
	return out, nil
}

// CreateAccount implements store.AccountStore
func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.Username, a.Email, a.PasswordHash, formatTime(a.CreatedAt))
	if err != nil {
		if msg := err.Error(); strings.Contains(msg, "UNIQUE constraint failed: users.email") {
			return core.Account{}, core.ErrEmailTaken
		} else if strings.Contains(msg, "UNIQUE constraint failed: users.username") {
			return core.Account{}, core.ErrUsernameTaken
		}
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

// FindAccountByEmailOrUsername implements store.AccountStore
func (r *Repository) FindAccountByEmailOrUsername(ctx context.Context, email, username string) (core.Account, error) {
	return r.findAccount(ctx, `email = ? OR username = ? ORDER BY email = ? DESC LIMIT 1`, email, username, email)
}

// FindAccountByEmail implements store.AccountStore
func (r *Repository) FindAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	return r.findAccount(ctx, `email = ?`, email)
}

// FindAccountByID implements store.AccountStore
func (r *Repository) FindAccountByID(ctx context.Context, id string) (core.Account, error) {
	return r.findAccount(ctx, `id = ?`, id)
}

func (r *Repository) findAccount(ctx context.Context, where string, args ...any) (core.Account, error) {
	var (
		a       core.Account
		created string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+where, args...).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrAccountNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("find account: %w", err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return core.Account{}, fmt.Errorf("parse account created_at: %w", err)
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e        core.Expense
		cents    int64
		category string
		date     string
		created  string
	)
	if err := row.Scan(&e.ID, &e.Owner, &cents, &category, &e.Note, &date, &created); err != nil {
		return core.Expense{}, err
	}
	e.Amount = core.MoneyFromCents(cents)
	e.Category = core.Category(category)

	var err error
	if e.Date, err = parseTime(date); err != nil {
		return core.Expense{}, fmt.Errorf("parse date: %w", err)
	}
	if e.CreatedAt, err = parseTime(created); err != nil {
		return core.Expense{}, fmt.Errorf("parse created_at: %w", err)
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
