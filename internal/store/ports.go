// Package store declares the persistence ports used by the services and the
// HTTP layer. Every expense operation is scoped by owner key; ownership is
// part of the lookup itself, so a foreign id behaves exactly like a missing
// one.
package store

import (
	"context"

	"dailyexpense/internal/core"
)

// Ports for outbound adapters.
type (
	ExpenseStore interface {
		// ListExpenses returns the owner's expenses, newest date first. Entries
		// sharing a date keep insertion order.
		ListExpenses(ctx context.Context, owner string) ([]core.Expense, error)
		// CreateExpense assigns ID and CreatedAt and returns the stored record.
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		// UpdateExpense applies the present patch fields to the expense matching
		// both id and owner. Returns core.ErrExpenseNotFound when nothing matches.
		UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error)
		// DeleteExpense removes the expense matching both id and owner.
		DeleteExpense(ctx context.Context, owner, id string) error
		// SummarizeByCategory sums the owner's amounts per category. Categories
		// without expenses are omitted.
		SummarizeByCategory(ctx context.Context, owner string) ([]core.CategoryTotal, error)
	}

	AccountStore interface {
		// CreateAccount assigns ID and CreatedAt. Duplicate email or username
		// yield core.ErrEmailTaken or core.ErrUsernameTaken.
		CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
		// FindAccountByEmailOrUsername returns any account matching either field.
		FindAccountByEmailOrUsername(ctx context.Context, email, username string) (core.Account, error)
		FindAccountByEmail(ctx context.Context, email string) (core.Account, error)
		FindAccountByID(ctx context.Context, id string) (core.Account, error)
	}

	// HealthChecker reports whether the database is reachable.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// DuplicateAccountError picks the error for a registration clashing with
// existing. A matching email is reported before a matching username.
func DuplicateAccountError(existing core.Account, email string) error {
	if existing.Email == email {
		return core.ErrEmailTaken
	}
	return core.ErrUsernameTaken
}
