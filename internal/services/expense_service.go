package services

import (
	"context"
	"fmt"
	"time"

	"dailyexpense/internal/amqp"
	"dailyexpense/internal/core"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/store"
)

// EventPublisher receives expense change notifications.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, kind amqp.EventKind, e core.Expense) error
}

// ExpenseService validates expense input, bounds each storage call by a
// timeout and publishes change events after successful writes.
type ExpenseService struct {
	store     store.ExpenseStore
	publisher EventPublisher
	timeout   time.Duration
	now       func() time.Time
}

// NewExpenseService wires the service. publisher may be nil; a zero timeout
// leaves storage calls bounded only by the caller's context.
func NewExpenseService(s store.ExpenseStore, publisher EventPublisher, timeout time.Duration) *ExpenseService {
	return &ExpenseService{
		store:     s,
		publisher: publisher,
		timeout:   timeout,
		now:       time.Now,
	}
}

func (s *ExpenseService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// List returns the owner's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, owner string) ([]core.Expense, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	expenses, err := s.store.ListExpenses(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Add validates the input, applies defaults and stores the expense.
func (s *ExpenseService) Add(ctx context.Context, owner string, in core.NewExpense) (core.Expense, error) {
	e, err := in.Build(owner, s.now().UTC())
	if err != nil {
		return core.Expense{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	logger(ctx).InfoContext(ctx, "Expense created", applog.NewFields().
		WithOperation(applog.OpCreate).
		WithExpense(created.ID, string(created.Category), created.Amount.String()).
		ToSlice()...)

	s.publish(ctx, amqp.EventCreated, created)
	return created, nil
}

// Update applies the present patch fields to the owner's expense.
func (s *ExpenseService) Update(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Normalize(); err != nil {
		return core.Expense{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	updated, err := s.store.UpdateExpense(ctx, owner, id, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if !p.IsEmpty() {
		logger(ctx).InfoContext(ctx, "Expense updated", applog.FieldOperation, applog.OpUpdate, applog.FieldExpenseID, updated.ID)
		s.publish(ctx, amqp.EventUpdated, updated)
	}
	return updated, nil
}

// Delete removes the owner's expense.
func (s *ExpenseService) Delete(ctx context.Context, owner, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.store.DeleteExpense(ctx, owner, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	logger(ctx).InfoContext(ctx, "Expense deleted", applog.FieldOperation, applog.OpDelete, applog.FieldExpenseID, id)
	s.publish(ctx, amqp.EventDeleted, core.Expense{ID: id, Owner: owner})
	return nil
}

// Summary returns per-category totals for the owner.
func (s *ExpenseService) Summary(ctx context.Context, owner string) ([]core.CategoryTotal, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	totals, err := s.store.SummarizeByCategory(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("summarize expenses: %w", err)
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	return totals, nil
}

func (s *ExpenseService) publish(ctx context.Context, kind amqp.EventKind, e core.Expense) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishExpenseEvent(ctx, kind, e); err != nil {
		logger(ctx).ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventType, kind, applog.FieldExpenseID, e.ID, applog.FieldError, err)
		// Don't fail the request - the write already succeeded
	}
}

func logger(ctx context.Context) *applog.Logger {
	return applog.FromContext(ctx).WithComponent(applog.ComponentExpense)
}
