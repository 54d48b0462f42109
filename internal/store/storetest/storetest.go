// Package storetest holds the behaviour every store backend must share.
// Backend packages run it from their own tests:
//
//	suite.Run(t, &storetest.Suite{NewBackend: func(t *testing.T) storetest.Backend { ... }})
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"dailyexpense/internal/core"
	"dailyexpense/internal/store"
)

// Backend is the full set of ports a backend provides.
type Backend interface {
	store.ExpenseStore
	store.AccountStore
	store.HealthChecker
}

type Suite struct {
	suite.Suite

	// NewBackend returns an empty backend. Cleanup is registered on t.
	NewBackend func(t *testing.T) Backend

	b   Backend
	ctx context.Context
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.b = s.NewBackend(s.T())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func (s *Suite) add(owner string, amount float64, cat core.Category, note string, date time.Time) core.Expense {
	e, err := s.b.CreateExpense(s.ctx, core.Expense{
		Owner:    owner,
		Amount:   core.MoneyFromFloat(amount),
		Category: cat,
		Note:     note,
		Date:     date,
	})
	s.Require().NoError(err)
	return e
}

func (s *Suite) TestPing() {
	s.NoError(s.b.Ping(s.ctx))
}

func (s *Suite) TestCreateThenList() {
	created := s.add("d1", 150, core.Food, "Lunch", day(2024, 1, 1))
	s.NotEmpty(created.ID)
	s.False(created.CreatedAt.IsZero())

	list, err := s.b.ListExpenses(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(list, 1)

	got := list[0]
	s.Equal(created.ID, got.ID)
	s.Equal("d1", got.Owner)
	s.True(core.MoneyFromFloat(150).Equal(got.Amount), "amount %s", got.Amount)
	s.Equal(core.Food, got.Category)
	s.Equal("Lunch", got.Note)
	s.True(day(2024, 1, 1).Equal(got.Date), "date %v", got.Date)
}

func (s *Suite) TestListOrder() {
	older := s.add("d1", 1, core.Food, "older", day(2024, 1, 1))
	tieA := s.add("d1", 2, core.Food, "tie a", day(2024, 2, 1))
	newest := s.add("d1", 3, core.Food, "newest", day(2024, 3, 1))
	tieB := s.add("d1", 4, core.Food, "tie b", day(2024, 2, 1))

	list, err := s.b.ListExpenses(s.ctx, "d1")
	s.Require().NoError(err)
	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.ID
	}
	s.Equal([]string{newest.ID, tieA.ID, tieB.ID, older.ID}, ids)
}

func (s *Suite) TestOwnerIsolation() {
	mine := s.add("d1", 10, core.Food, "mine", day(2024, 1, 1))

	list, err := s.b.ListExpenses(s.ctx, "d2")
	s.Require().NoError(err)
	s.Empty(list)

	amt := core.MoneyFromFloat(999)
	_, err = s.b.UpdateExpense(s.ctx, "d2", mine.ID, core.ExpensePatch{Amount: &amt})
	s.ErrorIs(err, core.ErrExpenseNotFound)

	s.ErrorIs(s.b.DeleteExpense(s.ctx, "d2", mine.ID), core.ErrExpenseNotFound)

	list, err = s.b.ListExpenses(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.True(core.MoneyFromFloat(10).Equal(list[0].Amount))
}

func (s *Suite) TestUpdatePartialAndIdempotent() {
	e := s.add("d1", 10, core.Food, "lunch", day(2024, 1, 1))

	cat := core.Travel
	patch := core.ExpensePatch{Category: &cat}
	first, err := s.b.UpdateExpense(s.ctx, "d1", e.ID, patch)
	s.Require().NoError(err)
	s.Equal(core.Travel, first.Category)
	s.Equal("lunch", first.Note)
	s.True(core.MoneyFromFloat(10).Equal(first.Amount))
	s.Equal(e.ID, first.ID)
	s.Equal("d1", first.Owner)

	second, err := s.b.UpdateExpense(s.ctx, "d1", e.ID, patch)
	s.Require().NoError(err)
	s.Equal(first.Category, second.Category)
	s.Equal(first.Note, second.Note)
	s.True(first.Amount.Equal(second.Amount))
	s.True(first.Date.Equal(second.Date))
}

func (s *Suite) TestUpdateEveryField() {
	e := s.add("d1", 10, core.Food, "lunch", day(2024, 1, 1))

	amt := core.MoneyFromFloat(12.5)
	cat := core.Study
	note := ""
	date := day(2024, 5, 5)
	got, err := s.b.UpdateExpense(s.ctx, "d1", e.ID, core.ExpensePatch{Amount: &amt, Category: &cat, Note: &note, Date: &date})
	s.Require().NoError(err)
	s.True(amt.Equal(got.Amount))
	s.Equal(core.Study, got.Category)
	s.Equal("", got.Note)
	s.True(date.Equal(got.Date))
	s.WithinDuration(e.CreatedAt, got.CreatedAt, time.Millisecond)
}

func (s *Suite) TestDeleteTwice() {
	e := s.add("d1", 5, core.Snacks, "", day(2024, 1, 1))
	s.Require().NoError(s.b.DeleteExpense(s.ctx, "d1", e.ID))
	s.ErrorIs(s.b.DeleteExpense(s.ctx, "d1", e.ID), core.ErrExpenseNotFound)

	list, err := s.b.ListExpenses(s.ctx, "d1")
	s.Require().NoError(err)
	s.Empty(list)
}

func (s *Suite) TestMalformedIDIsNotFound() {
	s.add("d1", 5, core.Snacks, "", day(2024, 1, 1))
	amt := core.MoneyFromFloat(1)
	_, err := s.b.UpdateExpense(s.ctx, "d1", "not-an-id", core.ExpensePatch{Amount: &amt})
	s.ErrorIs(err, core.ErrExpenseNotFound)
	s.ErrorIs(s.b.DeleteExpense(s.ctx, "d1", "not-an-id"), core.ErrExpenseNotFound)
}

func (s *Suite) TestSummary() {
	s.add("d1", 100, core.Food, "", day(2024, 1, 1))
	s.add("d1", 50, core.Food, "", day(2024, 1, 2))
	s.add("d1", 30, core.Travel, "", day(2024, 1, 3))
	s.add("d2", 70, core.Others, "", day(2024, 1, 3))

	totals, err := s.b.SummarizeByCategory(s.ctx, "d1")
	s.Require().NoError(err)
	got := map[core.Category]string{}
	for _, t := range totals {
		got[t.Category] = t.Total.String()
	}
	s.Equal(map[core.Category]string{core.Food: "150.00", core.Travel: "30.00"}, got)

	totals, err = s.b.SummarizeByCategory(s.ctx, "nobody")
	s.Require().NoError(err)
	s.Empty(totals)
}

func (s *Suite) TestSummaryKeepsCents() {
	s.add("d1", 0.1, core.Food, "", day(2024, 1, 1))
	s.add("d1", 0.2, core.Food, "", day(2024, 1, 1))

	totals, err := s.b.SummarizeByCategory(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.Equal("0.30", totals[0].Total.String())
}

func (s *Suite) TestLargestAmount() {
	largest := core.MoneyFromCents(999999999)
	s.Require().NoError(largest.Validate())
	for i := 0; i < 3; i++ {
		_, err := s.b.CreateExpense(s.ctx, core.Expense{
			Owner:    "d1",
			Amount:   largest,
			Category: core.Food,
			Date:     day(2024, 1, 1+i),
		})
		s.Require().NoError(err)
	}

	list, err := s.b.ListExpenses(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(list, 3)
	s.Equal("9999999.99", list[0].Amount.String())

	totals, err := s.b.SummarizeByCategory(s.ctx, "d1")
	s.Require().NoError(err)
	s.Require().Len(totals, 1)
	s.Equal("29999999.97", totals[0].Total.String())
}

func (s *Suite) TestAccounts() {
	t := s.T()
	a, err := s.b.CreateAccount(s.ctx, core.Account{Username: "demo", Email: "demo@student.com", PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.CreatedAt.IsZero())

	byEmail, err := s.b.FindAccountByEmail(s.ctx, "demo@student.com")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := s.b.FindAccountByID(s.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "demo", byID.Username)

	either, err := s.b.FindAccountByEmailOrUsername(s.ctx, "other@student.com", "demo")
	require.NoError(t, err)
	assert.Equal(t, a.ID, either.ID)

	_, err = s.b.FindAccountByEmail(s.ctx, "missing@student.com")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	_, err = s.b.FindAccountByID(s.ctx, "not-an-id")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
	_, err = s.b.FindAccountByEmailOrUsername(s.ctx, "x@y.z", "nobody")
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func (s *Suite) TestDuplicateAccounts() {
	_, err := s.b.CreateAccount(s.ctx, core.Account{Username: "demo", Email: "demo@student.com", PasswordHash: "h"})
	s.Require().NoError(err)

	_, err = s.b.CreateAccount(s.ctx, core.Account{Username: "other", Email: "demo@student.com", PasswordHash: "h"})
	s.ErrorIs(err, core.ErrEmailTaken)

	_, err = s.b.CreateAccount(s.ctx, core.Account{Username: "demo", Email: "other@student.com", PasswordHash: "h"})
	s.ErrorIs(err, core.ErrUsernameTaken)
}
