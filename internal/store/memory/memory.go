package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"dailyexpense/internal/core"
	"dailyexpense/internal/store"
)

// Store keeps expenses and accounts in process memory. It is safe for
// concurrent use and loses everything on restart.
type Store struct {
	mu       sync.Mutex
	seq      int64
	items    []entry
	accounts []core.Account
	now      func() time.Time
}

type entry struct {
	seq int64
	e   core.Expense
}

var (
	_ store.ExpenseStore  = (*Store)(nil)
	_ store.AccountStore  = (*Store)(nil)
	_ store.HealthChecker = (*Store)(nil)
)

func New() *Store {
	return &Store{now: time.Now}
}

// ListExpenses implements store.ExpenseStore.
func (s *Store) ListExpenses(_ context.Context, owner string) ([]core.Expense, error) {
	s.mu.Lock()
	matched := make([]entry, 0, len(s.items))
	for _, it := range s.items {
		if it.e.Owner == owner {
			matched = append(matched, it)
		}
	}
	s.mu.Unlock()

	slices.SortStableFunc(matched, func(a, b entry) int {
		if c := b.e.Date.Compare(a.e.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]core.Expense, len(matched))
	for i, it := range matched {
		out[i] = it.e
	}
	return out, nil
}

// CreateExpense implements store.ExpenseStore.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = uuid.NewString()
	e.CreatedAt = s.now().UTC()
	s.items = append(s.items, entry{seq: s.seq, e: e})
	return e, nil
}

// UpdateExpense implements store.ExpenseStore.
func (s *Store) UpdateExpense(_ context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(owner, id)
	if i < 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	s.items[i].e = p.Apply(s.items[i].e)
	return s.items[i].e, nil
}

// DeleteExpense implements store.ExpenseStore.
func (s *Store) DeleteExpense(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(owner, id)
	if i < 0 {
		return core.ErrExpenseNotFound
	}
	s.items = slices.Delete(s.items, i, i+1)
	return nil
}

// SummarizeByCategory implements store.ExpenseStore.
func (s *Store) SummarizeByCategory(_ context.Context, owner string) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sums := make(map[core.Category]core.Money)
	for _, it := range s.items {
		if it.e.Owner == owner {
			sums[it.e.Category] = sums[it.e.Category].Add(it.e.Amount)
		}
	}
	out := make([]core.CategoryTotal, 0, len(sums))
	for c, total := range sums {
		out = append(out, core.CategoryTotal{Category: c, Total: total})
	}
	core.SortTotals(out)
	return out, nil
}

func (s *Store) indexOf(owner, id string) int {
	for i, it := range s.items {
		if it.e.ID == id && it.e.Owner == owner {
			return i
		}
	}
	return -1
}

// CreateAccount implements store.AccountStore.
func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.Email == a.Email || existing.Username == a.Username {
			return core.Account{}, store.DuplicateAccountError(existing, a.Email)
		}
	}
	a.ID = uuid.NewString()
	a.CreatedAt = s.now().UTC()
	s.accounts = append(s.accounts, a)
	return a, nil
}

// FindAccountByEmailOrUsername implements store.AccountStore.
func (s *Store) FindAccountByEmailOrUsername(_ context.Context, email, username string) (core.Account, error) {
	return s.findAccount(func(a core.Account) bool { return a.Email == email || a.Username == username })
}

// FindAccountByEmail implements store.AccountStore.
func (s *Store) FindAccountByEmail(_ context.Context, email string) (core.Account, error) {
	return s.findAccount(func(a core.Account) bool { return a.Email == email })
}

// FindAccountByID implements store.AccountStore.
func (s *Store) FindAccountByID(_ context.Context, id string) (core.Account, error) {
	return s.findAccount(func(a core.Account) bool { return a.ID == id })
}

func (s *Store) findAccount(match func(core.Account) bool) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if match(a) {
			return a, nil
		}
	}
	return core.Account{}, core.ErrAccountNotFound
}

// Ping implements store.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Close implements io.Closer.
func (s *Store) Close() error { return nil }
