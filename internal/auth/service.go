// Package auth registers accounts and exchanges credentials for tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dailyexpense/internal/cache"
	"dailyexpense/internal/core"
	"dailyexpense/internal/identity"
	applog "dailyexpense/internal/log"
	"dailyexpense/internal/store"
)

// Session is returned by Register and Login.
type Session struct {
	Token string          `json:"token"`
	User  core.PublicUser `json:"user"`
}

// Accounts never change after creation, so their public view is cached by id.
const (
	userCacheSize = 1024
	userCacheTTL  = 10 * time.Minute
)

type Service struct {
	accounts  store.AccountStore
	tokens    *identity.TokenIssuer
	users     cache.Cache[core.PublicUser]
	cost      int
	dummyHash []byte
}

func NewService(accounts store.AccountStore, tokens *identity.TokenIssuer, bcryptCost int) (*Service, error) {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", bcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	// Compared against when the email is unknown so both login failures
	// cost one bcrypt comparison.
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}
	return &Service{
		accounts:  accounts,
		tokens:    tokens,
		users:     cache.NewLRUCache[core.PublicUser](userCacheSize, userCacheTTL),
		cost:      bcryptCost,
		dummyHash: dummy,
	}, nil
}

// Register creates an account and signs the caller in.
func (s *Service) Register(ctx context.Context, username, email, password string) (Session, error) {
	username = strings.TrimSpace(username)
	email = core.NormalizeEmail(email)
	if err := core.ValidateRegistration(username, email, password); err != nil {
		return Session{}, err
	}

	existing, err := s.accounts.FindAccountByEmailOrUsername(ctx, email, username)
	switch {
	case err == nil:
		return Session{}, store.DuplicateAccountError(existing, email)
	case !errors.Is(err, core.ErrAccountNotFound):
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.accounts.CreateAccount(ctx, core.Account{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if core.IsValidation(err) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("create account: %w", err)
	}

	applog.FromContext(ctx).WithComponent(applog.ComponentAuth).InfoContext(ctx, "Account registered",
		applog.FieldOperation, applog.OpRegister, "account_id", account.ID)
	return s.session(account)
}

// Login verifies credentials. Unknown email and wrong password both return
// core.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = core.NormalizeEmail(email)

	account, err := s.accounts.FindAccountByEmail(ctx, email)
	if errors.Is(err, core.ErrAccountNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Session{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return Session{}, core.ErrInvalidCredentials
	}
	return s.session(account)
}

// Me returns the public view of the account behind a resolved token.
func (s *Service) Me(ctx context.Context, accountID string) (core.PublicUser, error) {
	if user, ok := s.users.Get(accountID); ok {
		return user, nil
	}
	account, err := s.accounts.FindAccountByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, core.ErrAccountNotFound) {
			return core.PublicUser{}, err
		}
		return core.PublicUser{}, fmt.Errorf("lookup account: %w", err)
	}
	user := account.Public()
	s.users.Set(accountID, user)
	return user, nil
}

func (s *Service) session(a core.Account) (Session, error) {
	token, err := s.tokens.Issue(a.ID)
	if err != nil {
		return Session{}, err
	}
	user := a.Public()
	s.users.Set(a.ID, user)
	return Session{Token: token, User: user}, nil
}
