package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kekarecall/apiserver/internal/store"
	"github.com/kekarecall/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	Create(ctx context.Context, account types.Account) (types.Account, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
	UpdateCalendarToken(ctx context.Context, id int, token string) error
}

// ExternalProfile is the identity returned by an external provider.
type ExternalProfile struct {
	Email string
	Name  string
}

// AccountService encapsulates registration, login and provider linking.
type AccountService struct {
	repo     AccountRepository
	hashCost int
}

func NewAccountService(repo AccountRepository) *AccountService {
	return &AccountService{repo: repo, hashCost: bcrypt.DefaultCost}
}

func (s *AccountService) Get(ctx context.Context, id int) (types.Account, error) {
	account, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.Account{}, ErrNotFound
	}
	return account, err
}

// Register creates a password account. An existing email fails with
// ErrDuplicateAccount and leaves the stored account untouched.
func (s *AccountService) Register(ctx context.Context, name, email, password string) (types.Account, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return types.Account{}, fmt.Errorf("%w: name, email and password are required", ErrValidation)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.Account{}, ErrDuplicateAccount
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Account{}, fmt.Errorf("check account: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return types.Account{}, fmt.Errorf("hash password: %w", err)
	}

	account, err := s.repo.Create(ctx, types.Account{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return types.Account{}, ErrDuplicateAccount
		}
		return types.Account{}, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

// Login returns the account whose stored hash verifies against password.
func (s *AccountService) Login(ctx context.Context, email, password string) (types.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return types.Account{}, ErrInvalidCredential
	}

	account, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Account{}, ErrInvalidCredential
		}
		return types.Account{}, fmt.Errorf("load account: %w", err)
	}
	if err := s.verify(account, password); err != nil {
		return types.Account{}, err
	}
	return account, nil
}

// ChangePassword replaces the stored hash after verifying the current password.
func (s *AccountService) ChangePassword(ctx context.Context, identity Identity, current, next string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	if next == "" {
		return fmt.Errorf("%w: new password is required", ErrValidation)
	}

	account, err := s.Get(ctx, identity.AccountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrUnauthenticated
		}
		return err
	}
	if err := s.verify(account, current); err != nil {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, account.ID, string(hashed)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// LinkExternal creates the account on first sign-in through a provider,
// using the email as join key, and otherwise replaces its calendar token.
func (s *AccountService) LinkExternal(ctx context.Context, profile ExternalProfile, calendarToken string) (types.Account, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return types.Account{}, fmt.Errorf("%w: provider returned no email", ErrValidation)
	}
	name := strings.TrimSpace(profile.Name)
	if name == "" {
		name = email
	}

	account, err := s.repo.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, store.ErrNotFound):
		account, err = s.repo.Create(ctx, types.Account{
			Name:          name,
			Email:         email,
			CalendarToken: calendarToken,
		})
		if err != nil {
			return types.Account{}, fmt.Errorf("create account: %w", err)
		}
		return account, nil
	case err != nil:
		return types.Account{}, fmt.Errorf("load account: %w", err)
	}

	if err := s.repo.UpdateCalendarToken(ctx, account.ID, calendarToken); err != nil {
		return types.Account{}, fmt.Errorf("store calendar token: %w", err)
	}
	account.CalendarToken = calendarToken
	return account, nil
}

func (s *AccountService) verify(account types.Account, password string) error {
	if account.PasswordHash == "" {
		return ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return ErrInvalidCredential
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
