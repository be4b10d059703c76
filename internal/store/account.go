package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/kekarecall/apiserver/types"
)

const accountColumns = `
	id, name, email,
	COALESCE(password_hash, '') AS password_hash,
	COALESCE(calendar_token, '') AS calendar_token,
	created_at, updated_at`

// AccountRepository handles persistence for accounts.
type AccountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int) (types.Account, error) {
	query := r.db.Rebind(`SELECT` + accountColumns + ` FROM accounts WHERE id = ?`)
	return r.get(ctx, query, id)
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	query := r.db.Rebind(`SELECT` + accountColumns + ` FROM accounts WHERE email = ?`)
	return r.get(ctx, query, email)
}

func (r *AccountRepository) get(ctx context.Context, query string, arg any) (types.Account, error) {
	var account types.Account
	if err := r.db.GetContext(ctx, &account, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := time.Now().UTC()
	account.CreatedAt = now
	account.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO accounts (name, email, password_hash, calendar_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`)
	if err := r.db.QueryRowxContext(
		ctx,
		query,
		account.Name,
		account.Email,
		nullString(account.PasswordHash),
		nullString(account.CalendarToken),
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, fmt.Errorf("account %q: %w", account.Email, ErrDuplicate)
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) UpdatePassword(ctx context.Context, id int, passwordHash string) error {
	query := r.db.Rebind(`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE id = ?`)
	return r.exec(ctx, query, nullString(passwordHash), time.Now().UTC(), id)
}

func (r *AccountRepository) UpdateCalendarToken(ctx context.Context, id int, token string) error {
	query := r.db.Rebind(`UPDATE accounts SET calendar_token = ?, updated_at = ? WHERE id = ?`)
	return r.exec(ctx, query, nullString(token), time.Now().UTC(), id)
}

func (r *AccountRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
