package types

import "time"

// Account represents a registered identity, authenticated either with a
// local password or through Google.
type Account struct {
	// ID is the unique identifier of the account.
	ID int `json:"id" db:"id"`

	// Name is the account's display name.
	Name string `json:"name" db:"name"`

	// Email is unique across accounts and is the lookup key for login
	// and for linking Google profiles.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the account's password.
	// Empty for accounts created through Google.
	PasswordHash string `json:"-" db:"password_hash"`

	// CalendarToken is the serialized OAuth2 token authorizing calendar
	// writes on the account's behalf. Empty until calendar access is granted.
	CalendarToken string `json:"-" db:"calendar_token"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent credential change.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasCalendarAccess reports whether a delegated calendar token is stored.
func (a Account) HasCalendarAccess() bool {
	return a.CalendarToken != ""
}
