package types

import "time"

// Review is a studied topic with a scheduled follow-up date. Cycle and
// LastInterval are recorded as supplied by the client.
type Review struct {
	ID int `json:"id" db:"id"`

	Topic string `json:"topic" db:"topic"`

	// Date is the scheduled review date, stored verbatim as sent by the
	// client (usually an ISO 8601 timestamp).
	Date string `json:"date" db:"date"`

	// Cycle counts how many times the topic has been reviewed. Defaults to 1.
	Cycle int `json:"cycle" db:"cycle"`

	// LastInterval is the previous spacing in days. Defaults to 0.
	LastInterval int `json:"lastInterval" db:"last_interval"`

	// AccountID references the owning account.
	AccountID int `json:"-" db:"account_id"`

	CreatedAt time.Time `json:"-" db:"created_at"`
}
