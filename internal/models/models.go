package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Bank struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	FoundationDate time.Time `json:"foundation_date"`
	CreatedAt      time.Time `json:"created_at"`
}

type Client struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Account struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id"`
	BankID    string          `json:"bank_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is an immutable record of one accepted transfer.
type Transaction struct {
	ID              string          `json:"id"`
	InitializerID   string          `json:"initializer_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate time.Time       `json:"transaction_date"`
	Description     *string         `json:"description,omitempty"`
	FromAccountID   string          `json:"from_account_id"`
	ToAccountID     string          `json:"to_account_id"`
	IdempotencyKey  *string         `json:"idempotency_key,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type BankClient struct {
	BankID   string `json:"bank_id"`
	ClientID string `json:"client_id"`
}

type AuditLog struct {
	ID         string          `json:"id"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Action     string          `json:"action"`
	OldValue   json.RawMessage `json:"old_value"`
	NewValue   json.RawMessage `json:"new_value"`
	CreatedAt  time.Time       `json:"created_at"`
}

const (
	AuditActionCreate   = "CREATE"
	AuditActionUpdate   = "UPDATE"
	AuditActionDelete   = "DELETE"
	AuditActionTransfer = "TRANSFER"
	AuditActionDebit    = "DEBIT"
	AuditActionCredit   = "CREDIT"
)

const (
	EntityTypeBank        = "BANK"
	EntityTypeClient      = "CLIENT"
	EntityTypeAccount     = "ACCOUNT"
	EntityTypeTransaction = "TRANSACTION"
)

// Actor is the already-authenticated identity on whose behalf an operation runs.
type Actor struct {
	UserID   string
	ClientID string
	IsAdmin  bool
}

type AccountFilter struct {
	ClientID string
	BankID   string
}

// TransactionFilter selects transactions; set fields are ORed together.
type TransactionFilter struct {
	InitializerID string
	AccountID     string
	ClientID      string
}

type AccountBalanceSnapshot struct {
	ID      string          `json:"id"`
	Balance decimal.Decimal `json:"balance"`
}

// Today truncates t to midnight UTC of its calendar day.
func Today(t time.Time) time.Time {
	return TodayIn(t, time.UTC)
}

// TodayIn returns the calendar day of t as observed in loc. Dates are always
// represented at midnight UTC.
func TodayIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
