package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar date that travels as an ISO-8601 "YYYY-MM-DD" string.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Time: Today(t)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("date must be formatted as YYYY-MM-DD: %w", err)
	}
	d.Time = t
	return nil
}

type CreateBankRequest struct {
	Title          string `json:"title"`
	FoundationDate Date   `json:"foundation_date"`
}

type UpdateBankRequest struct {
	Title          string `json:"title"`
	FoundationDate Date   `json:"foundation_date"`
}

type BankResponse struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	FoundationDate Date   `json:"foundation_date"`
}

type CreateClientRequest struct {
	UserID    string `json:"user_id,omitempty"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type UpdateClientRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type ClientResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

type CreateAccountRequest struct {
	ClientID       string          `json:"client_id"`
	BankID         string          `json:"bank_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type AccountResponse struct {
	ID       string          `json:"id"`
	ClientID string          `json:"client_id"`
	BankID   string          `json:"bank_id"`
	Balance  decimal.Decimal `json:"balance"`
}

type CreateTransactionRequest struct {
	FromAccountID   string          `json:"from_account_id"`
	ToAccountID     string          `json:"to_account_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate Date            `json:"transaction_date"`
	Description     *string         `json:"description,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
}

type TransactionResponse struct {
	ID              string          `json:"id"`
	InitializerID   string          `json:"initializer_id"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate Date            `json:"transaction_date"`
	Description     *string         `json:"description,omitempty"`
	FromAccountID   string          `json:"from_account_id"`
	ToAccountID     string          `json:"to_account_id"`
}

type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldIssue `json:"fields,omitempty"`
}

type FieldIssue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewBankResponse(b *Bank) BankResponse {
	return BankResponse{ID: b.ID, Title: b.Title, FoundationDate: NewDate(b.FoundationDate)}
}

func NewClientResponse(c *Client) ClientResponse {
	return ClientResponse{ID: c.ID, FirstName: c.FirstName, LastName: c.LastName, Phone: c.Phone}
}

func NewAccountResponse(a *Account) AccountResponse {
	return AccountResponse{ID: a.ID, ClientID: a.ClientID, BankID: a.BankID, Balance: a.Balance.Round(2)}
}

func NewTransactionResponse(t *Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              t.ID,
		InitializerID:   t.InitializerID,
		Amount:          t.Amount.Round(2),
		TransactionDate: NewDate(t.TransactionDate),
		Description:     t.Description,
		FromAccountID:   t.FromAccountID,
		ToAccountID:     t.ToAccountID,
	}
}
