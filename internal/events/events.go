// Package events publishes ledger domain events to a message broker.
package events

import (
	"context"
	"log/slog"
	"time"
)

const (
	RoutingKeyTransferCompleted = "transfer.completed"
	RoutingKeyAccountDeleted    = "account.deleted"
)

// Publisher is the interface implemented by types that can publish events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body any) error
	Close()
}

type TransferCompleted struct {
	TransactionID   string    `json:"transaction_id"`
	InitializerID   string    `json:"initializer_id"`
	FromAccountID   string    `json:"from_account_id"`
	ToAccountID     string    `json:"to_account_id"`
	Amount          string    `json:"amount"`
	TransactionDate string    `json:"transaction_date"`
	OccurredAt      time.Time `json:"occurred_at"`
}

type AccountDeleted struct {
	AccountID  string    `json:"account_id"`
	ClientID   string    `json:"client_id"`
	BankID     string    `json:"bank_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NoopPublisher drops every event. Used when no broker is configured or the
// broker is unreachable at startup.
type NoopPublisher struct {
	logger *slog.Logger
}

func NewNoopPublisher(logger *slog.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

func (p *NoopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	if p.logger != nil {
		p.logger.Debug("event publish skipped", "routing_key", routingKey)
	}
	return nil
}

func (p *NoopPublisher) Close() {}
