package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
	"github.com/riteshkumar/bank-ledger/internal/repository/memory"
)

var fixedNow = time.Date(2024, time.May, 10, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher keeps every published event in memory.
type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
	fail error
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return p.fail
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func (p *recordingPublisher) Close() {}

type testEnv struct {
	store      *memory.Store
	publisher  *recordingPublisher
	banks      *BankServiceImpl
	clients    *ClientServiceImpl
	accounts   *AccountServiceImpl
	transfers  *TransactionServiceImpl
	maintainer *Maintainer
	admin      models.Actor
}

func defaultLimits() TransferLimits {
	return TransferLimits{
		MaxAmount:  decimal.NewFromInt(1_000_000_000),
		MaxBalance: decimal.NewFromInt(1_000_000_000),
		MaxRetries: 3,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLedger(t, nil, defaultLimits())
}

// newTestEnvWithLedger wires every service against one memory store. A
// non-nil wrap decorates the ledger seen by the transfer engine.
func newTestEnvWithLedger(t *testing.T, wrap func(repository.Ledger) repository.Ledger, limits TransferLimits) *testEnv {
	t.Helper()
	logger := discardLogger()
	store := memory.NewStore()
	publisher := &recordingPublisher{}

	var ledger repository.Ledger = store
	if wrap != nil {
		ledger = wrap(store)
	}

	maintainer := NewMaintainer(store, publisher, logger)
	return &testEnv{
		store:      store,
		publisher:  publisher,
		banks:      NewBankService(store, store, logger),
		clients:    NewClientService(store, store, logger),
		accounts:   NewAccountService(store, store, store, store, maintainer, limits.MaxBalance, logger),
		transfers:  NewTransactionService(ledger, store, store, publisher, limits, logger, WithClock(func() time.Time { return fixedNow })),
		maintainer: maintainer,
		admin:      models.Actor{UserID: "admin", IsAdmin: true},
	}
}

var phoneSeq atomic.Int64

func (e *testEnv) newBank(t *testing.T, title string) *models.Bank {
	t.Helper()
	bank, err := e.banks.CreateBank(context.Background(), e.admin, &models.CreateBankRequest{Title: title})
	require.NoError(t, err)
	return bank
}

// newClient registers a client for userID and returns it with the actor that
// represents it.
func (e *testEnv) newClient(t *testing.T, userID string) (*models.Client, models.Actor) {
	t.Helper()
	actor := models.Actor{UserID: userID}
	client, err := e.clients.CreateClient(context.Background(), actor, &models.CreateClientRequest{
		FirstName: "Ivan",
		LastName:  "Petrov",
		Phone:     fmt.Sprintf("+7%010d", phoneSeq.Add(1)),
	})
	require.NoError(t, err)
	actor.ClientID = client.ID
	return client, actor
}

func (e *testEnv) openAccount(t *testing.T, actor models.Actor, bankID, balance string) *models.Account {
	t.Helper()
	account, err := e.accounts.CreateAccount(context.Background(), actor, &models.CreateAccountRequest{
		ClientID:       actor.ClientID,
		BankID:         bankID,
		InitialBalance: decimal.RequireFromString(balance),
	})
	require.NoError(t, err)
	return account
}

func (e *testEnv) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	account, err := e.store.GetAccountByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func transferReq(from, to, amount string) *models.CreateTransactionRequest {
	return &models.CreateTransactionRequest{
		FromAccountID: from,
		ToAccountID:   to,
		Amount:        decimal.RequireFromString(amount),
	}
}

func ptr[T any](v T) *T {
	return &v
}

var _ events.Publisher = (*recordingPublisher)(nil)
