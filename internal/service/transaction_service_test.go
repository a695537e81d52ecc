package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

func TestTransfer_MovesFunds(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	_, bob := env.newClient(t, "bob")
	from := env.openAccount(t, alice, bank.ID, "1000")
	to := env.openAccount(t, bob, bank.ID, "0")

	req := transferReq(from.ID, to.ID, "500")
	req.Description = ptr("rent")
	transaction, err := env.transfers.Transfer(context.Background(), alice, req)
	require.NoError(t, err)

	assert.Equal(t, alice.ClientID, transaction.InitializerID)
	assert.Equal(t, models.Today(fixedNow), transaction.TransactionDate)
	assert.True(t, decimal.NewFromInt(500).Equal(env.balance(t, from.ID)))
	assert.True(t, decimal.NewFromInt(500).Equal(env.balance(t, to.ID)))

	stored, err := env.transfers.GetTransaction(context.Background(), transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, "rent", *stored.Description)
	assert.Contains(t, env.publisher.published(), events.RoutingKeyTransferCompleted)

	logs, err := env.store.GetByEntityID(context.Background(), models.EntityTypeAccount, from.ID)
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Contains(t, actions, models.AuditActionDebit)
}

func TestTransfer_InsufficientFundsLeavesStateUntouched(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "500"))
	assert.ErrorIs(t, err, errors.ErrInsufficientFunds)
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
	assert.True(t, decimal.Zero.Equal(env.balance(t, to.ID)))

	list, err := env.transfers.ListTransactions(context.Background(), models.TransactionFilter{AccountID: from.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTransfer_ExactBalanceDrainsAccount(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "10.50")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "10.50"))
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(env.balance(t, from.ID)))
}

func TestTransfer_SelfTransfer(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	account := env.openAccount(t, alice, bank.ID, "100")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(account.ID, account.ID, "10"))
	assert.ErrorIs(t, err, errors.ErrSelfTransfer)
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, account.ID)))
}

func TestTransfer_PreconditionOrder(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	_, mallory := env.newClient(t, "mallory")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")
	future := models.NewDate(fixedNow.AddDate(0, 0, 1))

	tests := []struct {
		name    string
		actor   models.Actor
		req     *models.CreateTransactionRequest
		wantErr error
	}{
		{
			name:    "self transfer before amount",
			actor:   alice,
			req:     transferReq(from.ID, from.ID, "0"),
			wantErr: errors.ErrSelfTransfer,
		},
		{
			name:    "missing source before amount",
			actor:   alice,
			req:     transferReq(uuid.NewString(), to.ID, "0"),
			wantErr: errors.ErrAccountNotFound,
		},
		{
			name:    "missing destination before amount",
			actor:   alice,
			req:     transferReq(from.ID, uuid.NewString(), "-1"),
			wantErr: errors.ErrAccountNotFound,
		},
		{
			name:  "amount before date",
			actor: alice,
			req: &models.CreateTransactionRequest{
				FromAccountID: from.ID, ToAccountID: to.ID,
				Amount: decimal.Zero, TransactionDate: future,
			},
			wantErr: errors.ErrInvalidAmount,
		},
		{
			name:  "date before authorization",
			actor: mallory,
			req: &models.CreateTransactionRequest{
				FromAccountID: from.ID, ToAccountID: to.ID,
				Amount: decimal.NewFromInt(10), TransactionDate: future,
			},
			wantErr: errors.ErrFutureDatedTransaction,
		},
		{
			name:    "authorization before funds",
			actor:   mallory,
			req:     transferReq(from.ID, to.ID, "5000"),
			wantErr: errors.ErrForbidden,
		},
		{
			name:    "sub cent amount",
			actor:   alice,
			req:     transferReq(from.ID, to.ID, "0.001"),
			wantErr: errors.ErrInvalidAmount,
		},
		{
			name:    "amount above transfer limit",
			actor:   alice,
			req:     transferReq(from.ID, to.ID, "1000000000.01"),
			wantErr: errors.ErrInvalidAmount,
		},
		{
			name:    "actor without client profile",
			actor:   models.Actor{UserID: "ghost"},
			req:     transferReq(from.ID, to.ID, "10"),
			wantErr: errors.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.transfers.Transfer(context.Background(), tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
}

func TestTransfer_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	_, alice := env.newClient(t, "alice")

	req := transferReq("not-a-uuid", "", "10")
	req.IdempotencyKey = string(make([]byte, 256))
	_, err := env.transfers.Transfer(context.Background(), alice, req)

	var validationErr *errors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	var fields []string
	for _, f := range validationErr.Fields {
		fields = append(fields, f.Field)
	}
	assert.ElementsMatch(t, []string{"from_account_id", "to_account_id", "idempotency_key"}, fields)
}

func TestTransfer_AdminMayMoveAnyFunds(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	adminClient, _ := env.newClient(t, "admin")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	admin := models.Actor{UserID: "admin", ClientID: adminClient.ID, IsAdmin: true}
	transaction, err := env.transfers.Transfer(context.Background(), admin, transferReq(from.ID, to.ID, "40"))
	require.NoError(t, err)
	assert.Equal(t, adminClient.ID, transaction.InitializerID)
}

func TestTransfer_CustomPolicy(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	WithTransferPolicy(func(models.Actor, *models.Account) bool { return false })(env.transfers)
	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "10"))
	assert.ErrorIs(t, err, errors.ErrForbidden)
}

func TestTransfer_DestinationBalanceCap(t *testing.T) {
	limits := defaultLimits()
	limits.MaxBalance = decimal.NewFromInt(1000)
	env := newTestEnvWithLedger(t, nil, limits)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "500")
	to := env.openAccount(t, alice, bank.ID, "900")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "100"))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)

	_, err = env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "99.99"))
	require.NoError(t, err)
}

func TestTransfer_ConcurrentWithdrawalsOfWholeBalance(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")

	const workers = 10
	targets := make([]*models.Account, workers)
	for i := range targets {
		targets[i] = env.openAccount(t, alice, bank.ID, "0")
	}

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to, "100"))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.IsInsufficientFunds(err):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(targets[i].ID)
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(workers-1), rejected.Load())
	assert.True(t, decimal.Zero.Equal(env.balance(t, from.ID)))
}

func TestTransfer_ConcurrentTransfersConserveMoney(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")

	accounts := make([]*models.Account, 4)
	for i := range accounts {
		accounts[i] = env.openAccount(t, alice, bank.ID, "250")
	}
	total := decimal.NewFromInt(1000)

	// Readers take whole-bank snapshots while transfers run. Every snapshot
	// must hold both legs of a transfer or neither.
	stop := make(chan struct{})
	var (
		readers   sync.WaitGroup
		snapshots atomic.Int32
	)
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			listed, err := env.accounts.ListAccounts(context.Background(), models.AccountFilter{BankID: bank.ID})
			if err != nil {
				t.Errorf("list accounts: %v", err)
				return
			}
			sum := decimal.Zero
			for _, a := range listed {
				if a.Balance.IsNegative() {
					t.Errorf("account %s observed negative: %s", a.ID, a.Balance)
				}
				sum = sum.Add(a.Balance)
			}
			if !total.Equal(sum) {
				t.Errorf("observed total %s, want %s", sum, total)
			}
			if _, err := env.accounts.GetAccount(context.Background(), accounts[0].ID); err != nil {
				t.Errorf("get account: %v", err)
			}
			snapshots.Add(1)

			select {
			case <-stop:
				return
			default:
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := accounts[i%len(accounts)]
			to := accounts[(i+1+i/len(accounts))%len(accounts)]
			if from.ID == to.ID {
				return
			}
			amount := fmt.Sprintf("%d.%02d", 10+i, i)
			_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, amount))
			if err != nil && !errors.IsInsufficientFunds(err) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	close(stop)
	readers.Wait()
	assert.Positive(t, snapshots.Load())

	sum := decimal.Zero
	for _, a := range accounts {
		b := env.balance(t, a.ID)
		assert.False(t, b.IsNegative(), "account %s went negative", a.ID)
		sum = sum.Add(b)
	}
	assert.True(t, total.Equal(sum), "expected %s, got %s", total, sum)
}

type failingLedger struct {
	repository.Ledger
	err error
}

func (l *failingLedger) RunInTx(ctx context.Context, fn func(context.Context, repository.LedgerTx) error) error {
	return l.Ledger.RunInTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		return fn(ctx, &failingTx{LedgerTx: tx, err: l.err})
	})
}

// failingTx fails once the balances are already staged.
type failingTx struct {
	repository.LedgerTx
	err error
}

func (t *failingTx) CreateTransaction(context.Context, *models.Transaction) error {
	return t.err
}

func TestTransfer_FailureRollsBackBalances(t *testing.T) {
	env := newTestEnvWithLedger(t, func(l repository.Ledger) repository.Ledger {
		return &failingLedger{Ledger: l, err: fmt.Errorf("disk full")}
	}, defaultLimits())
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "60"))
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
	assert.True(t, decimal.Zero.Equal(env.balance(t, to.ID)))
	assert.NotContains(t, env.publisher.published(), events.RoutingKeyTransferCompleted)
}

type flakyLedger struct {
	repository.Ledger
	failures int
	calls    int
}

func (l *flakyLedger) RunInTx(ctx context.Context, fn func(context.Context, repository.LedgerTx) error) error {
	l.calls++
	if l.calls <= l.failures {
		return &pq.Error{Code: "40001", Message: "could not serialize access"}
	}
	return l.Ledger.RunInTx(ctx, fn)
}

func TestTransfer_RetriesSerializationFailures(t *testing.T) {
	var flaky *flakyLedger
	env := newTestEnvWithLedger(t, func(l repository.Ledger) repository.Ledger {
		flaky = &flakyLedger{Ledger: l, failures: 2}
		return flaky
	}, defaultLimits())
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "30"))
	require.NoError(t, err)
	assert.Equal(t, 3, flaky.calls)
	assert.True(t, decimal.NewFromInt(70).Equal(env.balance(t, from.ID)))
}

func TestTransfer_GivesUpAfterMaxRetries(t *testing.T) {
	var flaky *flakyLedger
	env := newTestEnvWithLedger(t, func(l repository.Ledger) repository.Ledger {
		flaky = &flakyLedger{Ledger: l, failures: 100}
		return flaky
	}, defaultLimits())
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "30"))
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.True(t, repository.IsRetryable(err))
	assert.Equal(t, 4, flaky.calls)
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
}

func TestTransfer_CancelledContext(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.transfers.Transfer(ctx, alice, transferReq(from.ID, to.ID, "30"))
	require.Error(t, err)
	assert.True(t, errors.IsStorageError(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
}

func TestTransfer_IdempotentReplay(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	req := transferReq(from.ID, to.ID, "25")
	req.IdempotencyKey = "order-42"

	first, err := env.transfers.Transfer(context.Background(), alice, req)
	require.NoError(t, err)
	second, err := env.transfers.Transfer(context.Background(), alice, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, decimal.NewFromInt(75).Equal(env.balance(t, from.ID)))

	found, err := env.transfers.GetTransactionByIdempotencyKey(context.Background(), alice.ClientID, "order-42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	mismatch := transferReq(from.ID, to.ID, "26")
	mismatch.IdempotencyKey = "order-42"
	_, err = env.transfers.Transfer(context.Background(), alice, mismatch)
	assert.True(t, errors.IsValidationError(err))
}

func TestTransfer_ConcurrentSameIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := transferReq(from.ID, to.ID, "10")
			req.IdempotencyKey = "same"
			transaction, err := env.transfers.Transfer(context.Background(), alice, req)
			if assert.NoError(t, err) {
				ids[i] = transaction.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	assert.True(t, decimal.NewFromInt(90).Equal(env.balance(t, from.ID)))
}

func TestTransactionQueries(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	_, bob := env.newClient(t, "bob")
	a1 := env.openAccount(t, alice, bank.ID, "100")
	a2 := env.openAccount(t, alice, bank.ID, "0")
	b1 := env.openAccount(t, bob, bank.ID, "100")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(a1.ID, a2.ID, "10"))
	require.NoError(t, err)
	toAlice, err := env.transfers.Transfer(context.Background(), bob, transferReq(b1.ID, a2.ID, "5"))
	require.NoError(t, err)

	byInitializer, err := env.transfers.ListTransactions(context.Background(), models.TransactionFilter{InitializerID: bob.ClientID})
	require.NoError(t, err)
	require.Len(t, byInitializer, 1)
	assert.Equal(t, toAlice.ID, byInitializer[0].ID)

	byClient, err := env.transfers.ListTransactions(context.Background(), models.TransactionFilter{ClientID: alice.ClientID})
	require.NoError(t, err)
	assert.Len(t, byClient, 2)

	_, err = env.transfers.ListTransactions(context.Background(), models.TransactionFilter{AccountID: "nope"})
	assert.True(t, errors.IsValidationError(err))

	_, err = env.transfers.GetTransaction(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	transaction, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "10"))
	require.NoError(t, err)

	err = env.transfers.DeleteTransaction(context.Background(), alice, transaction.ID)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	require.NoError(t, env.transfers.DeleteTransaction(context.Background(), env.admin, transaction.ID))
	assert.True(t, decimal.NewFromInt(90).Equal(env.balance(t, from.ID)))

	err = env.transfers.DeleteTransaction(context.Background(), env.admin, transaction.ID)
	assert.ErrorIs(t, err, errors.ErrTransactionNotFound)
}

func TestTransfer_PublishFailureDoesNotFailTransfer(t *testing.T) {
	env := newTestEnv(t)
	env.publisher.fail = fmt.Errorf("broker down")
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "10"))
	require.NoError(t, err)
}

func TestTransfer_HugeExponentRejectedQuickly(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	amounts := []string{"1e-999999999", "1e999999999", "-1e999999999", "0e-999999999", "123e-999999990", "1.5e-999999999"}
	for _, amount := range amounts {
		t.Run(amount, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				req := transferReq(from.ID, to.ID, amount)
				req.IdempotencyKey = "huge-" + amount
				_, err := env.transfers.Transfer(context.Background(), alice, req)
				done <- err
			}()

			select {
			case err := <-done:
				assert.ErrorIs(t, err, errors.ErrInvalidAmount)
			case <-time.After(2 * time.Second):
				t.Fatalf("transfer of %s was not rejected in time", amount)
			}
		})
	}
	assert.True(t, decimal.NewFromInt(100).Equal(env.balance(t, from.ID)))
}

func TestTransfer_ScaledAmountsWithinLimits(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	// Trailing zeros beyond two places and positive exponents are still cents.
	for _, amount := range []string{"1.2500000", "1e1", "0.01"} {
		_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, amount))
		require.NoError(t, err, amount)
	}
	assert.Equal(t, "88.74", env.balance(t, from.ID).StringFixed(2))

	_, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "0.001"))
	assert.ErrorIs(t, err, errors.ErrInvalidAmount)
}

func TestGetTransaction_RepeatedReadsMatch(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	a := env.openAccount(t, alice, bank.ID, "100")
	b := env.openAccount(t, alice, bank.ID, "100")
	c := env.openAccount(t, alice, bank.ID, "0")

	req := transferReq(a.ID, b.ID, "12.34")
	req.Description = ptr("first")
	created, err := env.transfers.Transfer(context.Background(), alice, req)
	require.NoError(t, err)

	first, err := env.transfers.GetTransaction(context.Background(), created.ID)
	require.NoError(t, err)
	second, err := env.transfers.GetTransaction(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = env.transfers.Transfer(context.Background(), alice, transferReq(b.ID, c.ID, "50"))
	require.NoError(t, err)

	third, err := env.transfers.GetTransaction(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, created.ID, third.ID)
	assert.Equal(t, alice.ClientID, third.InitializerID)
	assert.Equal(t, "12.34", third.Amount.StringFixed(2))
	assert.Equal(t, "first", *third.Description)
}

func TestTransfer_TodayFollowsConfiguredLocation(t *testing.T) {
	env := newTestEnv(t)
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	from := env.openAccount(t, alice, bank.ID, "100")
	to := env.openAccount(t, alice, bank.ID, "0")

	// 20:30 UTC on May 10 is already May 11 at UTC+7.
	evening := time.Date(2024, time.May, 10, 20, 30, 0, 0, time.UTC)
	localToday := models.NewDate(time.Date(2024, time.May, 11, 0, 0, 0, 0, time.UTC))
	WithClock(func() time.Time { return evening })(env.transfers)

	req := transferReq(from.ID, to.ID, "10")
	req.TransactionDate = localToday
	_, err := env.transfers.Transfer(context.Background(), alice, req)
	assert.ErrorIs(t, err, errors.ErrFutureDatedTransaction)

	WithLocation(time.FixedZone("UTC+7", 7*60*60))(env.transfers)
	transaction, err := env.transfers.Transfer(context.Background(), alice, req)
	require.NoError(t, err)
	assert.Equal(t, localToday.Time, transaction.TransactionDate)

	defaulted, err := env.transfers.Transfer(context.Background(), alice, transferReq(from.ID, to.ID, "1"))
	require.NoError(t, err)
	assert.Equal(t, localToday.Time, defaulted.TransactionDate)
}
