package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

// RunInTx runs fn against staged state. The staged writes become visible all
// at once when fn succeeds, and are dropped when it fails.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repository.LedgerTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &ledgerTx{
		store:    s,
		balances: make(map[string]decimal.Decimal),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

type ledgerTx struct {
	store        *Store
	unlock       func()
	locked       map[string]struct{}
	balances     map[string]decimal.Decimal
	transactions []*models.Transaction
	auditLogs    []*models.AuditLog
}

func (t *ledgerTx) release() {
	if t.unlock != nil {
		t.unlock()
		t.unlock = nil
	}
}

func (t *ledgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	if t.unlock != nil {
		return nil, fmt.Errorf("accounts already locked in this unit of work")
	}

	unlock, err := t.store.lockAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	t.unlock = unlock
	t.locked = make(map[string]struct{}, len(ids))

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	accounts := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		t.locked[id] = struct{}{}
		if a, ok := t.store.accounts[id]; ok {
			accounts[id] = copyAccount(a)
		}
	}
	return accounts, nil
}

func (t *ledgerTx) UpdateAccountBalance(_ context.Context, id string, balance decimal.Decimal) error {
	if _, ok := t.locked[id]; !ok {
		return fmt.Errorf("account %s is not locked in this unit of work", id)
	}

	t.store.mu.RLock()
	_, exists := t.store.accounts[id]
	t.store.mu.RUnlock()
	if !exists {
		return errors.ErrAccountNotFound
	}

	t.balances[id] = balance
	return nil
}

func (t *ledgerTx) CreateTransaction(_ context.Context, transaction *models.Transaction) error {
	if transaction.IdempotencyKey != nil {
		key := idempotencyKey{initializerID: transaction.InitializerID, key: *transaction.IdempotencyKey}
		t.store.mu.RLock()
		_, taken := t.store.idempotency[key]
		t.store.mu.RUnlock()
		if taken {
			return errors.ErrDuplicateIdempotencyKey
		}
	}
	t.transactions = append(t.transactions, transaction)
	return nil
}

func (t *ledgerTx) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	t.auditLogs = append(t.auditLogs, log)
	return nil
}

func (t *ledgerTx) commit() error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range t.balances {
		if _, ok := s.accounts[id]; !ok {
			return errors.NewStorageError("commit", fmt.Errorf("account %s: %w", id, errors.ErrAccountNotFound))
		}
	}
	for _, tr := range t.transactions {
		if _, ok := s.accounts[tr.FromAccountID]; !ok {
			return errors.NewStorageError("commit", fmt.Errorf("account %s: %w", tr.FromAccountID, errors.ErrAccountNotFound))
		}
		if _, ok := s.accounts[tr.ToAccountID]; !ok {
			return errors.NewStorageError("commit", fmt.Errorf("account %s: %w", tr.ToAccountID, errors.ErrAccountNotFound))
		}
		if tr.IdempotencyKey != nil {
			if _, taken := s.idempotency[idempotencyKey{initializerID: tr.InitializerID, key: *tr.IdempotencyKey}]; taken {
				return errors.ErrDuplicateIdempotencyKey
			}
		}
	}

	now := s.now()
	for id, balance := range t.balances {
		account := s.accounts[id]
		account.Balance = balance
		account.UpdatedAt = now
	}
	for _, tr := range t.transactions {
		tr.CreatedAt = now
		s.transactions[tr.ID] = copyTransaction(tr)
		s.stamp(tr.ID)
		if tr.IdempotencyKey != nil {
			s.idempotency[idempotencyKey{initializerID: tr.InitializerID, key: *tr.IdempotencyKey}] = tr.ID
		}
	}
	for _, log := range t.auditLogs {
		s.appendAuditLocked(log)
	}
	return nil
}

func (s *Store) appendAuditLocked(log *models.AuditLog) {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	log.CreatedAt = s.now()
	c := *log
	s.auditLogs = append(s.auditLogs, &c)
}

var (
	_ repository.BankRepository        = (*Store)(nil)
	_ repository.ClientRepository      = (*Store)(nil)
	_ repository.AccountRepository     = (*Store)(nil)
	_ repository.BankClientRepository  = (*Store)(nil)
	_ repository.TransactionRepository = (*Store)(nil)
	_ repository.AuditRepository       = (*Store)(nil)
	_ repository.Ledger                = (*Store)(nil)
)
