// Package memory is an in-process implementation of every repository and of
// the transfer ledger. It backs local runs and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/riteshkumar/bank-ledger/internal/models"
)

type bankClientKey struct {
	bankID   string
	clientID string
}

type idempotencyKey struct {
	initializerID string
	key           string
}

// Store keeps all records in maps guarded by mu. Transfers additionally hold
// per-account locks, always acquired before mu and in ascending id order.
type Store struct {
	mu             sync.RWMutex
	banks          map[string]*models.Bank
	clients        map[string]*models.Client
	accounts       map[string]*models.Account
	accountClients map[string]string
	bankClients    map[bankClientKey]time.Time
	transactions   map[string]*models.Transaction
	idempotency    map[idempotencyKey]string
	auditLogs      []*models.AuditLog
	seq            int64
	order          map[string]int64

	locksMu      sync.Mutex
	accountLocks map[string]chan struct{}

	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time source used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		banks:          make(map[string]*models.Bank),
		clients:        make(map[string]*models.Client),
		accounts:       make(map[string]*models.Account),
		accountClients: make(map[string]string),
		bankClients:    make(map[bankClientKey]time.Time),
		transactions:   make(map[string]*models.Transaction),
		idempotency:    make(map[idempotencyKey]string),
		order:          make(map[string]int64),
		accountLocks:   make(map[string]chan struct{}),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lockFor(id string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	lock, ok := s.accountLocks[id]
	if !ok {
		lock = make(chan struct{}, 1)
		s.accountLocks[id] = lock
	}
	return lock
}

// forgetLock drops the lock of a removed account. A transfer still waiting on
// it finds the account gone once it acquires the lock.
func (s *Store) forgetLock(id string) {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	delete(s.accountLocks, id)
}

// lockAccounts acquires the per-account locks of ids in ascending order. The
// returned func releases them. On context cancellation every lock taken so far
// is released.
func (s *Store) lockAccounts(ctx context.Context, ids []string) (func(), error) {
	ordered := sortedUnique(ids)
	held := make([]chan struct{}, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}

	for _, id := range ordered {
		lock := s.lockFor(id)
		select {
		case lock <- struct{}{}:
			held = append(held, lock)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// removeAccountLocked drops an account with its account-client row and every
// transaction it is a party to. Callers hold mu for writing.
func (s *Store) removeAccountLocked(id string) {
	delete(s.accounts, id)
	delete(s.accountClients, id)
	delete(s.order, id)
	s.forgetLock(id)
	for txID, t := range s.transactions {
		if t.FromAccountID == id || t.ToAccountID == id {
			s.removeTransactionLocked(txID)
		}
	}
}

func (s *Store) removeTransactionLocked(id string) {
	t, ok := s.transactions[id]
	if !ok {
		return
	}
	if t.IdempotencyKey != nil {
		delete(s.idempotency, idempotencyKey{initializerID: t.InitializerID, key: *t.IdempotencyKey})
	}
	delete(s.transactions, id)
	delete(s.order, id)
}

// accountIDsWhere returns ids of accounts matching pred. Callers hold mu.
func (s *Store) accountIDsWhere(pred func(*models.Account) bool) []string {
	var ids []string
	for id, a := range s.accounts {
		if pred(a) {
			ids = append(ids, id)
		}
	}
	return ids
}

// withAccountsLocked locks the accounts selected by pred, then runs fn under
// the write lock. Accounts created between selection and fn are handled by
// fn itself; a transfer touching them fails its commit check.
func (s *Store) withAccountsLocked(ctx context.Context, pred func(*models.Account) bool, fn func()) error {
	s.mu.RLock()
	ids := s.accountIDsWhere(pred)
	s.mu.RUnlock()

	release, err := s.lockAccounts(ctx, ids)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
	return nil
}

// stamp records insertion order for id. Callers hold mu for writing.
func (s *Store) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

func copyBank(b *models.Bank) *models.Bank {
	c := *b
	return &c
}

func copyClient(c *models.Client) *models.Client {
	cp := *c
	return &cp
}

func copyAccount(a *models.Account) *models.Account {
	c := *a
	return &c
}

func copyTransaction(t *models.Transaction) *models.Transaction {
	c := *t
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	if t.IdempotencyKey != nil {
		k := *t.IdempotencyKey
		c.IdempotencyKey = &k
	}
	return &c
}
