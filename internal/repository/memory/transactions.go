package memory

import (
	"context"
	"sort"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func (s *Store) GetTransactionByID(_ context.Context, id string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	return copyTransaction(t), nil
}

func (s *Store) GetTransactionByIdempotencyKey(_ context.Context, initializerID, key string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idempotency[idempotencyKey{initializerID: initializerID, key: key}]
	if !ok {
		return nil, errors.ErrTransactionNotFound
	}
	return copyTransaction(s.transactions[id]), nil
}

// ListTransactions returns transactions matching any set filter field, newest
// first.
func (s *Store) ListTransactions(_ context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	empty := filter == models.TransactionFilter{}
	var out []*models.Transaction
	for _, t := range s.transactions {
		if empty || s.matchesLocked(t, filter) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return s.order[out[i].ID] > s.order[out[j].ID]
	})
	return out, nil
}

func (s *Store) matchesLocked(t *models.Transaction, filter models.TransactionFilter) bool {
	if filter.InitializerID != "" && t.InitializerID == filter.InitializerID {
		return true
	}
	if filter.AccountID != "" && (t.FromAccountID == filter.AccountID || t.ToAccountID == filter.AccountID) {
		return true
	}
	if filter.ClientID != "" {
		for _, id := range []string{t.FromAccountID, t.ToAccountID} {
			if a, ok := s.accounts[id]; ok && a.ClientID == filter.ClientID {
				return true
			}
		}
	}
	return false
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return errors.ErrTransactionNotFound
	}
	s.removeTransactionLocked(id)
	return nil
}

func (s *Store) CreateWithDB(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendAuditLocked(log)
	return nil
}

func (s *Store) GetByEntityID(_ context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var logs []*models.AuditLog
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		log := s.auditLogs[i]
		if log.EntityType == entityType && log.EntityID == entityID {
			c := *log
			logs = append(logs, &c)
		}
	}
	return logs, nil
}
