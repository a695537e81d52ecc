package memory

import (
	"context"
	"sort"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func (s *Store) CreateAccount(_ context.Context, account *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[account.ClientID]; !ok {
		return errors.ErrClientNotFound
	}
	if _, ok := s.banks[account.BankID]; !ok {
		return errors.ErrBankNotFound
	}

	now := s.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	s.accounts[account.ID] = copyAccount(account)
	s.accountClients[account.ID] = account.ClientID
	key := bankClientKey{bankID: account.BankID, clientID: account.ClientID}
	if _, ok := s.bankClients[key]; !ok {
		s.bankClients[key] = now
	}
	s.stamp(account.ID)
	return nil
}

func (s *Store) GetAccountByID(_ context.Context, id string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	return copyAccount(account), nil
}

func (s *Store) ListAccounts(_ context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var accounts []*models.Account
	for _, account := range s.accounts {
		if filter.ClientID != "" && account.ClientID != filter.ClientID {
			continue
		}
		if filter.BankID != "" && account.BankID != filter.BankID {
			continue
		}
		accounts = append(accounts, copyAccount(account))
	}
	sort.Slice(accounts, func(i, j int) bool {
		return s.order[accounts[i].ID] < s.order[accounts[j].ID]
	})
	return accounts, nil
}

// DeleteAccount waits for any in-flight transfer on the account, then removes
// it together with the transactions it is a party to.
func (s *Store) DeleteAccount(ctx context.Context, id string) (*models.Account, error) {
	release, err := s.lockAccounts(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		s.forgetLock(id)
		return nil, errors.ErrAccountNotFound
	}
	s.removeAccountLocked(id)
	return copyAccount(account), nil
}

func (s *Store) CountAccountsForClientAtBank(_ context.Context, clientID, bankID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, account := range s.accounts {
		if account.ClientID == clientID && account.BankID == bankID {
			count++
		}
	}
	return count, nil
}
