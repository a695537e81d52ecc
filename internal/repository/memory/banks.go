package memory

import (
	"context"
	"sort"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func (s *Store) CreateBank(_ context.Context, bank *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banks[bank.ID]; ok {
		return errors.ErrBankAlreadyExists
	}
	for _, b := range s.banks {
		if b.Title == bank.Title {
			return errors.ErrBankAlreadyExists
		}
	}

	bank.CreatedAt = s.now()
	s.banks[bank.ID] = copyBank(bank)
	return nil
}

func (s *Store) GetBankByID(_ context.Context, id string) (*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bank, ok := s.banks[id]
	if !ok {
		return nil, errors.ErrBankNotFound
	}
	return copyBank(bank), nil
}

func (s *Store) ListBanks(_ context.Context, clientID string) ([]*models.Bank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var banks []*models.Bank
	for id, bank := range s.banks {
		if clientID != "" {
			if _, ok := s.bankClients[bankClientKey{bankID: id, clientID: clientID}]; !ok {
				continue
			}
		}
		banks = append(banks, copyBank(bank))
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i].Title < banks[j].Title })
	return banks, nil
}

func (s *Store) UpdateBank(_ context.Context, bank *models.Bank) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.banks[bank.ID]
	if !ok {
		return errors.ErrBankNotFound
	}
	for id, b := range s.banks {
		if id != bank.ID && b.Title == bank.Title {
			return errors.ErrBankAlreadyExists
		}
	}

	existing.Title = bank.Title
	existing.FoundationDate = bank.FoundationDate
	bank.CreatedAt = existing.CreatedAt
	return nil
}

func (s *Store) DeleteBank(ctx context.Context, id string) error {
	var found bool
	err := s.withAccountsLocked(ctx,
		func(a *models.Account) bool { return a.BankID == id },
		func() {
			if _, found = s.banks[id]; !found {
				return
			}
			for _, accountID := range s.accountIDsWhere(func(a *models.Account) bool { return a.BankID == id }) {
				s.removeAccountLocked(accountID)
			}
			for key := range s.bankClients {
				if key.bankID == id {
					delete(s.bankClients, key)
				}
			}
			delete(s.banks, id)
		})
	if err != nil {
		return err
	}
	if !found {
		return errors.ErrBankNotFound
	}
	return nil
}
