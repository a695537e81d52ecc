package memory

import (
	"context"
	"sort"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func (s *Store) LinkBankClient(_ context.Context, bankID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.banks[bankID]; !ok {
		return errors.ErrBankNotFound
	}
	if _, ok := s.clients[clientID]; !ok {
		return errors.ErrClientNotFound
	}
	key := bankClientKey{bankID: bankID, clientID: clientID}
	if _, ok := s.bankClients[key]; !ok {
		s.bankClients[key] = s.now()
	}
	return nil
}

func (s *Store) UnlinkBankClientIfOrphaned(_ context.Context, bankID, clientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := bankClientKey{bankID: bankID, clientID: clientID}
	if _, ok := s.bankClients[key]; !ok {
		return false, nil
	}
	for _, account := range s.accounts {
		if account.BankID == bankID && account.ClientID == clientID {
			return false, nil
		}
	}
	delete(s.bankClients, key)
	return true, nil
}

func (s *Store) BankClientExists(_ context.Context, bankID, clientID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.bankClients[bankClientKey{bankID: bankID, clientID: clientID}]
	return ok, nil
}

func (s *Store) ListOrphanedBankClients(_ context.Context) ([]models.BankClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	held := s.heldPairsLocked()
	var pairs []models.BankClient
	for key := range s.bankClients {
		if _, ok := held[key]; !ok {
			pairs = append(pairs, models.BankClient{BankID: key.bankID, ClientID: key.clientID})
		}
	}
	sortPairs(pairs)
	return pairs, nil
}

func (s *Store) ListMissingBankClients(_ context.Context) ([]models.BankClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pairs []models.BankClient
	for key := range s.heldPairsLocked() {
		if _, ok := s.bankClients[key]; !ok {
			pairs = append(pairs, models.BankClient{BankID: key.bankID, ClientID: key.clientID})
		}
	}
	sortPairs(pairs)
	return pairs, nil
}

// heldPairsLocked returns every (bank, client) pair with at least one account.
func (s *Store) heldPairsLocked() map[bankClientKey]struct{} {
	held := make(map[bankClientKey]struct{}, len(s.accounts))
	for _, account := range s.accounts {
		held[bankClientKey{bankID: account.BankID, clientID: account.ClientID}] = struct{}{}
	}
	return held
}

func sortPairs(pairs []models.BankClient) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].BankID != pairs[j].BankID {
			return pairs[i].BankID < pairs[j].BankID
		}
		return pairs[i].ClientID < pairs[j].ClientID
	})
}
