package memory

import (
	"context"
	"sort"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func (s *Store) CreateClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client.ID]; ok {
		return errors.ErrClientAlreadyExists
	}
	for _, c := range s.clients {
		if c.UserID == client.UserID {
			return errors.ErrClientAlreadyExists
		}
	}

	now := s.now()
	client.CreatedAt = now
	client.UpdatedAt = now
	s.clients[client.ID] = copyClient(client)
	return nil
}

func (s *Store) GetClientByID(_ context.Context, id string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[id]
	if !ok {
		return nil, errors.ErrClientNotFound
	}
	return copyClient(client), nil
}

func (s *Store) GetClientByUserID(_ context.Context, userID string) (*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, client := range s.clients {
		if client.UserID == userID {
			return copyClient(client), nil
		}
	}
	return nil, errors.ErrClientNotFound
}

func (s *Store) ListClients(_ context.Context, bankID string) ([]*models.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var clients []*models.Client
	for id, client := range s.clients {
		if bankID != "" {
			if _, ok := s.bankClients[bankClientKey{bankID: bankID, clientID: id}]; !ok {
				continue
			}
		}
		clients = append(clients, copyClient(client))
	}
	sort.Slice(clients, func(i, j int) bool {
		if clients[i].LastName != clients[j].LastName {
			return clients[i].LastName < clients[j].LastName
		}
		if clients[i].FirstName != clients[j].FirstName {
			return clients[i].FirstName < clients[j].FirstName
		}
		return clients[i].ID < clients[j].ID
	})
	return clients, nil
}

func (s *Store) UpdateClient(_ context.Context, client *models.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.clients[client.ID]
	if !ok {
		return errors.ErrClientNotFound
	}

	existing.FirstName = client.FirstName
	existing.LastName = client.LastName
	existing.Phone = client.Phone
	existing.UpdatedAt = s.now()
	client.UpdatedAt = existing.UpdatedAt
	return nil
}

// DeleteClient refuses while the client initiated any transaction, otherwise
// removes the client with its accounts and bank links.
func (s *Store) DeleteClient(ctx context.Context, id string) error {
	var err error
	lockErr := s.withAccountsLocked(ctx,
		func(a *models.Account) bool { return a.ClientID == id },
		func() {
			if _, ok := s.clients[id]; !ok {
				err = errors.ErrClientNotFound
				return
			}
			for _, t := range s.transactions {
				if t.InitializerID == id {
					err = errors.NewConstraintError("client", "client initiated existing transactions")
					return
				}
			}
			for _, accountID := range s.accountIDsWhere(func(a *models.Account) bool { return a.ClientID == id }) {
				s.removeAccountLocked(accountID)
			}
			for key := range s.bankClients {
				if key.clientID == id {
					delete(s.bankClients, key)
				}
			}
			delete(s.clients, id)
		})
	if lockErr != nil {
		return lockErr
	}
	return err
}
