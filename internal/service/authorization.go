package service

import (
	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

// TransferPolicy decides whether actor may move funds out of from.
type TransferPolicy func(actor models.Actor, from *models.Account) bool

// OwnerOrAdmin lets the client owning the source account, or any admin,
// initiate a transfer.
func OwnerOrAdmin(actor models.Actor, from *models.Account) bool {
	if actor.IsAdmin {
		return true
	}
	return actor.ClientID != "" && from != nil && from.ClientID == actor.ClientID
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin {
		return errors.ErrForbidden
	}
	return nil
}

func requireOwnerOrAdmin(actor models.Actor, clientID string) error {
	if actor.IsAdmin || (actor.ClientID != "" && actor.ClientID == clientID) {
		return nil
	}
	return errors.ErrForbidden
}
