package repository

import (
	"context"
	"errors"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/models"
)

type BankRepository interface {
	CreateBank(ctx context.Context, bank *models.Bank) error
	GetBankByID(ctx context.Context, id string) (*models.Bank, error)
	// ListBanks returns every bank, or only the banks clientID holds accounts at.
	ListBanks(ctx context.Context, clientID string) ([]*models.Bank, error)
	UpdateBank(ctx context.Context, bank *models.Bank) error
	DeleteBank(ctx context.Context, id string) error
}

type ClientRepository interface {
	CreateClient(ctx context.Context, client *models.Client) error
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	GetClientByUserID(ctx context.Context, userID string) (*models.Client, error)
	// ListClients returns every client, or only the clients of bankID.
	ListClients(ctx context.Context, bankID string) ([]*models.Client, error)
	UpdateClient(ctx context.Context, client *models.Client) error
	DeleteClient(ctx context.Context, id string) error
}

type AccountRepository interface {
	// CreateAccount inserts the account together with its account-client row
	// and the bank-client link.
	CreateAccount(ctx context.Context, account *models.Account) error
	GetAccountByID(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error)
	DeleteAccount(ctx context.Context, id string) (*models.Account, error)
	CountAccountsForClientAtBank(ctx context.Context, clientID, bankID string) (int, error)
}

type BankClientRepository interface {
	LinkBankClient(ctx context.Context, bankID, clientID string) error
	// UnlinkBankClientIfOrphaned removes the link only when the client holds
	// no account at the bank. It reports whether a row was removed.
	UnlinkBankClientIfOrphaned(ctx context.Context, bankID, clientID string) (bool, error)
	BankClientExists(ctx context.Context, bankID, clientID string) (bool, error)
	ListOrphanedBankClients(ctx context.Context) ([]models.BankClient, error)
	ListMissingBankClients(ctx context.Context) ([]models.BankClient, error)
}

type TransactionRepository interface {
	GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, initializerID, key string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
}

type AuditRepository interface {
	CreateWithDB(ctx context.Context, log *models.AuditLog) error
	GetByEntityID(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error)
}

// Ledger runs a transfer as a single unit of work. If fn returns an error
// nothing it did is kept. Begin and commit failures are reported as
// StorageError.
type Ledger interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// LedgerTx is the set of writes a transfer may perform inside a unit of work.
type LedgerTx interface {
	// LockAccounts locks the given accounts in ascending id order and returns
	// the locked rows keyed by id. Missing accounts are absent from the map.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error)
	UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error
	CreateTransaction(ctx context.Context, transaction *models.Transaction) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func pqConstraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}
	return ""
}

// IsRetryable reports whether err is a serialization failure or deadlock that
// PostgreSQL rolled back and that can be retried as-is.
func IsRetryable(err error) bool {
	code := pqCode(err)
	return code == pqSerializationFailure || code == pqDeadlockDetected
}
