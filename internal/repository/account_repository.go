package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresAccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `id, client_id, bank_id, balance, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	account := &models.Account{}
	err := row.Scan(&account.ID, &account.ClientID, &account.BankID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin account creation: %w", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	query := `INSERT INTO accounts (id, client_id, bank_id, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query, account.ID, account.ClientID, account.BankID, account.Balance).
		Scan(&account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			if strings.Contains(pqConstraint(err), "bank") {
				return errors.ErrBankNotFound
			}
			return errors.ErrClientNotFound
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO account_clients (account_id, client_id) VALUES ($1, $2)`,
		account.ID, account.ClientID); err != nil {
		return fmt.Errorf("failed to link account to client: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO bank_clients (bank_id, client_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		account.BankID, account.ClientID); err != nil {
		return fmt.Errorf("failed to link bank to client: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit account creation: %w", err)
	}
	tx = nil
	return nil
}

func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf("client_id = $%d", len(args)))
	}
	if filter.BankID != "" {
		args = append(args, filter.BankID)
		conditions = append(conditions, fmt.Sprintf("bank_id = $%d", len(args)))
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}

// DeleteAccount removes the account and, through cascades, every transaction
// that references it. The deleted row is returned.
func (r *PostgresAccountRepository) DeleteAccount(ctx context.Context, id string) (*models.Account, error) {
	query := `DELETE FROM accounts WHERE id = $1 RETURNING ` + accountColumns

	account, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to delete account: %w", err)
	}
	return account, nil
}

func (r *PostgresAccountRepository) CountAccountsForClientAtBank(ctx context.Context, clientID, bankID string) (int, error) {
	query := `SELECT COUNT(*) FROM accounts WHERE client_id = $1 AND bank_id = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, clientID, bankID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count accounts for client at bank: %w", err)
	}
	return count, nil
}
