package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

const transactionColumns = `id, initializer_id, amount, transaction_date, description,
	from_account_id, to_account_id, idempotency_key, created_at`

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	t := &models.Transaction{}
	err := row.Scan(
		&t.ID, &t.InitializerID, &t.Amount, &t.TransactionDate, &t.Description,
		&t.FromAccountID, &t.ToAccountID, &t.IdempotencyKey, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.TransactionDate = models.Today(t.TransactionDate)
	return t, nil
}

func (r *PostgresTransactionRepository) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by ID: %w", err)
	}
	return t, nil
}

func (r *PostgresTransactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, initializerID, key string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE initializer_id = $1 AND idempotency_key = $2`

	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, initializerID, key))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction by idempotency key: %w", err)
	}
	return t, nil
}

// ListTransactions returns transactions matching any of the set filter fields,
// newest first. An empty filter returns every transaction.
func (r *PostgresTransactionRepository) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.InitializerID != "" {
		args = append(args, filter.InitializerID)
		conditions = append(conditions, fmt.Sprintf("initializer_id = $%d", len(args)))
	}
	if filter.AccountID != "" {
		args = append(args, filter.AccountID)
		conditions = append(conditions, fmt.Sprintf("(from_account_id = $%[1]d OR to_account_id = $%[1]d)", len(args)))
	}
	if filter.ClientID != "" {
		args = append(args, filter.ClientID)
		conditions = append(conditions, fmt.Sprintf(
			"(from_account_id IN (SELECT id FROM accounts WHERE client_id = $%[1]d) OR to_account_id IN (SELECT id FROM accounts WHERE client_id = $%[1]d))",
			len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " OR ")
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}
	return transactions, nil
}

// DeleteTransaction removes the record only. Balances are not restored.
func (r *PostgresTransactionRepository) DeleteTransaction(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting transaction: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrTransactionNotFound
	}
	return nil
}
