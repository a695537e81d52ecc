package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

// PostgresLedger runs each unit of work in a SERIALIZABLE transaction.
type PostgresLedger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) RunInTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error {
	tx, err := l.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return errors.NewStorageError("begin", err)
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &postgresLedgerTx{tx: tx}); err != nil {
		return err
	}

	err = tx.Commit()
	tx = nil
	if err != nil {
		// A serialization failure at commit is a definite rollback.
		if IsRetryable(err) {
			return errors.NewStorageError("commit", err)
		}
		return errors.NewIndeterminateError("commit", err)
	}
	return nil
}

type postgresLedgerTx struct {
	tx *sql.Tx
}

func (t *postgresLedgerTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*models.Account, error) {
	ordered := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ordered = append(ordered, id)
		}
	}
	sort.Strings(ordered)

	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	locked := make(map[string]*models.Account, len(ordered))
	for _, id := range ordered {
		account, err := scanAccount(t.tx.QueryRowContext(ctx, query, id))
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, fmt.Errorf("failed to lock account %s: %w", id, err)
		}
		locked[id] = account
	}
	return locked, nil
}

func (t *postgresLedgerTx) UpdateAccountBalance(ctx context.Context, id string, balance decimal.Decimal) error {
	query := `UPDATE accounts SET balance = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`

	result, err := t.tx.ExecContext(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("failed to update account balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating account balance: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrAccountNotFound
	}
	return nil
}

func (t *postgresLedgerTx) CreateTransaction(ctx context.Context, transaction *models.Transaction) error {
	query := `INSERT INTO transactions (id, initializer_id, amount, transaction_date, description,
			from_account_id, to_account_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		RETURNING created_at`

	err := t.tx.QueryRowContext(ctx, query,
		transaction.ID,
		transaction.InitializerID,
		transaction.Amount,
		transaction.TransactionDate,
		transaction.Description,
		transaction.FromAccountID,
		transaction.ToAccountID,
		transaction.IdempotencyKey,
	).Scan(&transaction.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation && pqConstraint(err) == "transactions_idempotency_key" {
			return errors.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (t *postgresLedgerTx) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, t.tx, log)
}
