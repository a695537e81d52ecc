package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresBankRepository struct {
	db *sql.DB
}

func NewBankRepository(db *sql.DB) *PostgresBankRepository {
	return &PostgresBankRepository{db: db}
}

func scanBank(row rowScanner) (*models.Bank, error) {
	bank := &models.Bank{}
	if err := row.Scan(&bank.ID, &bank.Title, &bank.FoundationDate, &bank.CreatedAt); err != nil {
		return nil, err
	}
	bank.FoundationDate = models.Today(bank.FoundationDate)
	return bank, nil
}

func (r *PostgresBankRepository) CreateBank(ctx context.Context, bank *models.Bank) error {
	query := `INSERT INTO banks (id, title, foundation_date, created_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, bank.ID, bank.Title, bank.FoundationDate).Scan(&bank.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return errors.ErrBankAlreadyExists
		}
		return fmt.Errorf("failed to create bank: %w", err)
	}
	return nil
}

func (r *PostgresBankRepository) GetBankByID(ctx context.Context, id string) (*models.Bank, error) {
	query := `SELECT id, title, foundation_date, created_at FROM banks WHERE id = $1`

	bank, err := scanBank(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrBankNotFound
		}
		return nil, fmt.Errorf("failed to get bank by ID: %w", err)
	}
	return bank, nil
}

func (r *PostgresBankRepository) ListBanks(ctx context.Context, clientID string) ([]*models.Bank, error) {
	query := `SELECT id, title, foundation_date, created_at FROM banks ORDER BY title`
	var args []any
	if clientID != "" {
		query = `SELECT b.id, b.title, b.foundation_date, b.created_at
			FROM banks b
			JOIN bank_clients bc ON bc.bank_id = b.id
			WHERE bc.client_id = $1
			ORDER BY b.title`
		args = append(args, clientID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list banks: %w", err)
	}
	defer rows.Close()

	var banks []*models.Bank
	for rows.Next() {
		bank, err := scanBank(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank: %w", err)
		}
		banks = append(banks, bank)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over banks: %w", err)
	}
	return banks, nil
}

func (r *PostgresBankRepository) UpdateBank(ctx context.Context, bank *models.Bank) error {
	query := `UPDATE banks SET title = $1, foundation_date = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, bank.Title, bank.FoundationDate, bank.ID)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return errors.ErrBankAlreadyExists
		}
		return fmt.Errorf("failed to update bank: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating bank: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrBankNotFound
	}
	return nil
}

// DeleteBank cascades to the bank's accounts, their transactions and its
// bank-client links.
func (r *PostgresBankRepository) DeleteBank(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM banks WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return errors.NewConstraintError("bank", "bank is still referenced")
		}
		return fmt.Errorf("failed to delete bank: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting bank: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrBankNotFound
	}
	return nil
}
