package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresBankClientRepository struct {
	db *sql.DB
}

func NewBankClientRepository(db *sql.DB) *PostgresBankClientRepository {
	return &PostgresBankClientRepository{db: db}
}

func (r *PostgresBankClientRepository) LinkBankClient(ctx context.Context, bankID, clientID string) error {
	query := `INSERT INTO bank_clients (bank_id, client_id, created_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, bankID, clientID); err != nil {
		return fmt.Errorf("failed to link bank client: %w", err)
	}
	return nil
}

func (r *PostgresBankClientRepository) UnlinkBankClientIfOrphaned(ctx context.Context, bankID, clientID string) (bool, error) {
	query := `DELETE FROM bank_clients
		WHERE bank_id = $1 AND client_id = $2
		AND NOT EXISTS (SELECT 1 FROM accounts WHERE bank_id = $1 AND client_id = $2)`

	result, err := r.db.ExecContext(ctx, query, bankID, clientID)
	if err != nil {
		return false, fmt.Errorf("failed to unlink bank client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after unlinking bank client: %w", err)
	}
	return rowsAffected > 0, nil
}

func (r *PostgresBankClientRepository) BankClientExists(ctx context.Context, bankID, clientID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM bank_clients WHERE bank_id = $1 AND client_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, bankID, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check if bank client exists: %w", err)
	}
	return exists, nil
}

// ListOrphanedBankClients returns links whose client holds no account at the bank.
func (r *PostgresBankClientRepository) ListOrphanedBankClients(ctx context.Context) ([]models.BankClient, error) {
	query := `SELECT bc.bank_id, bc.client_id FROM bank_clients bc
		WHERE NOT EXISTS (
			SELECT 1 FROM accounts a WHERE a.bank_id = bc.bank_id AND a.client_id = bc.client_id
		)
		ORDER BY bc.bank_id, bc.client_id`
	return r.listPairs(ctx, query)
}

// ListMissingBankClients returns (bank, client) pairs that hold accounts but
// have no link row.
func (r *PostgresBankClientRepository) ListMissingBankClients(ctx context.Context) ([]models.BankClient, error) {
	query := `SELECT DISTINCT a.bank_id, a.client_id FROM accounts a
		WHERE NOT EXISTS (
			SELECT 1 FROM bank_clients bc WHERE bc.bank_id = a.bank_id AND bc.client_id = a.client_id
		)
		ORDER BY a.bank_id, a.client_id`
	return r.listPairs(ctx, query)
}

func (r *PostgresBankClientRepository) listPairs(ctx context.Context, query string) ([]models.BankClient, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list bank clients: %w", err)
	}
	defer rows.Close()

	var pairs []models.BankClient
	for rows.Next() {
		var pair models.BankClient
		if err := rows.Scan(&pair.BankID, &pair.ClientID); err != nil {
			return nil, fmt.Errorf("failed to scan bank client: %w", err)
		}
		pairs = append(pairs, pair)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over bank clients: %w", err)
	}
	return pairs, nil
}
