package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresClientRepository struct {
	db *sql.DB
}

func NewClientRepository(db *sql.DB) *PostgresClientRepository {
	return &PostgresClientRepository{db: db}
}

const clientColumns = `id, user_id, first_name, last_name, phone, created_at, updated_at`

func scanClient(row rowScanner) (*models.Client, error) {
	c := &models.Client{}
	err := row.Scan(&c.ID, &c.UserID, &c.FirstName, &c.LastName, &c.Phone, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresClientRepository) CreateClient(ctx context.Context, client *models.Client) error {
	query := `INSERT INTO clients (id, user_id, first_name, last_name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		client.ID,
		client.UserID,
		client.FirstName,
		client.LastName,
		client.Phone,
	).Scan(&client.CreatedAt, &client.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return errors.ErrClientAlreadyExists
		}
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *PostgresClientRepository) GetClientByID(ctx context.Context, id string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client by ID: %w", err)
	}
	return client, nil
}

func (r *PostgresClientRepository) GetClientByUserID(ctx context.Context, userID string) (*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE user_id = $1`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to get client by user ID: %w", err)
	}
	return client, nil
}

func (r *PostgresClientRepository) ListClients(ctx context.Context, bankID string) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients ORDER BY last_name, first_name, id`
	var args []any
	if bankID != "" {
		query = `SELECT c.id, c.user_id, c.first_name, c.last_name, c.phone, c.created_at, c.updated_at
			FROM clients c
			JOIN bank_clients bc ON bc.client_id = c.id
			WHERE bc.bank_id = $1
			ORDER BY c.last_name, c.first_name, c.id`
		args = append(args, bankID)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*models.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over clients: %w", err)
	}
	return clients, nil
}

func (r *PostgresClientRepository) UpdateClient(ctx context.Context, client *models.Client) error {
	query := `UPDATE clients SET first_name = $1, last_name = $2, phone = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
		RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query, client.FirstName, client.LastName, client.Phone, client.ID).
		Scan(&client.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return errors.ErrClientNotFound
		}
		return fmt.Errorf("failed to update client: %w", err)
	}
	return nil
}

// DeleteClient fails with a ConstraintError while the client is the
// initializer of any transaction.
func (r *PostgresClientRepository) DeleteClient(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return errors.NewConstraintError("client", "client initiated existing transactions")
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting client: %w", err)
	}
	if rowsAffected == 0 {
		return errors.ErrClientNotFound
	}
	return nil
}
