package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/riteshkumar/bank-ledger/internal/models"
)

type PostgresAuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

const insertAuditLogQuery = `INSERT INTO audit_logs (entity_type, entity_id, action, old_value, new_value, created_at)
	VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
	RETURNING id, created_at`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertAuditLog(ctx context.Context, q queryRower, log *models.AuditLog) error {
	var oldValue, newValue any
	if log.OldValue != nil {
		oldValue = []byte(log.OldValue)
	}
	if log.NewValue != nil {
		newValue = []byte(log.NewValue)
	}

	err := q.QueryRowContext(ctx, insertAuditLogQuery,
		log.EntityType,
		log.EntityID,
		log.Action,
		oldValue,
		newValue,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// CreateWithDB inserts an audit entry outside any transaction. Used for
// catalogue changes; transfers write their entries through the ledger.
func (r *PostgresAuditRepository) CreateWithDB(ctx context.Context, log *models.AuditLog) error {
	return insertAuditLog(ctx, r.db, log)
}

func (r *PostgresAuditRepository) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*models.AuditLog, error) {
	query := `SELECT id, entity_type, entity_id, action, old_value, new_value, created_at
		FROM audit_logs
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit logs by entity ID: %w", err)
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		log := &models.AuditLog{}
		var oldValue, newValue []byte

		err := rows.Scan(&log.ID, &log.EntityType, &log.EntityID, &log.Action, &oldValue, &newValue, &log.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		if oldValue != nil {
			log.OldValue = json.RawMessage(oldValue)
		}
		if newValue != nil {
			log.NewValue = json.RawMessage(newValue)
		}
		logs = append(logs, log)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over audit logs: %w", err)
	}
	return logs, nil
}
