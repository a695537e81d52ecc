package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

// recordAudit writes an audit entry outside any transaction. Failures are
// logged and never fail the operation being audited.
func recordAudit(ctx context.Context, auditRepo repository.AuditRepository, logger *slog.Logger, entityType, entityID, action string, oldValue, newValue any) {
	auditLog, err := newAuditLog(entityType, entityID, action, oldValue, newValue)
	if err == nil {
		err = auditRepo.CreateWithDB(ctx, auditLog)
	}
	if err != nil {
		logger.Error("failed to create audit log",
			"entity_type", entityType,
			"entity_id", entityID,
			"action", action,
			"error", err.Error(),
		)
	}
}

func newAuditLog(entityType, entityID, action string, oldValue, newValue any) (*models.AuditLog, error) {
	auditLog := &models.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
	}
	if oldValue != nil {
		raw, err := json.Marshal(oldValue)
		if err != nil {
			return nil, err
		}
		auditLog.OldValue = raw
	}
	if newValue != nil {
		raw, err := json.Marshal(newValue)
		if err != nil {
			return nil, err
		}
		auditLog.NewValue = raw
	}
	return auditLog, nil
}
