package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

type ClientService interface {
	CreateClient(ctx context.Context, actor models.Actor, req *models.CreateClientRequest) (*models.Client, error)
	GetClient(ctx context.Context, id string) (*models.Client, error)
	ListClients(ctx context.Context, bankID string) ([]*models.Client, error)
	UpdateClient(ctx context.Context, actor models.Actor, id string, req *models.UpdateClientRequest) (*models.Client, error)
	DeleteClient(ctx context.Context, actor models.Actor, id string) error
}

type ClientServiceImpl struct {
	clientRepo repository.ClientRepository
	auditRepo  repository.AuditRepository
	logger     *slog.Logger
}

func NewClientService(clientRepo repository.ClientRepository, auditRepo repository.AuditRepository, logger *slog.Logger) *ClientServiceImpl {
	return &ClientServiceImpl{
		clientRepo: clientRepo,
		auditRepo:  auditRepo,
		logger:     logger,
	}
}

// CreateClient registers the client profile of the actor's user. Admins may
// register on behalf of the user named in the request.
func (s *ClientServiceImpl) CreateClient(ctx context.Context, actor models.Actor, req *models.CreateClientRequest) (*models.Client, error) {
	userID := actor.UserID
	if actor.IsAdmin && strings.TrimSpace(req.UserID) != "" {
		userID = req.UserID
	}
	if strings.TrimSpace(userID) == "" {
		return nil, errors.ErrForbidden
	}

	client := &models.Client{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(userID),
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
	}
	if err := validateClient(client); err != nil {
		s.logger.Warn("invalid create client request",
			"user_id", client.UserID,
			"error", err.Error(),
		)
		return nil, err
	}

	if err := s.clientRepo.CreateClient(ctx, client); err != nil {
		if errors.IsAlreadyExists(err) {
			s.logger.Warn("client already exists for user", "user_id", client.UserID)
			return nil, err
		}
		s.logger.Error("failed to create client",
			"user_id", client.UserID,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("create client", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeClient, client.ID, models.AuditActionCreate, nil, models.NewClientResponse(client))
	s.logger.Info("client created successfully", "client_id", client.ID)
	return client, nil
}

func (s *ClientServiceImpl) GetClient(ctx context.Context, id string) (*models.Client, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}

	client, err := s.clientRepo.GetClientByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("client not found", "client_id", id)
			return nil, err
		}
		s.logger.Error("failed to get client",
			"client_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("get client", err)
	}
	return client, nil
}

func (s *ClientServiceImpl) ListClients(ctx context.Context, bankID string) ([]*models.Client, error) {
	if bankID != "" {
		if err := validateID("bank_id", bankID); err != nil {
			return nil, err
		}
	}

	clients, err := s.clientRepo.ListClients(ctx, bankID)
	if err != nil {
		s.logger.Error("failed to list clients",
			"bank_id", bankID,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("list clients", err)
	}
	return clients, nil
}

func (s *ClientServiceImpl) UpdateClient(ctx context.Context, actor models.Actor, id string, req *models.UpdateClientRequest) (*models.Client, error) {
	existing, err := s.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, existing.ID); err != nil {
		return nil, err
	}

	before := models.NewClientResponse(existing)
	updated := *existing
	updated.FirstName = strings.TrimSpace(req.FirstName)
	updated.LastName = strings.TrimSpace(req.LastName)
	updated.Phone = strings.TrimSpace(req.Phone)
	if err := validateClient(&updated); err != nil {
		return nil, err
	}

	if err := s.clientRepo.UpdateClient(ctx, &updated); err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		s.logger.Error("failed to update client",
			"client_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("update client", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeClient, id, models.AuditActionUpdate, before, models.NewClientResponse(&updated))
	return &updated, nil
}

// DeleteClient fails with a ConstraintError while the client initiated any
// transaction.
func (s *ClientServiceImpl) DeleteClient(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateID("id", id); err != nil {
		return err
	}

	if err := s.clientRepo.DeleteClient(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		if errors.IsConstraintError(err) {
			s.logger.Warn("client delete restricted", "client_id", id, "error", err.Error())
			return err
		}
		s.logger.Error("failed to delete client",
			"client_id", id,
			"error", err.Error(),
		)
		return errors.NewStorageError("delete client", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeClient, id, models.AuditActionDelete, nil, nil)
	s.logger.Info("client deleted", "client_id", id)
	return nil
}

func validateClient(client *models.Client) error {
	v := &errors.ValidationError{}
	checkLength(v, "first_name", client.FirstName, 1, maxFirstNameLength)
	checkLength(v, "last_name", client.LastName, 1, maxLastNameLength)
	checkPhone(v, client.Phone)
	return v.OrNil()
}
