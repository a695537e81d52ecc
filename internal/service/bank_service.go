package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

type BankService interface {
	CreateBank(ctx context.Context, actor models.Actor, req *models.CreateBankRequest) (*models.Bank, error)
	GetBank(ctx context.Context, id string) (*models.Bank, error)
	ListBanks(ctx context.Context, clientID string) ([]*models.Bank, error)
	UpdateBank(ctx context.Context, actor models.Actor, id string, req *models.UpdateBankRequest) (*models.Bank, error)
	DeleteBank(ctx context.Context, actor models.Actor, id string) error
}

type BankServiceImpl struct {
	bankRepo  repository.BankRepository
	auditRepo repository.AuditRepository
	now       func() time.Time
	location  *time.Location
	logger    *slog.Logger
}

type BankOption func(*BankServiceImpl)

// WithBankLocation sets the time zone whose calendar decides what "today" is.
func WithBankLocation(loc *time.Location) BankOption {
	return func(s *BankServiceImpl) {
		s.location = loc
	}
}

func NewBankService(bankRepo repository.BankRepository, auditRepo repository.AuditRepository, logger *slog.Logger, opts ...BankOption) *BankServiceImpl {
	s := &BankServiceImpl{
		bankRepo:  bankRepo,
		auditRepo: auditRepo,
		now:       time.Now,
		location:  time.UTC,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BankServiceImpl) CreateBank(ctx context.Context, actor models.Actor, req *models.CreateBankRequest) (*models.Bank, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	bank := &models.Bank{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(req.Title),
		FoundationDate: req.FoundationDate.Time,
	}
	if err := s.validateBank(bank); err != nil {
		s.logger.Warn("invalid create bank request",
			"title", req.Title,
			"error", err.Error(),
		)
		return nil, err
	}

	if err := s.bankRepo.CreateBank(ctx, bank); err != nil {
		if errors.IsAlreadyExists(err) {
			s.logger.Warn("bank title already taken", "title", bank.Title)
			return nil, errors.NewValidationError("title", "bank with this title already exists")
		}
		s.logger.Error("failed to create bank",
			"title", bank.Title,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("create bank", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeBank, bank.ID, models.AuditActionCreate, nil, models.NewBankResponse(bank))
	s.logger.Info("bank created successfully", "bank_id", bank.ID)
	return bank, nil
}

func (s *BankServiceImpl) GetBank(ctx context.Context, id string) (*models.Bank, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}

	bank, err := s.bankRepo.GetBankByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("bank not found", "bank_id", id)
			return nil, err
		}
		s.logger.Error("failed to get bank",
			"bank_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("get bank", err)
	}
	return bank, nil
}

func (s *BankServiceImpl) ListBanks(ctx context.Context, clientID string) ([]*models.Bank, error) {
	if clientID != "" {
		if err := validateID("client_id", clientID); err != nil {
			return nil, err
		}
	}

	banks, err := s.bankRepo.ListBanks(ctx, clientID)
	if err != nil {
		s.logger.Error("failed to list banks", "error", err.Error())
		return nil, errors.NewStorageError("list banks", err)
	}
	return banks, nil
}

func (s *BankServiceImpl) UpdateBank(ctx context.Context, actor models.Actor, id string, req *models.UpdateBankRequest) (*models.Bank, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	existing, err := s.GetBank(ctx, id)
	if err != nil {
		return nil, err
	}

	before := models.NewBankResponse(existing)
	updated := *existing
	updated.Title = strings.TrimSpace(req.Title)
	updated.FoundationDate = req.FoundationDate.Time
	if err := s.validateBank(&updated); err != nil {
		return nil, err
	}

	if err := s.bankRepo.UpdateBank(ctx, &updated); err != nil {
		switch {
		case errors.IsAlreadyExists(err):
			return nil, errors.NewValidationError("title", "bank with this title already exists")
		case errors.IsNotFound(err):
			return nil, err
		}
		s.logger.Error("failed to update bank",
			"bank_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("update bank", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeBank, id, models.AuditActionUpdate, before, models.NewBankResponse(&updated))
	return &updated, nil
}

// DeleteBank removes the bank with every account held there and those
// accounts' transactions.
func (s *BankServiceImpl) DeleteBank(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateID("id", id); err != nil {
		return err
	}

	if err := s.bankRepo.DeleteBank(ctx, id); err != nil {
		if errors.IsNotFound(err) || errors.IsConstraintError(err) {
			return err
		}
		s.logger.Error("failed to delete bank",
			"bank_id", id,
			"error", err.Error(),
		)
		return errors.NewStorageError("delete bank", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeBank, id, models.AuditActionDelete, nil, nil)
	s.logger.Info("bank deleted", "bank_id", id)
	return nil
}

// validateBank defaults a missing foundation date to today.
func (s *BankServiceImpl) validateBank(bank *models.Bank) error {
	v := &errors.ValidationError{}
	checkLength(v, "title", bank.Title, 1, maxBankTitleLength)

	today := models.TodayIn(s.now(), s.location)
	if bank.FoundationDate.IsZero() {
		bank.FoundationDate = today
	}
	bank.FoundationDate = models.Today(bank.FoundationDate)
	if bank.FoundationDate.After(today) {
		v.Add("foundation_date", "must not be in the future")
	}
	return v.OrNil()
}
