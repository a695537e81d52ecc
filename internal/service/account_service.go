package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

type AccountService interface {
	CreateAccount(ctx context.Context, actor models.Actor, req *models.CreateAccountRequest) (*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error)
	DeleteAccount(ctx context.Context, actor models.Actor, id string) error
}

// AccountObserver is notified once an account delete is durable.
type AccountObserver interface {
	AccountDeleted(ctx context.Context, account *models.Account)
}

type AccountServiceImpl struct {
	accountRepo repository.AccountRepository
	clientRepo  repository.ClientRepository
	bankRepo    repository.BankRepository
	auditRepo   repository.AuditRepository
	observer    AccountObserver
	maxBalance  decimal.Decimal
	logger      *slog.Logger
}

func NewAccountService(
	accountRepo repository.AccountRepository,
	clientRepo repository.ClientRepository,
	bankRepo repository.BankRepository,
	auditRepo repository.AuditRepository,
	observer AccountObserver,
	maxBalance decimal.Decimal,
	logger *slog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		clientRepo:  clientRepo,
		bankRepo:    bankRepo,
		auditRepo:   auditRepo,
		observer:    observer,
		maxBalance:  maxBalance,
		logger:      logger,
	}
}

func (s *AccountServiceImpl) CreateAccount(ctx context.Context, actor models.Actor, req *models.CreateAccountRequest) (*models.Account, error) {
	if err := s.validateCreateRequest(req); err != nil {
		s.logger.Warn("invalid create account request",
			"client_id", req.ClientID,
			"bank_id", req.BankID,
			"error", err.Error(),
		)
		return nil, err
	}
	if err := requireOwnerOrAdmin(actor, req.ClientID); err != nil {
		return nil, err
	}

	if _, err := s.clientRepo.GetClientByID(ctx, req.ClientID); err != nil {
		return nil, s.lookupError("get client", err)
	}
	if _, err := s.bankRepo.GetBankByID(ctx, req.BankID); err != nil {
		return nil, s.lookupError("get bank", err)
	}

	account := &models.Account{
		ID:       uuid.NewString(),
		ClientID: req.ClientID,
		BankID:   req.BankID,
		Balance:  req.InitialBalance,
	}
	if account.Balance.IsZero() {
		account.Balance = decimal.Zero
	}

	if err := s.accountRepo.CreateAccount(ctx, account); err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		s.logger.Error("failed to create account",
			"client_id", req.ClientID,
			"bank_id", req.BankID,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("create account", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeAccount, account.ID, models.AuditActionCreate, nil,
		models.AccountBalanceSnapshot{ID: account.ID, Balance: account.Balance})
	s.logger.Info("account created successfully",
		"account_id", account.ID,
		"client_id", account.ClientID,
		"bank_id", account.BankID,
	)
	return account, nil
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}

	account, err := s.accountRepo.GetAccountByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			s.logger.Warn("account not found", "account_id", id)
			return nil, err
		}
		s.logger.Error("failed to get account",
			"account_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("get account", err)
	}
	return account, nil
}

func (s *AccountServiceImpl) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	v := &errors.ValidationError{}
	if filter.ClientID != "" {
		checkID(v, "client_id", filter.ClientID)
	}
	if filter.BankID != "" {
		checkID(v, "bank_id", filter.BankID)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	accounts, err := s.accountRepo.ListAccounts(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list accounts", "error", err.Error())
		return nil, errors.NewStorageError("list accounts", err)
	}
	return accounts, nil
}

// DeleteAccount closes the account. Its transactions go with it. The
// bank-client link is maintained after the delete commits.
func (s *AccountServiceImpl) DeleteAccount(ctx context.Context, actor models.Actor, id string) error {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}
	if err := requireOwnerOrAdmin(actor, account.ClientID); err != nil {
		return err
	}

	deleted, err := s.accountRepo.DeleteAccount(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		s.logger.Error("failed to delete account",
			"account_id", id,
			"error", err.Error(),
		)
		return errors.NewStorageError("delete account", err)
	}

	recordAudit(ctx, s.auditRepo, s.logger, models.EntityTypeAccount, id, models.AuditActionDelete,
		models.AccountBalanceSnapshot{ID: deleted.ID, Balance: deleted.Balance}, nil)
	if s.observer != nil {
		s.observer.AccountDeleted(ctx, deleted)
	}
	s.logger.Info("account deleted",
		"account_id", id,
		"client_id", deleted.ClientID,
		"bank_id", deleted.BankID,
	)
	return nil
}

func (s *AccountServiceImpl) validateCreateRequest(req *models.CreateAccountRequest) error {
	v := &errors.ValidationError{}
	checkID(v, "client_id", req.ClientID)
	checkID(v, "bank_id", req.BankID)

	switch {
	case req.InitialBalance.IsNegative():
		v.Add("initial_balance", "must not be negative")
	case !hasMoneyScale(req.InitialBalance):
		v.Add("initial_balance", "must have at most 2 decimal places")
	case compareMoney(req.InitialBalance, s.maxBalance) >= 0:
		v.Add("initial_balance", "must be less than "+s.maxBalance.String())
	}
	return v.OrNil()
}

func (s *AccountServiceImpl) lookupError(operation string, err error) error {
	if errors.IsNotFound(err) {
		return err
	}
	s.logger.Error("failed to "+operation, "error", err.Error())
	return errors.NewStorageError(operation, err)
}
