package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/riteshkumar/bank-ledger/internal/errors"
	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

type TransactionService interface {
	Transfer(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	GetTransactionByIdempotencyKey(ctx context.Context, initializerID, key string) (*models.Transaction, error)
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error)
	DeleteTransaction(ctx context.Context, actor models.Actor, id string) error
}

// TransferLimits bound a single transfer. MaxBalance is exclusive.
type TransferLimits struct {
	MaxAmount  decimal.Decimal
	MaxBalance decimal.Decimal
	MaxRetries int
}

type TransactionServiceImpl struct {
	ledger          repository.Ledger
	accountRepo     repository.AccountRepository
	transactionRepo repository.TransactionRepository
	publisher       events.Publisher
	canTransfer     TransferPolicy
	limits          TransferLimits
	now             func() time.Time
	location        *time.Location
	logger          *slog.Logger
}

type TransactionOption func(*TransactionServiceImpl)

func WithTransferPolicy(policy TransferPolicy) TransactionOption {
	return func(s *TransactionServiceImpl) {
		s.canTransfer = policy
	}
}

func WithClock(now func() time.Time) TransactionOption {
	return func(s *TransactionServiceImpl) {
		s.now = now
	}
}

// WithLocation sets the time zone whose calendar decides what "today" is.
func WithLocation(loc *time.Location) TransactionOption {
	return func(s *TransactionServiceImpl) {
		s.location = loc
	}
}

func NewTransactionService(
	ledger repository.Ledger,
	accountRepo repository.AccountRepository,
	transactionRepo repository.TransactionRepository,
	publisher events.Publisher,
	limits TransferLimits,
	logger *slog.Logger,
	opts ...TransactionOption,
) *TransactionServiceImpl {
	s := &TransactionServiceImpl{
		ledger:          ledger,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		publisher:       publisher,
		canTransfer:     OwnerOrAdmin,
		limits:          limits,
		now:             time.Now,
		location:        time.UTC,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transferPlan is a transfer that passed every precondition.
type transferPlan struct {
	from   *models.Account
	to     *models.Account
	amount decimal.Decimal
	date   time.Time
}

// Transfer moves funds between two accounts and records the transaction.
// Either the debit, the credit and the record all become visible together or
// none of them does.
func (s *TransactionServiceImpl) Transfer(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	if err := validateTransferRequest(req); err != nil {
		s.logger.Warn("invalid transfer request",
			"from_account_id", req.FromAccountID,
			"to_account_id", req.ToAccountID,
			"error", err.Error(),
		)
		return nil, err
	}

	if req.IdempotencyKey != "" && actor.ClientID != "" {
		existing, err := s.replay(ctx, actor, req)
		if err != nil || existing != nil {
			return existing, err
		}
	}

	plan, err := s.checkPreconditions(ctx, actor, req)
	if err != nil {
		s.logger.Warn("transfer rejected",
			"from_account_id", req.FromAccountID,
			"to_account_id", req.ToAccountID,
			"amount", logAmount(req.Amount),
			"error", err.Error(),
		)
		return nil, err
	}

	var transaction *models.Transaction
	for attempt := 0; ; attempt++ {
		transaction, err = s.execute(ctx, actor, req, plan)
		if err == nil || !repository.IsRetryable(err) || attempt >= s.limits.MaxRetries {
			break
		}
		s.logger.Warn("retrying transfer after serialization failure",
			"from_account_id", req.FromAccountID,
			"to_account_id", req.ToAccountID,
			"attempt", attempt+1,
			"error", err.Error(),
		)
	}

	if errors.Is(err, errors.ErrDuplicateIdempotencyKey) {
		// A concurrent request with the same key committed first.
		return s.replayAfterConflict(ctx, actor, req)
	}
	if err != nil {
		return nil, s.transferFailure(req, err)
	}

	s.logger.Info("transfer completed",
		"transaction_id", transaction.ID,
		"from_account_id", transaction.FromAccountID,
		"to_account_id", transaction.ToAccountID,
		"amount", transaction.Amount.String(),
	)
	s.publishCompleted(ctx, transaction)
	return transaction, nil
}

func validateTransferRequest(req *models.CreateTransactionRequest) error {
	v := &errors.ValidationError{}
	checkID(v, "from_account_id", req.FromAccountID)
	checkID(v, "to_account_id", req.ToAccountID)
	if req.Description != nil && utf8.RuneCountInString(*req.Description) > maxDescriptionLength {
		v.Add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength))
	}
	if utf8.RuneCountInString(req.IdempotencyKey) > maxIdempotencyKeyLength {
		v.Add("idempotency_key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength))
	}
	return v.OrNil()
}

// checkPreconditions evaluates the rejection reasons in a fixed order and
// returns the first that applies.
func (s *TransactionServiceImpl) checkPreconditions(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest) (*transferPlan, error) {
	if req.FromAccountID == req.ToAccountID {
		return nil, errors.ErrSelfTransfer
	}

	from, err := s.accountRepo.GetAccountByID(ctx, req.FromAccountID)
	if err != nil {
		return nil, s.accountLookupError("source", err)
	}
	to, err := s.accountRepo.GetAccountByID(ctx, req.ToAccountID)
	if err != nil {
		return nil, s.accountLookupError("destination", err)
	}

	amount := req.Amount
	switch {
	case !amount.IsPositive():
		return nil, fmt.Errorf("%w: must be greater than zero", errors.ErrInvalidAmount)
	case !hasMoneyScale(amount):
		return nil, fmt.Errorf("%w: must have at most 2 decimal places", errors.ErrInvalidAmount)
	case compareMoney(amount, s.limits.MaxAmount) > 0:
		return nil, fmt.Errorf("%w: must not exceed %s", errors.ErrInvalidAmount, s.limits.MaxAmount)
	}

	today := models.TodayIn(s.now(), s.location)
	date := today
	if !req.TransactionDate.IsZero() {
		date = models.Today(req.TransactionDate.Time)
	}
	if date.After(today) {
		return nil, errors.ErrFutureDatedTransaction
	}

	if actor.ClientID == "" || !s.canTransfer(actor, from) {
		return nil, errors.ErrForbidden
	}

	if from.Balance.LessThan(amount) {
		return nil, errors.ErrInsufficientFunds
	}

	return &transferPlan{from: from, to: to, amount: amount, date: date}, nil
}

func (s *TransactionServiceImpl) accountLookupError(side string, err error) error {
	if errors.IsNotFound(err) {
		return fmt.Errorf("%s account: %w", side, err)
	}
	return errors.NewStorageError("get "+side+" account", err)
}

// execute runs one attempt of the unit of work. Balances are re-read under
// lock, so the checks here are authoritative.
func (s *TransactionServiceImpl) execute(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest, plan *transferPlan) (*models.Transaction, error) {
	transaction := &models.Transaction{
		ID:              uuid.NewString(),
		InitializerID:   actor.ClientID,
		Amount:          plan.amount,
		TransactionDate: plan.date,
		Description:     req.Description,
		FromAccountID:   plan.from.ID,
		ToAccountID:     plan.to.ID,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		transaction.IdempotencyKey = &key
	}

	err := s.ledger.RunInTx(ctx, func(ctx context.Context, tx repository.LedgerTx) error {
		locked, err := tx.LockAccounts(ctx, plan.from.ID, plan.to.ID)
		if err != nil {
			return err
		}
		from, ok := locked[plan.from.ID]
		if !ok {
			return fmt.Errorf("source account: %w", errors.ErrAccountNotFound)
		}
		to, ok := locked[plan.to.ID]
		if !ok {
			return fmt.Errorf("destination account: %w", errors.ErrAccountNotFound)
		}

		if from.Balance.LessThan(plan.amount) {
			return errors.ErrInsufficientFunds
		}
		newFromBalance := from.Balance.Sub(plan.amount)
		newToBalance := to.Balance.Add(plan.amount)
		if newToBalance.GreaterThanOrEqual(s.limits.MaxBalance) {
			return fmt.Errorf("%w: destination balance would reach %s", errors.ErrInvalidAmount, s.limits.MaxBalance)
		}

		if err := tx.UpdateAccountBalance(ctx, from.ID, newFromBalance); err != nil {
			return err
		}
		if err := tx.UpdateAccountBalance(ctx, to.ID, newToBalance); err != nil {
			return err
		}
		if err := tx.CreateTransaction(ctx, transaction); err != nil {
			return err
		}
		return s.writeTransferAudit(ctx, tx, transaction, from, to, newFromBalance, newToBalance)
	})
	if err != nil {
		return nil, err
	}
	return transaction, nil
}

func (s *TransactionServiceImpl) writeTransferAudit(ctx context.Context, tx repository.LedgerTx, transaction *models.Transaction, from, to *models.Account, newFromBalance, newToBalance decimal.Decimal) error {
	entries := []struct {
		entityType, entityID, action string
		oldValue, newValue           any
	}{
		{
			models.EntityTypeAccount, from.ID, models.AuditActionDebit,
			models.AccountBalanceSnapshot{ID: from.ID, Balance: from.Balance},
			models.AccountBalanceSnapshot{ID: from.ID, Balance: newFromBalance},
		},
		{
			models.EntityTypeAccount, to.ID, models.AuditActionCredit,
			models.AccountBalanceSnapshot{ID: to.ID, Balance: to.Balance},
			models.AccountBalanceSnapshot{ID: to.ID, Balance: newToBalance},
		},
		{
			models.EntityTypeTransaction, transaction.ID, models.AuditActionTransfer,
			nil, models.NewTransactionResponse(transaction),
		},
	}

	for _, e := range entries {
		auditLog, err := newAuditLog(e.entityType, e.entityID, e.action, e.oldValue, e.newValue)
		if err != nil {
			return err
		}
		if err := tx.CreateAuditLog(ctx, auditLog); err != nil {
			return fmt.Errorf("failed to create %s audit log: %w", strings.ToLower(e.action), err)
		}
	}
	return nil
}

// transferFailure keeps rejections and storage errors as they are and turns
// anything else into a StorageError.
func (s *TransactionServiceImpl) transferFailure(req *models.CreateTransactionRequest, err error) error {
	if errors.IsTransferRejection(err) || errors.IsNotFound(err) {
		s.logger.Warn("transfer rejected under lock",
			"from_account_id", req.FromAccountID,
			"to_account_id", req.ToAccountID,
			"error", err.Error(),
		)
		return err
	}

	s.logger.Error("transfer failed",
		"from_account_id", req.FromAccountID,
		"to_account_id", req.ToAccountID,
		"amount", logAmount(req.Amount),
		"error", err.Error(),
	)
	if errors.IsStorageError(err) {
		return err
	}
	return errors.NewStorageError("transfer", err)
}

// replay returns the committed transaction for the actor's idempotency key,
// or nil when the key is unused.
func (s *TransactionServiceImpl) replay(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	existing, err := s.transactionRepo.GetTransactionByIdempotencyKey(ctx, actor.ClientID, req.IdempotencyKey)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		s.logger.Error("failed to look up idempotency key",
			"initializer_id", actor.ClientID,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("get transaction by idempotency key", err)
	}
	if !sameTransfer(existing, req) {
		return nil, errors.NewValidationError("idempotency_key", "already used for a different transfer")
	}

	s.logger.Info("transfer replayed from idempotency key",
		"transaction_id", existing.ID,
		"initializer_id", actor.ClientID,
	)
	return existing, nil
}

func (s *TransactionServiceImpl) replayAfterConflict(ctx context.Context, actor models.Actor, req *models.CreateTransactionRequest) (*models.Transaction, error) {
	existing, err := s.replay(ctx, actor, req)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		// The conflicting transaction has since been deleted.
		return nil, errors.NewStorageError("transfer", errors.ErrDuplicateIdempotencyKey)
	}
	return existing, nil
}

func sameTransfer(t *models.Transaction, req *models.CreateTransactionRequest) bool {
	return t.FromAccountID == req.FromAccountID &&
		t.ToAccountID == req.ToAccountID &&
		sameMoney(t.Amount, req.Amount)
}

func (s *TransactionServiceImpl) publishCompleted(ctx context.Context, t *models.Transaction) {
	event := events.TransferCompleted{
		TransactionID:   t.ID,
		InitializerID:   t.InitializerID,
		FromAccountID:   t.FromAccountID,
		ToAccountID:     t.ToAccountID,
		Amount:          t.Amount.StringFixed(moneyScale),
		TransactionDate: t.TransactionDate.Format("2006-01-02"),
		OccurredAt:      s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.RoutingKeyTransferCompleted, event); err != nil {
		s.logger.Warn("failed to publish transfer completed event",
			"transaction_id", t.ID,
			"error", err.Error(),
		)
	}
}

func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}

	transaction, err := s.transactionRepo.GetTransactionByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		s.logger.Error("failed to get transaction",
			"transaction_id", id,
			"error", err.Error(),
		)
		return nil, errors.NewStorageError("get transaction", err)
	}
	return transaction, nil
}

func (s *TransactionServiceImpl) GetTransactionByIdempotencyKey(ctx context.Context, initializerID, key string) (*models.Transaction, error) {
	v := &errors.ValidationError{}
	checkID(v, "initializer_id", initializerID)
	if key == "" {
		v.Add("idempotency_key", "must be non-empty")
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	transaction, err := s.transactionRepo.GetTransactionByIdempotencyKey(ctx, initializerID, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, err
		}
		return nil, errors.NewStorageError("get transaction by idempotency key", err)
	}
	return transaction, nil
}

func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.Transaction, error) {
	v := &errors.ValidationError{}
	if filter.InitializerID != "" {
		checkID(v, "initializer_id", filter.InitializerID)
	}
	if filter.AccountID != "" {
		checkID(v, "account_id", filter.AccountID)
	}
	if filter.ClientID != "" {
		checkID(v, "client_id", filter.ClientID)
	}
	if err := v.OrNil(); err != nil {
		return nil, err
	}

	transactions, err := s.transactionRepo.ListTransactions(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list transactions", "error", err.Error())
		return nil, errors.NewStorageError("list transactions", err)
	}
	return transactions, nil
}

// DeleteTransaction removes the record without touching balances.
func (s *TransactionServiceImpl) DeleteTransaction(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := validateID("id", id); err != nil {
		return err
	}

	if err := s.transactionRepo.DeleteTransaction(ctx, id); err != nil {
		if errors.IsNotFound(err) {
			return err
		}
		s.logger.Error("failed to delete transaction",
			"transaction_id", id,
			"error", err.Error(),
		)
		return errors.NewStorageError("delete transaction", err)
	}

	s.logger.Info("transaction deleted", "transaction_id", id)
	return nil
}
