package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/models"
	"github.com/riteshkumar/bank-ledger/internal/repository"
)

const (
	defaultRetryInterval = 5 * time.Second
	defaultMaxAttempts   = 5
)

type pruneJob struct {
	pair      models.BankClient
	attempts  int
	nextRunAt time.Time
}

// Maintainer keeps a bank-client link present exactly while the client holds
// at least one account at the bank.
type Maintainer struct {
	bankClientRepo repository.BankClientRepository
	publisher      events.Publisher
	logger         *slog.Logger

	mu      sync.Mutex
	pending []pruneJob

	retryInterval time.Duration
	maxAttempts   int
	now           func() time.Time
}

type SweepResult struct {
	Pruned   int
	Restored int
	Failed   int
}

func NewMaintainer(bankClientRepo repository.BankClientRepository, publisher events.Publisher, logger *slog.Logger) *Maintainer {
	return &Maintainer{
		bankClientRepo: bankClientRepo,
		publisher:      publisher,
		logger:         logger,
		retryInterval:  defaultRetryInterval,
		maxAttempts:    defaultMaxAttempts,
		now:            time.Now,
	}
}

// AccountDeleted runs after an account delete is durable. It removes the
// bank-client link when no account remains for the pair. A failure is queued
// for retry and never reported to the caller.
func (m *Maintainer) AccountDeleted(ctx context.Context, account *models.Account) {
	pair := models.BankClient{BankID: account.BankID, ClientID: account.ClientID}
	if err := m.prune(ctx, pair); err != nil {
		m.logger.Error("failed to prune bank client link; queued for retry",
			"bank_id", pair.BankID,
			"client_id", pair.ClientID,
			"error", err.Error(),
		)
		m.enqueue(pruneJob{pair: pair, attempts: 1, nextRunAt: m.now().Add(m.retryInterval)})
	}

	event := events.AccountDeleted{
		AccountID:  account.ID,
		ClientID:   account.ClientID,
		BankID:     account.BankID,
		OccurredAt: m.now().UTC(),
	}
	if err := m.publisher.Publish(ctx, events.RoutingKeyAccountDeleted, event); err != nil {
		m.logger.Warn("failed to publish account deleted event",
			"account_id", account.ID,
			"error", err.Error(),
		)
	}
}

func (m *Maintainer) prune(ctx context.Context, pair models.BankClient) error {
	removed, err := m.bankClientRepo.UnlinkBankClientIfOrphaned(ctx, pair.BankID, pair.ClientID)
	if err != nil {
		return err
	}
	if removed {
		m.logger.Info("bank client link removed",
			"bank_id", pair.BankID,
			"client_id", pair.ClientID,
		)
	}
	return nil
}

func (m *Maintainer) enqueue(job pruneJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, job)
}

// Pending returns the number of queued prune retries.
func (m *Maintainer) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Run retries queued prunes until ctx ends.
func (m *Maintainer) Run(ctx context.Context) error {
	m.logger.Info("relationship maintainer started", "retry_interval", m.retryInterval.String())
	ticker := time.NewTicker(m.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("relationship maintainer stopped", "pending", m.Pending())
			return nil
		case <-ticker.C:
			m.retryDue(ctx)
		}
	}
}

// retryDue attempts every queued job whose backoff has elapsed. Jobs that
// keep failing are dropped after maxAttempts; the sweep repairs them later.
func (m *Maintainer) retryDue(ctx context.Context) {
	now := m.now()

	m.mu.Lock()
	var due, later []pruneJob
	for _, job := range m.pending {
		if job.nextRunAt.After(now) {
			later = append(later, job)
		} else {
			due = append(due, job)
		}
	}
	m.pending = later
	m.mu.Unlock()

	for _, job := range due {
		err := m.prune(ctx, job.pair)
		if err == nil {
			continue
		}
		job.attempts++
		if job.attempts > m.maxAttempts {
			m.logger.Error("giving up on bank client prune",
				"bank_id", job.pair.BankID,
				"client_id", job.pair.ClientID,
				"attempts", job.attempts-1,
				"error", err.Error(),
			)
			continue
		}
		job.nextRunAt = now.Add(time.Duration(job.attempts) * m.retryInterval)
		m.logger.Warn("bank client prune failed; scheduled retry",
			"bank_id", job.pair.BankID,
			"client_id", job.pair.ClientID,
			"attempts", job.attempts,
			"next_run", job.nextRunAt,
		)
		m.enqueue(job)
	}
}

// Sweep removes every orphaned link and restores every missing one.
func (m *Maintainer) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		result  SweepResult
		lastErr error
	)

	orphans, err := m.bankClientRepo.ListOrphanedBankClients(ctx)
	if err != nil {
		return result, fmt.Errorf("list orphaned bank clients: %w", err)
	}
	for _, pair := range orphans {
		removed, err := m.bankClientRepo.UnlinkBankClientIfOrphaned(ctx, pair.BankID, pair.ClientID)
		if err != nil {
			result.Failed++
			lastErr = err
			continue
		}
		if removed {
			result.Pruned++
		}
	}

	missing, err := m.bankClientRepo.ListMissingBankClients(ctx)
	if err != nil {
		return result, fmt.Errorf("list missing bank clients: %w", err)
	}
	for _, pair := range missing {
		if err := m.bankClientRepo.LinkBankClient(ctx, pair.BankID, pair.ClientID); err != nil {
			result.Failed++
			lastErr = err
			continue
		}
		result.Restored++
	}

	m.logger.Info("relationship sweep finished",
		"pruned", result.Pruned,
		"restored", result.Restored,
		"failed", result.Failed,
	)
	if lastErr != nil {
		return result, fmt.Errorf("relationship sweep: %d pairs failed: %w", result.Failed, lastErr)
	}
	return result, nil
}
