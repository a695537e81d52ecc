package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/bank-ledger/internal/events"
	"github.com/riteshkumar/bank-ledger/internal/models"
)

func TestDeleteAccount_PrunesLinkOnlyForLastAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	first := env.openAccount(t, alice, bank.ID, "10")
	second := env.openAccount(t, alice, bank.ID, "20")

	linked, err := env.store.BankClientExists(ctx, bank.ID, alice.ClientID)
	require.NoError(t, err)
	assert.True(t, linked)

	require.NoError(t, env.accounts.DeleteAccount(ctx, alice, first.ID))
	linked, err = env.store.BankClientExists(ctx, bank.ID, alice.ClientID)
	require.NoError(t, err)
	assert.True(t, linked, "link must survive while another account remains")

	require.NoError(t, env.accounts.DeleteAccount(ctx, alice, second.ID))
	linked, err = env.store.BankClientExists(ctx, bank.ID, alice.ClientID)
	require.NoError(t, err)
	assert.False(t, linked)

	assert.Equal(t, 0, env.maintainer.Pending())
	assert.Contains(t, env.publisher.published(), events.RoutingKeyAccountDeleted)
}

// stubBankClients fails the first failUnlinks calls to UnlinkBankClientIfOrphaned.
type stubBankClients struct {
	mu          sync.Mutex
	failUnlinks int
	unlinkCalls int
	orphans     []models.BankClient
	missing     []models.BankClient
	linked      []models.BankClient
	failLink    bool
}

func (s *stubBankClients) LinkBankClient(_ context.Context, bankID, clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLink {
		return fmt.Errorf("connection reset")
	}
	s.linked = append(s.linked, models.BankClient{BankID: bankID, ClientID: clientID})
	return nil
}

func (s *stubBankClients) UnlinkBankClientIfOrphaned(context.Context, string, string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlinkCalls++
	if s.unlinkCalls <= s.failUnlinks {
		return false, fmt.Errorf("connection reset")
	}
	return true, nil
}

func (s *stubBankClients) BankClientExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (s *stubBankClients) ListOrphanedBankClients(context.Context) ([]models.BankClient, error) {
	return s.orphans, nil
}

func (s *stubBankClients) ListMissingBankClients(context.Context) ([]models.BankClient, error) {
	return s.missing, nil
}

func TestMaintainer_QueuesFailedPruneForRetry(t *testing.T) {
	repo := &stubBankClients{failUnlinks: 2}
	m := NewMaintainer(repo, events.NewNoopPublisher(nil), discardLogger())
	now := fixedNow
	m.now = func() time.Time { return now }

	m.AccountDeleted(context.Background(), &models.Account{ID: "a", BankID: "b", ClientID: "c"})
	require.Equal(t, 1, m.Pending())

	// Not due yet.
	m.retryDue(context.Background())
	assert.Equal(t, 1, repo.unlinkCalls)
	assert.Equal(t, 1, m.Pending())

	now = now.Add(m.retryInterval)
	m.retryDue(context.Background())
	assert.Equal(t, 2, repo.unlinkCalls)
	assert.Equal(t, 1, m.Pending(), "second failure is rescheduled")

	now = now.Add(2 * m.retryInterval)
	m.retryDue(context.Background())
	assert.Equal(t, 3, repo.unlinkCalls)
	assert.Equal(t, 0, m.Pending())
}

func TestMaintainer_DropsJobAfterMaxAttempts(t *testing.T) {
	repo := &stubBankClients{failUnlinks: 100}
	m := NewMaintainer(repo, events.NewNoopPublisher(nil), discardLogger())
	now := fixedNow
	m.now = func() time.Time { return now }

	m.AccountDeleted(context.Background(), &models.Account{ID: "a", BankID: "b", ClientID: "c"})
	for i := 0; i < m.maxAttempts; i++ {
		now = now.Add(time.Hour)
		m.retryDue(context.Background())
	}
	assert.Equal(t, 0, m.Pending())
	assert.Equal(t, m.maxAttempts+1, repo.unlinkCalls)
}

func TestMaintainer_RunStopsWithContext(t *testing.T) {
	m := NewMaintainer(&stubBankClients{}, events.NewNoopPublisher(nil), discardLogger())
	m.retryInterval = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("maintainer did not stop")
	}
}

func TestMaintainer_SweepRepairsBothDirections(t *testing.T) {
	repo := &stubBankClients{
		orphans: []models.BankClient{{BankID: "b1", ClientID: "c1"}, {BankID: "b2", ClientID: "c1"}},
		missing: []models.BankClient{{BankID: "b3", ClientID: "c2"}},
	}
	m := NewMaintainer(repo, events.NewNoopPublisher(nil), discardLogger())

	result, err := m.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Pruned: 2, Restored: 1}, result)
	assert.Equal(t, repo.missing, repo.linked)
}

func TestMaintainer_SweepReportsFailures(t *testing.T) {
	repo := &stubBankClients{
		missing:  []models.BankClient{{BankID: "b3", ClientID: "c2"}},
		failLink: true,
	}
	m := NewMaintainer(repo, events.NewNoopPublisher(nil), discardLogger())

	result, err := m.Sweep(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, result.Failed)
}

func TestMaintainer_SweepOnStore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	bank := env.newBank(t, "Alpha")
	_, alice := env.newClient(t, "alice")
	_, bob := env.newClient(t, "bob")
	env.openAccount(t, alice, bank.ID, "10")

	// bob holds no account at the bank.
	require.NoError(t, env.store.LinkBankClient(ctx, bank.ID, bob.ClientID))

	result, err := env.maintainer.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pruned)

	linked, err := env.store.BankClientExists(ctx, bank.ID, bob.ClientID)
	require.NoError(t, err)
	assert.False(t, linked)
	linked, err = env.store.BankClientExists(ctx, bank.ID, alice.ClientID)
	require.NoError(t, err)
	assert.True(t, linked)
}
