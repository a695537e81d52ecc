package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riteshkumar/bank-ledger/internal/service"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) Sweep(ctx context.Context) (service.SweepResult, error) {
	s.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return service.SweepResult{}, fmt.Errorf("sweep context has no deadline")
	}
	return service.SweepResult{Pruned: 1}, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(&countingSweeper{}, "every now and then", testLogger())
	err := s.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "every now and then")
}

func TestScheduler_RunSweep(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "@every 1m", testLogger())

	s.runSweep()
	sweeper.err = fmt.Errorf("db unavailable")
	s.runSweep()

	assert.Equal(t, int32(2), sweeper.calls.Load())
}

func TestScheduler_StartAndStop(t *testing.T) {
	sweeper := &countingSweeper{}
	s := NewScheduler(sweeper, "@every 1s", testLogger())
	require.NoError(t, s.Start())

	assert.Eventually(t, func() bool { return sweeper.calls.Load() > 0 }, 5*time.Second, 50*time.Millisecond)

	select {
	case <-s.Stop().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
