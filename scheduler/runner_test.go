package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"food-order-api/models"
	"food-order-api/statemachine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// memApplier stands in for the order service: it keeps the stored status per
// order and behaves like a compare-and-set against it.
type memApplier struct {
	mu      sync.Mutex
	status  map[uint]models.OrderStatus
	calls   int
	failFor uint
}

func newMemApplier(orders []models.Order) *memApplier {
	m := &memApplier{status: make(map[uint]models.OrderStatus)}
	for _, o := range orders {
		m.status[o.ID] = o.Status
	}
	return m
}

func (m *memApplier) ApplyAutoEvent(_ context.Context, snapshot models.Order, f Firing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if f.OrderID == m.failFor {
		return errors.New("database unavailable")
	}
	stored := m.status[f.OrderID]
	if stored != snapshot.Status {
		return fmt.Errorf("%w: stored %s, snapshot %s", ErrSkipped, stored, snapshot.Status)
	}
	next, err := statemachine.Apply(stored, f.Event)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSkipped, err)
	}
	m.status[f.OrderID] = next
	return nil
}

func (m *memApplier) get(id uint) models.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[id]
}

func TestRunner_ExpiresStalePendingOrder(t *testing.T) {
	orders := []models.Order{order(1, models.StatusPending)}
	applier := newMemApplier(orders)
	r := NewRunner(applier, zap.NewNop(), WithClock(fixedClock{t0.Add(31 * time.Minute)}))
	r.Replace(orders)

	applied := r.RunOnce(context.Background())
	require.Len(t, applied, 1)
	assert.Equal(t, ReasonNoConfirmation, applied[0].Reason)
	assert.Equal(t, models.StatusCancelled, applier.get(1))
}

func TestRunner_DuplicateTickOnStaleSnapshotFiresOnce(t *testing.T) {
	orders := []models.Order{order(1, models.StatusPreparing)}
	applier := newMemApplier(orders)
	r := NewRunner(applier, zap.NewNop(), WithClock(fixedClock{t0.Add(16 * time.Minute)}))
	r.Replace(orders)

	first := r.RunOnce(context.Background())
	second := r.RunOnce(context.Background())

	assert.Len(t, first, 1)
	assert.Empty(t, second)
	assert.Equal(t, models.StatusReady, applier.get(1))
}

func TestRunner_ConcurrentManualTransitionIsSwallowed(t *testing.T) {
	orders := []models.Order{order(1, models.StatusConfirmed)}
	applier := newMemApplier(orders)
	r := NewRunner(applier, zap.NewNop(), WithClock(fixedClock{t0.Add(5 * time.Minute)}))
	r.Replace(orders)

	// Operator cancelled between the snapshot and the tick.
	applier.status[1] = models.StatusCancelled

	assert.Empty(t, r.RunOnce(context.Background()))
	assert.Equal(t, models.StatusCancelled, applier.get(1))
}

func TestRunner_OneFailureDoesNotHaltTheRest(t *testing.T) {
	orders := []models.Order{
		order(1, models.StatusPending),
		order(2, models.StatusPending),
		order(3, models.StatusPending),
	}
	applier := newMemApplier(orders)
	applier.failFor = 2
	r := NewRunner(applier, zap.NewNop(), WithClock(fixedClock{t0.Add(time.Hour)}))
	r.Replace(orders)

	applied := r.RunOnce(context.Background())
	assert.Len(t, applied, 2)
	assert.Equal(t, 3, applier.calls)
	assert.Equal(t, models.StatusPending, applier.get(2))
}

func TestRunner_AdvancesOneStepPerTickWithFreshSnapshots(t *testing.T) {
	o := order(1, models.StatusConfirmed)
	applier := newMemApplier([]models.Order{o})
	r := NewRunner(applier, zap.NewNop(), WithClock(fixedClock{t0.Add(2 * time.Hour)}))

	var steps []models.OrderStatus
	for i := 0; i < 5; i++ {
		o.Status = applier.get(1)
		r.Replace([]models.Order{o})
		r.RunOnce(context.Background())
		steps = append(steps, applier.get(1))
	}
	assert.Equal(t, []models.OrderStatus{
		models.StatusPreparing,
		models.StatusReady,
		models.StatusDelivered,
		models.StatusDelivered,
		models.StatusDelivered,
	}, steps)
}

func TestRunner_ReplaceCopiesSnapshot(t *testing.T) {
	r := NewRunner(newMemApplier(nil), zap.NewNop())
	orders := []models.Order{order(1, models.StatusPending)}
	r.Replace(orders)
	orders[0].Status = models.StatusReady

	assert.Equal(t, models.StatusPending, r.Snapshot()[0].Status)
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	orders := []models.Order{order(1, models.StatusPending)}
	applier := newMemApplier(orders)
	r := NewRunner(applier, zap.NewNop(),
		WithClock(fixedClock{t0.Add(time.Hour)}),
		WithInterval(5*time.Millisecond))
	r.Replace(orders)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return applier.get(1) == models.StatusCancelled
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}
