package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"food-order-api/models"

	"go.uber.org/zap"
)

// DefaultInterval is the design cadence of the auto-progression loop.
const DefaultInterval = time.Minute

// ErrSkipped marks an Applier error meaning the firing is no longer due, for
// example because the order moved on since the snapshot was taken.
var ErrSkipped = errors.New("auto-progression skipped")

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Applier routes a firing through the state machine and persists it. It is
// expected to re-read the order and reject the firing when the stored status
// no longer matches the snapshot.
type Applier interface {
	ApplyAutoEvent(ctx context.Context, snapshot models.Order, f Firing) error
}

// Runner holds the latest order snapshot delivered by a subscription and
// evaluates it on every tick.
type Runner struct {
	rules    Rules
	clock    Clock
	applier  Applier
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	snapshot []models.Order

	runMu sync.Mutex
}

type RunnerOption func(*Runner)

func WithRules(r Rules) RunnerOption { return func(rn *Runner) { rn.rules = r } }

func WithClock(c Clock) RunnerOption { return func(rn *Runner) { rn.clock = c } }

func WithInterval(d time.Duration) RunnerOption {
	return func(rn *Runner) {
		if d > 0 {
			rn.interval = d
		}
	}
}

func NewRunner(applier Applier, logger *zap.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		rules:    DefaultRules(),
		clock:    SystemClock{},
		applier:  applier,
		interval: DefaultInterval,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replace swaps the whole in-memory view. It is meant to be used as the
// callback of a store subscription.
func (r *Runner) Replace(orders []models.Order) {
	next := append([]models.Order(nil), orders...)
	r.mu.Lock()
	r.snapshot = next
	r.mu.Unlock()
}

// Snapshot returns a copy of the current view.
func (r *Runner) Snapshot() []models.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Order(nil), r.snapshot...)
}

// RunOnce evaluates the current snapshot and applies every firing. Failures
// are logged and skipped; the returned slice holds the firings that were
// applied.
func (r *Runner) RunOnce(ctx context.Context) []Firing {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	orders := r.Snapshot()
	byID := make(map[uint]models.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}

	var applied []Firing
	for _, f := range r.rules.Tick(r.clock.Now(), orders) {
		if ctx.Err() != nil {
			break
		}
		if err := r.applier.ApplyAutoEvent(ctx, byID[f.OrderID], f); err != nil {
			r.logSkip(f, err)
			continue
		}
		r.logger.Info("auto-progressed order",
			zap.Uint("order_id", f.OrderID),
			zap.String("event", string(f.Event)),
			zap.String("from", string(f.From)),
			zap.String("reason", f.Reason))
		applied = append(applied, f)
	}
	return applied
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("auto-progression started", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("auto-progression stopped")
			return ctx.Err()
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

func (r *Runner) logSkip(f Firing, err error) {
	fields := []zap.Field{
		zap.Uint("order_id", f.OrderID),
		zap.String("event", string(f.Event)),
		zap.Error(err),
	}
	if errors.Is(err, ErrSkipped) {
		r.logger.Debug("auto-progression skipped order", fields...)
		return
	}
	r.logger.Warn("auto-progression failed for order", fields...)
}
