package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"food-order-api/models"
	"food-order-api/pricing"

	"go.uber.org/zap"
)

// DefaultReplayWindow is how long a client request ID is remembered.
const DefaultReplayWindow = 10 * time.Second

// Ledger applies cart mutations one at a time per customer, persists the
// result and broadcasts a Changed event while still holding the customer's
// lock, so observers see changes in the order they were made.
type Ledger struct {
	store  Store
	bus    *Broadcaster
	policy Policy
	logger *zap.Logger
	now    func() time.Time
	window time.Duration

	// locks holds an entry only while some mutation holds or waits for it.
	locksMu sync.Mutex
	locks   map[uint]*cartLock

	seenMu sync.Mutex
	seen   map[string]time.Time
}

type LedgerOption func(*Ledger)

// WithClock overrides the time source used for UpdatedAt and replay expiry.
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

// WithReplayWindow sets how long request IDs are remembered.
func WithReplayWindow(d time.Duration) LedgerOption {
	return func(l *Ledger) { l.window = d }
}

func NewLedger(store Store, bus *Broadcaster, policy Policy, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:  store,
		bus:    bus,
		policy: policy,
		logger: logger,
		now:    time.Now,
		window: DefaultReplayWindow,
		seen:   make(map[string]time.Time),
		locks:  make(map[uint]*cartLock),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bus exposes the broadcaster so observers can subscribe.
func (l *Ledger) Bus() *Broadcaster { return l.bus }

// Get returns the current cart.
func (l *Ledger) Get(ctx context.Context, customerID uint) (Cart, error) {
	return l.store.Load(ctx, customerID)
}

// Add puts an item into the customer's cart. A repeated requestID within the
// replay window returns the current cart without mutating it.
func (l *Ledger) Add(ctx context.Context, customerID uint, item models.MenuItem, quantity int, sel pricing.Selection, requestID string) (Cart, int, error) {
	c, err := l.mutate(ctx, customerID, "add", requestID, func(c Cart) (Cart, error) {
		out, _, err := AddToCart(c, item, quantity, item.RestaurantID, sel, l.policy)
		return out, err
	})
	if err != nil {
		return c, c.Units(), err
	}
	return c, c.Units(), nil
}

// UpdateQuantity changes a line's quantity by delta.
func (l *Ledger) UpdateQuantity(ctx context.Context, customerID uint, fingerprint string, delta int, requestID string) (Cart, error) {
	return l.mutate(ctx, customerID, "update", requestID, func(c Cart) (Cart, error) {
		return UpdateQuantity(c, fingerprint, delta)
	})
}

// Remove deletes a line.
func (l *Ledger) Remove(ctx context.Context, customerID uint, fingerprint string) (Cart, error) {
	return l.mutate(ctx, customerID, "remove", "", func(c Cart) (Cart, error) {
		return RemoveLine(c, fingerprint)
	})
}

// Clear empties the cart, e.g. after checkout.
func (l *Ledger) Clear(ctx context.Context, customerID uint) error {
	_, err := l.mutate(ctx, customerID, "clear", "", func(c Cart) (Cart, error) {
		return Clear(c), nil
	})
	return err
}

func (l *Ledger) mutate(ctx context.Context, customerID uint, action, requestID string, fn func(Cart) (Cart, error)) (Cart, error) {
	release := l.acquire(customerID)
	defer release()

	if l.replayed(customerID, requestID) {
		l.logger.Debug("ignoring repeated cart request",
			zap.Uint("customer_id", customerID), zap.String("request_id", requestID))
		return l.store.Load(ctx, customerID)
	}

	current, err := l.store.Load(ctx, customerID)
	if err != nil {
		return Cart{}, err
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	next.CustomerID = customerID
	next.UpdatedAt = l.now()

	if next.IsEmpty() {
		err = l.store.Delete(ctx, customerID)
	} else {
		err = l.store.Save(ctx, next)
	}
	if err != nil {
		return current, fmt.Errorf("persist cart: %w", err)
	}
	l.remember(customerID, requestID)

	l.logger.Info("cart changed",
		zap.Uint("customer_id", customerID),
		zap.String("action", action),
		zap.Int("units", next.Units()),
		zap.String("total", next.Total().StringFixed(2)))

	if l.bus != nil {
		l.bus.Publish(Changed{
			CustomerID: customerID,
			Action:     action,
			Units:      next.Units(),
			Total:      next.Total(),
			Cart:       next,
		})
	}
	return next, nil
}

type cartLock struct {
	sync.Mutex
	refs int
}

// acquire locks customerID's cart and returns the matching release. The
// entry is dropped once no mutation holds or waits for it.
func (l *Ledger) acquire(customerID uint) func() {
	l.locksMu.Lock()
	lk := l.locks[customerID]
	if lk == nil {
		lk = &cartLock{}
		l.locks[customerID] = lk
	}
	lk.refs++
	l.locksMu.Unlock()

	lk.Lock()
	return func() {
		lk.Unlock()
		l.locksMu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, customerID)
		}
		l.locksMu.Unlock()
	}
}

func replayKey(customerID uint, requestID string) string {
	return fmt.Sprintf("%d:%s", customerID, requestID)
}

func (l *Ledger) replayed(customerID uint, requestID string) bool {
	if requestID == "" {
		return false
	}
	l.seenMu.Lock()
	defer l.seenMu.Unlock()

	now := l.now()
	for k, at := range l.seen {
		if now.Sub(at) > l.window {
			delete(l.seen, k)
		}
	}
	_, ok := l.seen[replayKey(customerID, requestID)]
	return ok
}

func (l *Ledger) remember(customerID uint, requestID string) {
	if requestID == "" {
		return
	}
	l.seenMu.Lock()
	l.seen[replayKey(customerID, requestID)] = l.now()
	l.seenMu.Unlock()
}
