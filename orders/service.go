// Package orders drives an order through its lifecycle: checkout from a cart,
// events requested by people or by the scheduler, and estimated time updates.
// Every status change goes through the state machine and is persisted with a
// compare-and-set on the previous status.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"food-order-api/cart"
	"food-order-api/models"
	"food-order-api/notify"
	"food-order-api/pricing"
	"food-order-api/scheduler"
	"food-order-api/statemachine"
	"food-order-api/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNotFound            = store.ErrNotFound
	ErrEmptyCart           = errors.New("cart is empty")
	ErrRestaurantClosed    = errors.New("restaurant is currently closed")
	ErrForbidden           = errors.New("order does not belong to caller")
	ErrEstimateNotAllowed  = errors.New("estimated time can no longer be changed")
	ErrInvalidPreOrderTime = errors.New("invalid pre-order time")
	// ErrStaleSnapshot means a scheduler firing was computed from a status
	// the order has since left.
	ErrStaleSnapshot = errors.New("order changed since snapshot")
)

// Notifier is satisfied by *notify.Dispatcher.
type Notifier interface {
	Dispatch(ctx context.Context, n notify.Notice)
}

// Carts is the part of the cart ledger checkout needs.
type Carts interface {
	Get(ctx context.Context, customerID uint) (cart.Cart, error)
	Clear(ctx context.Context, customerID uint) error
}

type CheckoutRequest struct {
	OrderType       models.OrderType
	PaymentMethod   models.PaymentMethod
	ContactName     string
	ContactPhone    string
	ContactEmail    string
	DeliveryAddress string
	Notes           string
	PreOrderTime    *time.Time
}

type Service struct {
	store        *store.Store
	carts        Carts
	notifier     Notifier
	logger       *zap.Logger
	now          func() time.Time
	taxRate      decimal.Decimal
	deliveryFee  decimal.Decimal
	discountRate decimal.Decimal
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithCharges sets the tax rate (e.g. 0.05) and the flat delivery fee
// applied to delivery orders.
func WithCharges(taxRate, deliveryFee decimal.Decimal) Option {
	return func(s *Service) {
		s.taxRate = taxRate
		s.deliveryFee = deliveryFee
	}
}

// WithDiscountRate applies a house-wide promotion as a fraction of the
// subtotal. Customers never choose their own discount.
func WithDiscountRate(rate decimal.Decimal) Option {
	return func(s *Service) { s.discountRate = rate }
}

func NewService(st *store.Store, carts Carts, notifier Notifier, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    st,
		carts:    carts,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout freezes the customer's cart into a pending order and clears the
// cart. Prices are the ones captured when each line was added.
func (s *Service) Checkout(ctx context.Context, customer models.User, req CheckoutRequest) (models.Order, error) {
	c, err := s.carts.Get(ctx, customer.ID)
	if err != nil {
		return models.Order{}, fmt.Errorf("load cart: %w", err)
	}
	if c.IsEmpty() {
		return models.Order{}, ErrEmptyCart
	}

	restaurant, err := s.store.FetchRestaurant(ctx, c.RestaurantID)
	if err != nil {
		return models.Order{}, err
	}
	if !restaurant.IsOpen {
		return models.Order{}, ErrRestaurantClosed
	}

	now := s.now()
	if req.OrderType == models.OrderTypePreOrder {
		if req.PreOrderTime == nil || !req.PreOrderTime.After(now) {
			return models.Order{}, fmt.Errorf("%w: must be in the future", ErrInvalidPreOrderTime)
		}
	} else {
		req.PreOrderTime = nil
	}

	items := make([]models.OrderItem, 0, len(c.Lines))
	subtotal := decimal.Zero
	for _, l := range c.Lines {
		menuItem, err := s.store.FetchMenuItem(ctx, l.MenuItemID)
		if err != nil {
			return models.Order{}, err
		}
		if !menuItem.IsAvailable {
			return models.Order{}, fmt.Errorf("%s: %w", menuItem.Name, cart.ErrItemUnavailable)
		}
		items = append(items, freeze(l))
		subtotal = subtotal.Add(l.Total())
	}

	fee := decimal.Zero
	if req.OrderType == models.OrderTypeDelivery {
		fee = s.deliveryFee
	}
	discount := subtotal.Mul(s.discountRate).Round(2)
	totals := pricing.ComputeTotals(subtotal, s.taxRate, fee, discount)

	order := models.Order{
		Reference:       newReference(),
		CustomerID:      customer.ID,
		RestaurantID:    restaurant.ID,
		Status:          models.StatusPending,
		OrderType:       req.OrderType,
		PaymentMethod:   req.PaymentMethod,
		ContactName:     firstNonEmpty(req.ContactName, customer.Name),
		ContactPhone:    firstNonEmpty(req.ContactPhone, customer.Phone),
		ContactEmail:    firstNonEmpty(req.ContactEmail, customer.Email),
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		Subtotal:        totals.Subtotal,
		Tax:             totals.Tax,
		DeliveryFee:     totals.DeliveryFee,
		Discount:        totals.Discount,
		Total:           totals.Total,
		Currency:        firstNonEmpty(c.Currency, "INR"),
		PreOrderTime:    req.PreOrderTime,
		Items:           items,
	}
	actor := models.Actor{Role: models.RoleCustomer, ID: customer.ID}
	if err := s.store.CreateOrder(ctx, &order, actor, "Order placed by customer"); err != nil {
		return models.Order{}, err
	}

	if err := s.carts.Clear(ctx, customer.ID); err != nil {
		// The order exists; a stale cart is only an annoyance.
		s.logger.Warn("failed to clear cart after checkout",
			zap.Uint("customer_id", customer.ID), zap.Error(err))
	}

	s.logger.Info("order placed",
		zap.Uint("order_id", order.ID),
		zap.String("reference", order.Reference),
		zap.Uint("restaurant_id", order.RestaurantID),
		zap.String("total", order.Total.StringFixed(2)))

	order.Restaurant = restaurant
	return order, nil
}

func freeze(l cart.Line) models.OrderItem {
	item := models.OrderItem{
		MenuItemID:  l.MenuItemID,
		Fingerprint: l.Fingerprint,
		Name:        l.Name,
		Image:       l.Image,
		UnitPrice:   l.UnitPrice,
		Quantity:    l.Quantity,
		LineTotal:   l.Total(),
	}
	if l.Variant != nil {
		price := l.Variant.Price
		item.VariantName = l.Variant.Name
		item.VariantPrice = &price
	}
	for _, a := range l.Addons {
		item.Addons = append(item.Addons, models.OrderItemAddon{Name: a.Name, Price: a.Price})
	}
	return item
}

func newReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ApplyEvent runs a person-requested event against the freshly loaded order.
func (s *Service) ApplyEvent(ctx context.Context, id uint, event models.OrderEvent, actor models.Actor, note string) (models.Order, error) {
	if err := statemachine.Authorize(event, actor.Role); err != nil {
		return models.Order{}, fmt.Errorf("%w: %v", ErrForbidden, err)
	}
	order, err := s.store.FetchOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := checkOwnership(order, actor); err != nil {
		return models.Order{}, err
	}

	reason := ""
	if event == models.EventCancel {
		reason = firstNonEmpty(note, fmt.Sprintf("cancelled by %s", actor.Role))
	}
	return s.transition(ctx, order, event, actor, note, reason)
}

func checkOwnership(order models.Order, actor models.Actor) error {
	switch actor.Role {
	case models.RoleSystem:
		return nil
	case models.RoleCustomer:
		if order.CustomerID == actor.ID {
			return nil
		}
	case models.RoleRestaurant:
		if order.Restaurant.OwnerID == actor.ID {
			return nil
		}
	}
	return ErrForbidden
}

// ApplyAutoEvent applies a scheduler firing. Firings computed from a stale
// snapshot, or that the state machine rejects, are reported as
// scheduler.ErrSkipped.
func (s *Service) ApplyAutoEvent(ctx context.Context, _ models.Order, f scheduler.Firing) error {
	order, err := s.store.FetchOrder(ctx, f.OrderID)
	if err != nil {
		return err
	}
	if order.Status != f.From {
		return fmt.Errorf("%w: %w: order %d is %s, firing expected %s",
			scheduler.ErrSkipped, ErrStaleSnapshot, order.ID, order.Status, f.From)
	}
	_, err = s.transition(ctx, order, f.Event, models.SystemActor, "auto-progressed", f.Reason)
	if errors.Is(err, statemachine.ErrIllegalTransition) {
		return fmt.Errorf("%w: %w", scheduler.ErrSkipped, err)
	}
	return err
}

func (s *Service) transition(ctx context.Context, order models.Order, event models.OrderEvent, actor models.Actor, note, reason string) (models.Order, error) {
	from := order.Status
	to, err := statemachine.Apply(from, event)
	if err != nil {
		return order, err
	}

	change := store.StatusChange{Event: event, Actor: actor, Note: note, CancelReason: reason}
	if event == models.EventAccept && order.AdminEstimatedTime == nil {
		eta := models.DefaultEstimatedMinutes
		change.EstimatedTime = &eta
	}
	err = s.store.UpdateOrderStatus(ctx, order.ID, from, to, change)
	if errors.Is(err, store.ErrStatusConflict) {
		// Someone else moved the order first; report it against the newer
		// status when we can read it.
		if fresh, ferr := s.store.FetchOrder(ctx, order.ID); ferr == nil {
			from = fresh.Status
		}
		return order, fmt.Errorf("%w: %w", &statemachine.IllegalTransitionError{From: from, Event: event}, err)
	}
	if err != nil {
		return order, err
	}

	order.Status = to
	if change.EstimatedTime != nil {
		order.AdminEstimatedTime = change.EstimatedTime
	}
	if reason != "" {
		order.CancelReason = reason
	}

	s.logger.Info("order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("event", string(event)),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", string(actor.Role)))

	if kind, ok := notify.KindForEvent(event); ok {
		s.notifier.Dispatch(ctx, notify.Notice{
			Kind:    kind,
			Order:   order,
			Contact: notify.ContactFor(order),
			Reason:  reason,
		})
	}
	return order, nil
}

// SetEstimatedTime changes how long the kitchen expects to take. For
// pre-orders the minutes push the scheduled time back instead.
func (s *Service) SetEstimatedTime(ctx context.Context, id uint, minutes int, actor models.Actor) (models.Order, error) {
	if minutes <= 0 {
		return models.Order{}, fmt.Errorf("estimated time must be positive, got %d", minutes)
	}
	order, err := s.store.FetchOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := checkOwnership(order, actor); err != nil {
		return models.Order{}, err
	}
	if !statemachine.CanUpdateEstimate(order.Status) {
		return order, fmt.Errorf("%w: order is %s", ErrEstimateNotAllowed, order.Status)
	}

	if order.OrderType == models.OrderTypePreOrder {
		base := s.now()
		if order.PreOrderTime != nil {
			base = *order.PreOrderTime
		}
		at := base.Add(time.Duration(minutes) * time.Minute)
		if err := s.store.SetPreOrderTime(ctx, id, at); err != nil {
			return order, err
		}
		order.PreOrderTime = &at
	} else {
		if err := s.store.SetEstimatedTime(ctx, id, minutes); err != nil {
			return order, err
		}
		order.AdminEstimatedTime = &minutes
	}

	if statemachine.NotifiesEstimate(order.Status) {
		s.notifier.Dispatch(ctx, notify.Notice{
			Kind:    notify.KindETAUpdated,
			Order:   order,
			Contact: notify.ContactFor(order),
		})
	}
	return order, nil
}

// SetPreOrderTime moves the scheduled time of a pre-order that is not ready
// yet.
func (s *Service) SetPreOrderTime(ctx context.Context, id uint, at time.Time, actor models.Actor) (models.Order, error) {
	order, err := s.store.FetchOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if err := checkOwnership(order, actor); err != nil {
		return models.Order{}, err
	}
	if order.OrderType != models.OrderTypePreOrder {
		return order, fmt.Errorf("%w: order %d is not a pre-order", ErrInvalidPreOrderTime, id)
	}
	if !statemachine.CanUpdateEstimate(order.Status) {
		return order, fmt.Errorf("%w: order is %s", ErrInvalidPreOrderTime, order.Status)
	}
	if !at.After(s.now()) {
		return order, fmt.Errorf("%w: must be in the future", ErrInvalidPreOrderTime)
	}
	if err := s.store.SetPreOrderTime(ctx, id, at); err != nil {
		return order, err
	}
	order.PreOrderTime = &at
	if statemachine.NotifiesEstimate(order.Status) {
		s.notifier.Dispatch(ctx, notify.Notice{
			Kind:    notify.KindETAUpdated,
			Order:   order,
			Contact: notify.ContactFor(order),
		})
	}
	return order, nil
}

// Order loads an order visible to actor.
func (s *Service) Order(ctx context.Context, id uint, actor models.Actor) (models.Order, error) {
	order, err := s.store.FetchOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if actor.Role == models.RoleAdmin {
		return order, nil
	}
	if err := checkOwnership(order, actor); err != nil {
		return models.Order{}, err
	}
	return order, nil
}
