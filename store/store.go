// Package store persists restaurants, menus and orders with gorm and pushes
// full order snapshots to subscribers after every write.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"food-order-api/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means the order left the expected status before the
	// write landed.
	ErrStatusConflict = errors.New("order status changed concurrently")
)

// Filter selects the orders visible to one party.
type Filter struct {
	RestaurantID uint
	CustomerID   uint
	Status       models.OrderStatus
	OpenOnly     bool          // excludes delivered and cancelled
	Since        time.Time     // e.g. start of the business day
	Window       time.Duration // only orders created within Window of now
	Limit        int
}

// StatusChange describes a status write and its audit record.
type StatusChange struct {
	Event         models.OrderEvent
	Actor         models.Actor
	Note          string
	CancelReason  string
	EstimatedTime *int
}

type Store struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	subs   map[int]*subscription
	nextID int
}

func New(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
		subs:   make(map[int]*subscription),
	}
}

// DB exposes the handle for plain CRUD that needs no subscription fan-out.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) orderQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Preload("Items.Addons").
		Preload("Restaurant")
}

// FetchOrder loads an order fresh from the database.
func (s *Store) FetchOrder(ctx context.Context, id uint) (models.Order, error) {
	var order models.Order
	if err := s.orderQuery(ctx).First(&order, id).Error; err != nil {
		return models.Order{}, notFound(err, "order %d", id)
	}
	return order, nil
}

// FetchOrderHistory returns the audit trail of an order, oldest first.
func (s *Store) FetchOrderHistory(ctx context.Context, id uint) ([]models.OrderStatusHistory, error) {
	var history []models.OrderStatusHistory
	err := s.db.WithContext(ctx).Where("order_id = ?", id).Order("id asc").Find(&history).Error
	return history, err
}

// ListOrders returns matching orders, newest first.
func (s *Store) ListOrders(ctx context.Context, f Filter) ([]models.Order, error) {
	q := s.orderQuery(ctx)
	if f.RestaurantID != 0 {
		q = q.Where("restaurant_id = ?", f.RestaurantID)
	}
	if f.CustomerID != 0 {
		q = q.Where("customer_id = ?", f.CustomerID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.OpenOnly {
		q = q.Where("status NOT IN ?", []models.OrderStatus{models.StatusDelivered, models.StatusCancelled})
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since)
	}
	if f.Window > 0 {
		q = q.Where("created_at >= ?", s.now().Add(-f.Window))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	var orders []models.Order
	if err := q.Order("created_at desc").Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CreateOrder inserts the order with its items and the initial history row.
func (s *Store) CreateOrder(ctx context.Context, order *models.Order, actor models.Actor, note string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:   order.ID,
			ToStatus:  order.Status,
			ActorRole: actor.Role,
			ChangedBy: actor.ID,
			Note:      note,
		}).Error
	})
	if err != nil {
		return err
	}
	s.notifySubscribers()
	return nil
}

// UpdateOrderStatus moves an order from one status to another only if it is
// still in from. A lost race returns ErrStatusConflict and writes nothing.
func (s *Store) UpdateOrderStatus(ctx context.Context, id uint, from, to models.OrderStatus, change StatusChange) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": to}
		if change.CancelReason != "" {
			updates["cancel_reason"] = change.CancelReason
		}
		if change.EstimatedTime != nil {
			updates["admin_estimated_time"] = *change.EstimatedTime
		}
		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("update order status: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStatusConflict
		}
		return tx.Create(&models.OrderStatusHistory{
			OrderID:    id,
			FromStatus: from,
			ToStatus:   to,
			Event:      change.Event,
			ActorRole:  change.Actor.Role,
			ChangedBy:  change.Actor.ID,
			Note:       change.Note,
		}).Error
	})
	if err != nil {
		return err
	}
	s.notifySubscribers()
	return nil
}

// SetEstimatedTime overwrites the operator estimate (minutes).
func (s *Store) SetEstimatedTime(ctx context.Context, id uint, minutes int) error {
	return s.updateOrderField(ctx, id, "admin_estimated_time", minutes)
}

// SetPreOrderTime overwrites the wall-clock target of a pre-order.
func (s *Store) SetPreOrderTime(ctx context.Context, id uint, at time.Time) error {
	return s.updateOrderField(ctx, id, "pre_order_time", at)
}

func (s *Store) updateOrderField(ctx context.Context, id uint, column string, value interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return fmt.Errorf("update %s: %w", column, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d: %w", id, ErrNotFound)
	}
	s.notifySubscribers()
	return nil
}

// FetchRestaurant loads a restaurant by id.
func (s *Store) FetchRestaurant(ctx context.Context, id uint) (models.Restaurant, error) {
	var r models.Restaurant
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return models.Restaurant{}, notFound(err, "restaurant %d", id)
	}
	return r, nil
}

// RestaurantByOwner loads the restaurant owned by a user.
func (s *Store) RestaurantByOwner(ctx context.Context, ownerID uint) (models.Restaurant, error) {
	var r models.Restaurant
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&r).Error; err != nil {
		return models.Restaurant{}, notFound(err, "restaurant for owner %d", ownerID)
	}
	return r, nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
