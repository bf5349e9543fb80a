package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents all possible states of a food order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderEvent is a request to move an order to another status.
type OrderEvent string

const (
	EventAccept         OrderEvent = "accept"
	EventStartPreparing OrderEvent = "start_preparing"
	EventMarkReady      OrderEvent = "mark_ready"
	EventComplete       OrderEvent = "complete"
	EventCancel         OrderEvent = "cancel"
	EventConfirmReceipt OrderEvent = "confirm_receipt"
)

type OrderType string

const (
	OrderTypeDineIn   OrderType = "dine_in"
	OrderTypeTakeaway OrderType = "takeaway"
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePreOrder OrderType = "pre_order"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentUPI    PaymentMethod = "upi"
	PaymentWallet PaymentMethod = "wallet"
)

// DefaultEstimatedMinutes applies when an operator never set an estimate.
const DefaultEstimatedMinutes = 20

type Order struct {
	ID                 uint                 `json:"id" gorm:"primaryKey"`
	Reference          string               `json:"reference" gorm:"uniqueIndex;not null"`
	CustomerID         uint                 `json:"customer_id" gorm:"not null;index"`
	Customer           User                 `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
	RestaurantID       uint                 `json:"restaurant_id" gorm:"not null;index"`
	Restaurant         Restaurant           `json:"restaurant,omitempty" gorm:"foreignKey:RestaurantID"`
	Status             OrderStatus          `json:"status" gorm:"not null;default:'pending';index"`
	OrderType          OrderType            `json:"order_type" gorm:"not null"`
	PaymentMethod      PaymentMethod        `json:"payment_method" gorm:"not null"`
	ContactName        string               `json:"contact_name"`
	ContactPhone       string               `json:"contact_phone"`
	ContactEmail       string               `json:"contact_email"`
	DeliveryAddress    string               `json:"delivery_address"`
	Notes              string               `json:"notes"`
	Subtotal           decimal.Decimal      `json:"subtotal" gorm:"type:numeric(12,2);not null"`
	Tax                decimal.Decimal      `json:"tax" gorm:"type:numeric(12,2);not null"`
	DeliveryFee        decimal.Decimal      `json:"delivery_fee" gorm:"type:numeric(12,2);not null"`
	Discount           decimal.Decimal      `json:"discount" gorm:"type:numeric(12,2);not null"`
	Total              decimal.Decimal      `json:"total" gorm:"type:numeric(12,2);not null"`
	Currency           string               `json:"currency"`
	AdminEstimatedTime *int                 `json:"admin_estimated_time"` // minutes
	PreOrderTime       *time.Time           `json:"pre_order_time"`
	CancelReason       string               `json:"cancel_reason,omitempty"`
	Items              []OrderItem          `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	StatusHistory      []OrderStatusHistory `json:"status_history,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt          time.Time            `json:"created_at" gorm:"index"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

// EstimatedMinutes returns the operator estimate or the default.
func (o Order) EstimatedMinutes() int {
	if o.AdminEstimatedTime != nil && *o.AdminEstimatedTime > 0 {
		return *o.AdminEstimatedTime
	}
	return DefaultEstimatedMinutes
}

// OrderItem is a frozen copy of a cart line; its prices never change after
// checkout.
type OrderItem struct {
	ID           uint             `json:"id" gorm:"primaryKey"`
	OrderID      uint             `json:"order_id" gorm:"not null;index"`
	MenuItemID   uint             `json:"menu_item_id" gorm:"not null"`
	Fingerprint  string           `json:"fingerprint"`
	Name         string           `json:"name"`  // snapshot name
	Image        string           `json:"image"` // snapshot image
	VariantName  string           `json:"variant_name,omitempty"`
	VariantPrice *decimal.Decimal `json:"variant_price,omitempty" gorm:"type:numeric(12,2)"`
	Addons       []OrderItemAddon `json:"addons,omitempty" gorm:"foreignKey:OrderItemID"`
	UnitPrice    decimal.Decimal  `json:"unit_price" gorm:"type:numeric(12,2);not null"`
	Quantity     int              `json:"quantity" gorm:"not null"`
	LineTotal    decimal.Decimal  `json:"line_total" gorm:"type:numeric(12,2);not null"`
}

type OrderItemAddon struct {
	ID          uint            `json:"-" gorm:"primaryKey"`
	OrderItemID uint            `json:"-" gorm:"not null;index"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
}

// OrderStatusHistory tracks every status change
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"not null;index"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status" gorm:"not null"`
	Event      OrderEvent  `json:"event"`
	ActorRole  UserRole    `json:"actor_role"`
	ChangedBy  uint        `json:"changed_by"` // user ID who triggered the transition, 0 for system
	Note       string      `json:"note"`
	CreatedAt  time.Time   `json:"created_at"`
}
