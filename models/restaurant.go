package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	OwnerID     uint       `json:"owner_id" gorm:"not null;index"`
	Owner       User       `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Name        string     `json:"name" gorm:"not null"`
	Cuisine     string     `json:"cuisine"`
	Address     string     `json:"address"`
	Phone       string     `json:"phone"`
	Description string     `json:"description"`
	IsOpen      bool       `json:"is_open" gorm:"default:true"`
	MenuItems   []MenuItem `json:"menu_items,omitempty" gorm:"foreignKey:RestaurantID"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// MenuItem is immutable from the customer's point of view; operators edit it
// together with its variants and add-ons.
type MenuItem struct {
	ID           uint            `json:"id" gorm:"primaryKey"`
	RestaurantID uint            `json:"restaurant_id" gorm:"not null;index"`
	Name         string          `json:"name" gorm:"not null"`
	Description  string          `json:"description"`
	Image        string          `json:"image"`
	Price        decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Currency     string          `json:"currency" gorm:"not null;default:'INR'"`
	Category     string          `json:"category"`
	IsAvailable  bool            `json:"is_available" gorm:"default:true"`
	IsVeg        bool            `json:"is_veg" gorm:"default:false"`
	Variants     []MenuVariant   `json:"variants" gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE"`
	Addons       []MenuAddon     `json:"addons" gorm:"foreignKey:MenuItemID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MenuVariant replaces the item's base price when selected.
type MenuVariant struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	MenuItemID uint            `json:"-" gorm:"not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Position   int             `json:"-"`
}

// MenuAddon is summed on top of the base or variant price.
type MenuAddon struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	MenuItemID uint            `json:"-" gorm:"not null;index"`
	Name       string          `json:"name" gorm:"not null"`
	Price      decimal.Decimal `json:"price" gorm:"type:numeric(12,2);not null"`
	Position   int             `json:"-"`
}

// Customizable reports whether adding the item requires a variant/add-on
// selection step.
func (m MenuItem) Customizable() bool {
	return len(m.Variants) > 0 || len(m.Addons) > 0
}
