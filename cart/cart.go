// Package cart keeps a customer's cart lines keyed by customization
// fingerprint.
package cart

import (
	"errors"
	"fmt"
	"time"

	"food-order-api/models"
	"food-order-api/pricing"

	"github.com/shopspring/decimal"
)

var (
	ErrRestaurantMismatch = errors.New("cart holds items from another restaurant")
	ErrLineNotFound       = errors.New("cart line not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrItemUnavailable    = errors.New("menu item is not available")
)

// Policy decides what happens when an item from a second restaurant is added.
type Policy string

const (
	PolicyReject  Policy = "reject"
	PolicyReplace Policy = "replace"
)

// ParsePolicy falls back to PolicyReject for unknown values.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyReplace {
		return PolicyReplace
	}
	return PolicyReject
}

// Line is a snapshot of a menu item taken when it was added.
type Line struct {
	Fingerprint  string           `json:"fingerprint"`
	MenuItemID   uint             `json:"menu_item_id"`
	Name         string           `json:"name"`
	Image        string           `json:"image,omitempty"`
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Variant      *pricing.Option  `json:"variant,omitempty"`
	Addons       []pricing.Option `json:"addons,omitempty"`
	Quantity     int              `json:"quantity"`
	RestaurantID uint             `json:"restaurant_id"`
}

// Total is the line price for the whole quantity.
func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

type Cart struct {
	CustomerID   uint      `json:"customer_id"`
	RestaurantID uint      `json:"restaurant_id,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Lines        []Line    `json:"lines"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Total sums every line. It is recomputed on each call.
func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Units is the number of items across all lines.
func (c Cart) Units() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

// Line returns the line with the given fingerprint.
func (c Cart) Line(fingerprint string) (Line, bool) {
	if i := c.index(fingerprint); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// Clone returns a deep copy, so callers can hand a cart to observers.
func (c Cart) Clone() Cart {
	out := c
	out.Lines = make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		if l.Variant != nil {
			v := *l.Variant
			l.Variant = &v
		}
		l.Addons = append([]pricing.Option(nil), l.Addons...)
		out.Lines[i] = l
	}
	return out
}

func (c Cart) index(fingerprint string) int {
	for i, l := range c.Lines {
		if l.Fingerprint == fingerprint {
			return i
		}
	}
	return -1
}

// AddToCart adds quantity units of item with the given selection. Items with
// neither variants nor add-ons skip customization and are added at base
// price. An existing fingerprint gets its quantity increased. It returns the
// updated cart and its total unit count.
func AddToCart(c Cart, item models.MenuItem, quantity int, restaurantID uint, sel pricing.Selection, policy Policy) (Cart, int, error) {
	if quantity < 1 {
		return c, c.Units(), ErrInvalidQuantity
	}
	if !item.IsAvailable {
		return c, c.Units(), fmt.Errorf("%w: %s", ErrItemUnavailable, item.Name)
	}
	if !item.Customizable() {
		sel = pricing.Selection{}
	}
	resolved, err := pricing.Resolve(pricing.FromMenuItem(item), sel)
	if err != nil {
		return c, c.Units(), err
	}

	out := c.Clone()
	if !out.IsEmpty() && out.RestaurantID != restaurantID {
		if policy != PolicyReplace {
			return c, c.Units(), ErrRestaurantMismatch
		}
		out.Lines = nil
	}
	out.RestaurantID = restaurantID
	if item.Currency != "" {
		out.Currency = item.Currency
	}

	if i := out.index(resolved.Fingerprint); i >= 0 {
		out.Lines[i].Quantity += quantity
	} else {
		out.Lines = append(out.Lines, Line{
			Fingerprint:  resolved.Fingerprint,
			MenuItemID:   item.ID,
			Name:         item.Name,
			Image:        item.Image,
			UnitPrice:    resolved.UnitPrice,
			Variant:      resolved.Variant,
			Addons:       resolved.Addons,
			Quantity:     quantity,
			RestaurantID: restaurantID,
		})
	}
	return out, out.Units(), nil
}

// UpdateQuantity adds delta to a line; a result of zero or less removes it.
func UpdateQuantity(c Cart, fingerprint string, delta int) (Cart, error) {
	i := c.index(fingerprint)
	if i < 0 {
		return c, ErrLineNotFound
	}
	out := c.Clone()
	out.Lines[i].Quantity += delta
	if out.Lines[i].Quantity <= 0 {
		out.Lines = append(out.Lines[:i], out.Lines[i+1:]...)
	}
	if out.IsEmpty() {
		out.RestaurantID = 0
	}
	return out, nil
}

// RemoveLine deletes a line outright.
func RemoveLine(c Cart, fingerprint string) (Cart, error) {
	i := c.index(fingerprint)
	if i < 0 {
		return c, ErrLineNotFound
	}
	out := c.Clone()
	out.Lines = append(out.Lines[:i], out.Lines[i+1:]...)
	if out.IsEmpty() {
		out.RestaurantID = 0
	}
	return out, nil
}

// Clear empties the cart but keeps its owner.
func Clear(c Cart) Cart {
	return Cart{CustomerID: c.CustomerID}
}
