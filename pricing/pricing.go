// Package pricing resolves a menu item plus a variant/add-on selection into a
// unit price and a canonical cart-line identity.
package pricing

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"food-order-api/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidCustomization is returned when a variant or add-on is not declared
// by the item it is selected for.
var ErrInvalidCustomization = errors.New("invalid customization")

// Option is a named, priced choice declared on a menu item.
type Option struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is the pricing view of a menu item.
type Item struct {
	ID       uint
	Price    decimal.Decimal
	Variants []Option
	Addons   []Option
}

// Selection names the variant and add-ons a customer picked.
type Selection struct {
	Variant string   `json:"variant"`
	Addons  []string `json:"addons"`
}

// Resolved is a validated selection.
type Resolved struct {
	Variant     *Option
	Addons      []Option // sorted by name
	UnitPrice   decimal.Decimal
	Fingerprint string
}

// FromMenuItem builds the pricing view of a stored menu item.
func FromMenuItem(m models.MenuItem) Item {
	item := Item{ID: m.ID, Price: m.Price}
	for _, v := range m.Variants {
		item.Variants = append(item.Variants, Option{Name: v.Name, Price: v.Price})
	}
	for _, a := range m.Addons {
		item.Addons = append(item.Addons, Option{Name: a.Name, Price: a.Price})
	}
	return item
}

// ComputeUnitPrice returns (variant price or base price) + sum(add-on prices).
// Every option must match one declared on the item by name and price.
func ComputeUnitPrice(item Item, variant *Option, addons []Option) (decimal.Decimal, error) {
	unit := item.Price
	if variant != nil {
		declared, ok := lookup(item.Variants, variant.Name)
		if !ok || !declared.Price.Equal(variant.Price) {
			return decimal.Zero, fmt.Errorf("%w: variant %q", ErrInvalidCustomization, variant.Name)
		}
		unit = declared.Price
	}
	seen := make(map[string]bool, len(addons))
	for _, a := range addons {
		declared, ok := lookup(item.Addons, a.Name)
		if !ok || !declared.Price.Equal(a.Price) {
			return decimal.Zero, fmt.Errorf("%w: add-on %q", ErrInvalidCustomization, a.Name)
		}
		if seen[a.Name] {
			return decimal.Zero, fmt.Errorf("%w: add-on %q selected twice", ErrInvalidCustomization, a.Name)
		}
		seen[a.Name] = true
		unit = unit.Add(declared.Price)
	}
	return unit, nil
}

// Resolve validates a selection by name against the item's declared options
// and prices it.
func Resolve(item Item, sel Selection) (Resolved, error) {
	var res Resolved
	if sel.Variant != "" {
		v, ok := lookup(item.Variants, sel.Variant)
		if !ok {
			return Resolved{}, fmt.Errorf("%w: variant %q", ErrInvalidCustomization, sel.Variant)
		}
		res.Variant = &v
	}
	for _, name := range sel.Addons {
		a, ok := lookup(item.Addons, name)
		if !ok {
			return Resolved{}, fmt.Errorf("%w: add-on %q", ErrInvalidCustomization, name)
		}
		res.Addons = append(res.Addons, a)
	}
	sort.Slice(res.Addons, func(i, j int) bool { return res.Addons[i].Name < res.Addons[j].Name })

	unit, err := ComputeUnitPrice(item, res.Variant, res.Addons)
	if err != nil {
		return Resolved{}, err
	}
	res.UnitPrice = unit
	res.Fingerprint = Fingerprint(item.ID, res.Variant, res.Addons)
	return res, nil
}

// Fingerprint is the canonical identity of a cart line. Add-on names are
// sorted first so selection order never changes the key.
func Fingerprint(itemID uint, variant *Option, addons []Option) string {
	names := make([]string, 0, len(addons))
	for _, a := range addons {
		names = append(names, a.Name)
	}
	v := ""
	if variant != nil {
		v = variant.Name
	}
	return FingerprintOf(itemID, v, names)
}

// FingerprintOf is Fingerprint over plain names; an empty variant means none.
func FingerprintOf(itemID uint, variant string, addons []string) string {
	sorted := make([]string, 0, len(addons))
	for _, name := range addons {
		sorted = append(sorted, url.QueryEscape(name))
	}
	sort.Strings(sorted)

	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(itemID), 10))
	b.WriteByte('|')
	if variant == "" {
		b.WriteByte('-')
	} else {
		b.WriteString(url.QueryEscape(variant))
	}
	b.WriteByte('|')
	b.WriteString(strings.Join(sorted, ","))
	return b.String()
}

// LineTotal is unit * quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

func lookup(options []Option, name string) (Option, bool) {
	for _, o := range options {
		if o.Name == name {
			return o, true
		}
	}
	return Option{}, false
}
