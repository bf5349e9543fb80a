package store

import (
	"context"
	"fmt"

	"food-order-api/models"

	"gorm.io/gorm"
)

// MenuQuery narrows a restaurant menu listing.
type MenuQuery struct {
	Category      string
	VegOnly       bool
	AvailableOnly bool
}

func withOptions(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Variants", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") }).
		Preload("Addons", func(db *gorm.DB) *gorm.DB { return db.Order("position asc, id asc") })
}

// FetchMenuItem loads an item with its variants and add-ons in menu order.
func (s *Store) FetchMenuItem(ctx context.Context, id uint) (models.MenuItem, error) {
	var item models.MenuItem
	if err := withOptions(s.db.WithContext(ctx)).First(&item, id).Error; err != nil {
		return models.MenuItem{}, notFound(err, "menu item %d", id)
	}
	return item, nil
}

// ListMenu returns a restaurant's items with their options.
func (s *Store) ListMenu(ctx context.Context, restaurantID uint, q MenuQuery) ([]models.MenuItem, error) {
	db := withOptions(s.db.WithContext(ctx)).Where("restaurant_id = ?", restaurantID)
	if q.Category != "" {
		db = db.Where("category = ?", q.Category)
	}
	if q.VegOnly {
		db = db.Where("is_veg = ?", true)
	}
	if q.AvailableOnly {
		db = db.Where("is_available = ?", true)
	}
	var items []models.MenuItem
	if err := db.Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list menu: %w", err)
	}
	return items, nil
}

// CreateMenuItem inserts an item together with its options.
func (s *Store) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	numberOptions(item)
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("create menu item: %w", err)
	}
	return nil
}

// ReplaceMenuItem overwrites an item's fields and replaces its variant and
// add-on lists. Orders already placed keep their frozen copies.
func (s *Store) ReplaceMenuItem(ctx context.Context, item *models.MenuItem) error {
	numberOptions(item)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MenuItem{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
			"name":         item.Name,
			"description":  item.Description,
			"image":        item.Image,
			"price":        item.Price,
			"currency":     item.Currency,
			"category":     item.Category,
			"is_available": item.IsAvailable,
			"is_veg":       item.IsVeg,
		})
		if res.Error != nil {
			return fmt.Errorf("update menu item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("menu item %d: %w", item.ID, ErrNotFound)
		}
		if err := tx.Where("menu_item_id = ?", item.ID).Delete(&models.MenuVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", item.ID).Delete(&models.MenuAddon{}).Error; err != nil {
			return err
		}
		for i := range item.Variants {
			item.Variants[i].ID = 0
			item.Variants[i].MenuItemID = item.ID
		}
		for i := range item.Addons {
			item.Addons[i].ID = 0
			item.Addons[i].MenuItemID = item.ID
		}
		if len(item.Variants) > 0 {
			if err := tx.Create(&item.Variants).Error; err != nil {
				return err
			}
		}
		if len(item.Addons) > 0 {
			if err := tx.Create(&item.Addons).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteMenuItem removes an item and its options.
func (s *Store) DeleteMenuItem(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_item_id = ?", id).Delete(&models.MenuVariant{}).Error; err != nil {
			return err
		}
		if err := tx.Where("menu_item_id = ?", id).Delete(&models.MenuAddon{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.MenuItem{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("menu item %d: %w", id, ErrNotFound)
		}
		return nil
	})
}

func numberOptions(item *models.MenuItem) {
	for i := range item.Variants {
		item.Variants[i].Position = i
	}
	for i := range item.Addons {
		item.Addons[i].Position = i
	}
}
