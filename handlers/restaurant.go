package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"food-order-api/middleware"
	"food-order-api/models"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ── Restaurant Management ────────────────────────────────────────────────────

type CreateRestaurantRequest struct {
	Name        string `json:"name" binding:"required"`
	Cuisine     string `json:"cuisine"`
	Address     string `json:"address" binding:"required"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
}

// CreateRestaurant lets a restaurant-role user create their restaurant
func (h *Handler) CreateRestaurant(c *gin.Context) {
	ownerID := middleware.GetUserID(c)
	var req CreateRestaurantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restaurant := models.Restaurant{
		OwnerID:     ownerID,
		Name:        req.Name,
		Cuisine:     req.Cuisine,
		Address:     req.Address,
		Phone:       req.Phone,
		Description: req.Description,
		IsOpen:      true,
	}
	if err := h.store.CreateRestaurant(c.Request.Context(), &restaurant); err != nil {
		h.respondError(c, err)
		return
	}
	h.logger.Info("restaurant created", zap.Uint("restaurant_id", restaurant.ID), zap.Uint("owner_id", ownerID))
	c.JSON(http.StatusCreated, gin.H{"message": "Restaurant created", "restaurant": restaurant})
}

// GetMyRestaurant fetches the restaurant owned by the logged-in user
func (h *Handler) GetMyRestaurant(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	items, err := h.store.ListMenu(c.Request.Context(), restaurant.ID, store.MenuQuery{})
	if err != nil {
		h.respondError(c, err)
		return
	}
	restaurant.MenuItems = items
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// UpdateRestaurant updates restaurant details
func (h *Handler) UpdateRestaurant(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	var req map[string]interface{}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	// Only allow safe fields
	allowed := map[string]bool{"name": true, "cuisine": true, "address": true, "phone": true, "description": true, "is_open": true}
	update := map[string]interface{}{}
	for k, v := range req {
		if allowed[k] {
			update[k] = v
		}
	}
	if err := h.db.WithContext(c.Request.Context()).Model(&restaurant).Updates(update).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Restaurant updated", "restaurant": restaurant})
}

// ownRestaurant loads the caller's restaurant or writes a 404.
func (h *Handler) ownRestaurant(c *gin.Context) (models.Restaurant, bool) {
	restaurant, err := h.store.RestaurantByOwner(c.Request.Context(), middleware.GetUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No restaurant found for your account"})
		return restaurant, false
	}
	if err != nil {
		h.respondError(c, err)
		return restaurant, false
	}
	return restaurant, true
}

// ── Menu Management ─────────────────────────────────────────────────────────

type MenuOptionRequest struct {
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price" binding:"gte=0"`
}

type MenuItemRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Image       string              `json:"image"`
	Price       decimal.Decimal     `json:"price" binding:"gt=0"`
	Currency    string              `json:"currency"`
	Category    string              `json:"category"`
	IsVeg       bool                `json:"is_veg"`
	IsAvailable *bool               `json:"is_available"`
	Variants    []MenuOptionRequest `json:"variants" binding:"dive"`
	Addons      []MenuOptionRequest `json:"addons" binding:"dive"`
}

// validate checks what binding tags cannot express.
func (r MenuItemRequest) validate() error {
	for label, opts := range map[string][]MenuOptionRequest{"variant": r.Variants, "add-on": r.Addons} {
		seen := make(map[string]bool, len(opts))
		for _, o := range opts {
			if seen[o.Name] {
				return fmt.Errorf("duplicate %s %q", label, o.Name)
			}
			seen[o.Name] = true
		}
	}
	return nil
}

func (r MenuItemRequest) apply(item *models.MenuItem) {
	item.Name = r.Name
	item.Description = r.Description
	item.Image = r.Image
	item.Price = r.Price
	item.Currency = r.Currency
	if item.Currency == "" {
		item.Currency = "INR"
	}
	item.Category = r.Category
	item.IsVeg = r.IsVeg
	item.IsAvailable = r.IsAvailable == nil || *r.IsAvailable
	item.Variants = make([]models.MenuVariant, len(r.Variants))
	for i, v := range r.Variants {
		item.Variants[i] = models.MenuVariant{Name: v.Name, Price: v.Price}
	}
	item.Addons = make([]models.MenuAddon, len(r.Addons))
	for i, a := range r.Addons {
		item.Addons[i] = models.MenuAddon{Name: a.Name, Price: a.Price}
	}
}

func bindMenuItem(c *gin.Context) (MenuItemRequest, bool) {
	var req MenuItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	return req, true
}

// AddMenuItem adds a new item, with its variants and add-ons, to the
// restaurant's menu
func (h *Handler) AddMenuItem(c *gin.Context) {
	restaurant, err := h.store.RestaurantByOwner(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Create a restaurant first before adding menu items"})
		return
	}
	req, ok := bindMenuItem(c)
	if !ok {
		return
	}

	item := models.MenuItem{RestaurantID: restaurant.ID}
	req.apply(&item)
	if err := h.store.CreateMenuItem(c.Request.Context(), &item); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Menu item added", "item": item})
}

// UpdateMenuItem replaces a menu item (only by the owner). Orders already
// placed keep the prices they were placed with.
func (h *Handler) UpdateMenuItem(c *gin.Context) {
	item, ok := h.ownMenuItem(c)
	if !ok {
		return
	}
	req, ok := bindMenuItem(c)
	if !ok {
		return
	}
	req.apply(&item)
	if err := h.store.ReplaceMenuItem(c.Request.Context(), &item); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item updated", "item": item})
}

// DeleteMenuItem removes a menu item
func (h *Handler) DeleteMenuItem(c *gin.Context) {
	item, ok := h.ownMenuItem(c)
	if !ok {
		return
	}
	if err := h.store.DeleteMenuItem(c.Request.Context(), item.ID); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Menu item deleted"})
}

func (h *Handler) ownMenuItem(c *gin.Context) (models.MenuItem, bool) {
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return models.MenuItem{}, false
	}
	item, err := h.store.FetchMenuItem(c.Request.Context(), itemID)
	if err != nil {
		h.respondError(c, err)
		return item, false
	}
	// Verify ownership
	restaurant, err := h.store.FetchRestaurant(c.Request.Context(), item.RestaurantID)
	if err != nil || restaurant.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You don't own this menu item"})
		return item, false
	}
	return item, true
}
