package handlers

import (
	"net/http"

	"food-order-api/models"
	"food-order-api/statemachine"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
)

// ListRestaurants returns all restaurants (public)
func (h *Handler) ListRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	query := h.db.WithContext(c.Request.Context())

	if cuisine := c.Query("cuisine"); cuisine != "" {
		query = query.Where("cuisine LIKE ?", "%"+cuisine+"%")
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	if open := c.Query("open"); open == "true" {
		query = query.Where("is_open = ?", true)
	}

	if err := query.Find(&restaurants).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":       len(restaurants),
		"restaurants": restaurants,
	})
}

// GetRestaurant returns a single restaurant
func (h *Handler) GetRestaurant(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	restaurant, err := h.store.FetchRestaurant(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"restaurant": restaurant})
}

// GetMenu returns the menu for a specific restaurant with every item's
// variants and add-ons, so a client can tell which items need the
// customization step.
func (h *Handler) GetMenu(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	restaurant, err := h.store.FetchRestaurant(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items, err := h.store.ListMenu(c.Request.Context(), id, store.MenuQuery{
		Category: c.Query("category"),
		VegOnly:  c.Query("is_veg") == "true",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	menu := make([]gin.H, len(items))
	for i, item := range items {
		menu[i] = gin.H{"item": item, "customizable": item.Customizable()}
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant": restaurant.Name,
		"count":      len(items),
		"menu":       menu,
	})
}

// GetStateMachineInfo returns the full state machine for informational purposes
func (h *Handler) GetStateMachineInfo(c *gin.Context) {
	var terminal []models.OrderStatus
	for _, s := range statemachine.ListStatuses() {
		if statemachine.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"statuses":        statemachine.ListStatuses(),
		"events":          statemachine.ListEvents(),
		"transitions":     statemachine.GetAllTransitions(),
		"terminal_states": terminal,
		"description":     "Food Order Lifecycle State Machine",
	})
}
