package handlers

import (
	"net/http"
	"time"

	"food-order-api/middleware"
	"food-order-api/models"
	"food-order-api/statemachine"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
)

// restaurantFilter builds the order filter for the caller's restaurant from
// the query string (?status=, ?open=true, ?today=true).
func restaurantFilter(c *gin.Context, restaurantID uint) store.Filter {
	f := store.Filter{
		RestaurantID: restaurantID,
		Status:       models.OrderStatus(c.Query("status")),
		OpenOnly:     c.Query("open") == "true",
	}
	if c.Query("today") == "true" {
		now := time.Now()
		f.Since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	return f
}

func statusSummary(orders []models.Order) map[string]int {
	summary := map[string]int{}
	for _, o := range orders {
		summary[string(o.Status)]++
	}
	return summary
}

// GetRestaurantOrders returns all orders for the restaurant owner
func (h *Handler) GetRestaurantOrders(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	orders, err := h.store.ListOrders(c.Request.Context(), restaurantFilter(c, restaurant.ID))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"restaurant":    restaurant.Name,
		"order_summary": statusSummary(orders),
		"count":         len(orders),
		"orders":        orders,
	})
}

type OrderEventRequest struct {
	Event string `json:"event" binding:"required"`
	Note  string `json:"note"`
}

// ApplyOrderEvent handles the restaurant's state transitions
func (h *Handler) ApplyOrderEvent(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req OrderEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	event, err := statemachine.ParseEvent(req.Event)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.applyEvent(c, id, event, req.Note)
}

func (h *Handler) applyEvent(c *gin.Context, id uint, event models.OrderEvent, note string) {
	order, err := h.orders.ApplyEvent(c.Request.Context(), id, event, middleware.GetActor(c), note)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Order status updated",
		"order_id":       order.ID,
		"event":          event,
		"current_status": order.Status,
		"next_events":    statemachine.EventsFrom(order.Status),
	})
}

type EstimatedTimeRequest struct {
	Minutes int `json:"minutes" binding:"required,min=1,max=1440"`
}

// SetEstimatedTime overrides the kitchen's estimate for an order
func (h *Handler) SetEstimatedTime(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req EstimatedTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.orders.SetEstimatedTime(c.Request.Context(), id, req.Minutes, middleware.GetActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":              "Estimated time updated",
		"order_id":             order.ID,
		"admin_estimated_time": order.AdminEstimatedTime,
		"pre_order_time":       order.PreOrderTime,
	})
}

type PreOrderTimeRequest struct {
	PreOrderTime time.Time `json:"pre_order_time" binding:"required"`
}

// SetPreOrderTime reschedules a pre-order
func (h *Handler) SetPreOrderTime(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req PreOrderTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := h.orders.SetPreOrderTime(c.Request.Context(), id, req.PreOrderTime, middleware.GetActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "Pre-order time updated",
		"order_id":       order.ID,
		"pre_order_time": order.PreOrderTime,
	})
}
