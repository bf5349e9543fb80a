package handlers

import (
	"net/http"
	"time"

	"food-order-api/middleware"
	"food-order-api/models"
	"food-order-api/orders"
	"food-order-api/statemachine"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
)

type CheckoutRequest struct {
	OrderType       models.OrderType     `json:"order_type" binding:"required,oneof=dine_in takeaway delivery pre_order"`
	PaymentMethod   models.PaymentMethod `json:"payment_method" binding:"required,oneof=cash card upi wallet"`
	ContactName     string               `json:"contact_name"`
	ContactPhone    string               `json:"contact_phone"`
	ContactEmail    string               `json:"contact_email" binding:"omitempty,email"`
	DeliveryAddress string               `json:"delivery_address" binding:"required_if=OrderType delivery"`
	Notes           string               `json:"notes"`
	PreOrderTime    *time.Time           `json:"pre_order_time"`
}

// Checkout turns the caller's cart into an order (customer only)
func (h *Handler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	customer, err := h.store.FetchUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	order, err := h.orders.Checkout(c.Request.Context(), customer, orders.CheckoutRequest{
		OrderType:       req.OrderType,
		PaymentMethod:   req.PaymentMethod,
		ContactName:     req.ContactName,
		ContactPhone:    req.ContactPhone,
		ContactEmail:    req.ContactEmail,
		DeliveryAddress: req.DeliveryAddress,
		Notes:           req.Notes,
		PreOrderTime:    req.PreOrderTime,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":        "Order placed successfully",
		"order":          order,
		"estimated_time": order.EstimatedMinutes(),
	})
}

// GetMyOrders returns all orders for the logged-in customer
func (h *Handler) GetMyOrders(c *gin.Context) {
	list, err := h.store.ListOrders(c.Request.Context(), store.Filter{
		CustomerID: middleware.GetUserID(c),
		Status:     models.OrderStatus(c.Query("status")),
		OpenOnly:   c.Query("open") == "true",
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(list), "orders": list})
}

// GetOrderDetail returns a single order's full detail with history
func (h *Handler) GetOrderDetail(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	order, err := h.orders.Order(c.Request.Context(), id, middleware.GetActor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	history, err := h.store.FetchOrderHistory(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	order.StatusHistory = history

	c.JSON(http.StatusOK, gin.H{
		"order":           order,
		"minutes_elapsed": int(time.Since(order.CreatedAt).Minutes()),
		"next_events":     statemachine.EventsFrom(order.Status),
	})
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels an order the customer placed
func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req CancelOrderRequest
	// The body is optional.
	_ = c.ShouldBindJSON(&req)
	h.applyEvent(c, id, models.EventCancel, req.Reason)
}

// ConfirmReceipt marks a ready order as received by the customer
func (h *Handler) ConfirmReceipt(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	h.applyEvent(c, id, models.EventConfirmReceipt, "")
}
