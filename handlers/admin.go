package handlers

import (
	"net/http"
	"strconv"

	"food-order-api/models"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AdminGetAllOrders returns all orders with full detail (admin only)
func (h *Handler) AdminGetAllOrders(c *gin.Context) {
	f := store.Filter{
		Status:   models.OrderStatus(c.Query("status")),
		OpenOnly: c.Query("open") == "true",
	}
	if id, err := strconv.ParseUint(c.Query("customer_id"), 10, 64); err == nil {
		f.CustomerID = uint(id)
	}
	if id, err := strconv.ParseUint(c.Query("restaurant_id"), 10, 64); err == nil {
		f.RestaurantID = uint(id)
	}

	list, err := h.store.ListOrders(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// Admin dashboard: aggregate by status
	revenue := decimal.Zero
	for _, o := range list {
		if o.Status == models.StatusDelivered {
			revenue = revenue.Add(o.Total)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"order_summary": statusSummary(list),
		"total_revenue": revenue.StringFixed(2),
		"count":         len(list),
		"orders":        list,
	})
}

// AdminGetAllUsers returns all users (admin only)
func (h *Handler) AdminGetAllUsers(c *gin.Context) {
	var users []models.User
	query := h.db.WithContext(c.Request.Context())
	if role := c.Query("role"); role != "" {
		query = query.Where("role = ?", role)
	}
	if err := query.Find(&users).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users), "users": users})
}

// AdminGetAllRestaurants returns all restaurants (admin only)
func (h *Handler) AdminGetAllRestaurants(c *gin.Context) {
	var restaurants []models.Restaurant
	if err := h.db.WithContext(c.Request.Context()).Preload("Owner").Find(&restaurants).Error; err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(restaurants), "restaurants": restaurants})
}
