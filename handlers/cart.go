package handlers

import (
	"net/http"

	"food-order-api/middleware"
	"food-order-api/pricing"

	"github.com/gin-gonic/gin"
)

// idempotencyHeader lets a client retry a cart mutation (or a double click)
// without applying it twice.
const idempotencyHeader = "Idempotency-Key"

// GetCart returns the caller's cart with freshly computed totals
func (h *Handler) GetCart(c *gin.Context) {
	ct, err := h.carts.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(ct, "get"))
}

type AddToCartRequest struct {
	MenuItemID uint     `json:"menu_item_id" binding:"required"`
	Quantity   int      `json:"quantity" binding:"omitempty,min=1"`
	Variant    string   `json:"variant"`
	Addons     []string `json:"addons"`
}

// AddToCart adds a menu item, customized or plain, to the caller's cart
func (h *Handler) AddToCart(c *gin.Context) {
	var req AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	item, err := h.store.FetchMenuItem(c.Request.Context(), req.MenuItemID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ct, units, err := h.carts.Add(c.Request.Context(), middleware.GetUserID(c), item, req.Quantity,
		pricing.Selection{Variant: req.Variant, Addons: req.Addons}, c.GetHeader(idempotencyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}
	view := cartView(ct, "add")
	view["units"] = units
	c.JSON(http.StatusOK, view)
}

type UpdateCartLineRequest struct {
	Fingerprint string `json:"fingerprint" binding:"required"`
	Delta       int    `json:"delta" binding:"required"`
}

// UpdateCartLine changes a line's quantity; reaching zero removes it
func (h *Handler) UpdateCartLine(c *gin.Context) {
	var req UpdateCartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ct, err := h.carts.UpdateQuantity(c.Request.Context(), middleware.GetUserID(c), req.Fingerprint, req.Delta,
		c.GetHeader(idempotencyHeader))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(ct, "update"))
}

// RemoveCartLine deletes a line: DELETE /cart/items?fingerprint=...
func (h *Handler) RemoveCartLine(c *gin.Context) {
	fp := c.Query("fingerprint")
	if fp == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fingerprint is required"})
		return
	}
	ct, err := h.carts.Remove(c.Request.Context(), middleware.GetUserID(c), fp)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartView(ct, "remove"))
}

// ClearCart empties the caller's cart
func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.carts.Clear(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
