package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"food-order-api/cart"
	"food-order-api/orders"
	"food-order-api/pricing"
	"food-order-api/statemachine"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler carries the dependencies shared by every endpoint.
type Handler struct {
	db        *gorm.DB
	store     *store.Store
	orders    *orders.Service
	carts     *cart.Ledger
	logger    *zap.Logger
	jwtSecret []byte
	upgrader  websocket.Upgrader
}

func New(st *store.Store, svc *orders.Service, carts *cart.Ledger, logger *zap.Logger, jwtSecret []byte) *Handler {
	return &Handler{
		db:        st.DB(),
		store:     st,
		orders:    svc,
		carts:     carts,
		logger:    logger,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// respondError maps domain errors onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	var illegal *statemachine.IllegalTransitionError
	switch {
	case errors.As(err, &illegal):
		c.JSON(http.StatusConflict, gin.H{
			"error":          err.Error(),
			"current_status": illegal.From,
			"valid_events":   statemachine.EventsFrom(illegal.From),
		})
	case errors.Is(err, statemachine.ErrIllegalTransition),
		errors.Is(err, cart.ErrRestaurantMismatch),
		errors.Is(err, store.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pricing.ErrInvalidCustomization),
		errors.Is(err, cart.ErrItemUnavailable),
		errors.Is(err, orders.ErrEstimateNotAllowed),
		errors.Is(err, orders.ErrInvalidPreOrderTime),
		errors.Is(err, orders.ErrRestaurantClosed),
		errors.Is(err, orders.ErrEmptyCart):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orders.ErrForbidden),
		errors.Is(err, statemachine.ErrActorNotAllowed):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, statemachine.ErrUnknownEvent):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}
