package handlers

import (
	"time"

	"food-order-api/cart"
	"food-order-api/middleware"
	"food-order-api/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
)

// OrderFeedMessage is one full snapshot of the restaurant's orders.
type OrderFeedMessage struct {
	Type    string         `json:"type"`
	Summary map[string]int `json:"order_summary"`
	Orders  []models.Order `json:"orders"`
}

// OrderFeed streams the restaurant's orders over a websocket. Every message is
// the complete current set, so a client simply replaces what it shows.
// Endpoint: WS /api/restaurant/orders/feed?token=JWT[&open=true&today=true]
func (h *Handler) OrderFeed(c *gin.Context) {
	restaurant, ok := h.ownRestaurant(c)
	if !ok {
		return
	}
	filter := restaurantFilter(c, restaurant.ID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	// Holds at most the newest snapshot; older undelivered ones are dropped.
	latest := make(chan []models.Order, 1)
	unsubscribe, err := h.store.SubscribeOrders(filter, func(orders []models.Order) {
		select {
		case <-latest:
		default:
		}
		latest <- orders
	})
	if err != nil {
		h.logger.Warn("order feed subscription failed", zap.Error(err))
		conn.Close()
		return
	}

	log := h.logger.With(zap.Uint("restaurant_id", restaurant.ID))
	log.Info("order feed connected")

	closed := readUntilClosed(conn)
	go func() {
		defer func() {
			unsubscribe()
			conn.Close()
			log.Info("order feed disconnected")
		}()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case orders := <-latest:
				msg := OrderFeedMessage{Type: "orders", Summary: statusSummary(orders), Orders: orders}
				if err := writeJSON(conn, msg); err != nil {
					return
				}
			case <-ticker.C:
				if err := ping(conn); err != nil {
					return
				}
			}
		}
	}()
}

// CartFeed streams the caller's cart changes over a websocket.
// Endpoint: WS /api/customer/cart/feed?token=JWT
func (h *Handler) CartFeed(c *gin.Context) {
	customerID := middleware.GetUserID(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	events, cancel := h.carts.Bus().Subscribe(customerID)

	closed := readUntilClosed(conn)
	go func() {
		defer func() {
			cancel()
			conn.Close()
		}()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeJSON(conn, cartView(ev.Cart, ev.Action)); err != nil {
					return
				}
			case <-ticker.C:
				if err := ping(conn); err != nil {
					return
				}
			}
		}
	}()
}

func cartView(c cart.Cart, action string) gin.H {
	return gin.H{
		"type":   "cart",
		"action": action,
		"cart":   c,
		"units":  c.Units(),
		"total":  c.Total().StringFixed(2),
	}
}

// readUntilClosed consumes control frames; clients never send data. The
// returned channel closes when the peer goes away.
func readUntilClosed(conn *websocket.Conn) <-chan struct{} {
	closed := make(chan struct{})
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return closed
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func ping(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PingMessage, nil)
}
