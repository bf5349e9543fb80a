package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"food-order-api/cart"
	"food-order-api/config"
	"food-order-api/handlers"
	"food-order-api/notify"
	"food-order-api/orders"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("routes-test-secret")

type recordingNotifier struct {
	mu    sync.Mutex
	kinds []notify.Kind
}

func (n *recordingNotifier) Dispatch(_ context.Context, notice notify.Notice) {
	n.mu.Lock()
	n.kinds = append(n.kinds, notice.Kind)
	n.mu.Unlock()
}

func setupRouter(t *testing.T) (*gin.Engine, *recordingNotifier) {
	t.Helper()
	r, _, notifier := newTestServer(t)
	return r, notifier
}

func newTestServer(t *testing.T) (*gin.Engine, *handlers.Handler, *recordingNotifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := config.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	st := store.New(db, zap.NewNop())
	ledger := cart.NewLedger(cart.NewMemoryStore(), cart.NewBroadcaster(), cart.PolicyReject, zap.NewNop())
	notifier := &recordingNotifier{}
	svc := orders.NewService(st, ledger, notifier, zap.NewNop(),
		orders.WithCharges(decimal.RequireFromString("0.05"), decimal.Zero))

	h := handlers.New(st, svc, ledger, zap.NewNop(), secret)
	r := gin.New()
	SetupRoutes(r, h, secret)
	return r, h, notifier
}

type response struct {
	Code int
	Body map[string]interface{}
}

func call(t *testing.T, r http.Handler, method, path, token string, body interface{}, headers ...string) response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := response{Code: w.Code}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out.Body), w.Body.String())
	}
	return out
}

func register(t *testing.T, r http.Handler, name, role string) string {
	t.Helper()
	res := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": name + "@example.com", "password": "secret123", "role": role, "phone": "+911234567890",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	return res.Body["token"].(string)
}

func TestOrderFlowOverHTTP(t *testing.T) {
	r, notifier := setupRouter(t)

	owner := register(t, r, "owner", "restaurant")
	res := call(t, r, http.MethodPost, "/api/restaurant", owner, gin.H{"name": "Curry House", "address": "MG Road"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	restaurantID := res.Body["restaurant"].(map[string]interface{})["id"].(float64)

	res = call(t, r, http.MethodPost, "/api/restaurant/menu", owner, gin.H{
		"name":  "Pizza",
		"price": "200",
		"variants": []gin.H{
			{"name": "Medium", "price": "250"},
			{"name": "Large", "price": "320"},
		},
		"addons": []gin.H{{"name": "Cheese", "price": "50"}},
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	itemID := res.Body["item"].(map[string]interface{})["id"].(float64)

	res = call(t, r, http.MethodGet, fmt.Sprintf("/api/restaurants/%d/menu", int(restaurantID)), "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	menu := res.Body["menu"].([]interface{})
	require.Len(t, menu, 1)
	assert.Equal(t, true, menu[0].(map[string]interface{})["customizable"])

	customer := register(t, r, "asha", "customer")

	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, gin.H{
		"menu_item_id": itemID, "quantity": 1, "variant": "Huge",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	add := gin.H{"menu_item_id": itemID, "quantity": 1, "variant": "Medium", "addons": []string{"Cheese"}}
	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, add, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, add, "Idempotency-Key", "k1")
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 1, res.Body["units"], "a repeated request is applied once")
	assert.Equal(t, "300.00", res.Body["total"])

	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{
		"order_type": "takeaway", "payment_method": "upi",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	order := res.Body["order"].(map[string]interface{})
	orderID := int(order["id"].(float64))
	assert.Equal(t, "pending", order["status"])
	assert.Equal(t, "315", order["total"])

	res = call(t, r, http.MethodGet, "/api/customer/cart", customer, nil)
	assert.EqualValues(t, 0, res.Body["units"])

	eventsPath := fmt.Sprintf("/api/restaurant/orders/%d/events", orderID)
	res = call(t, r, http.MethodPost, eventsPath, owner, gin.H{"event": "mark_ready"})
	assert.Equal(t, http.StatusConflict, res.Code)
	assert.Equal(t, "pending", res.Body["current_status"])

	res = call(t, r, http.MethodPost, eventsPath, owner, gin.H{"event": "teleport"})
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = call(t, r, http.MethodPost, eventsPath, owner, gin.H{"event": "accept"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "confirmed", res.Body["current_status"])

	res = call(t, r, http.MethodPut, fmt.Sprintf("/api/restaurant/orders/%d/eta", orderID), owner, gin.H{"minutes": 30})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.EqualValues(t, 30, res.Body["admin_estimated_time"])

	res = call(t, r, http.MethodPost, fmt.Sprintf("/api/customer/orders/%d/receipt", orderID), customer, nil)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = call(t, r, http.MethodGet, fmt.Sprintf("/api/customer/orders/%d", orderID), customer, nil)
	require.Equal(t, http.StatusOK, res.Code)
	history := res.Body["order"].(map[string]interface{})["status_history"].([]interface{})
	assert.Len(t, history, 2)

	res = call(t, r, http.MethodGet, "/api/restaurant/orders?open=true", owner, nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 1, res.Body["count"])

	notifier.mu.Lock()
	assert.Equal(t, []notify.Kind{notify.KindAccepted, notify.KindETAUpdated}, notifier.kinds)
	notifier.mu.Unlock()
}

func TestAccessControl(t *testing.T) {
	r, _ := setupRouter(t)
	customer := register(t, r, "asha", "customer")
	other := register(t, r, "ravi", "customer")
	owner := register(t, r, "owner", "restaurant")

	assert.Equal(t, http.StatusUnauthorized, call(t, r, http.MethodGet, "/api/profile", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, call(t, r, http.MethodGet, "/api/restaurant/orders", customer, nil).Code)
	assert.Equal(t, http.StatusForbidden, call(t, r, http.MethodGet, "/api/admin/orders", owner, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, "/api/restaurant/orders", owner, nil).Code)

	res := call(t, r, http.MethodPost, "/api/restaurant", owner, gin.H{"name": "Curry House", "address": "MG Road"})
	require.Equal(t, http.StatusCreated, res.Code)
	res = call(t, r, http.MethodPost, "/api/restaurant/menu", owner, gin.H{"name": "Lassi", "price": "60"})
	require.Equal(t, http.StatusCreated, res.Code)
	itemID := res.Body["item"].(map[string]interface{})["id"]

	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, gin.H{"menu_item_id": itemID})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{"order_type": "dine_in", "payment_method": "cash"})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	orderID := int(res.Body["order"].(map[string]interface{})["id"].(float64))

	res = call(t, r, http.MethodPost, fmt.Sprintf("/api/customer/orders/%d/cancel", orderID), other, gin.H{"reason": "not mine"})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = call(t, r, http.MethodPost, fmt.Sprintf("/api/customer/orders/%d/cancel", orderID), customer, gin.H{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	assert.Equal(t, "cancelled", res.Body["current_status"])
	assert.Empty(t, res.Body["next_events"])
}

func TestCheckoutValidation(t *testing.T) {
	r, _ := setupRouter(t)
	customer := register(t, r, "asha", "customer")

	res := call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{"order_type": "takeaway", "payment_method": "cash"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code, "empty cart")

	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{"order_type": "delivery", "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, res.Code, "delivery needs an address")

	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{"order_type": "drone", "payment_method": "cash"})
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestStateMachineInfo(t *testing.T) {
	r, _ := setupRouter(t)
	res := call(t, r, http.MethodGet, "/api/state-machine", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["statuses"], 6)
	assert.Len(t, res.Body["transitions"], 6)
	assert.ElementsMatch(t, []interface{}{"delivered", "cancelled"}, res.Body["terminal_states"])
}

func TestOrderFeedPushesSnapshots(t *testing.T) {
	r, _ := setupRouter(t)
	srv := httptest.NewServer(r)
	defer srv.Close()

	owner := register(t, r, "owner", "restaurant")
	customer := register(t, r, "asha", "customer")
	res := call(t, r, http.MethodPost, "/api/restaurant", owner, gin.H{"name": "Curry House", "address": "MG Road"})
	require.Equal(t, http.StatusCreated, res.Code)
	res = call(t, r, http.MethodPost, "/api/restaurant/menu", owner, gin.H{"name": "Lassi", "price": "60"})
	require.Equal(t, http.StatusCreated, res.Code)
	itemID := res.Body["item"].(map[string]interface{})["id"]

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/restaurant/orders/feed?token=" + owner
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg handlers.OrderFeedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "orders", msg.Type)
	assert.Empty(t, msg.Orders)

	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, gin.H{"menu_item_id": itemID, "quantity": 2})
	require.Equal(t, http.StatusOK, res.Code)
	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{"order_type": "takeaway", "payment_method": "card"})
	require.Equal(t, http.StatusCreated, res.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	require.Len(t, msg.Orders, 1)
	assert.Equal(t, 1, msg.Summary["pending"])
}

func TestAdminCannotSelfRegister(t *testing.T) {
	r, h, _ := newTestServer(t)

	res := call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "mallory", "email": "mallory@example.com", "password": "secret123", "role": "admin",
	})
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "mallory@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	require.NoError(t, h.ProvisionAdmin(context.Background(), "Ops@Example.com", "rootpass"))
	require.NoError(t, h.ProvisionAdmin(context.Background(), "ops@example.com", "ignored"))
	res = call(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ops@example.com", "password": "rootpass"})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	admin := res.Body["token"].(string)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/api/admin/users", admin, nil).Code)

	customer := register(t, r, "asha", "customer")
	assert.Error(t, h.ProvisionAdmin(context.Background(), "asha@example.com", "whatever"))
	assert.Equal(t, http.StatusForbidden, call(t, r, http.MethodGet, "/api/admin/users", customer, nil).Code)

	res = call(t, r, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "dup", "email": "ASHA@example.com", "password": "secret123", "role": "customer",
	})
	assert.Equal(t, http.StatusConflict, res.Code)
}

func TestCheckoutIgnoresClientDiscount(t *testing.T) {
	r, _ := setupRouter(t)
	owner := register(t, r, "owner", "restaurant")
	customer := register(t, r, "asha", "customer")

	res := call(t, r, http.MethodPost, "/api/restaurant", owner, gin.H{"name": "Curry House", "address": "MG Road"})
	require.Equal(t, http.StatusCreated, res.Code)
	res = call(t, r, http.MethodPost, "/api/restaurant", owner, gin.H{"name": "Second", "address": "MG Road"})
	assert.Equal(t, http.StatusConflict, res.Code)

	res = call(t, r, http.MethodPost, "/api/restaurant/menu", owner, gin.H{"name": "Lassi", "price": "60"})
	require.Equal(t, http.StatusCreated, res.Code)
	itemID := res.Body["item"].(map[string]interface{})["id"]

	res = call(t, r, http.MethodPost, "/api/customer/cart/items", customer, gin.H{"menu_item_id": itemID})
	require.Equal(t, http.StatusOK, res.Code, res.Body)
	res = call(t, r, http.MethodPost, "/api/customer/checkout", customer, gin.H{
		"order_type": "takeaway", "payment_method": "cash", "discount": "100000",
	})
	require.Equal(t, http.StatusCreated, res.Code, res.Body)

	order := res.Body["order"].(map[string]interface{})
	assert.Equal(t, "0", order["discount"])
	assert.Equal(t, "63", order["total"])
}
