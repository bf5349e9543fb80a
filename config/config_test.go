package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"food-order-api/cart"
	"food-order-api/notify"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Minute, cfg.AutoProgressInterval)
	assert.Equal(t, cart.PolicyReject, cfg.CartPolicy)
	assert.Equal(t, []string{"log"}, cfg.NotifyTransports)
	assert.Equal(t, "0.05", cfg.TaxRate.String())
	assert.Equal(t, notify.DefaultSMSURL, cfg.SMS.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("AUTO_PROGRESS_INTERVAL", "15s")
	t.Setenv("CART_POLICY", "replace")
	t.Setenv("NOTIFY_TRANSPORTS", "log, sms")
	t.Setenv("DELIVERY_FEE", "40")
	t.Setenv("DISCOUNT_RATE", "0.1")
	t.Setenv("ADMIN_EMAIL", "ops@example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.AutoProgressInterval)
	assert.Equal(t, cart.PolicyReplace, cfg.CartPolicy)
	assert.Equal(t, []string{"log", "sms"}, cfg.NotifyTransports)
	assert.Equal(t, "40", cfg.DeliveryFee.String())
	assert.Equal(t, "0.1", cfg.DiscountRate.String())
	assert.Equal(t, "ops@example.com", cfg.AdminEmail)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("AUTO_PROGRESS_INTERVAL", "soon")
	_, err := Load()
	assert.ErrorContains(t, err, "AUTO_PROGRESS_INTERVAL")

	t.Setenv("AUTO_PROGRESS_INTERVAL", "")
	t.Setenv("TAX_RATE", "five percent")
	_, err = Load()
	assert.ErrorContains(t, err, "TAX_RATE")
}

func TestOpenDB_Migrates(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	for _, table := range []string{"orders", "order_items", "order_item_addons", "menu_variants", "menu_addons", "order_status_histories"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
}

func TestTransport(t *testing.T) {
	cfg := &Config{NotifyTransports: []string{"log"}}
	tr, closeFn, err := cfg.Transport(context.Background(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "log", tr.Name())
	assert.NoError(t, closeFn())

	cfg.NotifyTransports = []string{"log", "sms", "kafka"}
	cfg.KafkaBroker = "localhost:9092"
	tr, closeFn, err = cfg.Transport(context.Background(), zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "multi", tr.Name())
	assert.Len(t, tr.(notify.MultiTransport), 3)
	assert.NoError(t, closeFn())

	cfg.NotifyTransports = []string{"pigeon"}
	_, _, err = cfg.Transport(context.Background(), zap.NewNop())
	assert.Error(t, err)
}

func TestCartStore(t *testing.T) {
	cfg := &Config{}
	s, _, err := cfg.CartStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &cart.MemoryStore{}, s)

	mr := miniredis.RunT(t)
	cfg = &Config{RedisAddr: mr.Addr(), CartTTL: time.Hour}
	s, closeFn, err := cfg.CartStore(context.Background())
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &cart.RedisStore{}, s)
}
