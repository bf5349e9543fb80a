package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"food-order-api/cart"
	"food-order-api/models"
	"food-order-api/notify"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port      string
	GinMode   string
	LogLevel  string
	DBPath    string
	JWTSecret []byte
	// AdminEmail and AdminPassword provision the operator account at startup.
	AdminEmail    string
	AdminPassword string

	AutoProgressInterval time.Duration
	CartPolicy           cart.Policy
	CartTTL              time.Duration
	RedisAddr            string

	TaxRate     decimal.Decimal
	DeliveryFee decimal.Decimal
	// DiscountRate is a house promotion, a fraction of the subtotal.
	DiscountRate decimal.Decimal

	NotifyTransports []string
	NotifyTimeout    time.Duration
	SMS              notify.SMSConfig
	Email            notify.EmailConfig
	KafkaBroker      string
	KafkaNotifyTopic string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getDecimal(key, fallback string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(getEnv(key, fallback))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		DBPath:           getEnv("DB_PATH", "food_orders.db"),
		JWTSecret:        []byte(getEnv("JWT_SECRET", "food_order_super_secret_2024")),
		AdminEmail:       getEnv("ADMIN_EMAIL", ""),
		AdminPassword:    getEnv("ADMIN_PASSWORD", ""),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBroker:      os.Getenv("KAFKA_BROKER"),
		KafkaNotifyTopic: getEnv("KAFKA_NOTIFY_TOPIC", "order-notifications"),
		SMS: notify.SMSConfig{
			Username: os.Getenv("AT_USERNAME"),
			APIKey:   os.Getenv("AT_API_KEY"),
			URL:      getEnv("AT_URL", notify.DefaultSMSURL),
			SenderID: os.Getenv("AT_SENDER_ID"),
		},
		Email: notify.EmailConfig{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Sender:          os.Getenv("AWS_SES_SENDER"),
		},
	}

	var err error
	if cfg.AutoProgressInterval, err = getDuration("AUTO_PROGRESS_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.CartTTL, err = getDuration("CART_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.NotifyTimeout, err = getDuration("NOTIFY_TIMEOUT", notify.DefaultTimeout); err != nil {
		return nil, err
	}
	cfg.CartPolicy = cart.ParsePolicy(getEnv("CART_POLICY", string(cart.PolicyReject)))
	if cfg.TaxRate, err = getDecimal("TAX_RATE", "0.05"); err != nil {
		return nil, err
	}
	if cfg.DiscountRate, err = getDecimal("DISCOUNT_RATE", "0"); err != nil {
		return nil, err
	}
	if cfg.DeliveryFee, err = getDecimal("DELIVERY_FEE", "0"); err != nil {
		return nil, err
	}
	for _, name := range strings.Split(getEnv("NOTIFY_TRANSPORTS", "log"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.NotifyTransports = append(cfg.NotifyTransports, name)
		}
	}
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return nil, fmt.Errorf("PORT: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the process logger. Debug mode gets the human readable
// development encoder.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.GinMode == "debug" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// OpenDB opens the sqlite database and migrates every model.
func OpenDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{},
		&models.Restaurant{},
		&models.MenuItem{},
		&models.MenuVariant{},
		&models.MenuAddon{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderItemAddon{},
		&models.OrderStatusHistory{},
	)
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

// CartStore returns a Redis backed cart store when REDIS_ADDR is set and an
// in-process one otherwise.
func (c *Config) CartStore(ctx context.Context) (cart.Store, func() error, error) {
	if c.RedisAddr == "" {
		return cart.NewMemoryStore(), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return cart.NewRedisStore(client, c.CartTTL), client.Close, nil
}

// Transport assembles the notification channels named in NOTIFY_TRANSPORTS.
func (c *Config) Transport(ctx context.Context, log *zap.Logger) (notify.Transport, func() error, error) {
	var (
		out     notify.MultiTransport
		closers []func() error
	)
	for _, name := range c.NotifyTransports {
		switch name {
		case "log":
			out = append(out, notify.LogTransport{Logger: log})
		case "sms":
			out = append(out, notify.NewSMSTransport(c.SMS, nil))
		case "email":
			t, err := notify.NewEmailTransport(ctx, c.Email)
			if err != nil {
				return nil, nil, err
			}
			out = append(out, t)
		case "kafka":
			if c.KafkaBroker == "" {
				return nil, nil, fmt.Errorf("kafka transport needs KAFKA_BROKER")
			}
			w := notify.NewKafkaWriter(c.KafkaBroker, c.KafkaNotifyTopic)
			closers = append(closers, w.Close)
			out = append(out, notify.NewKafkaTransport(w))
		default:
			return nil, nil, fmt.Errorf("unknown notification transport %q", name)
		}
	}
	closeAll := func() error {
		var first error
		for _, fn := range closers {
			if err := fn(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	if len(out) == 1 {
		return out[0], closeAll, nil
	}
	return out, closeAll, nil
}
