package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-order-api/cart"
	"food-order-api/config"
	"food-order-api/handlers"
	"food-order-api/middleware"
	"food-order-api/notify"
	"food-order-api/orders"
	"food-order-api/routes"
	"food-order-api/scheduler"
	"food-order-api/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	logger.Info("database connected and migrated", zap.String("path", cfg.DBPath))
	st := store.New(db, logger.Named("store"))

	cartStore, closeCarts, err := cfg.CartStore(ctx)
	if err != nil {
		return err
	}
	defer closeCarts()
	ledger := cart.NewLedger(cartStore, cart.NewBroadcaster(), cfg.CartPolicy, logger.Named("cart"))

	transport, closeTransport, err := cfg.Transport(ctx, logger.Named("notify"))
	if err != nil {
		return err
	}
	defer closeTransport()
	dispatcher := notify.NewDispatcher(transport, logger.Named("notify"), cfg.NotifyTimeout)
	// Runs after the HTTP server and scheduler have stopped issuing events.
	defer dispatcher.Wait()

	svc := orders.NewService(st, ledger, dispatcher, logger.Named("orders"),
		orders.WithCharges(cfg.TaxRate, cfg.DeliveryFee),
		orders.WithDiscountRate(cfg.DiscountRate))

	runner := scheduler.NewRunner(svc, logger.Named("scheduler"), scheduler.WithInterval(cfg.AutoProgressInterval))
	unsubscribe, err := st.SubscribeOrders(store.Filter{OpenOnly: true}, runner.Replace)
	if err != nil {
		return err
	}
	defer unsubscribe()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		runner.Run(ctx)
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(middleware.Logger(logger.Named("http")), gin.Recovery(), middleware.CORS())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "Food Order Management API",
			"version": "2.0.0",
		})
	})

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Welcome to the Food Order Management API",
			"docs":    "/api/state-machine",
			"health":  "/health",
			"roles":   []string{"customer", "restaurant", "admin"},
		})
	})

	h := handlers.New(st, svc, ledger, logger.Named("handlers"), cfg.JWTSecret)
	if cfg.AdminEmail != "" {
		if err := h.ProvisionAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			return fmt.Errorf("provision admin: %w", err)
		}
	}
	routes.SetupRoutes(r, h, cfg.JWTSecret)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-schedulerDone
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	<-schedulerDone
	return nil
}
