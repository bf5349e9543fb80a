package routes

import (
	"food-order-api/handlers"
	"food-order-api/middleware"
	"food-order-api/models"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *handlers.Handler, jwtSecret []byte) {
	authRequired := middleware.AuthRequired(jwtSecret)

	// ── Public routes ──────────────────────────────────────────────
	public := r.Group("/api")
	{
		// Auth
		public.POST("/auth/register", h.Register)
		public.POST("/auth/login", h.Login)

		// Restaurants & menus (no auth needed)
		public.GET("/restaurants", h.ListRestaurants)
		public.GET("/restaurants/:id", h.GetRestaurant)
		public.GET("/restaurants/:id/menu", h.GetMenu)

		// State machine info
		public.GET("/state-machine", h.GetStateMachineInfo)
	}

	// ── Authenticated routes ───────────────────────────────────────
	auth := r.Group("/api")
	auth.Use(authRequired)
	{
		auth.GET("/profile", h.GetProfile)
	}

	// ── Customer routes ────────────────────────────────────────────
	customer := r.Group("/api/customer")
	customer.Use(authRequired, middleware.RoleRequired(models.RoleCustomer))
	{
		customer.GET("/cart", h.GetCart)
		customer.DELETE("/cart", h.ClearCart)
		customer.POST("/cart/items", h.AddToCart)
		customer.PATCH("/cart/items", h.UpdateCartLine)
		customer.DELETE("/cart/items", h.RemoveCartLine)
		customer.GET("/cart/feed", h.CartFeed)

		customer.POST("/checkout", h.Checkout)
		customer.GET("/orders", h.GetMyOrders)
		customer.GET("/orders/:id", h.GetOrderDetail)
		customer.POST("/orders/:id/cancel", h.CancelOrder)
		customer.POST("/orders/:id/receipt", h.ConfirmReceipt)
	}

	// ── Restaurant owner routes ────────────────────────────────────
	restaurant := r.Group("/api/restaurant")
	restaurant.Use(authRequired, middleware.RoleRequired(models.RoleRestaurant))
	{
		// Restaurant management
		restaurant.POST("", h.CreateRestaurant)
		restaurant.GET("", h.GetMyRestaurant)
		restaurant.PUT("", h.UpdateRestaurant)

		// Menu management
		restaurant.POST("/menu", h.AddMenuItem)
		restaurant.PUT("/menu/:itemId", h.UpdateMenuItem)
		restaurant.DELETE("/menu/:itemId", h.DeleteMenuItem)

		// Order management
		restaurant.GET("/orders", h.GetRestaurantOrders)
		restaurant.GET("/orders/feed", h.OrderFeed)
		restaurant.GET("/orders/:id", h.GetOrderDetail)
		restaurant.POST("/orders/:id/events", h.ApplyOrderEvent)
		restaurant.PUT("/orders/:id/eta", h.SetEstimatedTime)
		restaurant.PUT("/orders/:id/preorder-time", h.SetPreOrderTime)
	}

	// ── Admin routes ───────────────────────────────────────────────
	admin := r.Group("/api/admin")
	admin.Use(authRequired, middleware.RoleRequired(models.RoleAdmin))
	{
		admin.GET("/orders", h.AdminGetAllOrders)
		admin.GET("/orders/:id", h.GetOrderDetail)
		admin.GET("/users", h.AdminGetAllUsers)
		admin.GET("/restaurants", h.AdminGetAllRestaurants)
	}
}
