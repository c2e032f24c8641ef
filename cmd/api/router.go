package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"repairshop-backend/internal/shared/middleware"
	"repairshop-backend/pkg/container"
)

func SetupRouter(c *container.Container) *gin.Engine {
	router := gin.New()

	// Global middlewares
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.CORS(c.Config.HTTP.AllowedOrigin),
	)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", healthCheckHandler(c))

		setupCartDiscountRoutes(v1, c)
		setupAdminPromotionRoutes(v1, c)
	}

	return router
}

// ========================================
// CART DISCOUNT ROUTES (order flow)
// ========================================
func setupCartDiscountRoutes(v1 *gin.RouterGroup, c *container.Container) {
	// Preview là public - khách chưa đăng nhập vẫn xem được giảm giá
	v1.POST("/cart/discounts/preview",
		middleware.RateLimit(c.Cache, int64(c.Config.HTTP.PreviewRateLimit), time.Minute),
		c.CartDiscountHandler.Preview,
	)

	// Confirm/cancel gọi từ order service - cần auth
	orders := v1.Group("/orders")
	orders.Use(middleware.AuthMiddleware(c.JWTManager))
	{
		orders.POST("/discounts/confirm", c.CartDiscountHandler.Confirm)
		orders.DELETE("/:orderId/discounts", c.CartDiscountHandler.Cancel)
	}
}

// ========================================
// ADMIN PROMOTION ROUTES
// ========================================
func setupAdminPromotionRoutes(v1 *gin.RouterGroup, c *container.Container) {
	admin := v1.Group("/admin/promotions")
	admin.Use(
		middleware.AuthMiddleware(c.JWTManager),
		middleware.AdminMiddleware(),
	)
	{
		admin.POST("", c.AdminHandler.Create)
		admin.GET("", c.AdminHandler.List)
		admin.GET("/:id", c.AdminHandler.GetByID)
		admin.PATCH("/:id/status", c.AdminHandler.UpdateStatus)
		admin.POST("/:id/conflicts", c.AdminHandler.DeclareConflict)
		admin.DELETE("/:id/conflicts/:otherId", c.AdminHandler.RemoveConflict)
		admin.GET("/:id/usage", c.AdminHandler.ListUsage)
	}
}

// ========================================
// HEALTH CHECK
// ========================================
func healthCheckHandler(c *container.Container) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		checkCtx, cancel := context.WithTimeout(ctx.Request.Context(), 5*time.Second)
		defer cancel()

		dbStatus := "up"
		if err := c.DB.HealthCheck(checkCtx); err != nil {
			dbStatus = "down"
		}

		redisStatus := "up"
		if err := c.Redis.HealthCheck(checkCtx); err != nil {
			redisStatus = "down"
		}

		status := http.StatusOK
		if dbStatus == "down" || redisStatus == "down" {
			status = http.StatusServiceUnavailable
		}

		poolStats, _ := c.DB.Stats()

		ctx.JSON(status, gin.H{
			"status":   "ok",
			"version":  c.Config.App.Version,
			"database": dbStatus,
			"redis":    redisStatus,
			"db_pool":  poolStats,
		})
	}
}
