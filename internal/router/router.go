package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"topup_service/internal/account"
	"topup_service/internal/config"
	"topup_service/internal/middleware"
	"topup_service/internal/order"
	"topup_service/internal/payment"
)

// Deps 路由依赖。
type Deps struct {
	DB      *gorm.DB
	Redis   *rd.Client // 可为 nil
	Service *order.Service
	// Accounts 为 nil 时不注册 /api/auth 路由
	Accounts *account.Service
	// Integrations 回调入口按网关选择验签与解析方式
	Integrations map[payment.Vendor]payment.Integration
	Config       config.AppConfig
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	cfg := d.Config
	r.Use(middleware.Authenticate(cfg.AuthSecret))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/health", health(d.DB))

	// Auth
	if d.Accounts != nil {
		auth := api.Group("/auth")
		auth.POST("/register", register(d.Accounts))
		auth.POST("/login", login(d.Accounts, cfg))
		auth.POST("/logout", logout())
		auth.GET("/me", middleware.RequireAuth(), me(d.Accounts))
		auth.POST("/change-password", middleware.RequireAuth(), changePassword(d.Accounts))
	}

	// Products
	api.GET("/products", listProducts(d.Service))
	api.POST("/products", middleware.RequireAuth(), createProduct(d.Service))
	api.PUT("/products", middleware.RequireAuth(), updateProduct(d.Service))

	// Orders
	api.POST("/orders", middleware.RequireAuth(), createOrder(d.Service))
	api.GET("/orders", middleware.RequireAuth(), listOrders(d.Service))
	api.PATCH("/orders", middleware.RequireAuth(), updateOrderStatus(d.Service))
	api.POST("/orders/guest", middleware.RedisRateLimit(d.Redis, "guest_order", cfg.GuestOrderRateLimit, cfg.GuestOrderRateWindow), createGuestOrder(d.Service))

	admin := api.Group("/admin", middleware.RequireAuth())
	admin.GET("/orders", listAllOrders(d.Service))
	admin.GET("/orders/:id/notifications", listNotifications(d.Service))

	// Payment
	api.POST("/payment/create", middleware.RequireAuth(), createPayment(d.Service))
	api.GET("/payment/status", middleware.RequireAuth(), paymentStatus(d.Service))

	// 网关回调不限流
	api.POST("/payment/webhook", paymentCallback(d.Service, d.Integrations[payment.VendorMidtrans]))
	api.POST("/payment/callback", paymentCallback(d.Service, d.Integrations[payment.VendorDana]))
}

// health 检查数据库连通性。
func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "API is healthy"})
	}
}
