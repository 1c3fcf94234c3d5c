package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"topup_service/internal/middleware"
	"topup_service/internal/model"
	"topup_service/internal/order"
)

// createOrder 会员下单。
func createOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateOrderInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		o, err := svc.CreateOrder(c.Request.Context(), middleware.CallerFrom(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order created successfully", "order": o})
	}
}

// createGuestOrder 游客下单，忽略任何登录态。
func createGuestOrder(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateOrderInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		o, err := svc.CreateOrder(c.Request.Context(), nil, in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Guest order created successfully", "order": o})
	}
}

func listOrders(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListOrders(c.Request.Context(), middleware.CallerFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// updateOrderStatus 管理员修改履约状态。
func updateOrderStatus(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID uint              `json:"orderId"`
			Status  model.OrderStatus `json:"status"`
			// 兼容旧字段名
			OrderStatus model.OrderStatus `json:"orderStatus"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		status := req.Status
		if status == "" {
			status = req.OrderStatus
		}
		o, err := svc.UpdateOrderStatus(c.Request.Context(), middleware.CallerFrom(c), req.OrderID, status)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order updated successfully", "order": o})
	}
}

func listAllOrders(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListAllOrders(c.Request.Context(), middleware.CallerFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// listNotifications 查看某订单收到的网关回调记录。
func listNotifications(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid order ID"})
			return
		}
		list, err := svc.Notifications(c.Request.Context(), middleware.CallerFrom(c), uint(id))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"notifications": list})
	}
}

func listProducts(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.ListProducts(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": list})
	}
}

// createProduct 管理员新增价目。
func createProduct(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.CreateProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		p, err := svc.CreateProduct(c.Request.Context(), middleware.CallerFrom(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product created successfully", "product": p})
	}
}

// updateProduct 管理员修改价目。
func updateProduct(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in order.UpdateProductInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		p, err := svc.UpdateProduct(c.Request.Context(), middleware.CallerFrom(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": p})
	}
}
