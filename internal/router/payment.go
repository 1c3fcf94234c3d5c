package router

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"topup_service/internal/middleware"
	"topup_service/internal/order"
	"topup_service/internal/payment"
)

// 回调报文上限
const maxCallbackBody = 64 << 10

// createPayment 为已有订单发起支付。
func createPayment(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			OrderID       uint   `json:"orderId"`
			PaymentMethod string `json:"paymentMethod"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		res, err := svc.InitiatePayment(c.Request.Context(), middleware.CallerFrom(c), req.OrderID, req.PaymentMethod)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"paymentId":  res.PaymentID,
			"paymentUrl": res.PaymentURL,
			"orderId":    res.Reference,
		})
	}
}

// paymentStatus 轮询订单状态；refresh=true 时先向网关查单。
func paymentStatus(svc *order.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Query("orderId"), 10, 32)
		if err != nil || id == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Order ID is required"})
			return
		}
		refresh, _ := strconv.ParseBool(c.Query("refresh"))
		v, err := svc.PaymentStatus(c.Request.Context(), middleware.CallerFrom(c), uint(id), refresh)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": v})
	}
}

// paymentCallback 网关异步通知入口，Midtrans 与 DANA 共用同一处理链路。
func paymentCallback(svc *order.Service, integ payment.Integration) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		res, err := svc.ApplyNotification(c.Request.Context(), integ, body)
		if err != nil {
			writeError(c, err)
			return
		}
		// 订单不存在时没有可回显的状态
		if res.Outcome == order.OutcomeIgnored {
			c.JSON(http.StatusOK, gin.H{"message": "Order not found, notification ignored", "orderId": res.OrderID})
			return
		}
		msg := "Callback processed successfully"
		if res.Outcome == order.OutcomeStale {
			msg = "Order already finalized, notification ignored"
		}
		c.JSON(http.StatusOK, gin.H{
			"message":       msg,
			"orderId":       res.OrderID,
			"paymentStatus": res.PaymentStatus,
			"orderStatus":   res.OrderStatus,
		})
	}
}
