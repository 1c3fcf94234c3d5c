package router

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"topup_service/internal/account"
	"topup_service/internal/order"
)

// writeError 把领域错误映射成 HTTP 状态码，响应体统一为 {message}。
func writeError(c *gin.Context, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"message": msg})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, order.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, order.ErrMalformedReference):
		return http.StatusBadRequest, "Invalid order format"
	case errors.Is(err, order.ErrSignature):
		return http.StatusBadRequest, "Invalid signature"
	case errors.Is(err, order.ErrAlreadyPaid):
		return http.StatusBadRequest, "Order already paid"
	case errors.Is(err, order.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, order.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, account.ErrMissingFields):
		return http.StatusBadRequest, "All fields are required"
	case errors.Is(err, account.ErrPasswordMismatch):
		return http.StatusBadRequest, "New passwords do not match"
	case errors.Is(err, account.ErrPasswordTooShort):
		return http.StatusBadRequest, "New password must be at least 6 characters long"
	case errors.Is(err, account.ErrWrongPassword):
		return http.StatusBadRequest, "Current password is incorrect"
	case errors.Is(err, account.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, account.ErrUsernameTaken):
		return http.StatusConflict, "Username already exists"
	case errors.Is(err, account.ErrAccountNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, order.ErrInitiationInProgress):
		return http.StatusConflict, "Payment initiation already in progress"
	case errors.Is(err, order.ErrGateway):
		return http.StatusBadGateway, "Failed to create payment"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
