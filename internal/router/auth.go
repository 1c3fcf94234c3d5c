package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"topup_service/internal/account"
	"topup_service/internal/config"
	"topup_service/internal/middleware"
)

func register(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in account.RegisterInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		a, err := accounts.Register(c.Request.Context(), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": a})
	}
}

// login 校验密码后签发 token，同时写入 cookie 与响应体。
func login(accounts *account.Service, cfg config.AppConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		a, err := accounts.Login(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			writeError(c, err)
			return
		}
		tok, err := middleware.SignToken(cfg.AuthSecret, account.CallerOf(a), cfg.AuthTokenTTL)
		if err != nil {
			writeError(c, err)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.CookieName, tok, int(cfg.AuthTokenTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
		c.JSON(http.StatusOK, gin.H{"message": "Login successful", "user": a, "token": tok})
	}
}

func logout() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.CookieName, "", -1, "/", "", c.Request.TLS != nil, true)
		c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
	}
}

func me(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, err := accounts.Me(c.Request.Context(), middleware.CallerFrom(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": a})
	}
}

func changePassword(accounts *account.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in account.ChangePasswordInput
		if err := c.ShouldBindJSON(&in); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
			return
		}
		if err := accounts.ChangePassword(c.Request.Context(), middleware.CallerFrom(c), in); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
	}
}
