package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"topup_service/internal/order"
)

// CookieName 登录态 cookie
const CookieName = "token"

const callerKey = "topup.caller"

// Claims 登录 token 载荷
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// SignToken 签发 HS256 token，供登录流程与测试使用。
func SignToken(secret string, caller order.Caller, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:   caller.UserID,
		Username: caller.Username,
		Role:     caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(caller.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken 校验签名与过期时间并还原 Caller。
func ParseToken(secret, raw string) (*order.Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.UserID <= 0 {
		return nil, errors.New("token carries no user id")
	}
	return &order.Caller{UserID: claims.UserID, Username: claims.Username, Role: claims.Role}, nil
}

// Authenticate 解析 cookie 或 Bearer token；无效 token 视同游客，不拦截。
func Authenticate(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			c.Next()
			return
		}
		caller, err := ParseToken(secret, raw)
		if err != nil {
			c.Next()
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

// RequireAuth 必须登录，否则 401。
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// CallerFrom 取出当前请求方，游客返回 nil。
func CallerFrom(c *gin.Context) *order.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*order.Caller)
	return caller
}

func tokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	if v, err := c.Cookie(CookieName); err == nil {
		return v
	}
	return ""
}
