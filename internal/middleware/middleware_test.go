package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"topup_service/internal/order"
	rediskey "topup_service/pkg/redis"
)

const secret = "test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(secret))
	r.GET("/whoami", func(c *gin.Context) {
		caller := CallerFrom(c)
		if caller == nil {
			c.JSON(http.StatusOK, gin.H{"user": "guest"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": caller.Username, "role": caller.Role})
	})
	r.GET("/private", RequireAuth(), RedisRateLimit(nil, "test", 1, time.Second), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	r := newEngine()
	token, err := SignToken(secret, order.Caller{UserID: 3, Username: "bob", Role: order.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	expired, err := SignToken(secret, order.Caller{UserID: 3, Username: "bob"}, -time.Minute)
	require.NoError(t, err)
	forged, err := SignToken("other-secret", order.Caller{UserID: 3, Username: "bob"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(*http.Request)
		expect string
	}{
		{"no token", func(*http.Request) {}, `"user":"guest"`},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, `"user":"bob"`},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, `"role":"ADMIN"`},
		{"expired", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, `"user":"guest"`},
		{"wrong secret", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) }, `"user":"guest"`},
		{"garbage", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "x.y.z"}) }, `"user":"guest"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Contains(t, w.Body.String(), tt.expect)
		})
	}
}

func TestRequireAuth(t *testing.T) {
	r := newEngine()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := SignToken(secret, order.Caller{UserID: 9}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code, "nil redis disables the limiter")
}

func TestParseToken_RejectsMissingUser(t *testing.T) {
	token, err := SignToken(secret, order.Caller{}, time.Hour)
	require.NoError(t, err)
	_, err = ParseToken(secret, token)
	assert.Error(t, err)
}

func TestRedisRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(secret))
	r.POST("/guest", RedisRateLimit(rdb, "guest_order", 1, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	token, err := SignToken(secret, order.Caller{UserID: 5, Username: "eve"}, time.Hour)
	require.NoError(t, err)

	send := func(remote, auth string) int {
		req := httptest.NewRequest(http.MethodPost, "/guest", nil)
		req.RemoteAddr = remote
		if auth != "" {
			req.Header.Set("Authorization", "Bearer "+auth)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1000", ""))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1001", ""))
	assert.Equal(t, http.StatusNoContent, send("10.0.0.2:1000", ""), "other IPs have their own window")
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1002", token), "members are keyed by user")
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.3:1000", token))

	n, err := rdb.ZCard(context.Background(), rediskey.RateLimitKey("guest_order", "ip:10.0.0.1")).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1003", ""), "window expired")

	// Redis 不可用时放行
	mr.Close()
	assert.Equal(t, http.StatusNoContent, send("10.0.0.1:1004", ""))
}
