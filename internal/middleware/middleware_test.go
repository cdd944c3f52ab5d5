package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event_chat/internal/utils"
)

func newRouter(tokens *utils.JWTManager, limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AuthMiddleware(tokens))
	if limiter != nil {
		r.Use(limiter.Middleware())
	}
	r.GET("/me", func(c *gin.Context) {
		id, _ := UserID(c)
		c.JSON(http.StatusOK, gin.H{"user_id": id})
	})
	return r
}

func get(r http.Handler, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	tokens := utils.NewJWTManager("secret", time.Hour)
	r := newRouter(tokens, nil)

	token, err := tokens.GenerateToken(7)
	require.NoError(t, err)

	w := get(r, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":7}`, w.Body.String())

	for _, auth := range []string{"", token, "Basic abc", "Bearer nope"} {
		assert.Equal(t, http.StatusUnauthorized, get(r, auth).Code, "auth=%q", auth)
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	tokens := utils.NewJWTManager("secret", time.Hour)
	limiter := NewRateLimiter(0.001, 2)
	defer limiter.Close()
	r := newRouter(tokens, limiter)

	alice, err := tokens.GenerateToken(1)
	require.NoError(t, err)
	bob, err := tokens.GenerateToken(2)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, get(r, "Bearer "+alice).Code)
	assert.Equal(t, http.StatusOK, get(r, "Bearer "+alice).Code)
	w := get(r, "Bearer "+alice)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(r, "Bearer "+bob).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(0, 0)
	defer l.Close()
	for i := 0; i < 100; i++ {
		require.True(t, l.Allow(1))
	}
}
