package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// 閒置超過這段時間的限流器會被回收
const limiterIdleTTL = 10 * time.Minute

// RateLimiter 每個用戶一個 token bucket
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *ttlcache.Cache[uint, *rate.Limiter]
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	l := &RateLimiter{
		limit: rate.Limit(rps),
		burst: burst,
		limiters: ttlcache.New[uint, *rate.Limiter](
			ttlcache.WithTTL[uint, *rate.Limiter](limiterIdleTTL),
		),
	}
	go l.limiters.Start()
	return l
}

// Close 停止背景回收
func (l *RateLimiter) Close() {
	l.limiters.Stop()
}

// Allow 消耗一個 token；rps <= 0 時不限流
func (l *RateLimiter) Allow(userID uint) bool {
	if l.limit <= 0 {
		return true
	}
	item, _ := l.limiters.GetOrSet(userID, rate.NewLimiter(l.limit, l.burst))
	return item.Value().Allow()
}

// Middleware 超過速率時回傳 429；須放在 AuthMiddleware 之後
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}
		if !l.Allow(userID) {
			c.Header("Retry-After", strconv.Itoa(1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
