package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillspace/core/internal/pkg/jwt"
	"github.com/redis/go-redis/v9"
)

const (
	rateLimitMax    = 100
	rateLimitWindow = time.Second
)

// RateLimit returns a middleware that enforces a per-IP sliding-window rate
// limit on unauthenticated requests. Redis failures fail open.
func RateLimit(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Runs before auth middleware, so inspect the token directly.
		if claims, err := jwt.Parse(extractToken(c)); err == nil && claims.UserID != "" {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		windowKey := time.Now().Unix()
		key := fmt.Sprintf("qs:rate_limit:%s:%d", ip, windowKey)

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			c.Next()
			return
		}

		if count == 1 {
			rdb.PExpire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > rateLimitMax {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many requests",
				"kind":    "rate_limited",
			})
			return
		}

		c.Next()
	}
}
