package middleware

import (
	"context"
	"net/http"
	"strconv"

	"civic-polls/internal/redis"
	"civic-polls/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// IPLimiter is implemented by redis.RateLimiter.
type IPLimiter interface {
	AllowAuth(ctx context.Context, ip string) (*redis.RateLimitResult, error)
}

// RateLimitMiddleware applies the per-IP auth budget. Used on public write
// routes that the services do not limit themselves.
func RateLimitMiddleware(limiter IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.AllowAuth(c.Request.Context(), c.ClientIP())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse("rate limiter unavailable", "SERVICE_UNAVAILABLE"))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", "RATE_LIMITED"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
