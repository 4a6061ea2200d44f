package middleware

import (
	"fmt"
	"net/http"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"AOTF-backend/internal/utilities"
)

const defaultRequestsPerSecond = 5

func keyFunc(c *gin.Context) string {
	user, err := utilities.ExtractUser(c)
	if err != nil {
		return "ip: " + c.ClientIP()
	}
	return "user: " + user.ID.String()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.Header("Retry-After", fmt.Sprintf("%.0f", time.Until(info.ResetTime).Seconds()))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, utilities.ErrorResponse{
		Error: "Too many requests. Please try again later.",
	})
}

// RateLimiterMiddleware limits every user (or client IP before authentication)
// to reqPerSec requests per second, counted in process memory.
func RateLimiterMiddleware(reqPerSec uint) gin.HandlerFunc {
	if reqPerSec == 0 {
		reqPerSec = defaultRequestsPerSecond
	}
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Second,
		Limit: reqPerSec,
	})

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		KeyFunc:      keyFunc,
		ErrorHandler: errorHandler,
	})
}

// RedisRateLimiterMiddleware is RateLimiterMiddleware with counters kept in redis,
// so every replica behind a load balancer shares the same budget.
func RedisRateLimiterMiddleware(client *redis.Client, reqPerSec uint) gin.HandlerFunc {
	if reqPerSec == 0 {
		reqPerSec = defaultRequestsPerSecond
	}
	store := ratelimit.RedisStore(&ratelimit.RedisOptions{
		RedisClient: client,
		Rate:        time.Second,
		Limit:       reqPerSec,
	})

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		KeyFunc:      keyFunc,
		ErrorHandler: errorHandler,
	})
}

// NewRateLimiter picks the redis store when redisURL is set and the in-memory one otherwise.
// The returned client is nil for the in-memory store; callers close it on shutdown.
func NewRateLimiter(redisURL string, reqPerSec int) (gin.HandlerFunc, *redis.Client, error) {
	if reqPerSec <= 0 {
		reqPerSec = defaultRequestsPerSecond
	}
	if redisURL == "" {
		return RateLimiterMiddleware(uint(reqPerSec)), nil, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return RedisRateLimiterMiddleware(client, uint(reqPerSec)), client, nil
}
