package middleware

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitConfig holds per-client request limits
type RateLimitConfig struct {
	PerSecond int
	PerDay    int
}

// LoadRateLimitConfigFromEnv loads rate limit configuration from environment
// variables
func LoadRateLimitConfigFromEnv() RateLimitConfig {
	perSecond, _ := strconv.Atoi(getEnv("RIDEO_RATE_LIMIT_PER_SECOND", "10"))
	perDay, _ := strconv.Atoi(getEnv("RIDEO_RATE_LIMIT_PER_DAY", "10000"))
	return RateLimitConfig{PerSecond: perSecond, PerDay: perDay}
}

// RateLimitMiddleware enforces per-client request limits backed by Redis
// counters. Search is the expensive endpoint, so limits are counted per
// client IP per second and per day. A Redis failure never blocks a request.
func RateLimitMiddleware(rdb *redis.Client, cfg RateLimitConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.Context()
		client := c.IP()
		now := time.Now()

		if cfg.PerSecond > 0 {
			key := fmt.Sprintf("rl:%s:second:%d", client, now.Unix())
			count, err := rdb.Incr(ctx, key).Result()
			if err == nil {
				rdb.Expire(ctx, key, 2*time.Second)

				if count > int64(cfg.PerSecond) {
					c.Set("Retry-After", "1")
					return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
						"error":       "rate_limit_exceeded",
						"limit_type":  "per_second",
						"limit":       cfg.PerSecond,
						"retry_after": 1,
					})
				}
				c.Set("X-RateLimit-Limit-Second", strconv.Itoa(cfg.PerSecond))
				c.Set("X-RateLimit-Remaining-Second", strconv.FormatInt(int64(cfg.PerSecond)-count, 10))
			}
		}

		if cfg.PerDay > 0 {
			key := fmt.Sprintf("rl:%s:day:%s", client, now.Format("2006-01-02"))
			count, err := rdb.Incr(ctx, key).Result()
			if err == nil {
				// 25 hours so the counter outlives its day across timezones
				rdb.Expire(ctx, key, 25*time.Hour)

				if count > int64(cfg.PerDay) {
					tomorrow := now.AddDate(0, 0, 1)
					midnight := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
					retryAfter := int64(midnight.Sub(now).Seconds())

					c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
					return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
						"error":       "daily_quota_exceeded",
						"limit_type":  "per_day",
						"limit":       cfg.PerDay,
						"used":        count,
						"retry_after": retryAfter,
						"reset_at":    midnight.Format(time.RFC3339),
					})
				}
				c.Set("X-RateLimit-Limit-Day", strconv.Itoa(cfg.PerDay))
				c.Set("X-RateLimit-Remaining-Day", strconv.FormatInt(int64(cfg.PerDay)-count, 10))
			}
		}

		return c.Next()
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
