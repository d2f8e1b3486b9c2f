package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware limits by client IP across a whole route group.
func RateLimitMiddleware(rdb *redis.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := fmt.Sprintf("rl:%s:%s", c.Path(), c.IP())
		return limitByKey(c, rdb, key, limit, window)
	}
}

// ActorRateLimitMiddleware limits sensitive mutating operations
// (confirm-delivery, refunds, dispute actions) per authenticated actor,
// blunting brute-force attempts against confirmation codes and payment
// endpoints. A rejection here never touches any entity.
func ActorRateLimitMiddleware(rdb *redis.Client, action string, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor := GetUserID(c)
		key := fmt.Sprintf("rl:actor:%s:%s", action, actor)
		return limitByKey(c, rdb, key, limit, window)
	}
}

func limitByKey(c *fiber.Ctx, rdb *redis.Client, key string, limit int, window time.Duration) error {
	ctx := context.Background()
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return c.Next() // fail open
	}

	if count == 1 {
		rdb.Expire(ctx, key, window)
	}

	if count > int64(limit) {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "too many attempts",
		})
	}

	return c.Next()
}
