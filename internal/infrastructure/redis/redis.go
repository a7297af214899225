package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kartalink/circle-service/internal/domain"
)

type Cache struct {
	Client   *redis.Client
	CountTTL time.Duration
}

func New(addr, pass string, db int, countTTL time.Duration) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr, Password: pass, DB: db,
	})
	if countTTL <= 0 {
		countTTL = 30 * time.Second
	}
	return &Cache{Client: rdb, CountTTL: countTTL}
}

func countKey(eventID uuid.UUID) string {
	return "event:admitted:" + eventID.String()
}

func (c *Cache) GetAdmittedCount(ctx context.Context, eventID uuid.UUID) (int, error) {
	val, err := c.Client.Get(ctx, countKey(eventID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, domain.ErrCacheMiss
		}
		return 0, err
	}
	return strconv.Atoi(val)
}

// SetAdmittedCount keeps a short TTL: the value is a render hint, the store
// stays authoritative.
func (c *Cache) SetAdmittedCount(ctx context.Context, eventID uuid.UUID, n int) error {
	return c.Client.Set(ctx, countKey(eventID), n, c.CountTTL).Err()
}

func (c *Cache) InvalidateAdmittedCount(ctx context.Context, eventID uuid.UUID) error {
	return c.Client.Del(ctx, countKey(eventID)).Err()
}

// AllowRequest: simple fixed window rate limit.
func (c *Cache) AllowRequest(ctx context.Context, ip string, limit int, window time.Duration) (bool, error) {
	key := "ratelimit:" + ip
	count, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, nil // fail open
	}
	if count == 1 {
		_ = c.Client.Expire(ctx, key, window).Err()
	}
	return count <= int64(limit), nil
}
