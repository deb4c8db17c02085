package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "examflow/pkg/domain"
)

const unreadTTL = 24 * time.Hour

// RedisUnreadCache keeps per-recipient unread counters in Redis. Entries
// expire so a counter that drifts from the store self-heals on the next
// fallback read.
type RedisUnreadCache struct {
	client *redis.Client
}

func NewRedisUnreadCache(client *redis.Client) *RedisUnreadCache {
	return &RedisUnreadCache{client: client}
}

func unreadKey(recipient id.UserID) string {
	return fmt.Sprintf("examflow:unread:%s", recipient.String())
}

// Increment bumps the counter only when it already exists. A missing key
// means the count has not been primed from the store yet, and incrementing
// it would invent a count of one.
func (c *RedisUnreadCache) Increment(ctx context.Context, recipient id.UserID) error {
	key := unreadKey(recipient)
	exists, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check unread key: %w", err)
	}
	if exists == 0 {
		return nil
	}
	if err := c.client.Incr(ctx, key).Err(); err != nil {
		return fmt.Errorf("increment unread count: %w", err)
	}
	return nil
}

func (c *RedisUnreadCache) Reset(ctx context.Context, recipient id.UserID, count int) error {
	if err := c.client.Set(ctx, unreadKey(recipient), count, unreadTTL).Err(); err != nil {
		return fmt.Errorf("set unread count: %w", err)
	}
	return nil
}

func (c *RedisUnreadCache) Get(ctx context.Context, recipient id.UserID) (int, bool, error) {
	count, err := c.client.Get(ctx, unreadKey(recipient)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get unread count: %w", err)
	}
	return count, true, nil
}
