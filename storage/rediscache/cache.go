// Package rediscache keeps a bounded per-chat cache of recent messages for
// cheap reads by external consumers. The in-memory store stays
// authoritative; the cache is advisory and expendable.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"chatcore/pkg/breaker"
	"chatcore/services/directory"
	"chatcore/services/messages"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
)

const (
	RecentMessagesCacheSize = 100
	MessageCacheTTL         = 24 * time.Hour

	recentKeyPrefix = "chat:recent:"
)

// Cache mirrors the tail of each chat's message log into a Redis sorted set
// keyed by send time.
type Cache struct {
	rdb *redis.Client
	cb  *gobreaker.CircuitBreaker
}

func New(rdb *redis.Client) *Cache {
	return &Cache{
		rdb: rdb,
		cb:  breaker.New(breaker.Config{Name: "redis-cache"}),
	}
}

func (c *Cache) Name() string { return "redis-cache" }

func (c *Cache) ChatCreated(ctx context.Context, chat directory.Chat) error {
	// Nothing cached until the first message arrives
	return nil
}

func (c *Cache) MessageAppended(ctx context.Context, msg messages.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := recentKeyPrefix + msg.ChatID

	_, err = breaker.ExecuteCtx(ctx, c.cb, func() (interface{}, error) {
		pipe := c.rdb.Pipeline()
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(msg.SentAt.UnixNano()),
			Member: payload,
		})
		pipe.ZRemRangeByRank(ctx, key, 0, -RecentMessagesCacheSize-1)
		pipe.Expire(ctx, key, MessageCacheTTL)
		_, execErr := pipe.Exec(ctx)
		return nil, execErr
	})
	return err
}

func (c *Cache) MessageSeen(ctx context.Context, chatID, messageID, userID string) error {
	// Seen state is not mirrored; cached entries carry the seen set from
	// append time only
	return nil
}

// ChatRefreshed drops the chat's cached tail so consumers re-read from the
// authoritative store.
func (c *Cache) ChatRefreshed(ctx context.Context, chatID string) error {
	_, err := breaker.ExecuteCtx(ctx, c.cb, func() (interface{}, error) {
		return nil, c.rdb.Del(ctx, recentKeyPrefix+chatID).Err()
	})
	return err
}

// Recent returns the cached message tail of a chat in send order
func (c *Cache) Recent(ctx context.Context, chatID string) ([]messages.Message, error) {
	result, err := breaker.ExecuteCtx(ctx, c.cb, func() (interface{}, error) {
		return c.rdb.ZRange(ctx, recentKeyPrefix+chatID, 0, -1).Result()
	})
	if err != nil {
		return nil, err
	}

	entries := result.([]string)
	msgs := make([]messages.Message, 0, len(entries))
	for _, entry := range entries {
		var msg messages.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}
