package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisWriter interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink caches the latest snapshot under a key and announces it on a pub/sub channel.
type RedisSink struct {
	client  redisWriter
	key     string
	channel string
}

// NewRedisSink returns redis-backed sink. An empty channel disables PUBLISH.
func NewRedisSink(client *redis.Client, key, channel string) *RedisSink {
	return &RedisSink{client: client, key: key, channel: channel}
}

// Publish stores the snapshot without expiry and publishes it.
func (s *RedisSink) Publish(ctx context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return err
	}
	if s.channel == "" {
		return nil
	}
	return s.client.Publish(ctx, s.channel, data).Err()
}
