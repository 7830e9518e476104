package realtime

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes events on Redis pub/sub for external consumers.
// Channels are prefix+channel. This process never subscribes, so WebSocket
// clients connected to another instance are not reached through it.
type RedisTransport struct {
	client *redis.Client
	prefix string
}

func NewRedisTransport(client *redis.Client, prefix string) *RedisTransport {
	return &RedisTransport{client: client, prefix: prefix}
}

func (t *RedisTransport) Name() string { return "redis" }

func (t *RedisTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	return t.client.Publish(ctx, t.prefix+channel, payload).Err()
}
