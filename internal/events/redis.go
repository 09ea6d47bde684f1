package events

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes ingest events onto Redis Streams. Each subject
// maps to one stream under a configured prefix.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// newRedisPublisher connects to Redis and verifies the connection.
func newRedisPublisher(url, password string, db int, prefix string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		// Fallback to host:port addressing
		opts = &redis.Options{
			Addr:     url,
			Password: password,
			DB:       db,
		}
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("events: connect to Redis: %w", err)
	}

	if prefix == "" {
		prefix = "ohlcv-gateway"
	}

	return &RedisPublisher{client: client, prefix: prefix}, nil
}

// streamName converts a subject to a Redis stream name.
func (p *RedisPublisher) streamName(subject string) string {
	return fmt.Sprintf("%s:%s", p.prefix, subject)
}

// Publish appends one event to the subject's stream.
func (p *RedisPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	stream := p.streamName(subject)

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{"data": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("events: publish to Redis stream %s: %w", stream, err)
	}

	return nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
