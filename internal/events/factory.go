package events

import (
	"fmt"
	"strings"

	"github.com/quantlake/ohlcv-gateway/internal/config"
)

// NewPublisher creates a Publisher from configuration. A disabled config
// yields (nil, nil); NewNotifier treats a nil publisher as a no-op.
func NewPublisher(cfg config.EventsConfig) (Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return newMemoryPublisher(), nil

	case "nats":
		return newNATSPublisher(cfg.URL, cfg.Username, cfg.Password)

	case "redis":
		return newRedisPublisher(cfg.URL, cfg.Password, cfg.RedisDB, cfg.RedisStream)

	case "kafka":
		return newKafkaPublisher(cfg.KafkaBrokers)

	default:
		return nil, fmt.Errorf("events: unsupported broker type: %s (supported: memory, nats, redis, kafka)", cfg.Type)
	}
}
