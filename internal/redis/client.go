package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/paulianttila/ipmi2mqtt/internal/config"

	"github.com/go-redis/redis/v8"
)

// The stream mirror is secondary to MQTT; a slow Redis must not stall a cycle.
const (
	dialTimeout = 2 * time.Second
	ioTimeout   = time.Second
	poolSize    = 2
)

// Connect opens a small client for the stream mirror and checks it with PING.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     poolSize,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Addr, err)
	}
	return client, nil
}
