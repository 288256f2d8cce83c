package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/credential-ledger-api/pkg/config"
)

// NewRedis returns a Redis client used as the durable job broker. The read
// timeout must exceed the broker's blocking poll timeout.
func NewRedis(cfg config.RedisConfig, pollTimeout time.Duration) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	readTimeout := 3 * time.Second
	if pollTimeout+time.Second > readTimeout {
		readTimeout = pollTimeout + time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		ReadTimeout: readTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
